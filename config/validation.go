package config

import (
	"errors"
	"fmt"

	"github.com/brettbedarf/clifs/internal/util"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the struct tag constraints on the configuration and the
// rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	// fuse debug output is logged at debug level
	if c.Debug && c.LogLvl > util.DebugLevel {
		return fmt.Errorf("debug: requires verbose >= %d", DebugVerbose)
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
