package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/clifs/internal/util"
	"gopkg.in/yaml.v3"
)

// CLI style log verbosity levels accepted in [ConfigOverride.LogLvl]
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultFsName = "clifs"
	DefaultName   = "clifs"

	DefaultLogLvl = util.InfoLevel

	// DefaultDirMode is used for directories created implicitly by mkdir -p style operations
	DefaultDirMode = 0o555
	// DefaultFileMode is used for files created by touch -p style operations
	DefaultFileMode = 0o555
	// DefaultRootMode is the root directory's permission bits (r-xr-xr-x)
	DefaultRootMode = 0o555

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0
)

// Config contains runtime configuration values for the filesystem.
type Config struct {
	MountOptions
	LogLvl  util.LogLevel `validate:"gte=0,lte=4"`
	LogFile string        // Rotated log file written in addition to stdout; empty disables (Default "")

	DirMode  uint32 `validate:"lte=4095"` // Permission bits for implicitly created dirs (Default 0555)
	FileMode uint32 `validate:"lte=4095"` // Permission bits for implicitly created files (Default 0555)
	RootMode uint32 `validate:"lte=4095"` // Root directory permission bits (Default 0555)
	RootUID  uint32 // Root directory owner; also the default owner of seeded nodes
	RootGID  uint32

	AttrTimeout  float64 `validate:"gte=0"` // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 `validate:"gte=0"` // Directory entry cache timeout in seconds (Default 1.0)

	// LockFile is locked exclusively while mounted so two instances cannot
	// serve the same mount; empty derives it from the mount point (Default "")
	LockFile string
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	Debug          *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	FsName         *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name           *string  `yaml:"name,omitempty" json:"name,omitempty"`
	SingleThreaded *bool    `yaml:"single_threaded,omitempty" json:"single_threaded,omitempty"`
	AllowOther     *bool    `yaml:"allow_other,omitempty" json:"allow_other,omitempty"`
	LogLvl         *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"` // CLI verbosity 1 (error) - 5 (trace)
	LogFile        *string  `yaml:"log_file,omitempty" json:"log_file,omitempty"`
	DirMode        *uint32  `yaml:"dir_mode,omitempty" json:"dir_mode,omitempty"`
	FileMode       *uint32  `yaml:"file_mode,omitempty" json:"file_mode,omitempty"`
	RootMode       *uint32  `yaml:"root_mode,omitempty" json:"root_mode,omitempty"`
	RootUID        *uint32  `yaml:"root_uid,omitempty" json:"root_uid,omitempty"`
	RootGID        *uint32  `yaml:"root_gid,omitempty" json:"root_gid,omitempty"`
	AttrTimeout    *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout   *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`
	LockFile       *string  `yaml:"lock_file,omitempty" json:"lock_file,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
// The root is owned by uid/gid 0 until overridden.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:       DefaultLogLvl,
		DirMode:      DefaultDirMode,
		FileMode:     DefaultFileMode,
		RootMode:     DefaultRootMode,
		AttrTimeout:  DefaultAttrTimeout,
		EntryTimeout: DefaultEntryTimeout,
	}
}

// NewConfig creates a default Config with override applied; override may be nil.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.SingleThreaded != nil {
		c.SingleThreaded = *override.SingleThreaded
	}
	if override.AllowOther != nil {
		c.AllowOther = *override.AllowOther
	}
	if override.LogLvl != nil {
		c.LogLvl = verboseToLogLevel(*override.LogLvl)
	}
	if override.LogFile != nil {
		c.LogFile = *override.LogFile
	}
	if override.DirMode != nil {
		c.DirMode = *override.DirMode
	}
	if override.FileMode != nil {
		c.FileMode = *override.FileMode
	}
	if override.RootMode != nil {
		c.RootMode = *override.RootMode
	}
	if override.RootUID != nil {
		c.RootUID = *override.RootUID
	}
	if override.RootGID != nil {
		c.RootGID = *override.RootGID
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
	if override.LockFile != nil {
		c.LockFile = *override.LockFile
	}
}

// verboseToLogLevel maps CLI verbosity (clamped to 1-5) onto util.LogLevel
func verboseToLogLevel(verbose int) util.LogLevel {
	verbose = max(ErrorVerbose, min(verbose, TraceVerbose))
	logLvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return logLvls[verbose-1]
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
