package adapters

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/brettbedarf/clifs"
	"github.com/puzpuzpuz/xsync/v4"
)

// ErrMissingType is returned for source definitions without a "type" key
var ErrMissingType = errors.New(`source definition has no "type"`)

// Registry ties source "type" keys to the providers that build adapters for them.
// It is safe for concurrent use.
type Registry struct {
	providers *xsync.Map[string, clifs.AdapterProvider]
}

func NewRegistry() *Registry {
	return &Registry{providers: xsync.NewMap[string, clifs.AdapterProvider]()}
}

// Register ties provider to adapterType. The first registration of a type wins;
// later ones are ignored.
func (r *Registry) Register(adapterType string, provider clifs.AdapterProvider) {
	r.providers.LoadOrStore(adapterType, provider)
}

// GetProvider returns the provider registered for adapterType
func (r *Registry) GetProvider(adapterType string) (clifs.AdapterProvider, error) {
	provider, ok := r.providers.Load(adapterType)
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q", adapterType)
	}
	return provider, nil
}

// Resolve returns the provider for the raw source definition's "type" key
func (r *Registry) Resolve(raw []byte) (clifs.AdapterProvider, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	if meta.Type == "" {
		return nil, ErrMissingType
	}
	return r.GetProvider(meta.Type)
}

// NewAdapter picks the provider based on the raw definition's "type" key and
// builds an adapter from the full definition. All expected source adapter types
// should be registered with [Registry.Register] first.
func (r *Registry) NewAdapter(raw []byte) (clifs.FileAdapter, error) {
	provider, err := r.Resolve(raw)
	if err != nil {
		return nil, err
	}
	return provider.NewAdapter(raw)
}

var _ clifs.AdapterProvider = (*Registry)(nil)
