package adapters

type BuiltInAdapterType = string

const (
	HTTPAdapterType   BuiltInAdapterType = "http"
	InlineAdapterType BuiltInAdapterType = "inline"
	FileAdapterType   BuiltInAdapterType = "file"
)

// RegisterBuiltins registers all built-in adapters on r by default
// or only the specific ones if keys are provided
func RegisterBuiltins(r *Registry, adapters ...BuiltInAdapterType) {
	if len(adapters) == 0 {
		adapters = append(adapters, HTTPAdapterType, InlineAdapterType, FileAdapterType)
	}

	for _, key := range adapters {
		switch key {
		case HTTPAdapterType:
			RegisterHTTP(r)
		case InlineAdapterType:
			r.Register(InlineAdapterType, &InlineProvider{})
		case FileAdapterType:
			r.Register(FileAdapterType, &LocalProvider{})
		}
	}
}
