package clifs

import (
	"context"
	"io"
)

// FileAdapter retrieves the initial content of a seeded file from a single
// source. Instances are 1:1 with the source definition they were built from.
type FileAdapter interface {
	// Open returns a reader over the complete content of the source
	Open(ctx context.Context) (io.ReadCloser, error)
}

// AdapterProvider is a factory for concrete [FileAdapter] implementations
// generated from a raw source definition (i.e. a JSON object with a "type" key).
type AdapterProvider interface {
	NewAdapter(config []byte) (FileAdapter, error)
}

// FileSource pairs a provider with the raw source definition it consumes.
// Sources are tried in ascending Priority order until one succeeds.
type FileSource struct {
	Provider AdapterProvider
	Config   []byte
	Priority int `json:"priority,omitempty"` // Lower number = higher priority
}
