package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/brettbedarf/clifs"
)

// LocalSource reads file content from the local disk at seed time
type LocalSource struct {
	Path string `json:"path"`
}

type LocalProvider struct{}

func (p *LocalProvider) NewAdapter(config []byte) (clifs.FileAdapter, error) {
	var src LocalSource
	if err := json.Unmarshal(config, &src); err != nil {
		return nil, err
	}
	if src.Path == "" {
		return nil, errors.New("file source: path is required")
	}
	return &LocalAdapter{path: src.Path}, nil
}

// LocalAdapter implements [clifs.FileAdapter] for local files
type LocalAdapter struct {
	path string
}

func (a *LocalAdapter) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(a.path)
}
