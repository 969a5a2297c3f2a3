package adapters

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/brettbedarf/clifs"
)

// InlineSource embeds the file content in the source definition itself,
// either as text or as standard base64 encoded bytes
type InlineSource struct {
	Text   *string `json:"text,omitempty"`
	Base64 *string `json:"base64,omitempty"`
}

type InlineProvider struct{}

func (p *InlineProvider) NewAdapter(config []byte) (clifs.FileAdapter, error) {
	var src InlineSource
	if err := json.Unmarshal(config, &src); err != nil {
		return nil, err
	}
	switch {
	case src.Text != nil && src.Base64 != nil:
		return nil, errors.New("inline source: text and base64 are mutually exclusive")
	case src.Text != nil:
		return &InlineAdapter{data: []byte(*src.Text)}, nil
	case src.Base64 != nil:
		data, err := base64.StdEncoding.DecodeString(*src.Base64)
		if err != nil {
			return nil, fmt.Errorf("inline source: %w", err)
		}
		return &InlineAdapter{data: data}, nil
	default:
		return nil, errors.New("inline source: one of text or base64 is required")
	}
}

// InlineAdapter implements [clifs.FileAdapter] over in-memory bytes
type InlineAdapter struct {
	data []byte
}

func (a *InlineAdapter) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(a.data)), nil
}
