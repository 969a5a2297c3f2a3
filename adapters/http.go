package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brettbedarf/clifs"
	"github.com/brettbedarf/clifs/internal/util"
)

type HTTPMethod = string

const (
	HTTPMethodGet  HTTPMethod = "GET"
	HTTPMethodPost HTTPMethod = "POST"
)

// DefaultHTTPAttempts is the number of tries made for a source without "retries"
const DefaultHTTPAttempts = 3

// HTTPClient is the subset of *http.Client used by HTTP adapters
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSource contains http-specific source request fields
type HTTPSource struct {
	URL     string            `json:"url"`
	Method  *HTTPMethod       `json:"method,omitempty"` // Default is GET
	Headers map[string]string `json:"headers,omitempty"`
	// Attempts is the total number of tries on network errors and 5xx responses
	Attempts *uint `json:"attempts,omitempty"`
}

// HTTPStatusError reports a non-2xx response
type HTTPStatusError struct {
	Method     HTTPMethod
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// HTTPProvider builds [HTTPAdapter]s sharing one client
type HTTPProvider struct {
	client HTTPClient
}

// NewHTTPProvider returns a provider using client, or http.DefaultClient when nil
func NewHTTPProvider(client HTTPClient) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{client: client}
}

func RegisterHTTP(r *Registry) {
	r.Register(HTTPAdapterType, NewHTTPProvider(nil))
}

func (p *HTTPProvider) NewAdapter(config []byte) (clifs.FileAdapter, error) {
	var src HTTPSource
	if err := json.Unmarshal(config, &src); err != nil {
		return nil, err
	}
	src.URL = strings.TrimSpace(src.URL)
	if err := validateURL(src.URL); err != nil {
		return nil, err
	}
	return &HTTPAdapter{client: p.client, source: src}, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("http source: url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("http source: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("http source: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("http source: missing host in %q", raw)
	}
	if u.User != nil {
		return errors.New("http source: credentials in the url are not allowed; use headers")
	}
	return nil
}

// HTTPAdapter implements [clifs.FileAdapter] for HTTP sources
type HTTPAdapter struct {
	client HTTPClient
	source HTTPSource
}

func (h *HTTPAdapter) newRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, h.getMethod(), h.source.URL, nil)
	if err != nil {
		return nil, err
	}

	// Add custom headers
	for k, v := range h.source.Headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

// Open fetches the source, retrying network errors and 5xx responses with
// backoff. Other non-2xx responses fail immediately.
func (h *HTTPAdapter) Open(ctx context.Context) (io.ReadCloser, error) {
	attempts := uint(DefaultHTTPAttempts)
	if h.source.Attempts != nil {
		attempts = *h.source.Attempts
	}

	return util.RetryWithResult(ctx, func() (io.ReadCloser, error) {
		req, err := h.newRequest(ctx)
		if err != nil {
			return nil, util.Permanent(err)
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.Body, nil
		}
		resp.Body.Close()
		statusErr := &HTTPStatusError{Method: req.Method, URL: h.source.URL, StatusCode: resp.StatusCode}
		if resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, util.Permanent(statusErr)
	}, util.FetchRetryOptions(ctx, attempts)...)
}

func (h *HTTPAdapter) getMethod() HTTPMethod {
	if h.source.Method != nil {
		return *h.source.Method
	}
	return HTTPMethodGet
}
