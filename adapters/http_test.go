package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func TestHTTPProvider_NewAdapter(t *testing.T) {
	provider := NewHTTPProvider(&MockHTTPClient{})

	t.Run("URL validation", func(t *testing.T) {
		tests := []struct {
			url     string
			wantErr bool
			desc    string
		}{
			// Valid cases
			{"http://test.com", false, "basic HTTP URL"},
			{"https://test.com", false, "basic HTTPS URL"},
			{"  http://test.com   ", false, "URL with whitespace"},
			{"http://test.com/path?arg=1&arg2=2", false, "URL with path and query"},
			{"http://test.com:8080", false, "URL with port"},
			{"http://localhost:8080/test", false, "localhost with port"},
			{"http://123.123.123.123/test", false, "IP address"},
			{"http://mylocalnet/test", false, "single label hostname"},

			// Invalid cases
			{"", true, "empty string"},
			{" ", true, "whitespace only"},
			{"_", true, "invalid character"},
			{"ftp://test.com", true, "different scheme rejected"},
			{"test.com", true, "missing scheme"},
			{"http://user@test.com/path", true, "URL with user info"},
		}

		for _, tt := range tests {
			t.Run(tt.desc, func(t *testing.T) {
				config := createCfg(tt.url)
				adapter, err := provider.NewAdapter(config)

				if tt.wantErr {
					assert.Error(t, err)
				} else {
					require.NoError(t, err)
					require.NotNil(t, adapter)
					assert.IsType(t, &HTTPAdapter{}, adapter)
				}
			})
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := provider.NewAdapter([]byte(`{`))
		assert.Error(t, err)
	})
}

func TestHTTPAdapter_Open(t *testing.T) {
	t.Parallel()

	t.Run("successful request", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			_, _ = io.WriteString(w, "hello")
		}))
		defer srv.Close()

		assert.Equal(t, "hello", openAll(t, srv.URL, nil, nil))
	})

	t.Run("with custom headers and method", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, "ok")
		}))
		defer srv.Close()

		method := HTTPMethodPost
		assert.Equal(t, "ok", openAll(t, srv.URL, &method, map[string]string{"Authorization": "Bearer abc"}))
	})

	t.Run("retries server errors", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = io.WriteString(w, "eventually")
		}))
		defer srv.Close()

		assert.Equal(t, "eventually", openAll(t, srv.URL, nil, nil))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		adapter, err := NewHTTPProvider(nil).NewAdapter(createCfg(srv.URL))
		require.NoError(t, err)
		_, err = adapter.Open(context.Background())

		var statusErr *HTTPStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("network error", func(t *testing.T) {
		t.Parallel()
		client := &MockHTTPClient{}
		client.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))
		one := uint(1)
		data, _ := json.Marshal(HTTPSource{URL: "http://test.com", Attempts: &one})

		adapter, err := NewHTTPProvider(client).NewAdapter(data)
		require.NoError(t, err)
		_, err = adapter.Open(context.Background())

		assert.ErrorContains(t, err, "connection refused")
		client.AssertNumberOfCalls(t, "Do", 1)
	})
}

func TestRegisterHTTP(t *testing.T) {
	t.Run("registers http provider", func(t *testing.T) {
		registry := NewRegistry()
		RegisterHTTP(registry)

		provider, err := registry.GetProvider("http")
		require.NoError(t, err)
		require.NotNil(t, provider)
		assert.IsType(t, &HTTPProvider{}, provider)
	})
}

// Test helpers

func openAll(t *testing.T, url string, method *HTTPMethod, headers map[string]string) string {
	t.Helper()
	adapter, err := NewHTTPProvider(nil).NewAdapter(createCfgWithOpts(url, method, headers))
	require.NoError(t, err)
	rc, err := adapter.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func createCfg(url string) []byte {
	config := HTTPSource{URL: url}
	data, _ := json.Marshal(config)
	return data
}

func createCfgWithOpts(url string, method *HTTPMethod, headers map[string]string) []byte {
	config := HTTPSource{
		URL:     url,
		Method:  method,
		Headers: headers,
	}
	data, _ := json.Marshal(config)
	return data
}
