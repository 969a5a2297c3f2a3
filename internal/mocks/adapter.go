package mocks

import (
	"context"
	"io"

	"github.com/brettbedarf/clifs"
	"github.com/stretchr/testify/mock"
)

// MockFileAdapter implements clifs.FileAdapter for testing across packages
type MockFileAdapter struct {
	mock.Mock
}

func (m *MockFileAdapter) Open(ctx context.Context) (io.ReadCloser, error) {
	args := m.Called(ctx)

	// Handle function return types (for complex tests)
	if fn, ok := args.Get(0).(func(context.Context) io.ReadCloser); ok {
		return fn(ctx), args.Error(1)
	}

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

var _ clifs.FileAdapter = (*MockFileAdapter)(nil)

// MockAdapterProvider implements clifs.AdapterProvider for testing across packages
type MockAdapterProvider struct {
	mock.Mock
}

func (m *MockAdapterProvider) NewAdapter(raw []byte) (clifs.FileAdapter, error) {
	args := m.Called(raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(clifs.FileAdapter), args.Error(1)
}

var _ clifs.AdapterProvider = (*MockAdapterProvider)(nil)
