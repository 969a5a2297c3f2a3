package fuse

import (
	"github.com/brettbedarf/clifs"
	"github.com/brettbedarf/clifs/filesystem"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/mock"
)

// MockHost implements Host for adapter tests
type MockHost struct {
	mock.Mock
}

func (m *MockHost) GetAttr(p string) (fuse.Attr, error) {
	args := m.Called(p)
	return args.Get(0).(fuse.Attr), args.Error(1)
}

func (m *MockHost) GetAttrByID(id filesystem.NodeID) (fuse.Attr, error) {
	args := m.Called(id)
	return args.Get(0).(fuse.Attr), args.Error(1)
}

func (m *MockHost) ReadDir(p string) ([]fuse.DirEntry, error) {
	args := m.Called(p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fuse.DirEntry), args.Error(1)
}

func (m *MockHost) Mkdir(p string, mode uint32, caller clifs.Caller) (fuse.Attr, error) {
	args := m.Called(p, mode, caller)
	return args.Get(0).(fuse.Attr), args.Error(1)
}

func (m *MockHost) Create(p string, mode, flags uint32, caller clifs.Caller) (fuse.Attr, uint64, error) {
	args := m.Called(p, mode, flags, caller)
	return args.Get(0).(fuse.Attr), args.Get(1).(uint64), args.Error(2)
}

func (m *MockHost) Rmdir(p string) error {
	return m.Called(p).Error(0)
}

func (m *MockHost) Unlink(p string) error {
	return m.Called(p).Error(0)
}

func (m *MockHost) Rename(from, to string) error {
	return m.Called(from, to).Error(0)
}

func (m *MockHost) Open(p string, flags uint32) (uint64, error) {
	args := m.Called(p, flags)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockHost) Read(fh uint64, dest []byte, off int64) (int, error) {
	args := m.Called(fh, dest, off)

	// Handle function return types (for fill-the-buffer tests)
	if fn, ok := args.Get(0).(func(uint64, []byte, int64) int); ok {
		return fn(fh, dest, off), args.Error(1)
	}
	return args.Int(0), args.Error(1)
}

func (m *MockHost) Release(fh uint64) {
	m.Called(fh)
}

func (m *MockHost) PathOf(id filesystem.NodeID) (string, error) {
	args := m.Called(id)
	return args.String(0), args.Error(1)
}

func (m *MockHost) Len() int {
	return m.Called().Int(0)
}

var _ Host = (*MockHost)(nil)
