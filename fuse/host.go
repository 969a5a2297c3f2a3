// Package fuse adapts a path-addressed filesystem to the NodeId based FUSE
// wire protocol served by go-fuse.
package fuse

import (
	"github.com/brettbedarf/clifs"
	"github.com/brettbedarf/clifs/filesystem"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Host is the filesystem the adapter forwards requests to. Paths are
// absolute; attributes carry Ino equal to the node's ID, which the adapter
// hands to the kernel as the FUSE NodeId.
type Host interface {
	GetAttr(p string) (fuse.Attr, error)
	GetAttrByID(id filesystem.NodeID) (fuse.Attr, error)
	ReadDir(p string) ([]fuse.DirEntry, error)
	Mkdir(p string, mode uint32, caller clifs.Caller) (fuse.Attr, error)
	Create(p string, mode, flags uint32, caller clifs.Caller) (fuse.Attr, uint64, error)
	Rmdir(p string) error
	Unlink(p string) error
	Rename(from, to string) error
	Open(p string, flags uint32) (uint64, error)
	Read(fh uint64, dest []byte, off int64) (int, error)
	Release(fh uint64)
	PathOf(id filesystem.NodeID) (string, error)
	Len() int
}

var _ Host = (*filesystem.FileSystem)(nil)
