package filesystem

import (
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// Kind is the fixed type of a node, set at creation
type Kind uint8

const (
	FileKind Kind = iota
	DirKind
)

func (k Kind) String() string {
	if k == DirKind {
		return "dir"
	}
	return "file"
}

// typeBits returns the S_IF* file-type bits for the kind
func (k Kind) typeBits() uint32 {
	if k == DirKind {
		return syscall.S_IFDIR
	}
	return syscall.S_IFREG
}

// Metadata holds the POSIX-like attributes stored per node.
// Mode holds permission bits only; the file-type bit is derived from Kind.
type Metadata struct {
	Mode  uint32
	UID   uint32
	GID   uint32
	Nlink uint32
	Size  uint64
}

// toAttr builds the host-facing attribute record. Only the file-type bit,
// mode, owner, link count and size are populated; everything else is zero.
func (m Metadata) toAttr(kind Kind) fuse.Attr {
	return fuse.Attr{
		Mode:  kind.typeBits() | m.Mode,
		Nlink: m.Nlink,
		Size:  m.Size,
		Owner: fuse.Owner{
			Uid: m.UID,
			Gid: m.GID,
		},
	}
}
