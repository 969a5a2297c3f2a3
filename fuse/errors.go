package fuse

import (
	"syscall"

	"github.com/brettbedarf/clifs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

var kindErrno = map[clifs.ErrorKind]syscall.Errno{
	clifs.NotFound:              syscall.ENOENT,
	clifs.NotADirectory:         syscall.ENOTDIR,
	clifs.IsADirectory:          syscall.EISDIR,
	clifs.AlreadyExists:         syscall.EEXIST,
	clifs.InvalidOperation:      syscall.EINVAL,
	clifs.BadHandle:             syscall.EBADF,
	clifs.InternalInconsistency: syscall.EIO,
}

// ToStatus maps an engine error onto the errno reported to the kernel.
// Errors that carry no known kind are reported as EIO.
func ToStatus(err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}
	if errno, ok := kindErrno[clifs.KindOf(err)]; ok {
		return fuse.Status(errno)
	}
	return fuse.EIO
}
