package fuse

import (
	"sync/atomic"
	"time"

	"github.com/brettbedarf/clifs"
	"github.com/brettbedarf/clifs/config"
	"github.com/brettbedarf/clifs/filesystem"
	"github.com/brettbedarf/clifs/internal/util"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
)

const (
	statBlockSize = 4096
	statNameLen   = 255

	// renameNoReplace is the only rename(2) flag honoured; renames never
	// replace an existing entry anyway
	renameNoReplace = 0x1
)

// FuseRaw implements the low-level FUSE wire protocol
// It serves as protocol adapter between the FUSE and core filesystem
// See https://www.man7.org/linux//man-pages/man4/fuse.4.html
type FuseRaw struct {
	fuse.RawFileSystem
	host Host

	attrTimeout  time.Duration
	entryTimeout time.Duration

	// dirs holds the listing snapshot taken at OpenDir for each directory handle
	dirs      *xsync.Map[uint64, []fuse.DirEntry]
	lastDirFh atomic.Uint64
}

func NewFuseRaw(host Host, cfg *config.Config) *FuseRaw {
	return &FuseRaw{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		host:          host,
		attrTimeout:   seconds(cfg.AttrTimeout),
		entryTimeout:  seconds(cfg.EntryTimeout),
		dirs:          xsync.NewMap[uint64, []fuse.DirEntry](),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func callerOf(header *fuse.InHeader) clifs.Caller {
	return clifs.Caller{UID: header.Caller.Uid, GID: header.Caller.Gid}
}

// childPath resolves the path of name inside the directory node parent
func (r *FuseRaw) childPath(parent uint64, name string) (string, fuse.Status) {
	dir, err := r.host.PathOf(filesystem.NodeID(parent))
	if err != nil {
		return "", ToStatus(err)
	}
	return filesystem.JoinPath(dir, name), fuse.OK
}

func (r *FuseRaw) fillEntry(attr fuse.Attr, out *fuse.EntryOut) {
	out.NodeId = attr.Ino
	out.Attr = attr
	out.SetEntryTimeout(r.entryTimeout)
	out.SetAttrTimeout(r.attrTimeout)
}

func (r *FuseRaw) Init(*fuse.Server) {
	logger := util.GetLogger("Fuse.Init")
	logger.Debug().Msg("FUSE initialized")
}

func (r *FuseRaw) OnUnmount() {
	logger := util.GetLogger("Fuse.OnUnmount")
	logger.Info().Msg("FUSE unmounted")
}

func (r *FuseRaw) String() string {
	return "FuseRaw"
}

// Lookup is called by the kernel when the VFS wants to know
// about a file inside a directory.
func (r *FuseRaw) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	logger := util.GetLogger("Fuse.Lookup")
	logger.Trace().Uint64("parent", header.NodeId).Str("name", name).Msg("Lookup called")

	p, st := r.childPath(header.NodeId, name)
	if !st.Ok() {
		return st
	}
	attr, err := r.host.GetAttr(p)
	if err != nil {
		return ToStatus(err)
	}
	r.fillEntry(attr, out)
	return fuse.OK
}

// Forget is called when the kernel discards entries from its
// dentry cache. Node IDs stay valid for the life of the node, so there is
// no lookup count to release.
func (r *FuseRaw) Forget(nodeid, nlookup uint64) {
	logger := util.GetLogger("Fuse.Forget")
	logger.Trace().Uint64("node", nodeid).Uint64("nlookup", nlookup).Msg("Forget called")
}

func (r *FuseRaw) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	attr, err := r.host.GetAttrByID(filesystem.NodeID(input.NodeId))
	if err != nil {
		return ToStatus(err)
	}
	out.Attr = attr
	out.SetTimeout(r.attrTimeout)
	return fuse.OK
}

func (r *FuseRaw) Mkdir(cancel <-chan struct{}, input *fuse.MkdirIn, name string, out *fuse.EntryOut) fuse.Status {
	logger := util.GetLogger("Fuse.Mkdir")

	p, st := r.childPath(input.NodeId, name)
	if !st.Ok() {
		return st
	}
	mode := input.Mode &^ input.Umask & 0o7777
	attr, err := r.host.Mkdir(p, mode, callerOf(&input.InHeader))
	if err != nil {
		logger.Debug().Err(err).Str("path", p).Msg("Mkdir failed")
		return ToStatus(err)
	}
	r.fillEntry(attr, out)
	return fuse.OK
}

func (r *FuseRaw) Create(cancel <-chan struct{}, input *fuse.CreateIn, name string, out *fuse.CreateOut) fuse.Status {
	logger := util.GetLogger("Fuse.Create")

	p, st := r.childPath(input.NodeId, name)
	if !st.Ok() {
		return st
	}
	mode := input.Mode &^ input.Umask & 0o7777
	attr, fh, err := r.host.Create(p, mode, input.Flags, callerOf(&input.InHeader))
	if err != nil {
		logger.Debug().Err(err).Str("path", p).Msg("Create failed")
		return ToStatus(err)
	}
	r.fillEntry(attr, &out.EntryOut)
	out.Fh = fh
	return fuse.OK
}

func (r *FuseRaw) Rmdir(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	p, st := r.childPath(header.NodeId, name)
	if !st.Ok() {
		return st
	}
	return ToStatus(r.host.Rmdir(p))
}

func (r *FuseRaw) Unlink(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	p, st := r.childPath(header.NodeId, name)
	if !st.Ok() {
		return st
	}
	return ToStatus(r.host.Unlink(p))
}

func (r *FuseRaw) Rename(cancel <-chan struct{}, input *fuse.RenameIn, oldName string, newName string) fuse.Status {
	logger := util.GetLogger("Fuse.Rename")

	if input.Flags&^renameNoReplace != 0 {
		logger.Debug().Uint32("flags", input.Flags).Msg("Rename flags not supported")
		return fuse.EINVAL
	}
	from, st := r.childPath(input.NodeId, oldName)
	if !st.Ok() {
		return st
	}
	to, st := r.childPath(input.Newdir, newName)
	if !st.Ok() {
		return st
	}
	if err := r.host.Rename(from, to); err != nil {
		logger.Debug().Err(err).Str("from", from).Str("to", to).Msg("Rename failed")
		return ToStatus(err)
	}
	return fuse.OK
}

func (r *FuseRaw) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	p, err := r.host.PathOf(filesystem.NodeID(input.NodeId))
	if err != nil {
		return ToStatus(err)
	}
	fh, err := r.host.Open(p, input.Flags)
	if err != nil {
		return ToStatus(err)
	}
	out.Fh = fh
	return fuse.OK
}

func (r *FuseRaw) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	dest := buf
	if int(input.Size) < len(dest) {
		dest = dest[:input.Size]
	}
	n, err := r.host.Read(input.Fh, dest, int64(input.Offset))
	if err != nil {
		return nil, ToStatus(err)
	}
	return fuse.ReadResultData(dest[:n]), fuse.OK
}

func (r *FuseRaw) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {
	r.host.Release(input.Fh)
}

// OpenDir snapshots the directory listing so that offsets stay stable across
// the ReadDir calls of one directory stream.
func (r *FuseRaw) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	p, err := r.host.PathOf(filesystem.NodeID(input.NodeId))
	if err != nil {
		return ToStatus(err)
	}
	entries, err := r.host.ReadDir(p)
	if err != nil {
		return ToStatus(err)
	}
	fh := r.lastDirFh.Add(1)
	r.dirs.Store(fh, entries)
	out.Fh = fh
	return fuse.OK
}

func (r *FuseRaw) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	entries, ok := r.dirs.Load(input.Fh)
	if !ok {
		return fuse.EBADF
	}
	for i := input.Offset; i < uint64(len(entries)); i++ {
		e := entries[i]
		e.Off = i + 1
		if !out.AddDirEntry(e) {
			// buffer full; the kernel calls again from the last offset
			break
		}
	}
	return fuse.OK
}

// ReadDirPlus serves the same snapshot as ReadDir with an entry lookup for
// each child. "." and ".." keep a zero NodeId, which the kernel skips.
func (r *FuseRaw) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	entries, ok := r.dirs.Load(input.Fh)
	if !ok {
		return fuse.EBADF
	}
	dir, err := r.host.PathOf(filesystem.NodeID(input.NodeId))
	if err != nil {
		return ToStatus(err)
	}
	for i := input.Offset; i < uint64(len(entries)); i++ {
		e := entries[i]
		e.Off = i + 1
		entryOut := out.AddDirLookupEntry(e)
		if entryOut == nil {
			break
		}
		if e.Name == "." || e.Name == ".." {
			continue
		}
		attr, err := r.host.GetAttr(filesystem.JoinPath(dir, e.Name))
		if err != nil {
			// removed since OpenDir; listed without a lookup
			continue
		}
		r.fillEntry(attr, entryOut)
	}
	return fuse.OK
}

func (r *FuseRaw) ReleaseDir(input *fuse.ReleaseIn) {
	r.dirs.Delete(input.Fh)
}

func (r *FuseRaw) StatFs(cancel <-chan struct{}, input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	out.Bsize = statBlockSize
	out.Frsize = statBlockSize
	out.NameLen = statNameLen
	out.Files = uint64(r.host.Len())
	return fuse.OK
}

var _ fuse.RawFileSystem = (*FuseRaw)(nil)
