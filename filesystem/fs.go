package filesystem

import (
	"sync"

	"github.com/brettbedarf/clifs"
	"github.com/brettbedarf/clifs/config"
	"github.com/brettbedarf/clifs/internal/util"
	"github.com/google/uuid"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// FileSystem is the concurrency boundary around one Tree and its HandleTable.
// A single mutex serializes every operation, so multi-directory updates such
// as rename need no lock ordering. All methods are safe for concurrent use.
type FileSystem struct {
	id     uuid.UUID
	logger util.Logger

	mu      sync.Mutex
	tree    *Tree
	handles *HandleTable
}

func NewFS(cfg *config.Config) *FileSystem {
	id := uuid.New()
	fs := &FileSystem{
		id:     id,
		logger: util.GetLogger("FileSystem").With().Str("fs_id", id.String()).Logger(),
		tree: NewTree(Defaults{
			DirMode:  cfg.DirMode,
			FileMode: cfg.FileMode,
			RootMode: cfg.RootMode,
			RootUID:  cfg.RootUID,
			RootGID:  cfg.RootGID,
		}),
		handles: NewHandleTable(),
	}
	return fs
}

// ID identifies this filesystem instance in logs
func (fs *FileSystem) ID() uuid.UUID { return fs.id }

// attrOf returns the node's host attributes with Ino set to its ID
func attrOf(n *Node) fuse.Attr {
	attr := n.Attr()
	attr.Ino = uint64(n.ID())
	return attr
}

// GetAttr returns the attributes of the node at p
func (fs *FileSystem) GetAttr(p string) (fuse.Attr, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.tree.Find(p)
	if err != nil {
		return fuse.Attr{}, &clifs.Error{Kind: clifs.NotFound, Op: "getattr", Path: p}
	}
	return attrOf(n), nil
}

// GetAttrByID returns the attributes of the live node id
func (fs *FileSystem) GetAttrByID(id NodeID) (fuse.Attr, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, ok := fs.tree.Get(id)
	if !ok {
		return fuse.Attr{}, &clifs.Error{Kind: clifs.NotFound, Op: "getattr"}
	}
	return attrOf(n), nil
}

// List returns ".", ".." and then the sorted child names of the directory at p
func (fs *FileSystem) List(p string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.tree.List(p)
}

// ReadDir returns the directory listing at p in List order as host entries.
// "." refers to the directory itself and ".." to its parent; the root is its
// own parent.
func (fs *FileSystem) ReadDir(p string) ([]fuse.DirEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	names, err := fs.tree.List(p)
	if err != nil {
		return nil, err
	}
	dir, _ := fs.tree.Find(p)
	parent := dir
	if pid, ok := dir.Parent(); ok {
		parent, _ = fs.tree.Get(pid)
	}

	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		var n *Node
		switch name {
		case ".":
			n = dir
		case "..":
			n = parent
		default:
			n, _ = fs.tree.FindChild(dir, name)
		}
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Ino:  uint64(n.ID()),
			Mode: n.Kind().typeBits(),
		})
	}
	return entries, nil
}

// Mkdir creates a single directory at p owned by caller
func (fs *FileSystem) Mkdir(p string, mode uint32, caller clifs.Caller) (fuse.Attr, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.tree.Mkdir(p, mode, caller)
	if err != nil {
		return fuse.Attr{}, err
	}
	fs.logger.Debug().Str("path", p).Uint64("node", uint64(n.ID())).Msg("Created directory")
	return attrOf(n), nil
}

// Create creates an empty file at p owned by caller and opens it with flags
func (fs *FileSystem) Create(p string, mode, flags uint32, caller clifs.Caller) (fuse.Attr, uint64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.tree.Touch(p, mode, caller)
	if err != nil {
		return fuse.Attr{}, 0, err
	}
	fh := fs.handles.Open(n.ID(), flags)
	fs.logger.Debug().Str("path", p).Uint64("node", uint64(n.ID())).Uint64("fh", fh).Msg("Created file")
	return attrOf(n), fh, nil
}

// MkdirP creates p and any missing ancestors like `mkdir -p`
func (fs *FileSystem) MkdirP(p string, caller clifs.Caller) (fuse.Attr, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.tree.MkdirP(p, caller)
	if err != nil {
		return fuse.Attr{}, err
	}
	fs.logger.Debug().Str("path", p).Msg("Ensured directory path")
	return attrOf(n), nil
}

// TouchP creates an empty file at p and any missing ancestors
func (fs *FileSystem) TouchP(p string, caller clifs.Caller) (fuse.Attr, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.tree.TouchP(p, caller)
	if err != nil {
		return fuse.Attr{}, err
	}
	fs.logger.Debug().Str("path", p).Msg("Touched file")
	return attrOf(n), nil
}

// Rmdir removes the empty directory at p
func (fs *FileSystem) Rmdir(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.tree.RmdirP(p); err != nil {
		return err
	}
	fs.logger.Debug().Str("path", p).Msg("Removed directory")
	return nil
}

// Unlink removes the file at p. Open handles on it report BadHandle from then on.
func (fs *FileSystem) Unlink(p string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.tree.Unlink(p); err != nil {
		return err
	}
	fs.logger.Debug().Str("path", p).Msg("Removed file")
	return nil
}

// Rename moves the node at from to to
func (fs *FileSystem) Rename(from, to string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.tree.RenameP(from, to); err != nil {
		return err
	}
	fs.logger.Debug().Str("from", from).Str("to", to).Msg("Renamed")
	return nil
}

// Open returns a new handle on the file at p
func (fs *FileSystem) Open(p string, flags uint32) (uint64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.tree.Find(p)
	if err != nil {
		return 0, &clifs.Error{Kind: clifs.NotFound, Op: "open", Path: p}
	}
	if n.IsDir() {
		return 0, clifs.NewError(clifs.IsADirectory, "open", p)
	}
	fh := fs.handles.Open(n.ID(), flags)
	fs.logger.Trace().Str("path", p).Uint64("fh", fh).Msg("Opened")
	return fh, nil
}

// Read copies the file content of handle fh starting at off into dest and
// returns the number of bytes copied; 0 at or past the end of the content.
func (fs *FileSystem) Read(fh uint64, dest []byte, off int64) (int, error) {
	if off < 0 {
		return 0, clifs.NewError(clifs.InvalidOperation, "read", "")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	h, ok := fs.handles.Get(fh)
	if !ok {
		return 0, clifs.NewError(clifs.BadHandle, "read", "")
	}
	n, ok := fs.tree.Get(h.Node)
	if !ok {
		return 0, clifs.NewError(clifs.BadHandle, "read", "")
	}
	if off >= int64(len(n.content)) {
		return 0, nil
	}
	return copy(dest, n.content[off:]), nil
}

// Release closes fh. Releasing an unknown or closed handle is a no-op.
func (fs *FileSystem) Release(fh uint64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.handles.Close(fh)
}

// OpenHandles returns the number of open file handles
func (fs *FileSystem) OpenHandles() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.handles.Len()
}

// PathOf returns the absolute path of the live node id
func (fs *FileSystem) PathOf(id NodeID) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.tree.PathOf(id)
}

// Len returns the number of live nodes including the root
func (fs *FileSystem) Len() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.tree.Len()
}
