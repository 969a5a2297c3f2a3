package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/brettbedarf/clifs/config"
	"github.com/brettbedarf/clifs/filesystem"
	cfuse "github.com/brettbedarf/clifs/fuse"
	"github.com/brettbedarf/clifs/internal/util"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// ErrAlreadyMounted is returned by Serve when another instance holds the mount lock
var ErrAlreadyMounted = errors.New("mount point is already served by another instance")

// Clifs contains the core filesystem state and operations with abstractions
// over the underlying FUSE wire protocol implementation
type Clifs struct {
	*filesystem.FileSystem
	cfg *config.Config

	mu     sync.Mutex
	server *fuse.Server
	lock   *flock.Flock
}

// New creates a Clifs instance given your config.
func New(cfg *config.Config) *Clifs {
	return &Clifs{
		FileSystem: filesystem.NewFS(cfg),
		cfg:        cfg,
	}
}

// LockPath returns the mount lock file used for mountPoint
func (fs *Clifs) LockPath(mountPoint string) string {
	if fs.cfg.LockFile != "" {
		return fs.cfg.LockFile
	}
	abs, err := filepath.Abs(mountPoint)
	if err != nil {
		abs = mountPoint
	}
	// the name-based uuid keeps distinct mount points on distinct lock files
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.Clean(abs)))
	name := filepath.Base(abs)
	if name == string(filepath.Separator) || name == "." {
		name = "root"
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("clifs-%s-%s.lock", name, id))
}

// Serve mounts and serves the filesystem at the given mountPoint.
// It returns once the mount is ready; requests are served in the background
// until Unmount.
func (fs *Clifs) Serve(mountPoint string) error {
	logger := util.GetLogger("Server")

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.server != nil {
		return fmt.Errorf("already serving %s", mountPoint)
	}

	lock := flock.New(fs.LockPath(mountPoint))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire mount lock: %w", err)
	}
	if !locked {
		return ErrAlreadyMounted
	}

	raw := cfuse.NewFuseRaw(fs.FileSystem, fs.cfg)
	opts := fs.cfg.MountOptions
	srv, err := fuse.NewServer(raw, mountPoint, &fuse.MountOptions{
		Name:           opts.Name,
		FsName:         opts.FsName,
		Debug:          opts.Debug,
		SingleThreaded: opts.SingleThreaded,
		AllowOther:     opts.AllowOther,
		Logger:         util.NewLogLogger("FuseServer", util.DebugLevel),
	})
	if err != nil {
		_ = lock.Unlock()
		return err
	}

	go srv.Serve()
	if err := srv.WaitMount(); err != nil {
		_ = srv.Unmount()
		_ = lock.Unlock()
		return err
	}
	fs.server = srv
	fs.lock = lock
	logger.Info().Str("mount", mountPoint).Str("fs_id", fs.ID().String()).Msg("Mounted")
	return nil
}

func (fs *Clifs) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- fs.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Wait blocks until the filesystem is unmounted
func (fs *Clifs) Wait() {
	fs.mu.Lock()
	srv := fs.server
	fs.mu.Unlock()
	if srv != nil {
		srv.Wait()
	}
}

// Unmount cleanly unmounts the filesystem and releases the mount lock.
func (fs *Clifs) Unmount() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.server == nil {
		return nil
	}
	err := fs.server.Unmount()
	fs.server = nil
	if fs.lock != nil {
		err = errors.Join(err, fs.lock.Unlock())
		fs.lock = nil
	}
	return err
}
