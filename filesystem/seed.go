package filesystem

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/brettbedarf/clifs"
	"github.com/brettbedarf/clifs/internal/util"
)

// ErrNoValidSources is returned by AddFileNode when every source failed
var ErrNoValidSources = errors.New("no valid sources")

// AddDirNode adds all missing directories in the request's path and returns
// the leaf's ID. It is equivalent to `mkdir -p`: existing directories are kept
// as they are and an existing leaf is not an error. A newly created leaf gets
// the request's Perms when set.
func (fs *FileSystem) AddDirNode(req *clifs.DirCreateRequest) (NodeID, error) {
	logger := util.GetLogger("AddDirNode").With().Str("req", req.UUID).Logger()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, findErr := fs.tree.Find(req.Path)
	before := fs.tree.Len()
	n, err := fs.tree.MkdirP(req.Path, req.Caller())
	if err != nil {
		logger.Error().Err(err).Str("path", req.Path).Msg("Failed to create directory")
		return 0, err
	}
	if findErr != nil && req.Perms != 0 {
		if err := fs.tree.SetMode(req.Path, req.Perms); err != nil {
			return 0, err
		}
	}
	if created := fs.tree.Len() - before; created > 0 {
		logger.Info().Str("path", req.Path).Msg(fmt.Sprintf("Created %d new dir(s)", created))
	}
	return n.ID(), nil
}

// AddFileNode adds a new file node and any missing ancestor directories and
// returns the file's ID. Content is read from the request's sources in
// priority order, falling back to the next source on failure; a request with
// no sources creates an empty file. Sources are read without holding the
// filesystem lock. If a node already exists at the path it returns AlreadyExists.
func (fs *FileSystem) AddFileNode(ctx context.Context, req *clifs.FileCreateRequest) (NodeID, error) {
	logger := util.GetLogger("AddFileNode").With().Str("req", req.UUID).Logger()

	var content []byte
	if len(req.Sources) > 0 {
		data, err := loadSources(ctx, req.Sources)
		if err != nil {
			logger.Error().Err(err).Str("path", req.Path).Msg("Failed to load file content")
			return 0, fmt.Errorf("add file %s: %w", req.Path, err)
		}
		content = data
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.tree.TouchP(req.Path, req.Caller())
	if err != nil {
		logger.Error().Err(err).Str("path", req.Path).Msg("Failed to create file")
		return 0, err
	}
	if req.Perms != 0 {
		if err := fs.tree.SetMode(req.Path, req.Perms); err != nil {
			return 0, err
		}
	}
	if content != nil {
		n.setContent(content)
	}
	logger.Debug().Str("path", req.Path).Uint64("size", n.meta.Size).Msg("Added new file node")
	return n.ID(), nil
}

// loadSources returns the content of the first source, by ascending Priority,
// that can be adapted and read in full.
func loadSources(ctx context.Context, sources []clifs.FileSource) ([]byte, error) {
	logger := util.GetLogger("Sources")

	ordered := slices.Clone(sources)
	slices.SortStableFunc(ordered, func(a, b clifs.FileSource) int {
		return cmp.Compare(a.Priority, b.Priority)
	})

	var errs []error
	for i, src := range ordered {
		data, err := readSource(ctx, src)
		if err == nil {
			return data, nil
		}
		logger.Warn().Err(err).Int("source", i).Int("priority", src.Priority).Msg("Source failed")
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrNoValidSources, errors.Join(errs...))
}

func readSource(ctx context.Context, src clifs.FileSource) ([]byte, error) {
	if src.Provider == nil {
		return nil, errors.New("source has no provider")
	}
	adapter, err := src.Provider.NewAdapter(src.Config)
	if err != nil {
		return nil, err
	}
	rc, err := adapter.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
