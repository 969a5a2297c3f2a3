package filesystem

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/brettbedarf/clifs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCaller = clifs.Caller{UID: 1000, GID: 1000}

func newTestTree() *Tree {
	return NewTree(Defaults{
		DirMode:  0o555,
		FileMode: 0o555,
		RootMode: 0o555,
	})
}

// mustFind resolves p or fails the test
func mustFind(t *testing.T, tree *Tree, p string) *Node {
	t.Helper()
	n, err := tree.Find(p)
	require.NoError(t, err, "find %s", p)
	return n
}

// assertLinkCounts checks every live directory has 2 + its subdirectory count
func assertLinkCounts(t *testing.T, tree *Tree) {
	t.Helper()
	for _, n := range tree.nodes {
		if n == nil || !n.IsDir() {
			continue
		}
		subdirs := 0
		for _, id := range n.children {
			if c, ok := tree.Get(id); ok && c.IsDir() {
				subdirs++
			}
		}
		assert.Equal(t, uint32(2+subdirs), n.Metadata().Nlink, "link count of %q", n.Name())
	}
}

func TestNewTree(t *testing.T) {
	t.Parallel()

	tree := NewTree(Defaults{RootMode: 0o700, RootUID: 5, RootGID: 6})
	root := tree.Root()

	assert.Equal(t, RootID, root.ID())
	assert.True(t, root.IsDir())
	assert.Equal(t, Metadata{Mode: 0o700, UID: 5, GID: 6, Nlink: 2}, root.Metadata())
	assert.Equal(t, 1, tree.Len())

	same, err := tree.Find("/")
	require.NoError(t, err)
	assert.Same(t, root, same)
}

func TestTree_Find(t *testing.T) {
	t.Parallel()

	tree := newTestTree()
	_, err := tree.TouchP("/a/b.txt", testCaller)
	require.NoError(t, err)

	t.Run("redundant separators", func(t *testing.T) {
		assert.Equal(t, "b.txt", mustFind(t, tree, "//a///b.txt/").Name())
	})
	t.Run("missing", func(t *testing.T) {
		_, err := tree.Find("/a/nope")
		assert.ErrorIs(t, err, clifs.ErrNotFound)
	})
	t.Run("file in the middle", func(t *testing.T) {
		_, err := tree.Find("/a/b.txt/c")
		assert.ErrorIs(t, err, clifs.ErrNotFound)
	})
}

func TestTree_MkdirP(t *testing.T) {
	t.Parallel()

	t.Run("creates nested directories", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()

		c, err := tree.MkdirP("/a/b/c", testCaller)
		require.NoError(t, err)

		assert.Same(t, c, mustFind(t, tree, "/a/b/c"))
		assert.True(t, c.IsDir())
		assert.Equal(t, uint32(2), c.Metadata().Nlink)
		assert.Equal(t, uint32(3), mustFind(t, tree, "/a").Metadata().Nlink)
		assert.Equal(t, uint32(3), tree.Root().Metadata().Nlink)
		assert.Equal(t, 4, tree.Len())
	})
	t.Run("caller owns implicit directories", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		_, err := tree.MkdirP("/x/y", testCaller)
		require.NoError(t, err)

		for _, p := range []string{"/x", "/x/y"} {
			meta := mustFind(t, tree, p).Metadata()
			assert.Equal(t, uint32(1000), meta.UID)
			assert.Equal(t, uint32(1000), meta.GID)
			assert.Equal(t, uint32(0o555), meta.Mode)
		}
	})
	t.Run("existing prefix is kept", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		a, err := tree.MkdirP("/a", testCaller)
		require.NoError(t, err)

		_, err = tree.MkdirP("/a/b", clifs.Caller{UID: 1, GID: 1})
		require.NoError(t, err)

		assert.Same(t, a, mustFind(t, tree, "/a"))
		assert.Equal(t, uint32(1000), a.Metadata().UID)
	})
	t.Run("idempotent", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		first, err := tree.MkdirP("/a/b", testCaller)
		require.NoError(t, err)
		second, err := tree.MkdirP("/a/b", testCaller)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 3, tree.Len())
	})
	t.Run("file component", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		_, err := tree.TouchP("/a/f", testCaller)
		require.NoError(t, err)

		_, err = tree.MkdirP("/a/f/g", testCaller)
		assert.ErrorIs(t, err, clifs.ErrNotADirectory)
	})
	t.Run("root", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		n, err := tree.MkdirP("/", testCaller)
		require.NoError(t, err)
		assert.Same(t, tree.Root(), n)
	})
}

func TestTree_TouchP(t *testing.T) {
	t.Parallel()

	t.Run("creates parents and file", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()

		f, err := tree.TouchP("/x/y.txt", testCaller)
		require.NoError(t, err)

		assert.True(t, mustFind(t, tree, "/x").IsDir())
		assert.Same(t, f, mustFind(t, tree, "/x/y.txt"))
		assert.True(t, f.IsFile())
		assert.Equal(t, Metadata{Mode: 0o555, UID: 1000, GID: 1000, Nlink: 1}, f.Metadata())
	})
	t.Run("twice", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		_, err := tree.TouchP("/f", testCaller)
		require.NoError(t, err)

		_, err = tree.TouchP("/f", testCaller)
		assert.ErrorIs(t, err, clifs.ErrAlreadyExists)
		names, err := tree.List("/")
		require.NoError(t, err)
		assert.Equal(t, []string{".", "..", "f"}, names, "no duplicate entry")
	})
	t.Run("root", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		_, err := tree.TouchP("/", testCaller)
		assert.ErrorIs(t, err, clifs.ErrInvalidOperation)
	})
}

func TestTree_MkdirAndTouch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   []string // files touched before the call
		path    string
		wantErr error
	}{
		{"top level", nil, "/d", nil},
		{"missing parent", nil, "/no/d", clifs.ErrNotFound},
		{"parent is a file", []string{"/f"}, "/f/d", clifs.ErrNotADirectory},
		{"leaf taken", []string{"/f"}, "/f", clifs.ErrAlreadyExists},
		{"root", nil, "/", clifs.ErrAlreadyExists},
		{"dot leaf", nil, "/.", clifs.ErrInvalidOperation},
	}

	create := map[string]func(tree *Tree, p string) (*Node, error){
		"mkdir": func(tree *Tree, p string) (*Node, error) { return tree.Mkdir(p, 0o750, testCaller) },
		"touch": func(tree *Tree, p string) (*Node, error) { return tree.Touch(p, 0o640, testCaller) },
	}

	for op, fn := range create {
		for _, tt := range tests {
			t.Run(op+"/"+tt.name, func(t *testing.T) {
				t.Parallel()
				tree := newTestTree()
				for _, p := range tt.setup {
					_, err := tree.TouchP(p, testCaller)
					require.NoError(t, err)
				}

				n, err := fn(tree, tt.path)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
					return
				}
				require.NoError(t, err)
				assert.Same(t, n, mustFind(t, tree, tt.path))
				assert.Equal(t, uint32(1000), n.Metadata().UID)
				if op == "mkdir" {
					assert.True(t, n.IsDir())
					assert.Equal(t, uint32(0o750), n.Metadata().Mode)
				} else {
					assert.True(t, n.IsFile())
					assert.Equal(t, uint32(0o640), n.Metadata().Mode)
				}
			})
		}
	}
}

func TestTree_RmdirP(t *testing.T) {
	t.Parallel()

	t.Run("empty directory", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		_, err := tree.MkdirP("/a/b", testCaller)
		require.NoError(t, err)
		a := mustFind(t, tree, "/a")
		before := a.ChildCount()

		require.NoError(t, tree.RmdirP("/a/b"))

		_, err = tree.Find("/a/b")
		assert.ErrorIs(t, err, clifs.ErrNotFound)
		assert.Equal(t, before-1, a.ChildCount())
		assertLinkCounts(t, tree)
	})
	t.Run("non-empty", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		_, err := tree.MkdirP("/a/b", testCaller)
		require.NoError(t, err)

		assert.ErrorIs(t, tree.RmdirP("/a"), clifs.ErrInvalidOperation)
		mustFind(t, tree, "/a/b")
	})
	t.Run("file", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		_, err := tree.TouchP("/f", testCaller)
		require.NoError(t, err)
		assert.ErrorIs(t, tree.RmdirP("/f"), clifs.ErrInvalidOperation)
	})
	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, newTestTree().RmdirP("/nope"), clifs.ErrNotFound)
	})
	t.Run("root", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		assert.ErrorIs(t, tree.RmdirP("/"), clifs.ErrInvalidOperation)
		assert.Equal(t, 1, tree.Len())
	})
}

func TestTree_Unlink(t *testing.T) {
	t.Parallel()

	tree := newTestTree()
	f, err := tree.TouchP("/d/f", testCaller)
	require.NoError(t, err)

	assert.ErrorIs(t, tree.Unlink("/d"), clifs.ErrIsADirectory)
	assert.ErrorIs(t, tree.Unlink("/d/nope"), clifs.ErrNotFound)

	require.NoError(t, tree.Unlink("/d/f"))
	_, ok := tree.Get(f.ID())
	assert.False(t, ok)
	_, err = tree.Find("/d/f")
	assert.ErrorIs(t, err, clifs.ErrNotFound)
}

func TestTree_RenameP(t *testing.T) {
	t.Parallel()

	t.Run("directory into sibling", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		_, err := tree.MkdirP("/a", testCaller)
		require.NoError(t, err)
		b, err := tree.MkdirP("/b", testCaller)
		require.NoError(t, err)
		rootLinks := tree.Root().Metadata().Nlink
		bLinks := b.Metadata().Nlink

		require.NoError(t, tree.RenameP("/a", "/b/a"))

		_, err = tree.Find("/a")
		assert.ErrorIs(t, err, clifs.ErrNotFound)
		mustFind(t, tree, "/b/a")
		assert.Equal(t, rootLinks-1, tree.Root().Metadata().Nlink)
		assert.Equal(t, bLinks+1, b.Metadata().Nlink)
		assertLinkCounts(t, tree)
	})
	t.Run("takes destination name", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		f, err := tree.TouchP("/src/f.txt", testCaller)
		require.NoError(t, err)
		_, err = tree.MkdirP("/dst", testCaller)
		require.NoError(t, err)

		require.NoError(t, tree.RenameP("/src/f.txt", "/dst/g.txt"))

		assert.Same(t, f, mustFind(t, tree, "/dst/g.txt"))
		assert.Equal(t, "g.txt", f.Name())
	})
	t.Run("within directory", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		f, err := tree.TouchP("/d/old", testCaller)
		require.NoError(t, err)

		require.NoError(t, tree.RenameP("/d/old", "/d/new"))

		assert.Same(t, f, mustFind(t, tree, "/d/new"))
		_, err = tree.Find("/d/old")
		assert.ErrorIs(t, err, clifs.ErrNotFound)
	})
	t.Run("own name", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		f, err := tree.TouchP("/d/f", testCaller)
		require.NoError(t, err)

		require.NoError(t, tree.RenameP("/d/f", "/d/f"))
		assert.Same(t, f, mustFind(t, tree, "/d/f"))
	})
	t.Run("root", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		_, err := tree.MkdirP("/d", testCaller)
		require.NoError(t, err)
		assert.ErrorIs(t, tree.RenameP("/", "/d/root"), clifs.ErrInvalidOperation)
	})
	t.Run("destination occupied", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		f, err := tree.TouchP("/a/f", testCaller)
		require.NoError(t, err)
		_, err = tree.TouchP("/b/f", testCaller)
		require.NoError(t, err)

		assert.ErrorIs(t, tree.RenameP("/a/f", "/b/f"), clifs.ErrAlreadyExists)
		assert.Same(t, f, mustFind(t, tree, "/a/f"), "source must stay resolvable")
	})
	t.Run("destination occupied in same directory", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		f, err := tree.TouchP("/a/f", testCaller)
		require.NoError(t, err)
		_, err = tree.TouchP("/a/g", testCaller)
		require.NoError(t, err)

		assert.ErrorIs(t, tree.RenameP("/a/f", "/a/g"), clifs.ErrAlreadyExists)
		assert.Same(t, f, mustFind(t, tree, "/a/f"))
	})
	t.Run("missing source", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, newTestTree().RenameP("/nope", "/x"), clifs.ErrInvalidOperation)
	})
	t.Run("missing destination parent", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		_, err := tree.TouchP("/f", testCaller)
		require.NoError(t, err)
		assert.ErrorIs(t, tree.RenameP("/f", "/no/f"), clifs.ErrInvalidOperation)
	})
	t.Run("destination parent is a file", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		_, err := tree.TouchP("/f", testCaller)
		require.NoError(t, err)
		_, err = tree.TouchP("/g", testCaller)
		require.NoError(t, err)
		assert.ErrorIs(t, tree.RenameP("/f", "/g/f"), clifs.ErrInvalidOperation)
	})
	t.Run("into own subtree", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		_, err := tree.MkdirP("/a/b", testCaller)
		require.NoError(t, err)

		assert.ErrorIs(t, tree.RenameP("/a", "/a/b/a"), clifs.ErrInvalidOperation)
		mustFind(t, tree, "/a/b")
		assertLinkCounts(t, tree)
	})
}

func TestTree_ReattachFailure(t *testing.T) {
	t.Parallel()

	t.Run("restored", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		_, err := tree.TouchP("/a/f", testCaller)
		require.NoError(t, err)
		_, err = tree.TouchP("/g", testCaller)
		require.NoError(t, err)
		a, f, g := mustFind(t, tree, "/a"), mustFind(t, tree, "/a/f"), mustFind(t, tree, "/g")
		require.NoError(t, tree.detach(f))

		err = tree.reattach(f, g, "x", a, "f", "/g/x")
		assert.ErrorIs(t, err, clifs.ErrInternalInconsistency)
		assert.Same(t, f, mustFind(t, tree, "/a/f"))
		assert.NotContains(t, err.Error(), "restore")
	})
	t.Run("restore fails", func(t *testing.T) {
		t.Parallel()
		tree := newTestTree()
		_, err := tree.TouchP("/a/f", testCaller)
		require.NoError(t, err)
		for _, p := range []string{"/g", "/h"} {
			_, err = tree.TouchP(p, testCaller)
			require.NoError(t, err)
		}
		f, g, h := mustFind(t, tree, "/a/f"), mustFind(t, tree, "/g"), mustFind(t, tree, "/h")
		require.NoError(t, tree.detach(f))

		// both targets are files so neither adoption can succeed
		err = tree.reattach(f, g, "x", h, "f", "/g/x")
		assert.Equal(t, clifs.InternalInconsistency, clifs.KindOf(err))
		assert.ErrorIs(t, err, clifs.ErrNotADirectory)
		assert.ErrorContains(t, err, "restore f")
	})
}

func TestTree_List(t *testing.T) {
	t.Parallel()

	tree := newTestTree()
	for _, p := range []string{"/d/zeta", "/d/alpha", "/d/mid"} {
		_, err := tree.TouchP(p, testCaller)
		require.NoError(t, err)
	}

	names, err := tree.List("/d")
	require.NoError(t, err)
	assert.Equal(t, []string{".", "..", "alpha", "mid", "zeta"}, names)

	_, err = tree.List("/d/alpha")
	assert.ErrorIs(t, err, clifs.ErrNotFound)
	_, err = tree.List("/nope")
	assert.ErrorIs(t, err, clifs.ErrNotFound)

	empty, err := newTestTree().List("/")
	require.NoError(t, err)
	assert.Equal(t, []string{".", ".."}, empty)
}

func TestTree_SetContent(t *testing.T) {
	t.Parallel()

	tree := newTestTree()
	_, err := tree.TouchP("/d/f", testCaller)
	require.NoError(t, err)

	require.NoError(t, tree.SetContent("/d/f", []byte("abc")))
	assert.Equal(t, uint64(3), mustFind(t, tree, "/d/f").Metadata().Size)
	assert.ErrorIs(t, tree.SetContent("/d", nil), clifs.ErrIsADirectory)
	assert.ErrorIs(t, tree.SetContent("/x", nil), clifs.ErrNotFound)
}

func TestTree_SetMode(t *testing.T) {
	t.Parallel()

	tree := newTestTree()
	_, err := tree.TouchP("/d/f", testCaller)
	require.NoError(t, err)

	require.NoError(t, tree.SetMode("/d/f", 0o640))
	require.NoError(t, tree.SetMode("/d", 0o700))
	assert.Equal(t, uint32(0o640), mustFind(t, tree, "/d/f").Metadata().Mode)
	assert.Equal(t, uint32(syscall.S_IFDIR|0o700), mustFind(t, tree, "/d").Attr().Mode)
	assert.ErrorIs(t, tree.SetMode("/x", 0o700), clifs.ErrNotFound)
}

func TestTree_PathOf(t *testing.T) {
	t.Parallel()

	tree := newTestTree()
	f, err := tree.TouchP("/a/b/c.txt", testCaller)
	require.NoError(t, err)

	p, err := tree.PathOf(f.ID())
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c.txt", p)

	p, err = tree.PathOf(RootID)
	require.NoError(t, err)
	assert.Equal(t, "/", p)

	require.NoError(t, tree.Unlink("/a/b/c.txt"))
	_, err = tree.PathOf(f.ID())
	assert.ErrorIs(t, err, clifs.ErrNotFound)
}

func TestTree_IDsNotReused(t *testing.T) {
	t.Parallel()

	tree := newTestTree()
	f, err := tree.TouchP("/f", testCaller)
	require.NoError(t, err)
	require.NoError(t, tree.Unlink("/f"))

	g, err := tree.TouchP("/f", testCaller)
	require.NoError(t, err)
	assert.Greater(t, g.ID(), f.ID())
	_, ok := tree.Get(f.ID())
	assert.False(t, ok)
}

// Create-then-find holds for any fresh name, and link counts stay consistent
// across a mixed sequence of creates and renames.
func TestTree_CreateFindProperty(t *testing.T) {
	t.Parallel()

	tree := newTestTree()
	dirs := []string{"/"}
	for i := range 20 {
		parent := dirs[i%len(dirs)]
		dir := JoinPath(parent, fmt.Sprintf("d%d", i))
		file := JoinPath(parent, fmt.Sprintf("f%d", i))

		d, err := tree.Mkdir(dir, 0o755, testCaller)
		require.NoError(t, err)
		assert.Same(t, d, mustFind(t, tree, dir))
		assert.True(t, d.IsDir())

		f, err := tree.Touch(file, 0o644, testCaller)
		require.NoError(t, err)
		assert.Same(t, f, mustFind(t, tree, file))
		assert.True(t, f.IsFile())

		dirs = append(dirs, dir)
	}
	assertLinkCounts(t, tree)

	// move the deeper half of the directories up to the root; paths that no
	// longer resolve after an earlier move are rejected without side effects
	for i, dir := range dirs[len(dirs)/2:] {
		err := tree.RenameP(dir, fmt.Sprintf("/m%d", i))
		if err != nil {
			assert.ErrorIs(t, err, clifs.ErrInvalidOperation)
		}
	}
	assertLinkCounts(t, tree)
}
