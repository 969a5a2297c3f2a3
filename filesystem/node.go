package filesystem

import (
	"slices"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// NodeID addresses a node in its Tree's arena. IDs are stable for the life
// of the node and never handed out twice.
type NodeID uint64

const (
	// noParent marks the absent parent reference of the root and of
	// detached nodes
	noParent NodeID = 0
	// RootID is the root node's ID; equal to the FUSE root NodeId
	RootID NodeID = fuse.FUSE_ROOT_ID
)

// Node is a single file or directory entry. Nodes are owned by the Tree arena;
// a directory's children map holds the IDs of the nodes it contains.
type Node struct {
	id       NodeID
	kind     Kind
	name     string // basename; equals the key under which the parent holds it
	parent   NodeID // noParent for root and detached nodes
	meta     Metadata
	children map[string]NodeID // directories only
	content  []byte            // files only; nil when absent
}

// newDirectory constructs a detached directory with link count 2 (itself and ".")
func newDirectory(name string, mode, uid, gid uint32) *Node {
	return &Node{
		kind:     DirKind,
		name:     name,
		meta:     Metadata{Mode: mode, UID: uid, GID: gid, Nlink: 2},
		children: make(map[string]NodeID),
	}
}

// newFile constructs a detached file with link count 1 and the given size
func newFile(name string, mode, uid, gid uint32, size uint64) *Node {
	return &Node{
		kind: FileKind,
		name: name,
		meta: Metadata{Mode: mode, UID: uid, GID: gid, Nlink: 1, Size: size},
	}
}

func (n *Node) ID() NodeID { return n.id }

func (n *Node) Name() string { return n.name }

func (n *Node) Kind() Kind { return n.kind }

func (n *Node) IsDir() bool { return n.kind == DirKind }

func (n *Node) IsFile() bool { return n.kind == FileKind }

// Parent returns the parent's ID; false for the root and detached nodes.
func (n *Node) Parent() (NodeID, bool) {
	return n.parent, n.parent != noParent
}

// Metadata returns a copy of the node's metadata
func (n *Node) Metadata() Metadata { return n.meta }

// Attr returns the host-facing attribute record. Ino is left unset; the
// FileSystem fills it in from the node's ID.
func (n *Node) Attr() fuse.Attr {
	return n.meta.toAttr(n.kind)
}

// Content returns a copy of the file's content, nil when absent
func (n *Node) Content() []byte {
	if n.content == nil {
		return nil
	}
	return slices.Clone(n.content)
}

// ChildCount returns the number of direct children
func (n *Node) ChildCount() int { return len(n.children) }

// ChildrenNames returns a snapshot of all direct children's names
// in unspecified order
func (n *Node) ChildrenNames() []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	return names
}

// findChild performs an exact-name lookup amongst direct children
func (n *Node) findChild(name string) (NodeID, bool) {
	id, ok := n.children[name]
	return id, ok
}

// setContent replaces a file's content with a copy of data and updates its size
func (n *Node) setContent(data []byte) {
	n.content = make([]byte, len(data))
	copy(n.content, data)
	n.meta.Size = uint64(len(data))
}

// nlinkAdd adjusts the link count by delta
func (n *Node) nlinkAdd(delta int) {
	n.meta.Nlink = uint32(int(n.meta.Nlink) + delta)
}
