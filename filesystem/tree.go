package filesystem

import (
	"errors"
	"fmt"
	"slices"

	"github.com/brettbedarf/clifs"
)

// Defaults are the fixed metadata values the Tree uses for its root and for
// nodes created implicitly by MkdirP/TouchP.
type Defaults struct {
	DirMode  uint32 // permission bits for implicitly created directories
	FileMode uint32 // permission bits for TouchP files
	RootMode uint32
	RootUID  uint32
	RootGID  uint32
}

// Tree owns every node through its arena and exposes the path-addressed
// operations. Tree is not safe for concurrent use; see [FileSystem].
type Tree struct {
	nodes    []*Node // arena; index == NodeID, slot 0 unused, removed slots nil
	defaults Defaults
}

// NewTree creates a tree holding only the root directory.
func NewTree(defaults Defaults) *Tree {
	t := &Tree{
		nodes:    make([]*Node, RootID, 64),
		defaults: defaults,
	}
	root := newDirectory(Separator, defaults.RootMode, defaults.RootUID, defaults.RootGID)
	t.insert(root)
	return t
}

// Root returns the root directory
func (t *Tree) Root() *Node {
	return t.nodes[RootID]
}

// Get returns the live node with the given ID
func (t *Tree) Get(id NodeID) (*Node, bool) {
	if id == noParent || int(id) >= len(t.nodes) {
		return nil, false
	}
	n := t.nodes[id]
	return n, n != nil
}

// Len returns the number of live nodes including the root
func (t *Tree) Len() int {
	cnt := 0
	for _, n := range t.nodes {
		if n != nil {
			cnt++
		}
	}
	return cnt
}

func (t *Tree) insert(n *Node) NodeID {
	n.id = NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)
	return n.id
}

// discard drops n and its whole subtree from the arena.
// n must already be detached.
func (t *Tree) discard(n *Node) {
	for _, id := range n.children {
		if child, ok := t.Get(id); ok {
			t.discard(child)
		}
	}
	n.children = nil
	t.nodes[n.id] = nil
}

// adopt inserts the detached child under parent's children by the child's name.
// A child not yet in the arena is added to it on success.
func (t *Tree) adopt(parent, child *Node) error {
	if parent.IsFile() {
		return clifs.NewError(clifs.NotADirectory, "adopt", child.name)
	}
	if _, ok := child.Parent(); ok || child.id == RootID {
		return clifs.NewError(clifs.InvalidOperation, "adopt", child.name)
	}
	if _, taken := parent.findChild(child.name); taken {
		return clifs.NewError(clifs.AlreadyExists, "adopt", child.name)
	}
	if child.id == noParent {
		t.insert(child)
	}
	child.parent = parent.id
	parent.children[child.name] = child.id
	if child.IsDir() {
		parent.nlinkAdd(1)
	}
	return nil
}

// detach removes n from its parent's children and clears its parent reference.
// A directory leaving its parent takes one of the parent's links with it.
func (t *Tree) detach(n *Node) error {
	pid, ok := n.Parent()
	if !ok {
		return clifs.NewError(clifs.InvalidOperation, "detach", n.name)
	}
	parent := t.nodes[pid]
	delete(parent.children, n.name)
	n.parent = noParent
	if n.IsDir() {
		parent.nlinkAdd(-1)
	}
	return nil
}

// renameInPlace renames n within its current parent
func (t *Tree) renameInPlace(n *Node, newName string) error {
	pid, ok := n.Parent()
	if !ok {
		return clifs.NewError(clifs.InvalidOperation, "rename", n.name)
	}
	if newName == n.name {
		return nil
	}
	if !validName(newName) {
		return clifs.NewError(clifs.InvalidOperation, "rename", newName)
	}
	parent := t.nodes[pid]
	if _, taken := parent.findChild(newName); taken {
		return clifs.NewError(clifs.AlreadyExists, "rename", newName)
	}

	delete(parent.children, n.name)
	n.name = newName
	// unreachable while the sibling check above holds
	if _, taken := parent.findChild(newName); taken {
		return clifs.NewError(clifs.InternalInconsistency, "rename", newName)
	}
	parent.children[newName] = n.id
	return nil
}

// removeEmptyDir detaches and discards n if it is an empty, non-root directory
func (t *Tree) removeEmptyDir(n *Node) error {
	if n.IsFile() || n.ChildCount() > 0 {
		return clifs.NewError(clifs.InvalidOperation, "rmdir", n.name)
	}
	if err := t.detach(n); err != nil {
		return err
	}
	t.discard(n)
	return nil
}

// FindChild looks up name amongst parent's direct children
func (t *Tree) FindChild(parent *Node, name string) (*Node, bool) {
	id, ok := parent.findChild(name)
	if !ok {
		return nil, false
	}
	return t.Get(id)
}

// Find resolves an absolute path by walking its components from the root.
// Empty components are ignored so "/a//b/" resolves like "/a/b".
func (t *Tree) Find(p string) (*Node, error) {
	node := t.Root()
	for _, comp := range PathComponents(p) {
		child, ok := t.FindChild(node, comp)
		if !ok {
			return nil, clifs.NewError(clifs.NotFound, "find", p)
		}
		node = child
	}
	return node, nil
}

// findDir resolves p and requires a directory
func (t *Tree) findDir(op, p string) (*Node, error) {
	n, err := t.Find(p)
	if err != nil {
		return nil, &clifs.Error{Kind: clifs.NotFound, Op: op, Path: p}
	}
	if n.IsFile() {
		return nil, clifs.NewError(clifs.NotADirectory, op, p)
	}
	return n, nil
}

// MkdirP walks p from the root creating any missing directories with the
// default directory mode and the caller's ownership, like `mkdir -p`.
// Returns the deepest directory.
func (t *Tree) MkdirP(p string, caller clifs.Caller) (*Node, error) {
	node := t.Root()
	for _, comp := range PathComponents(p) {
		if child, ok := t.FindChild(node, comp); ok {
			if child.IsFile() {
				return nil, clifs.NewError(clifs.NotADirectory, "mkdir_p", p)
			}
			node = child
			continue
		}
		if !validName(comp) {
			return nil, clifs.NewError(clifs.InvalidOperation, "mkdir_p", p)
		}
		child := newDirectory(comp, t.defaults.DirMode, caller.UID, caller.GID)
		if err := t.adopt(node, child); err != nil {
			return nil, err
		}
		node = child
	}
	return node, nil
}

// TouchP creates a file at p with the default file mode, creating any missing
// ancestor directories first. Fails AlreadyExists if the name is taken.
func (t *Tree) TouchP(p string, caller clifs.Caller) (*Node, error) {
	parentPath, leaf, err := SplitLeaf(p)
	if err != nil {
		return nil, err
	}
	if !validName(leaf) {
		return nil, clifs.NewError(clifs.InvalidOperation, "touch_p", p)
	}
	parent, err := t.MkdirP(parentPath, caller)
	if err != nil {
		return nil, err
	}
	file := newFile(leaf, t.defaults.FileMode, caller.UID, caller.GID, 0)
	if err := t.adopt(parent, file); err != nil {
		return nil, &clifs.Error{Kind: clifs.KindOf(err), Op: "touch_p", Path: p}
	}
	return file, nil
}

// Mkdir creates a single directory at p. The parent must already exist.
func (t *Tree) Mkdir(p string, mode uint32, caller clifs.Caller) (*Node, error) {
	return t.create("mkdir", p, func(leaf string) *Node {
		return newDirectory(leaf, mode, caller.UID, caller.GID)
	})
}

// Touch creates a single empty file at p. The parent must already exist.
func (t *Tree) Touch(p string, mode uint32, caller clifs.Caller) (*Node, error) {
	return t.create("create", p, func(leaf string) *Node {
		return newFile(leaf, mode, caller.UID, caller.GID, 0)
	})
}

// create adopts the node built for p's leaf under p's existing parent.
// The root always exists, so creating it reports AlreadyExists.
func (t *Tree) create(op, p string, build func(leaf string) *Node) (*Node, error) {
	parentPath, leaf, err := SplitLeaf(p)
	if err != nil {
		return nil, &clifs.Error{Kind: clifs.AlreadyExists, Op: op, Path: p}
	}
	if !validName(leaf) {
		return nil, clifs.NewError(clifs.InvalidOperation, op, p)
	}
	parent, err := t.findDir(op, parentPath)
	if err != nil {
		return nil, err
	}
	child := build(leaf)
	if err := t.adopt(parent, child); err != nil {
		return nil, &clifs.Error{Kind: clifs.KindOf(err), Op: op, Path: p}
	}
	return child, nil
}

// RmdirP removes the empty directory at p
func (t *Tree) RmdirP(p string) error {
	n, err := t.Find(p)
	if err != nil {
		return &clifs.Error{Kind: clifs.NotFound, Op: "rmdir", Path: p}
	}
	if err := t.removeEmptyDir(n); err != nil {
		return &clifs.Error{Kind: clifs.KindOf(err), Op: "rmdir", Path: p}
	}
	return nil
}

// Unlink removes the file at p
func (t *Tree) Unlink(p string) error {
	n, err := t.Find(p)
	if err != nil {
		return &clifs.Error{Kind: clifs.NotFound, Op: "unlink", Path: p}
	}
	if n.IsDir() {
		return clifs.NewError(clifs.IsADirectory, "unlink", p)
	}
	if err := t.detach(n); err != nil {
		return err
	}
	t.discard(n)
	return nil
}

// RenameP moves the node at from to the path to, taking to's final component
// as its new name. The destination slot is validated before the source is
// detached, so a collision leaves the source where it was.
func (t *Tree) RenameP(from, to string) error {
	src, err := t.Find(from)
	if err != nil || src.ID() == RootID {
		return clifs.NewError(clifs.InvalidOperation, "rename", from)
	}
	_, leaf, err := SplitLeaf(to)
	if err != nil || !validName(leaf) {
		return clifs.NewError(clifs.InvalidOperation, "rename", to)
	}
	fromParent, err := t.Find(ParentPath(from))
	if err != nil || fromParent.IsFile() {
		return clifs.NewError(clifs.InvalidOperation, "rename", from)
	}
	toParent, err := t.Find(ParentPath(to))
	if err != nil || toParent.IsFile() {
		return clifs.NewError(clifs.InvalidOperation, "rename", to)
	}

	if fromParent == toParent {
		if err := t.renameInPlace(src, leaf); err != nil {
			return &clifs.Error{Kind: clifs.KindOf(err), Op: "rename", Path: to}
		}
		return nil
	}
	// a directory cannot become its own descendant
	if src.IsDir() && t.isAncestor(src, toParent) {
		return clifs.NewError(clifs.InvalidOperation, "rename", to)
	}
	if _, taken := toParent.findChild(leaf); taken {
		return clifs.NewError(clifs.AlreadyExists, "rename", to)
	}

	oldName := src.name
	if err := t.detach(src); err != nil {
		return err
	}
	return t.reattach(src, toParent, leaf, fromParent, oldName, to)
}

// reattach adopts the detached src into toParent under leaf. On failure src
// is put back into fromParent under oldName; a failed restore is joined into
// the returned InternalInconsistency error since src is then orphaned.
func (t *Tree) reattach(src, toParent *Node, leaf string, fromParent *Node, oldName, to string) error {
	src.name = leaf
	err := t.adopt(toParent, src)
	if err == nil {
		return nil
	}
	src.name = oldName
	if rbErr := t.adopt(fromParent, src); rbErr != nil {
		err = errors.Join(err, fmt.Errorf("restore %s: %w", oldName, rbErr))
	}
	return &clifs.Error{Kind: clifs.InternalInconsistency, Op: "rename", Path: to, Err: err}
}

// isAncestor reports whether a is n or one of n's ancestors
func (t *Tree) isAncestor(a, n *Node) bool {
	for cur := n; cur != nil; {
		if cur == a {
			return true
		}
		pid, ok := cur.Parent()
		if !ok {
			return false
		}
		cur, _ = t.Get(pid)
	}
	return false
}

// List returns ".", ".." and then the directory's child names in sorted order.
// A path that does not resolve to a directory, files included, is NotFound.
func (t *Tree) List(p string) ([]string, error) {
	dir, err := t.Find(p)
	if err != nil || dir.IsFile() {
		return nil, &clifs.Error{Kind: clifs.NotFound, Op: "readdir", Path: p}
	}
	names := dir.ChildrenNames()
	slices.Sort(names)
	return append([]string{".", ".."}, names...), nil
}

// SetContent replaces the content of the file at p and updates its size
func (t *Tree) SetContent(p string, data []byte) error {
	n, err := t.Find(p)
	if err != nil {
		return err
	}
	if n.IsDir() {
		return clifs.NewError(clifs.IsADirectory, "setcontent", p)
	}
	n.setContent(data)
	return nil
}

// SetMode replaces the permission bits of the node at p
func (t *Tree) SetMode(p string, mode uint32) error {
	n, err := t.Find(p)
	if err != nil {
		return err
	}
	n.meta.Mode = mode
	return nil
}

// PathOf returns the absolute path of the live node id
func (t *Tree) PathOf(id NodeID) (string, error) {
	n, ok := t.Get(id)
	if !ok {
		return "", &clifs.Error{Kind: clifs.NotFound, Op: "path"}
	}
	var names []string
	for n.ID() != RootID {
		names = append(names, n.name)
		pid, ok := n.Parent()
		if !ok {
			return "", clifs.NewError(clifs.NotFound, "path", n.name)
		}
		n = t.nodes[pid]
	}
	if len(names) == 0 {
		return Separator, nil
	}
	slices.Reverse(names)
	p := ""
	for _, name := range names {
		p += Separator + name
	}
	return p, nil
}

// validName rejects names that cannot be stored as a directory entry
func validName(name string) bool {
	return name != "" && name != "." && name != ".."
}
