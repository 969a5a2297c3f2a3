package filesystem

// Handle is an open file: a non-owning reference to its node plus the flags
// it was opened with. The handle does not keep the node alive.
type Handle struct {
	Node  NodeID
	Flags uint32
}

type handleSlot struct {
	handle Handle
	open   bool
}

// HandleTable allocates small integer ids for open files.
// Closed ids are reused most-recently-freed first.
// HandleTable is not safe for concurrent use; see [FileSystem].
type HandleTable struct {
	slots []handleSlot
	free  []uint64 // stack of closed slot ids
}

func NewHandleTable() *HandleTable {
	return &HandleTable{}
}

// Open stores (node, flags) in the most recently freed slot, or a new slot at
// the end when none is free, and returns the slot's id.
func (ht *HandleTable) Open(node NodeID, flags uint32) uint64 {
	h := Handle{Node: node, Flags: flags}
	if n := len(ht.free); n > 0 {
		id := ht.free[n-1]
		ht.free = ht.free[:n-1]
		ht.slots[id] = handleSlot{handle: h, open: true}
		return id
	}
	ht.slots = append(ht.slots, handleSlot{handle: h, open: true})
	return uint64(len(ht.slots) - 1)
}

// Get returns a copy of the open handle id
func (ht *HandleTable) Get(id uint64) (Handle, bool) {
	if id >= uint64(len(ht.slots)) || !ht.slots[id].open {
		return Handle{}, false
	}
	return ht.slots[id].handle, true
}

// GetMut returns a pointer to the open handle id for in-place updates.
// The pointer is invalidated by the next Open.
func (ht *HandleTable) GetMut(id uint64) (*Handle, bool) {
	if id >= uint64(len(ht.slots)) || !ht.slots[id].open {
		return nil, false
	}
	return &ht.slots[id].handle, true
}

// Close releases id for reuse. Closing an unknown or already closed id is a no-op.
func (ht *HandleTable) Close(id uint64) {
	if id >= uint64(len(ht.slots)) || !ht.slots[id].open {
		return
	}
	ht.slots[id] = handleSlot{}
	ht.free = append(ht.free, id)
}

// Len returns the number of open handles
func (ht *HandleTable) Len() int {
	return len(ht.slots) - len(ht.free)
}
