package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/swarm/geom"
)

const (
	ErrTypeCapacityExhausted = "quadtree_capacity_exhausted"
)

// Handle is the stable identity of an object stored in a DynamicTree. It stays
// the same across moves. After Remove, its slot may be handed to a later
// Insert.
type Handle int32

// NoHandle is a handle that never refers to a live object.
const NoHandle Handle = -1

type slot[T any] struct {
	value T
	live  bool
	loc   location
}

// DynamicTree is a quadtree that supports inserting, removing and moving
// objects while handing out stable handles.
//
// Objects live in a slot table preallocated to the tree capacity, so pointers
// returned by Get stay valid while the object is live. Removed slots are
// tombstoned and reused, most recently freed first, before the table grows.
type DynamicTree[T any] struct {
	slots      []slot[T]
	maxObjects int
	free       []Handle
	arena      arena[Handle]
}

// NewDynamicTree creates a dynamic tree covering rect that holds at most
// maxObjects live objects.
func NewDynamicTree[T any](rect geom.Rect, maxObjects int, maxDepth int) *DynamicTree[T] {
	if maxObjects < 0 {
		maxObjects = 0
	}

	return &DynamicTree[T]{
		slots:      make([]slot[T], 0, maxObjects),
		maxObjects: maxObjects,
		arena:      newArena[Handle](rect, maxDepth),
	}
}

// HasRoom reports whether Insert can accept another object.
func (t *DynamicTree[T]) HasRoom() bool {
	return len(t.slots) < t.maxObjects || len(t.free) != 0
}

// Insert stores obj with the given bounding rectangle and returns its handle.
// It fails with ErrTypeCapacityExhausted when the tree has no room.
func (t *DynamicTree[T]) Insert(obj T, rect geom.Rect) (Handle, error) {
	if !t.HasRoom() {
		return NoHandle, errors.New("quad tree full").
			WithType(ErrTypeCapacityExhausted).
			WithTag("capacity", t.maxObjects)
	}

	var h Handle
	if n := len(t.free); n != 0 {
		h = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, slot[T]{})
		h = Handle(len(t.slots) - 1)
	}

	s := &t.slots[h]
	s.value = obj
	s.live = true
	s.loc = t.arena.insert(h, rect)
	return h, nil
}

// Remove deletes the object behind h. Removing an empty slot does nothing.
func (t *DynamicTree[T]) Remove(h Handle) {
	if !t.Live(h) {
		return
	}

	t.unlink(h)

	var zero T
	s := &t.slots[h]
	s.value = zero
	s.live = false
	s.loc = location{}
	t.free = append(t.free, h)
}

// Move relocates the object behind h to rect. The handle does not change.
// Moving an empty slot does nothing.
func (t *DynamicTree[T]) Move(h Handle, rect geom.Rect) {
	if !t.Live(h) {
		return
	}

	t.unlink(h)
	t.slots[h].loc = t.arena.insert(h, rect)
}

// unlink erases the node entry of h, keeping the slot of the entry that
// takes its place in sync.
func (t *DynamicTree[T]) unlink(h Handle) {
	loc := t.slots[h].loc
	if moved, ok := t.arena.erase(loc); ok {
		t.slots[moved].loc = loc
	}
}

// Live reports whether h refers to a stored object.
func (t *DynamicTree[T]) Live(h Handle) bool {
	return h >= 0 && int(h) < len(t.slots) && t.slots[h].live
}

// Get returns a pointer to the object behind h, or nil when the slot is
// empty. The object can be mutated in place; call Move after changing
// anything that affects its bounding rectangle.
func (t *DynamicTree[T]) Get(h Handle) *T {
	if !t.Live(h) {
		return nil
	}
	return &t.slots[h].value
}

// RectOf returns the bounding rectangle h was last inserted or moved with.
func (t *DynamicTree[T]) RectOf(h Handle) (geom.Rect, bool) {
	if !t.Live(h) {
		return geom.Rect{}, false
	}

	loc := t.slots[h].loc
	return t.arena.nodes[loc.node].contents[loc.index].rect, true
}

// Depth returns the depth of the node that holds h, or -1 when h is not live.
func (t *DynamicTree[T]) Depth(h Handle) int {
	if !t.Live(h) {
		return -1
	}
	return t.arena.depthOf(t.slots[h].loc)
}

// Rect returns the region covered by the tree.
func (t *DynamicTree[T]) Rect() geom.Rect {
	return t.arena.rootRect()
}

// Capacity returns the maximum number of live objects.
func (t *DynamicTree[T]) Capacity() int {
	return t.maxObjects
}

// Size returns the number of live objects.
func (t *DynamicTree[T]) Size() int {
	return len(t.slots) - len(t.free)
}

// Empty reports whether the tree holds no live object.
func (t *DynamicTree[T]) Empty() bool {
	return t.Size() == 0
}

// SizeIn returns the number of live objects whose rectangle overlaps rect.
func (t *DynamicTree[T]) SizeIn(rect geom.Rect) int {
	return t.arena.sizeIn(rootID, rect)
}

// Items returns the handles of all live objects, in slot order.
func (t *DynamicTree[T]) Items() []Handle {
	items := make([]Handle, 0, t.Size())
	for i := range t.slots {
		if t.slots[i].live {
			items = append(items, Handle(i))
		}
	}
	return items
}

// ItemsIn returns the handles of the live objects whose rectangle overlaps
// rect. Removing or moving objects does not affect an already returned slice,
// but callers must check Live before using a handle removed in the meantime.
func (t *DynamicTree[T]) ItemsIn(rect geom.Rect) []Handle {
	return t.arena.itemsIn(rootID, rect, nil)
}

// DebugInfo describes the shape of a dynamic tree.
type DebugInfo struct {
	NodeCount int
	Live      int
	Free      int
	Capacity  int
	MaxDepth  int
}

func (t *DynamicTree[T]) GetDebugInfo() DebugInfo {
	return DebugInfo{
		NodeCount: t.arena.nodeCount(),
		Live:      t.Size(),
		Free:      len(t.free),
		Capacity:  t.maxObjects,
		MaxDepth:  t.arena.maxDepth,
	}
}
