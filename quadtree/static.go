package quadtree

import (
	"github.com/aukilabs/swarm/geom"
)

// StaticTree is a quadtree that is only ever appended to. It is meant for
// point clouds that are bulk loaded once and then only queried.
type StaticTree[T any] struct {
	objects []T
	arena   arena[T]
}

// NewStaticTree creates a static tree covering rect. maxObjects only reserves
// memory; inserting more objects is allowed.
func NewStaticTree[T any](rect geom.Rect, maxObjects int, maxDepth int) *StaticTree[T] {
	if maxObjects < 0 {
		maxObjects = 0
	}

	return &StaticTree[T]{
		objects: make([]T, 0, maxObjects),
		arena:   newArena[T](rect, maxDepth),
	}
}

// Insert adds obj with the given bounding rectangle.
func (t *StaticTree[T]) Insert(obj T, rect geom.Rect) {
	t.objects = append(t.objects, obj)
	t.arena.insert(obj, rect)
}

// Rect returns the region covered by the tree.
func (t *StaticTree[T]) Rect() geom.Rect {
	return t.arena.rootRect()
}

// Size returns the number of objects in the tree.
func (t *StaticTree[T]) Size() int {
	return len(t.objects)
}

// SizeIn returns the number of objects whose rectangle overlaps rect.
func (t *StaticTree[T]) SizeIn(rect geom.Rect) int {
	return t.arena.sizeIn(rootID, rect)
}

// Items returns all the objects in insertion order.
func (t *StaticTree[T]) Items() []T {
	items := make([]T, len(t.objects))
	copy(items, t.objects)
	return items
}

// ItemsIn returns the objects whose rectangle overlaps rect.
func (t *StaticTree[T]) ItemsIn(rect geom.Rect) []T {
	return t.arena.itemsIn(rootID, rect, nil)
}
