package quadtree

import (
	"github.com/aukilabs/swarm/geom"
)

// rootID is the id of the root node. The root is never anybody's child, so a
// zero child id means the quadrant has no node yet.
const rootID int32 = 0

type entry[T any] struct {
	obj  T
	rect geom.Rect
}

type node[T any] struct {
	rect       geom.Rect
	childRects [4]geom.Rect
	children   [4]int32
	depth      int
	contents   []entry[T]
}

// location points at an entry in a node content list.
type location struct {
	node  int32
	index int
}

// arena holds the nodes of a single quadtree, indexed by id. Children are
// created lazily on the first insertion into their quadrant.
type arena[T any] struct {
	maxDepth int
	nodes    []node[T]
}

func newArena[T any](rect geom.Rect, maxDepth int) arena[T] {
	a := arena[T]{maxDepth: maxDepth}
	a.newNode(rect, 0)
	return a
}

func (a *arena[T]) newNode(rect geom.Rect, depth int) int32 {
	a.nodes = append(a.nodes, node[T]{
		rect:       rect,
		childRects: rect.Quadrants(),
		depth:      depth,
	})
	return int32(len(a.nodes) - 1)
}

func (a *arena[T]) rootRect() geom.Rect {
	return a.nodes[rootID].rect
}

// insert places obj at the deepest node whose quadrant fully contains rect,
// stopping at the max depth. Objects straddling a quadrant boundary, or
// outside the root, stay at the current node.
func (a *arena[T]) insert(obj T, rect geom.Rect) location {
	id := rootID

	for {
		next := a.childFor(id, rect)
		if next == rootID {
			break
		}
		id = next
	}

	n := &a.nodes[id]
	n.contents = append(n.contents, entry[T]{obj: obj, rect: rect})
	return location{node: id, index: len(n.contents) - 1}
}

// childFor returns the child node of id that should receive rect, creating it
// when needed. It returns rootID when rect stays at id.
func (a *arena[T]) childFor(id int32, rect geom.Rect) int32 {
	n := &a.nodes[id]
	if n.depth >= a.maxDepth {
		return rootID
	}

	for i, childRect := range n.childRects {
		if !childRect.Contains(rect) {
			continue
		}

		if n.children[i] == rootID {
			depth := n.depth + 1
			child := a.newNode(childRect, depth)
			// newNode may have grown the slice.
			a.nodes[id].children[i] = child
		}
		return a.nodes[id].children[i]
	}
	return rootID
}

// erase swap-removes the entry at loc. When another entry was moved into the
// hole, it is returned with moved set to true so the caller can re-point it.
func (a *arena[T]) erase(loc location) (movedObj T, moved bool) {
	n := &a.nodes[loc.node]
	last := len(n.contents) - 1

	if loc.index != last {
		n.contents[loc.index] = n.contents[last]
		movedObj = n.contents[loc.index].obj
		moved = true
	}

	var zero entry[T]
	n.contents[last] = zero
	n.contents = n.contents[:last]
	return movedObj, moved
}

func (a *arena[T]) size(id int32) int {
	n := &a.nodes[id]
	size := len(n.contents)
	for _, child := range n.children {
		if child != rootID {
			size += a.size(child)
		}
	}
	return size
}

func (a *arena[T]) sizeIn(id int32, rect geom.Rect) int {
	n := &a.nodes[id]

	size := 0
	for _, e := range n.contents {
		if rect.Overlaps(e.rect) {
			size++
		}
	}

	for i, child := range n.children {
		if child == rootID {
			continue
		}
		if !rect.Overlaps(n.childRects[i]) {
			continue
		}
		// Objects under an enclosed child overlap rect whatever their size.
		if rect.Encloses(n.childRects[i]) {
			size += a.size(child)
			continue
		}
		size += a.sizeIn(child, rect)
	}
	return size
}

func (a *arena[T]) items(id int32, result []T) []T {
	n := &a.nodes[id]
	for _, e := range n.contents {
		result = append(result, e.obj)
	}
	for _, child := range n.children {
		if child != rootID {
			result = a.items(child, result)
		}
	}
	return result
}

func (a *arena[T]) itemsIn(id int32, rect geom.Rect, result []T) []T {
	n := &a.nodes[id]
	for _, e := range n.contents {
		if rect.Overlaps(e.rect) {
			result = append(result, e.obj)
		}
	}

	for i, child := range n.children {
		if child == rootID {
			continue
		}
		if !rect.Overlaps(n.childRects[i]) {
			continue
		}
		if rect.Encloses(n.childRects[i]) {
			result = a.items(child, result)
			continue
		}
		result = a.itemsIn(child, rect, result)
	}
	return result
}

// nodeCount returns the number of allocated nodes.
func (a *arena[T]) nodeCount() int {
	return len(a.nodes)
}

// depthOf returns the depth of the node at loc.
func (a *arena[T]) depthOf(loc location) int {
	return a.nodes[loc.node].depth
}
