package quadtree

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/swarm/geom"
	"github.com/stretchr/testify/require"
)

var testWorld = geom.NewRect(0, 0, 1024, 1024)

func sortedHandles(handles []Handle) []Handle {
	sorted := make([]Handle, len(handles))
	copy(sorted, handles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}

func TestDynamicTreeCreation(t *testing.T) {
	tree := NewDynamicTree[string](testWorld, 4, 3)

	require.True(t, tree.HasRoom())
	require.True(t, tree.Empty())
	require.Equal(t, 0, tree.Size())
	require.Equal(t, 4, tree.Capacity())
	require.Equal(t, testWorld, tree.Rect())
	require.Empty(t, tree.Items())

	info := tree.GetDebugInfo()
	require.Equal(t, 1, info.NodeCount)
	require.Equal(t, 3, info.MaxDepth)
}

func TestDynamicTreeInsert(t *testing.T) {
	t.Run("returns sequential handles", func(t *testing.T) {
		tree := NewDynamicTree[string](testWorld, 3, 3)

		for i := 0; i < 3; i++ {
			h, err := tree.Insert("boid", geom.NewRect(10, 10, 5, 5))
			require.NoError(t, err)
			require.Equal(t, Handle(i), h)
		}
		require.Equal(t, 3, tree.Size())
		require.False(t, tree.HasRoom())
	})

	t.Run("fails when full", func(t *testing.T) {
		tree := NewDynamicTree[string](testWorld, 1, 3)

		_, err := tree.Insert("a", geom.NewRect(10, 10, 5, 5))
		require.NoError(t, err)

		h, err := tree.Insert("b", geom.NewRect(10, 10, 5, 5))
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeCapacityExhausted))
		require.Equal(t, NoHandle, h)
		require.Equal(t, 1, tree.Size())
	})

	t.Run("zero capacity has no room", func(t *testing.T) {
		tree := NewDynamicTree[string](testWorld, 0, 3)
		require.False(t, tree.HasRoom())

		_, err := tree.Insert("a", geom.NewRect(10, 10, 5, 5))
		require.Error(t, err)
	})

	t.Run("out of bounds objects stay at the root", func(t *testing.T) {
		tree := NewDynamicTree[string](testWorld, 2, 3)

		h, err := tree.Insert("lost", geom.NewRect(5000, 5000, 5, 5))
		require.NoError(t, err)
		require.Equal(t, 0, tree.Depth(h))
		require.Equal(t, 1, tree.Size())
		require.Equal(t, []Handle{h}, tree.ItemsIn(geom.NewRect(4990, 4990, 20, 20)))
		require.Empty(t, tree.ItemsIn(testWorld))
		require.Equal(t, 0, tree.SizeIn(testWorld))
	})
}

func TestDynamicTreePlacement(t *testing.T) {
	tree := NewDynamicTree[string](testWorld, 8, 4)

	t.Run("small objects sink to the max depth", func(t *testing.T) {
		h, err := tree.Insert("deep", geom.NewRect(1, 1, 2, 2))
		require.NoError(t, err)
		require.Equal(t, 4, tree.Depth(h))

		require.Equal(t, []Handle{h}, tree.ItemsIn(geom.NewRect(0, 0, 10, 10)))
		require.Empty(t, tree.ItemsIn(geom.NewRect(600, 600, 10, 10)))
	})

	t.Run("straddling objects stay at the shallowest bounding node", func(t *testing.T) {
		// Crosses the vertical split of the root.
		h, err := tree.Insert("straddle", geom.NewRect(500, 100, 40, 10))
		require.NoError(t, err)
		require.Equal(t, 0, tree.Depth(h))

		require.Contains(t, tree.ItemsIn(geom.NewRect(490, 90, 20, 20)), h)
		require.Contains(t, tree.ItemsIn(geom.NewRect(520, 90, 20, 20)), h)
		require.NotContains(t, tree.ItemsIn(geom.NewRect(700, 700, 20, 20)), h)
	})

	t.Run("objects crossing a nested split stop one level down", func(t *testing.T) {
		// Inside the top-left root quadrant, crossing its own vertical split
		// at x=256.
		h, err := tree.Insert("nested", geom.NewRect(250, 10, 20, 20))
		require.NoError(t, err)
		require.Equal(t, 1, tree.Depth(h))
	})
}

func TestDynamicTreeRemove(t *testing.T) {
	t.Run("remove is idempotent", func(t *testing.T) {
		tree := NewDynamicTree[string](testWorld, 4, 3)

		a, _ := tree.Insert("a", geom.NewRect(10, 10, 5, 5))
		b, _ := tree.Insert("b", geom.NewRect(20, 20, 5, 5))

		tree.Remove(a)
		require.Equal(t, 1, tree.Size())
		require.False(t, tree.Live(a))
		require.Nil(t, tree.Get(a))

		tree.Remove(a)
		require.Equal(t, 1, tree.Size())
		require.True(t, tree.Live(b))
		require.Equal(t, []Handle{b}, tree.Items())
		require.Equal(t, []Handle{b}, tree.ItemsIn(testWorld))
	})

	t.Run("removing invalid handles does nothing", func(t *testing.T) {
		tree := NewDynamicTree[string](testWorld, 4, 3)
		tree.Insert("a", geom.NewRect(10, 10, 5, 5))

		tree.Remove(NoHandle)
		tree.Remove(Handle(42))
		require.Equal(t, 1, tree.Size())
	})

	t.Run("remaining entries of the node stay reachable", func(t *testing.T) {
		tree := NewDynamicTree[int](testWorld, 8, 0)

		var handles []Handle
		for i := 0; i < 5; i++ {
			h, err := tree.Insert(i, geom.NewRect(float64(i*100), 10, 5, 5))
			require.NoError(t, err)
			handles = append(handles, h)
		}

		tree.Remove(handles[1])
		tree.Remove(handles[3])

		for _, i := range []int{0, 2, 4} {
			h := handles[i]
			rect, ok := tree.RectOf(h)
			require.True(t, ok)
			require.Equal(t, geom.NewRect(float64(i*100), 10, 5, 5), rect)
			require.Equal(t, []Handle{h}, tree.ItemsIn(rect))
			require.Equal(t, i, *tree.Get(h))
		}

		// Moving after a swap-remove must erase the right entry.
		tree.Move(handles[4], geom.NewRect(900, 900, 5, 5))
		require.Equal(t, 3, tree.SizeIn(testWorld))
		require.Empty(t, tree.ItemsIn(geom.NewRect(395, 5, 20, 20)))
		require.Equal(t, []Handle{handles[0]}, tree.ItemsIn(geom.NewRect(0, 0, 20, 20)))
	})
}

func TestDynamicTreeTombstoneReuse(t *testing.T) {
	t.Run("freed slot is reused before the table grows", func(t *testing.T) {
		tree := NewDynamicTree[string](testWorld, 10, 3)

		a, _ := tree.Insert("a", geom.NewRect(10, 10, 5, 5))
		b, _ := tree.Insert("b", geom.NewRect(20, 20, 5, 5))

		tree.Remove(a)
		c, err := tree.Insert("c", geom.NewRect(30, 30, 5, 5))
		require.NoError(t, err)
		require.Equal(t, a, c)
		require.Equal(t, "c", *tree.Get(c))

		d, err := tree.Insert("d", geom.NewRect(40, 40, 5, 5))
		require.NoError(t, err)
		require.Equal(t, b+1, d)
	})

	t.Run("free slots are reused last in first out", func(t *testing.T) {
		tree := NewDynamicTree[string](testWorld, 3, 3)

		a, _ := tree.Insert("a", geom.NewRect(10, 10, 5, 5))
		b, _ := tree.Insert("b", geom.NewRect(20, 20, 5, 5))
		tree.Insert("c", geom.NewRect(30, 30, 5, 5))
		require.False(t, tree.HasRoom())

		tree.Remove(a)
		tree.Remove(b)
		require.True(t, tree.HasRoom())

		h, err := tree.Insert("d", geom.NewRect(40, 40, 5, 5))
		require.NoError(t, err)
		require.Equal(t, b, h)

		h, err = tree.Insert("e", geom.NewRect(50, 50, 5, 5))
		require.NoError(t, err)
		require.Equal(t, a, h)

		require.False(t, tree.HasRoom())
	})
}

func TestDynamicTreeMove(t *testing.T) {
	t.Run("handle is stable across moves", func(t *testing.T) {
		tree := NewDynamicTree[string](testWorld, 4, 5)
		h, _ := tree.Insert("boid", geom.NewRect(10, 10, 5, 5))
		other, _ := tree.Insert("other", geom.NewRect(700, 700, 5, 5))

		rng := rand.New(rand.NewPCG(1, 2))
		var last geom.Rect
		for i := 0; i < 200; i++ {
			last = geom.NewRect(rng.Float64()*1000, rng.Float64()*1000, 5, 5)
			tree.Move(h, last)
		}

		require.Contains(t, tree.ItemsIn(last), h)
		require.Equal(t, "boid", *tree.Get(h))
		require.Equal(t, 2, tree.Size())
		require.True(t, tree.Live(other))

		rect, ok := tree.RectOf(h)
		require.True(t, ok)
		require.Equal(t, last, rect)
	})

	t.Run("moving an empty slot does nothing", func(t *testing.T) {
		tree := NewDynamicTree[string](testWorld, 4, 5)
		h, _ := tree.Insert("boid", geom.NewRect(10, 10, 5, 5))
		tree.Remove(h)

		tree.Move(h, geom.NewRect(100, 100, 5, 5))
		require.False(t, tree.Live(h))
		require.Equal(t, 0, tree.SizeIn(testWorld))
	})

	t.Run("pointers from get stay valid across moves", func(t *testing.T) {
		tree := NewDynamicTree[int](testWorld, 4, 5)
		h, _ := tree.Insert(1, geom.NewRect(10, 10, 5, 5))

		v := tree.Get(h)
		*v = 7
		tree.Move(h, geom.NewRect(900, 10, 5, 5))
		tree.Insert(2, geom.NewRect(20, 20, 5, 5))

		require.Equal(t, 7, *tree.Get(h))
		require.Same(t, v, tree.Get(h))
	})
}

func TestDynamicTreeQueryEquivalence(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	tree := NewDynamicTree[int](testWorld, 505, 6)

	rects := make(map[Handle]geom.Rect)
	for i := 0; i < 500; i++ {
		r := geom.NewRect(rng.Float64()*1100-40, rng.Float64()*1100-40, 1+rng.Float64()*60, 1+rng.Float64()*60)
		h, err := tree.Insert(i, r)
		require.NoError(t, err)
		rects[h] = r
	}

	// Zero-area rects on and around quadrant edges.
	for _, r := range []geom.Rect{
		geom.NewRect(0, 5, 0, 0),
		geom.NewRect(512, 300, 0, 0),
		geom.NewRect(256, 256, 0, 0),
		geom.NewRect(300, 300, 0, 0),
		geom.NewRect(600, 100, 0, 40),
	} {
		h, err := tree.Insert(-1, r)
		require.NoError(t, err)
		rects[h] = r
	}

	// Shuffle things around so that removals and moves are covered too.
	for h := Handle(0); h < 500; h += 7 {
		tree.Remove(h)
		delete(rects, h)
	}
	for h := range rects {
		if h < 500 && h%3 == 0 {
			r := geom.NewRect(rng.Float64()*1000, rng.Float64()*1000, 8, 8)
			tree.Move(h, r)
			rects[h] = r
		}
	}

	queries := []geom.Rect{
		testWorld,
		geom.NewRect(-100, -100, 2000, 2000),
		geom.NewRect(0, 0, 512, 512),
		geom.NewRect(256, 256, 512, 512),
		geom.NewRect(0, 0, 600, 600),
		geom.NewRect(256, 0, 256, 1024),
	}
	for i := 0; i < 100; i++ {
		queries = append(queries, geom.NewRect(rng.Float64()*1024, rng.Float64()*1024, rng.Float64()*600, rng.Float64()*600))
	}

	for _, q := range queries {
		var expected []Handle
		for h, r := range rects {
			if q.Overlaps(r) {
				expected = append(expected, h)
			}
		}

		got := tree.ItemsIn(q)
		require.Equal(t, sortedHandles(expected), sortedHandles(got), "query %+v", q)
		require.Equal(t, len(expected), tree.SizeIn(q), "query %+v", q)
	}

	require.Equal(t, len(rects), tree.Size())
	require.Len(t, tree.Items(), len(rects))
}
