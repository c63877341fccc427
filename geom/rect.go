package geom

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	Position Vec2 `json:"position"`
	Size     Vec2 `json:"size"`
}

func NewRect(x, y, w, h float64) Rect {
	return Rect{
		Position: Vec2{x, y},
		Size:     Vec2{w, h},
	}
}

// RectAround returns the rectangle centered on c with the given half extents.
func RectAround(c Vec2, halfExtents Vec2) Rect {
	return Rect{
		Position: c.Sub(halfExtents),
		Size:     halfExtents.Mul(2),
	}
}

func (r Rect) Min() Vec2 {
	return r.Position
}

func (r Rect) Max() Vec2 {
	return r.Position.Add(r.Size)
}

func (r Rect) Center() Vec2 {
	return r.Position.Add(r.Size.Div(2))
}

// Contains reports whether o lies fully inside r. Shared edges count as
// inside.
func (r Rect) Contains(o Rect) bool {
	rMax := r.Max()
	oMax := o.Max()
	return o.Position.X >= r.Position.X &&
		o.Position.Y >= r.Position.Y &&
		oMax.X <= rMax.X &&
		oMax.Y <= rMax.Y
}

// Encloses reports whether o lies inside r without touching its edges. Any
// rect enclosed by r overlaps r, degenerate ones included.
func (r Rect) Encloses(o Rect) bool {
	rMax := r.Max()
	oMax := o.Max()
	return o.Position.X > r.Position.X &&
		o.Position.Y > r.Position.Y &&
		oMax.X < rMax.X &&
		oMax.Y < rMax.Y
}

// ContainsPoint reports whether p lies inside r, edges included.
func (r Rect) ContainsPoint(p Vec2) bool {
	return r.Contains(Rect{Position: p})
}

// Overlaps reports whether the interiors of r and o intersect. Rectangles that
// only touch along an edge do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	rMax := r.Max()
	oMax := o.Max()

	if r.Position.X >= oMax.X {
		return false
	}
	if rMax.X <= o.Position.X {
		return false
	}
	if r.Position.Y >= oMax.Y {
		return false
	}
	if rMax.Y <= o.Position.Y {
		return false
	}

	// overlap on both axes -> must overlap
	return true
}

// Quadrants splits r into four equal quadrants: top-left, top-right,
// bottom-left, bottom-right.
func (r Rect) Quadrants() [4]Rect {
	half := r.Size.Div(2)
	return [4]Rect{
		{Position: r.Position, Size: half},
		{Position: r.Position.Add(Vec2{half.X, 0}), Size: half},
		{Position: r.Position.Add(Vec2{0, half.Y}), Size: half},
		{Position: r.Position.Add(half), Size: half},
	}
}

// ClampInside moves r so that it lies inside bounds, as long as it fits.
func (r Rect) ClampInside(bounds Rect) Rect {
	bMax := bounds.Max()
	r.Position.X = Clamp(r.Position.X, bounds.Position.X, bMax.X-r.Size.X)
	r.Position.Y = Clamp(r.Position.Y, bounds.Position.Y, bMax.Y-r.Size.Y)
	return r
}
