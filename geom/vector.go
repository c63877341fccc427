package geom

import (
	"math"
)

func EqualWithEpsilon(a float64, b float64, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

func Clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(v, max))
}

// Vec2 is a 2D vector in world units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func NewVec2(x, y float64) Vec2 {
	return Vec2{X: x, Y: y}
}

// FromAngle returns the unit vector pointing at the given angle in radians.
func FromAngle(theta float64) Vec2 {
	return Vec2{math.Cos(theta), math.Sin(theta)}
}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.X + o.X, v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.X - o.X, v.Y - o.Y}
}

func (v Vec2) Mul(s float64) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

func (v Vec2) Div(s float64) Vec2 {
	return Vec2{v.X / s, v.Y / s}
}

func (v Vec2) MagSq() float64 {
	return v.X*v.X + v.Y*v.Y
}

func (v Vec2) Mag() float64 {
	return math.Sqrt(v.MagSq())
}

func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// Norm returns the unit vector of v. The zero vector stays zero.
func (v Vec2) Norm() Vec2 {
	m := v.Mag()
	if m == 0 {
		return v
	}
	return v.Div(m)
}

// WithMag returns v scaled to the given magnitude, keeping its direction.
func (v Vec2) WithMag(mag float64) Vec2 {
	return v.Norm().Mul(mag)
}

// Limit caps the magnitude of v to max.
func (v Vec2) Limit(max float64) Vec2 {
	if v.MagSq() > max*max {
		return v.WithMag(max)
	}
	return v
}

// Theta returns the angle of v in radians, in (-π, π].
func (v Vec2) Theta() float64 {
	return math.Atan2(v.Y, v.X)
}

func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

func (v Vec2) EqualWithEpsilon(o Vec2, epsilon float64) bool {
	return EqualWithEpsilon(v.X, o.X, epsilon) &&
		EqualWithEpsilon(v.Y, o.Y, epsilon)
}

// NormalizeAngle wraps theta into [0, 2π).
func NormalizeAngle(theta float64) float64 {
	theta = math.Mod(theta, 2*math.Pi)
	if theta < 0 {
		theta += 2 * math.Pi
	}
	return theta
}
