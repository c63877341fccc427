package simulation

import (
	"math"

	"github.com/aukilabs/swarm/geom"
	"github.com/aukilabs/swarm/quadtree"
)

// edgeBounce reflects the velocity components that carry the agent out of
// bounds and clamps its position back inside. It reports whether the agent
// bounced.
func edgeBounce(a *Agent, bounds geom.Rect) bool {
	lo := bounds.Min()
	hi := bounds.Max()
	p := a.Position
	v := a.Velocity

	bounced := false
	if p.X < lo.X || p.X > hi.X || (p.X == lo.X && v.X < 0) || (p.X == hi.X && v.X > 0) {
		a.Velocity.X = -a.Velocity.X
		bounced = true
	}
	if p.Y < lo.Y || p.Y > hi.Y || (p.Y == lo.Y && v.Y < 0) || (p.Y == hi.Y && v.Y > 0) {
		a.Velocity.Y = -a.Velocity.Y
		bounced = true
	}

	if bounced {
		a.Position.X = geom.Clamp(p.X, lo.X, hi.X)
		a.Position.Y = geom.Clamp(p.Y, lo.Y, hi.Y)
	}
	return bounced
}

func (w *World) outside(p geom.Vec2) bool {
	return !w.Config.World.Overlaps(geom.Rect{Position: p, Size: geom.Vec2{X: 1, Y: 1}})
}

// avoidShip pushes the agent away from the ship when it is too close.
func (w *World) avoidShip(a *Agent) geom.Vec2 {
	r := w.Config.Ship.AvoidRadius
	if a.Position.Sub(w.Ship.Position).MagSq() >= r*r {
		return geom.Vec2{}
	}
	return w.Ship.Position.Sub(a.Position).Norm().Mul(-w.Config.Boid.MaxAccel)
}

// avoidEdge steers the agent sideways when its projected position leaves the
// world. The perpendicular turning away from the crossed edge is tried first.
// When neither side keeps it inside, the agent brakes.
func (w *World) avoidEdge(a *Agent) geom.Vec2 {
	p := a.Position
	future := p.Add(a.Velocity.Mul(w.Config.EdgeLookAhead))
	if !w.outside(future) {
		return geom.Vec2{}
	}

	maxAccel := w.Config.Boid.MaxAccel
	lo := w.Config.World.Min()
	hi := w.Config.World.Max()

	a.Heading = geom.NormalizeAngle(a.Heading)
	h := a.Heading
	speed := a.Velocity.Mag()

	firstLeft := (future.X < lo.X && h <= math.Pi) ||
		(future.X >= hi.X && h > math.Pi) ||
		(future.Y < lo.Y && h <= 3*math.Pi/2) ||
		(future.Y >= hi.Y && h <= math.Pi/2)

	left := geom.FromAngle(h - math.Pi/2)
	right := geom.FromAngle(h + math.Pi/2)
	first, second := right, left
	if firstLeft {
		first, second = left, right
	}

	if !w.outside(p.Add(first.Mul(speed * w.Config.EdgeLookAhead))) {
		return first.Mul(maxAccel)
	}
	if !w.outside(p.Add(second.Mul(speed * w.Config.EdgeLookAhead))) {
		return second.Mul(maxAccel)
	}
	return a.Velocity.Mul(-maxAccel)
}

// flock holds what the neighbors of a boid contribute to its steering.
type flock struct {
	AverageVelocity geom.Vec2
	AveragePosition geom.Vec2
	Separation      geom.Vec2
}

func (w *World) flockOf(h quadtree.Handle, b *Agent) flock {
	c := w.Config.Boid
	r := w.Config.neighborRadius()
	alignSq := c.AlignmentRadius * c.AlignmentRadius
	cohesionSq := c.CohesionRadius * c.CohesionRadius
	sepSq := b.Separation * b.Separation
	sepScale := math.Pow(b.Separation, 3) * c.SeparationFactor

	var alignment, cohesion, separation geom.Vec2
	var alignmentCount, cohesionCount int

	for _, other := range w.Boids.ItemsIn(geom.RectAround(b.Position, geom.Vec2{X: r, Y: r})) {
		if other == h {
			continue
		}
		o := w.Boids.Get(other)
		if o == nil {
			continue
		}

		distSq := b.Position.Sub(o.Position).MagSq()
		if distSq >= cohesionSq {
			continue
		}

		if distSq < alignSq {
			alignment = alignment.Add(o.Velocity)
			alignmentCount++
		}

		cohesion = cohesion.Add(o.Position)
		cohesionCount++

		if distSq < sepSq {
			away := b.Position.Sub(o.Position)
			separation = separation.Add(away.Mul(sepScale / math.Max(distSq, 1)))
		}
	}

	f := flock{
		AverageVelocity: b.Velocity,
		AveragePosition: b.Position,
		Separation:      separation,
	}
	if alignmentCount != 0 {
		f.AverageVelocity = alignment.Div(float64(alignmentCount))
	}
	if cohesionCount != 0 {
		f.AveragePosition = cohesion.Div(float64(cohesionCount))
	}
	return f
}

// updateBoidAcceleration computes the acceleration of a boid from the
// positions of the previous tick. Explosions take precedence over avoidance
// which takes precedence over flocking.
func (w *World) updateBoidAcceleration(h quadtree.Handle, dt float64) {
	b := w.Boids.Get(h)
	if b == nil {
		return
	}

	b.Acceleration = geom.Vec2{}
	b.Exploded = false

	e := w.Config.Explosion
	for _, expl := range w.Explosions {
		distSq := math.Max(b.Position.Sub(expl.Position).MagSq(), 1)
		if distSq >= e.PressureRadius*e.PressureRadius {
			continue
		}

		pressure := math.Min(expl.PressureLeft, e.PressurePerSec*dt)
		push := b.Position.Sub(expl.Position).WithMag(pressure * e.PressureRadius / math.Sqrt(distSq))
		b.Acceleration = b.Acceleration.Add(push)
		b.Exploded = true
	}
	if b.Exploded {
		return
	}

	c := w.Config.Boid
	avoid := w.avoidShip(b).Add(w.avoidEdge(b))
	if !avoid.IsZero() {
		b.Acceleration = avoid.Limit(c.MaxAccel)
		return
	}

	f := w.flockOf(h, b)
	avgVelocity := f.AverageVelocity.Mul(c.AlignmentMult).Limit(c.CruiseSpeed * b.SpeedVariance)

	b.Acceleration = avgVelocity.Sub(b.Velocity).
		Add(f.AveragePosition.Sub(b.Position).Sub(b.Velocity)).
		Add(f.Separation).
		Limit(c.MaxAccel)
}

// updateBoidPosition integrates a boid and relocates it in the index.
func (w *World) updateBoidPosition(h quadtree.Handle, dt float64) {
	b := w.Boids.Get(h)
	if b == nil {
		return
	}

	b.Velocity = b.Velocity.Add(b.Acceleration.Mul(dt))
	if !b.Exploded {
		b.Velocity = b.Velocity.Limit(w.Config.Boid.MaxSpeed * b.SpeedVariance)
	}

	b.Position = b.Position.Add(b.Velocity.Mul(dt))
	edgeBounce(b, w.Config.World)
	b.Heading = b.Velocity.Theta()

	w.Boids.Move(h, w.boidRect(b.Position))
}
