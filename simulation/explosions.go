package simulation

import (
	"math"

	"github.com/aukilabs/swarm/geom"
)

// Explode sets off an explosion at pos and removes every boid within the
// lethal radius. It returns the number of boids killed.
func (w *World) Explode(pos geom.Vec2) int {
	c := w.Config.Explosion
	w.Explosions = append(w.Explosions, Explosion{
		Position:     pos,
		PressureLeft: c.Pressure,
	})

	lethalSq := c.LethalRadius * c.LethalRadius
	area := geom.RectAround(pos, geom.Vec2{X: c.LethalRadius, Y: c.LethalRadius})

	killed := 0
	for _, h := range w.Boids.ItemsIn(area) {
		b := w.Boids.Get(h)
		if b == nil {
			continue
		}
		if b.Position.Sub(pos).MagSq() < lethalSq {
			w.Boids.Remove(h)
			killed++
		}
	}
	return killed
}

// spentPressure is the fraction of the initial pressure below which an
// explosion counts as spent. It absorbs the rounding left over by repeated
// subtraction.
const spentPressure = 1e-9

// decayExplosions drains the pressure of every explosion and drops the ones
// that are spent.
func (w *World) decayExplosions(dt float64) {
	perTick := w.Config.Explosion.PressurePerSec * dt
	spent := w.Config.Explosion.Pressure * spentPressure

	active := w.Explosions[:0]
	for _, e := range w.Explosions {
		e.PressureLeft -= math.Min(e.PressureLeft, perTick)
		if e.PressureLeft > spent {
			active = append(active, e)
		}
	}
	clear(w.Explosions[len(active):])
	w.Explosions = active
}

// updateShots advances the shots. Shots leaving the world are dropped and
// shots hitting a boid explode. It returns the number of boids killed.
func (w *World) updateShots(dt float64) int {
	for i := range w.Shots {
		s := &w.Shots[i]
		s.Rect.Position = s.Rect.Position.Add(s.Velocity.Mul(dt))
		if !s.Rect.Overlaps(w.Config.World) {
			s.invalid = true
		}
	}

	killed := 0
	for i := range w.Shots {
		s := &w.Shots[i]
		if s.invalid {
			continue
		}
		if w.Boids.SizeIn(s.Rect) > 0 {
			s.invalid = true
			killed += w.Explode(s.Rect.Position)
		}
	}

	valid := w.Shots[:0]
	for _, s := range w.Shots {
		if !s.invalid {
			valid = append(valid, s)
		}
	}
	clear(w.Shots[len(valid):])
	w.Shots = valid
	return killed
}
