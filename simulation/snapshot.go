package simulation

import (
	"github.com/aukilabs/swarm/geom"
)

// Sprite is the visible state of a moving body.
type Sprite struct {
	Position geom.Vec2 `json:"position"`
	Heading  float64   `json:"heading"`
}

// Blast is the visible state of an explosion.
type Blast struct {
	Position geom.Vec2 `json:"position"`
	Radius   float64   `json:"radius"`
}

// Snapshot is what a viewer sees of the world through its viewport.
type Snapshot struct {
	Tick       uint64      `json:"tick"`
	View       geom.Rect   `json:"view"`
	Ship       Sprite      `json:"ship"`
	Boids      []Sprite    `json:"boids"`
	Stars      []geom.Vec2 `json:"stars,omitempty"`
	Shots      []Sprite    `json:"shots"`
	Explosions []Blast     `json:"explosions"`
	Remaining  int         `json:"remaining"`
	Capacity   int         `json:"capacity"`
	Paused     bool        `json:"paused"`
}

// Snapshot returns the entities visible through view. An empty view shows the
// whole world.
func (w *World) Snapshot(view geom.Rect) Snapshot {
	if view.Size.X <= 0 || view.Size.Y <= 0 {
		view = w.Config.World
	}

	s := Snapshot{
		Tick: w.Tick,
		View: view,
		Ship: Sprite{
			Position: w.Ship.Position,
			Heading:  w.Ship.Heading,
		},
		Stars:     w.Stars.ItemsIn(view),
		Remaining: w.Boids.Size(),
		Capacity:  w.Boids.Capacity(),
	}

	handles := w.Boids.ItemsIn(view)
	s.Boids = make([]Sprite, 0, len(handles))
	for _, h := range handles {
		b := w.Boids.Get(h)
		if b == nil {
			continue
		}
		s.Boids = append(s.Boids, Sprite{
			Position: b.Position,
			Heading:  b.Heading,
		})
	}

	s.Shots = make([]Sprite, 0, len(w.Shots))
	for _, shot := range w.Shots {
		if !view.Overlaps(shot.Rect) {
			continue
		}
		s.Shots = append(s.Shots, Sprite{
			Position: shot.Rect.Position,
			Heading:  shot.Heading,
		})
	}

	c := w.Config.Explosion
	s.Explosions = make([]Blast, 0, len(w.Explosions))
	for _, e := range w.Explosions {
		radius := (c.Pressure - e.PressureLeft) / c.Pressure * c.VisualRadius
		if !view.Overlaps(geom.RectAround(e.Position, geom.Vec2{X: radius, Y: radius})) {
			continue
		}
		s.Explosions = append(s.Explosions, Blast{
			Position: e.Position,
			Radius:   radius,
		})
	}

	return s
}
