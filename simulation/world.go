package simulation

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/swarm/geom"
	"github.com/aukilabs/swarm/quadtree"
)

// Agent is a moving body: a boid or the player ship.
type Agent struct {
	Position     geom.Vec2
	Velocity     geom.Vec2
	Acceleration geom.Vec2
	Heading      float64

	// Personal separation radius.
	Separation    float64
	SpeedVariance float64

	// Set when an explosion pushed the agent during the current tick.
	Exploded bool
}

type Shot struct {
	Rect     geom.Rect
	Velocity geom.Vec2
	Heading  float64
	invalid  bool
}

type Explosion struct {
	Position     geom.Vec2
	PressureLeft float64
}

// World is the simulation context. It owns the spatial indexes and every
// entity of the game. A World is not safe for concurrent use.
type World struct {
	Config Config

	Boids      *quadtree.DynamicTree[Agent]
	Stars      *quadtree.StaticTree[geom.Vec2]
	Ship       Agent
	Shots      []Shot
	Explosions []Explosion

	// Keys held by the player.
	Keys Keys

	// Simulated time, advanced by Update.
	Clock     time.Duration
	LastFired time.Duration
	Tick      uint64

	rand *rand.Rand
}

// NewWorld creates a world populated with randomly placed boids and stars.
// A nil rng uses a randomly seeded source.
func NewWorld(c Config, rng *rand.Rand) (*World, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	w := &World{
		Config:    c,
		Boids:     quadtree.NewDynamicTree[Agent](c.World, c.MaxBoids, c.MaxDepth),
		Stars:     quadtree.NewStaticTree[geom.Vec2](c.World, c.StarCount, c.MaxDepth),
		Ship:      Agent{Position: c.World.Center(), SpeedVariance: 1},
		LastFired: -c.Shot.Cooldown,
		rand:      rng,
	}

	for i := 0; i < c.BoidCount; i++ {
		p := geom.Vec2{
			X: w.uniform(c.World.Min().X, c.World.Max().X),
			Y: w.uniform(c.World.Min().Y, c.World.Max().Y),
		}
		if _, err := w.insertBoid(w.randomBoid(p)); err != nil {
			return nil, errors.New("populating boids failed").
				WithTag("boid_count", c.BoidCount).
				Wrap(err)
		}
	}

	for i := 0; i < c.StarCount; i++ {
		p := geom.Vec2{
			X: w.uniform(c.World.Min().X, c.World.Max().X),
			Y: w.uniform(c.World.Min().Y, c.World.Max().Y),
		}
		w.Stars.Insert(p, geom.Rect{Position: p, Size: geom.Vec2{X: 1, Y: 1}})
	}

	return w, nil
}

// SpawnBoid adds a boid with a random velocity at the center of the world.
func (w *World) SpawnBoid() (quadtree.Handle, error) {
	return w.insertBoid(w.randomBoid(w.Config.World.Center()))
}

func (w *World) randomBoid(p geom.Vec2) Agent {
	c := w.Config.Boid
	speed := w.uniform(c.MaxSpeed*0.3, c.MaxSpeed*0.5)
	heading := w.uniform(0, 2*math.Pi)

	return Agent{
		Position:      p,
		Velocity:      geom.FromAngle(heading).Mul(speed),
		Heading:       heading,
		Separation:    w.uniform(c.AverageSeparation*0.8, c.AverageSeparation*1.3),
		SpeedVariance: w.uniform(0.75, 1.25),
	}
}

func (w *World) insertBoid(a Agent) (quadtree.Handle, error) {
	return w.Boids.Insert(a, w.boidRect(a.Position))
}

func (w *World) boidRect(p geom.Vec2) geom.Rect {
	return geom.Rect{Position: p, Size: w.Config.Boid.Size}
}

func (w *World) uniform(lo, hi float64) float64 {
	return lo + w.rand.Float64()*(hi-lo)
}
