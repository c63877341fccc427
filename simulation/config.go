package simulation

import (
	"math"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/swarm/geom"
)

const (
	ErrTypeInvalidConfig = "invalid_simulation_config"
)

// Config holds every physical parameter the simulation depends on.
type Config struct {
	World     geom.Rect
	MaxDepth  int
	MaxBoids  int
	BoidCount int
	StarCount int

	// Seconds the edge avoidance looks ahead along the current velocity.
	EdgeLookAhead float64

	Ship      ShipConfig
	Boid      BoidConfig
	Shot      ShotConfig
	Explosion ExplosionConfig
}

type ShipConfig struct {
	MaxSpeed    float64
	MaxAccel    float64
	MaxYaw      float64
	AimYaw      float64
	AvoidRadius float64
}

type BoidConfig struct {
	MaxSpeed          float64
	CruiseSpeed       float64
	MaxAccel          float64
	AverageSeparation float64
	AlignmentMult     float64
	AlignmentRadius   float64
	CohesionRadius    float64
	SeparationFactor  float64
	Size              geom.Vec2
}

type ShotConfig struct {
	Speed    float64
	Cooldown time.Duration

	// Shots are anchored at the ship position when fired.
	Size geom.Vec2
}

type ExplosionConfig struct {
	LethalRadius   float64
	PressureRadius float64
	VisualRadius   float64
	Pressure       float64
	PressurePerSec float64
}

// DefaultConfig returns the tuning the game was designed with: a world eight
// 1280x960 screens wide and high, populated with 5000 boids.
func DefaultConfig() Config {
	return Config{
		World:         geom.NewRect(0, 0, 8*1280, 8*960),
		MaxDepth:      7,
		MaxBoids:      5000,
		BoidCount:     5000,
		StarCount:     1000,
		EdgeLookAhead: 2,
		Ship: ShipConfig{
			MaxSpeed:    1500,
			MaxAccel:    600,
			MaxYaw:      math.Pi,
			AimYaw:      0.2 * math.Pi,
			AvoidRadius: 200,
		},
		Boid: BoidConfig{
			MaxSpeed:          800,
			CruiseSpeed:       350,
			MaxAccel:          500,
			AverageSeparation: 55,
			AlignmentMult:     2.75,
			AlignmentRadius:   250,
			CohesionRadius:    250,
			SeparationFactor:  0.5,
			Size:              geom.Vec2{X: 40, Y: 40},
		},
		Shot: ShotConfig{
			Speed:    2400,
			Cooldown: 100 * time.Millisecond,
			Size:     geom.Vec2{X: 40, Y: 20},
		},
		Explosion: ExplosionConfig{
			LethalRadius:   60,
			PressureRadius: 300,
			VisualRadius:   150,
			Pressure:       8000,
			PressurePerSec: 60000,
		},
	}
}

// Validate returns an error when the configuration cannot build a world.
func (c Config) Validate() error {
	switch {
	case c.World.Size.X <= 0 || c.World.Size.Y <= 0:
		return errors.New("world size must be positive").
			WithType(ErrTypeInvalidConfig).
			WithTag("width", c.World.Size.X).
			WithTag("height", c.World.Size.Y)

	case c.MaxDepth < 1:
		return errors.New("max depth must be at least 1").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_depth", c.MaxDepth)

	case c.BoidCount < 0 || c.StarCount < 0:
		return errors.New("counts must not be negative").
			WithType(ErrTypeInvalidConfig).
			WithTag("boids", c.BoidCount).
			WithTag("stars", c.StarCount)

	case c.MaxBoids < c.BoidCount:
		return errors.New("boid capacity is lower than the initial population").
			WithType(ErrTypeInvalidConfig).
			WithTag("max_boids", c.MaxBoids).
			WithTag("boids", c.BoidCount)

	case c.Explosion.Pressure <= 0 || c.Explosion.PressurePerSec <= 0:
		return errors.New("explosion pressure and decay must be positive").
			WithType(ErrTypeInvalidConfig).
			WithTag("pressure", c.Explosion.Pressure).
			WithTag("pressure_per_sec", c.Explosion.PressurePerSec)

	default:
		return nil
	}
}

func (c Config) neighborRadius() float64 {
	return math.Max(c.Boid.AlignmentRadius, c.Boid.CohesionRadius)
}
