package main

import (
	"testing"
	"time"

	"github.com/aukilabs/swarm/geom"
	"github.com/aukilabs/swarm/simulation"
	"github.com/stretchr/testify/require"
)

func testConfig() config {
	return config{
		PublicEndpoint:     "http://localhost:4000",
		FrameDuration:      time.Second / 60,
		ClientIdleTimeout:  time.Minute,
		LogSummaryInterval: time.Minute,
		World: worldConfig{
			Width:     1024,
			Height:    768,
			MaxDepth:  4,
			MaxBoids:  100,
			BoidCount: 10,
			StarCount: 10,
		},
	}
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validateConfig(testConfig()))

	tests := []struct {
		name   string
		modify func(c *config)
	}{
		{
			name:   "invalid public endpoint",
			modify: func(c *config) { c.PublicEndpoint = "localhost" },
		},
		{
			name:   "zero frame duration",
			modify: func(c *config) { c.FrameDuration = 0 },
		},
		{
			name:   "zero client idle timeout",
			modify: func(c *config) { c.ClientIdleTimeout = 0 },
		},
		{
			name:   "negative log summary interval",
			modify: func(c *config) { c.LogSummaryInterval = -time.Second },
		},
		{
			name:   "zero world width",
			modify: func(c *config) { c.World.Width = 0 },
		},
		{
			name:   "negative world height",
			modify: func(c *config) { c.World.Height = -1 },
		},
		{
			name:   "zero max depth",
			modify: func(c *config) { c.World.MaxDepth = 0 },
		},
		{
			name:   "negative star count",
			modify: func(c *config) { c.World.StarCount = -1 },
		},
		{
			name:   "more boids than capacity",
			modify: func(c *config) { c.World.BoidCount = 101 },
		},
		{
			name:   "negative max boids",
			modify: func(c *config) { c.World.MaxBoids = -1 },
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := testConfig()
			test.modify(&c)
			require.Error(t, validateConfig(c))
		})
	}
}

func TestSimulationConfig(t *testing.T) {
	c := simulationConfig(testConfig())
	require.Equal(t, geom.NewRect(0, 0, 1024, 768), c.World)
	require.Equal(t, 4, c.MaxDepth)
	require.Equal(t, 100, c.MaxBoids)
	require.Equal(t, 10, c.BoidCount)
	require.Equal(t, 10, c.StarCount)
	require.NoError(t, c.Validate())

	// Tuning constants keep their defaults.
	require.Equal(t, simulation.DefaultConfig().Boid, c.Boid)
}

func TestNewRand(t *testing.T) {
	require.Nil(t, newRand(0))

	a := newRand(42)
	b := newRand(42)
	require.Equal(t, a.Uint64(), b.Uint64())
}
