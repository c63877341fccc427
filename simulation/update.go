package simulation

import (
	"time"
)

// Stats summarizes what happened during a tick.
type Stats struct {
	Boids      int
	Spawned    int
	Killed     int
	ShotsFired int
	Explosions int
}

// Update advances the world by dt seconds.
//
// Accelerations are all computed from the positions of the previous tick
// before any boid is moved, so no agent sees a partially updated flock.
func Update(w *World, dt float64) Stats {
	var stats Stats

	w.Clock += time.Duration(dt * float64(time.Second))
	w.Tick++

	if w.Keys.Has(KeyNewBoid) && w.Boids.HasRoom() {
		if _, err := w.SpawnBoid(); err == nil {
			stats.Spawned++
		}
	}

	if w.steerShip(dt) {
		stats.ShotsFired++
	}

	boids := w.Boids.Items()
	for _, h := range boids {
		w.updateBoidAcceleration(h, dt)
	}

	w.decayExplosions(dt)

	for _, h := range boids {
		w.updateBoidPosition(h, dt)
	}

	stats.Killed = w.updateShots(dt)
	w.decayShipSpeed(dt)

	stats.Boids = w.Boids.Size()
	stats.Explosions = len(w.Explosions)
	return stats
}
