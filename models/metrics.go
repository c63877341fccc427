package models

import (
	"time"

	"github.com/aukilabs/swarm/simulation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	sessionLabel = "session_uuid"
)

var (
	sessionTickLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "session_tick_latency",
		Help:    "The time to advance the simulation by one frame.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.025, 0.05, 0.1},
	}, []string{sessionLabel})

	sessionBoids = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "session_boids",
		Help: "The number of boids alive.",
	}, []string{sessionLabel})

	sessionBoidsKilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_boids_killed",
		Help: "The number of boids killed by explosions.",
	}, []string{sessionLabel})

	sessionBoidsSpawned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_boids_spawned",
		Help: "The number of boids spawned after the world was created.",
	}, []string{sessionLabel})

	sessionShotsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_shots_fired",
		Help: "The number of shots fired by the ship.",
	}, []string{sessionLabel})

	sessionExplosions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "session_explosions",
		Help: "The number of active explosions.",
	}, []string{sessionLabel})

	sessionDroppedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_dropped_frames",
		Help: "The number of frames that were not delivered to a viewer.",
	}, []string{sessionLabel})
)

func instrumentTick(sessionUUID string, latency time.Duration, stats simulation.Stats) {
	labels := prometheus.Labels{sessionLabel: sessionUUID}

	sessionTickLatency.With(labels).Observe(latency.Seconds())
	sessionBoids.With(labels).Set(float64(stats.Boids))
	sessionExplosions.With(labels).Set(float64(stats.Explosions))

	if stats.Killed != 0 {
		sessionBoidsKilled.With(labels).Add(float64(stats.Killed))
	}
	if stats.Spawned != 0 {
		sessionBoidsSpawned.With(labels).Add(float64(stats.Spawned))
	}
	if stats.ShotsFired != 0 {
		sessionShotsFired.With(labels).Add(float64(stats.ShotsFired))
	}
}

func instrumentBoids(sessionUUID string, boids int) {
	sessionBoids.
		With(prometheus.Labels{sessionLabel: sessionUUID}).
		Set(float64(boids))
}

func instrumentKills(sessionUUID string, killed int) {
	sessionBoidsKilled.
		With(prometheus.Labels{sessionLabel: sessionUUID}).
		Add(float64(killed))
}

func instrumentDroppedFrame(sessionUUID string) {
	sessionDroppedFrames.
		With(prometheus.Labels{sessionLabel: sessionUUID}).
		Inc()
}

func instrumentDeleteSession(sessionUUID string) {
	labels := prometheus.Labels{sessionLabel: sessionUUID}

	sessionTickLatency.Delete(labels)
	sessionBoids.Delete(labels)
	sessionBoidsKilled.Delete(labels)
	sessionBoidsSpawned.Delete(labels)
	sessionShotsFired.Delete(labels)
	sessionExplosions.Delete(labels)
	sessionDroppedFrames.Delete(labels)
}
