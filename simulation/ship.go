package simulation

import (
	"math"

	"github.com/aukilabs/swarm/geom"
)

// steerShip applies the held keys to the ship and fires when the cannon is
// ready. It reports whether a shot was fired.
func (w *World) steerShip(dt float64) bool {
	c := w.Config.Ship
	s := &w.Ship
	keys := w.Keys

	forward := geom.FromAngle(s.Heading)
	side := geom.FromAngle(s.Heading + math.Pi/2)

	var accel geom.Vec2
	accel = accel.Add(forward.Mul(c.MaxAccel * keys.axis(KeyThrust)))
	accel = accel.Sub(side.Mul(c.MaxAccel / 2 * keys.axis(KeyStrafeLeft)))
	accel = accel.Sub(forward.Mul(c.MaxAccel / 2 * keys.axis(KeyReverse)))
	accel = accel.Add(side.Mul(c.MaxAccel / 2 * keys.axis(KeyStrafeRight)))
	s.Acceleration = accel

	yaw := c.MaxYaw
	if keys.Has(KeyAim) {
		yaw = c.AimYaw
	}
	s.Heading -= yaw * keys.axis(KeyTurnLeft) * dt
	s.Heading += yaw * keys.axis(KeyTurnRight) * dt

	s.Velocity = s.Velocity.Add(accel.Mul(dt)).Limit(c.MaxSpeed)
	s.Position = s.Position.Add(s.Velocity.Mul(dt))
	if edgeBounce(s, w.Config.World) {
		s.Heading = s.Velocity.Theta()
	}

	fired := false
	if keys.Has(KeyFire) && w.Clock-w.LastFired >= w.Config.Shot.Cooldown {
		w.LastFired = w.Clock
		w.Shots = append(w.Shots, Shot{
			Rect:     geom.Rect{Position: s.Position, Size: w.Config.Shot.Size},
			Velocity: s.Velocity.Add(geom.FromAngle(s.Heading).Mul(w.Config.Shot.Speed)),
			Heading:  s.Heading,
		})
		fired = true
	}

	s.Heading = geom.NormalizeAngle(s.Heading)
	return fired
}

// decayShipSpeed slows the ship down by a factor of dt per second.
func (w *World) decayShipSpeed(dt float64) {
	w.Ship.Velocity = w.Ship.Velocity.Mul(1 - dt)
}
