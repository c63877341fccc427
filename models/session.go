package models

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/swarm/geom"
	"github.com/aukilabs/swarm/simulation"
	"github.com/google/uuid"
)

// Session represents a running simulation that viewers can watch and steer.
// Every access to the world goes through the session, which serializes them.
type Session struct {
	ID          uint32
	SessionUUID string

	frameDuration time.Duration

	worldMutex sync.Mutex
	world      *simulation.World
	paused     bool
	lastStats  simulation.Stats

	viewerIDs   SequentialIDGenerator
	viewerMutex sync.RWMutex
	viewers     map[uint32]*Viewer

	running         atomic.Bool
	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func()
	frameMutex      sync.RWMutex

	closeOnce sync.Once
}

func NewSession(id uint32, frameDuration time.Duration, world *simulation.World) *Session {
	s := &Session{
		ID:             id,
		SessionUUID:    uuid.New().String(),
		frameDuration:  frameDuration,
		world:          world,
		closeFrameChan: make(chan struct{}, 1),
		frameTicker:    time.NewTicker(frameDuration),
		viewers:        make(map[uint32]*Viewer),
		frameHandlers:  make(map[uint32]func()),
	}

	instrumentBoids(s.SessionUUID, world.Boids.Size())
	return s
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.frameTicker.Stop()
		s.closeFrameChan <- struct{}{}
		instrumentDeleteSession(s.SessionUUID)
	})
}

func (s *Session) NewViewerID() uint32 {
	return s.viewerIDs.New()
}

func (s *Session) AddViewer(v *Viewer) {
	s.viewerMutex.Lock()
	defer s.viewerMutex.Unlock()

	s.viewers[v.ID] = v
}

// RemoveViewer removes the viewer from the session and makes its id available
// to later viewers.
func (s *Session) RemoveViewer(v *Viewer) {
	s.viewerMutex.Lock()
	defer s.viewerMutex.Unlock()

	if _, ok := s.viewers[v.ID]; !ok {
		return
	}
	delete(s.viewers, v.ID)
	s.viewerIDs.Reuse(v.ID)
}

func (s *Session) GetViewers() []*Viewer {
	s.viewerMutex.RLock()
	defer s.viewerMutex.RUnlock()

	viewers := make([]*Viewer, 0, len(s.viewers))
	for _, v := range s.viewers {
		viewers = append(viewers, v)
	}
	return viewers
}

func (s *Session) ViewerCount() int {
	s.viewerMutex.RLock()
	defer s.viewerMutex.RUnlock()

	return len(s.viewers)
}

// World returns the region covered by the simulation and its boid capacity.
func (s *Session) World() (geom.Rect, int) {
	s.worldMutex.Lock()
	defer s.worldMutex.Unlock()

	return s.world.Config.World, s.world.Boids.Capacity()
}

// SetKeys replaces the keys held on the ship.
func (s *Session) SetKeys(keys simulation.Keys) {
	s.worldMutex.Lock()
	defer s.worldMutex.Unlock()

	s.world.Keys = keys
}

func (s *Session) Keys() simulation.Keys {
	s.worldMutex.Lock()
	defer s.worldMutex.Unlock()

	return s.world.Keys
}

// Explode sets off an explosion at pos and returns the number of boids
// killed.
func (s *Session) Explode(pos geom.Vec2) int {
	s.worldMutex.Lock()
	defer s.worldMutex.Unlock()

	killed := s.world.Explode(pos)
	instrumentKills(s.SessionUUID, killed)
	instrumentBoids(s.SessionUUID, s.world.Boids.Size())
	return killed
}

// TogglePause pauses or resumes the simulation and returns whether it is now
// paused.
func (s *Session) TogglePause() bool {
	s.worldMutex.Lock()
	defer s.worldMutex.Unlock()

	s.paused = !s.paused
	logs.WithTag("session_uuid", s.SessionUUID).
		WithTag("paused", s.paused).
		Info("session pause toggled")
	return s.paused
}

func (s *Session) Paused() bool {
	s.worldMutex.Lock()
	defer s.worldMutex.Unlock()

	return s.paused
}

// Tick advances the world by dt seconds unless the session is paused.
func (s *Session) Tick(dt float64) simulation.Stats {
	s.worldMutex.Lock()
	defer s.worldMutex.Unlock()

	if s.paused {
		return s.lastStats
	}

	start := time.Now()
	stats := simulation.Update(s.world, dt)
	instrumentTick(s.SessionUUID, time.Since(start), stats)

	if stats.Boids != s.lastStats.Boids {
		logs.WithTag("session_uuid", s.SessionUUID).
			WithTag("boids", stats.Boids).
			WithTag("killed", stats.Killed).
			WithTag("spawned", stats.Spawned).
			Debug("boid population changed")
	}

	s.lastStats = stats
	return stats
}

// Snapshot returns what can be seen of the world through view.
func (s *Session) Snapshot(view geom.Rect) simulation.Snapshot {
	s.worldMutex.Lock()
	defer s.worldMutex.Unlock()

	snapshot := s.world.Snapshot(view)
	snapshot.Paused = s.paused
	return snapshot
}

// FrameDropped records a frame that could not be delivered to a viewer.
func (s *Session) FrameDropped() {
	instrumentDroppedFrame(s.SessionUUID)
}

// Running reports whether the session is dispatching frames.
func (s *Session) Running() bool {
	return s.running.Load()
}

func (s *Session) HandleFrame(h func()) (cancel func()) {
	s.frameMutex.Lock()
	defer s.frameMutex.Unlock()

	id := s.frameHandlerIDs.New()
	s.frameHandlers[id] = h

	return func() {
		s.frameMutex.Lock()
		defer s.frameMutex.Unlock()

		if _, ok := s.frameHandlers[id]; !ok {
			return
		}
		delete(s.frameHandlers, id)
		s.frameHandlerIDs.Reuse(id)
	}
}

// StartDispatchFrames ticks the world on every frame and then calls the frame
// handlers. It blocks until the session is closed.
func (s *Session) StartDispatchFrames() {
	s.startFrameOnce.Do(func() {
		logs.WithTag("session_uuid", s.SessionUUID).
			WithTag("frame_duration", s.frameDuration).
			Info("session started")
		defer logs.WithTag("session_uuid", s.SessionUUID).
			Info("session stopped")

		s.running.Store(true)
		defer s.running.Store(false)

		dt := s.frameDuration.Seconds()

		for {
			select {
			case <-s.closeFrameChan:
				return

			case <-s.frameTicker.C:
				s.Tick(dt)

				s.frameMutex.RLock()
				for _, h := range s.frameHandlers {
					h()
				}
				s.frameMutex.RUnlock()
			}
		}
	})
}
