package models

import (
	"sync"

	"github.com/aukilabs/swarm/geom"
)

// A client watching a session.
type Viewer struct {
	ID       uint32
	ClientID string

	mutex sync.RWMutex
	view  geom.Rect
}

// SetView sets the region of the world the viewer looks at.
func (v *Viewer) SetView(view geom.Rect) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	v.view = view
}

// View returns the region of the world the viewer looks at. A zero region
// means the whole world.
func (v *Viewer) View() geom.Rect {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	return v.view
}
