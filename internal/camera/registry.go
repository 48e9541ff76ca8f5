package camera

import (
	"fmt"
	"sync"
)

// Registry - the camera table, keyed by the wire camera id. The mutex is
// held only for lookups, never across I/O.
type Registry struct {
	mu   sync.Mutex
	cams map[byte]*Camera
}

func NewRegistry() *Registry {
	return &Registry{cams: map[byte]*Camera{}}
}

func (r *Registry) Add(c *Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cams[c.ID]; ok {
		return fmt.Errorf("camera: duplicate id %d", c.ID)
	}
	r.cams[c.ID] = c
	return nil
}

func (r *Registry) Get(id byte) (*Camera, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cams[id]
	return c, ok
}

// All returns a snapshot so callers never hold the table lock across I/O.
func (r *Registry) All() []*Camera {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Camera, 0, len(r.cams))
	for _, c := range r.cams {
		out = append(out, c)
	}
	return out
}
