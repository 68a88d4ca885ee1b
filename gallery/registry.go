package gallery

import (
	"context"
	"sync"
	"time"
)

// Releaser clears whatever a session kept outside the gallery, like its token.
type Releaser interface {
	Release(ctx context.Context, sessionID string) error
}

type entry struct {
	controller *Controller
	owner      string
	lastSeen   time.Time
}

// Registry holds every mounted gallery, keyed by view. A view is a single
// page load; its owner is the browser session that loaded it, so several
// tabs or a reload never share a gallery.
type Registry struct {
	m           sync.Mutex
	controllers map[string]*entry
	factory     func(sessionID string) *Controller
	releaser    Releaser
	now         func() time.Time
}

func NewRegistry(factory func(sessionID string) *Controller, releaser Releaser) *Registry {
	return &Registry{
		controllers: map[string]*entry{},
		factory:     factory,
		releaser:    releaser,
		now:         time.Now,
	}
}

// Mount creates a fresh gallery for the view, replacing any earlier one
// mounted under the same id.
func (r *Registry) Mount(viewID, owner string) *Controller {
	c := r.factory(viewID)
	r.m.Lock()
	defer r.m.Unlock()
	if existing, ok := r.controllers[viewID]; ok {
		existing.controller.Release()
	}
	r.controllers[viewID] = &entry{controller: c, owner: owner, lastSeen: r.now()}
	return c
}

func (r *Registry) Get(viewID string) (*Controller, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	e, ok := r.controllers[viewID]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.controller, true
}

// Lookup is Get restricted to views mounted by owner.
func (r *Registry) Lookup(viewID, owner string) (*Controller, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	e, ok := r.controllers[viewID]
	if !ok || owner == "" || e.owner != owner {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.controller, true
}

// Release unmounts the view's gallery and clears its stored values.
func (r *Registry) Release(ctx context.Context, viewID string) error {
	r.m.Lock()
	if e, ok := r.controllers[viewID]; ok {
		e.controller.Release()
		delete(r.controllers, viewID)
	}
	r.m.Unlock()
	if r.releaser == nil {
		return nil
	}
	return r.releaser.Release(ctx, viewID)
}

// SweepIdle releases every gallery that has not been touched since idleSince
// and returns the view ids that were dropped.
func (r *Registry) SweepIdle(ctx context.Context, idleSince time.Time) ([]string, error) {
	r.m.Lock()
	var idle []string
	for id, e := range r.controllers {
		if e.lastSeen.Before(idleSince) {
			idle = append(idle, id)
		}
	}
	r.m.Unlock()

	var firstErr error
	for _, id := range idle {
		if err := r.Release(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return idle, firstErr
}

func (r *Registry) Len() int {
	r.m.Lock()
	defer r.m.Unlock()
	return len(r.controllers)
}
