// README: Session manager. Creates, looks up and closes session controllers.
package controller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"compass/internal/events"
	"compass/internal/modules/navigation"
)

type Manager struct {
	ctx  context.Context
	deps Deps
	cfg  Config

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	ctrl        *Controller
	deviceToken string
}

// NewManager creates a manager. Session loops stop when ctx is cancelled.
func NewManager(ctx context.Context, deps Deps, cfg Config) *Manager {
	if deps.Publisher == nil {
		deps.Publisher = events.Nop{}
	}
	return &Manager{
		ctx:      ctx,
		deps:     deps,
		cfg:      cfg.withDefaults(),
		sessions: make(map[string]*entry),
	}
}

type sessionEvent struct {
	SessionID string    `json:"session_id"`
	Owner     string    `json:"owner"`
	At        time.Time `json:"at"`
}

// Create opens a session for owner. deviceToken is optional and enables
// push delivery of voice instructions.
func (m *Manager) Create(owner, deviceToken string) *Controller {
	id := uuid.NewString()
	c := newController(m.ctx, id, owner, m.deps, m.cfg)

	m.mu.Lock()
	m.sessions[id] = &entry{ctrl: c, deviceToken: deviceToken}
	m.mu.Unlock()

	log.Printf("controller: session %s opened for %s", id, owner)
	events.PublishAsync(m.deps.Publisher, events.KeySessionOpened, sessionEvent{SessionID: id, Owner: owner, At: time.Now()})
	return c
}

// Get returns session id if owner owns it.
func (m *Manager) Get(id, owner string) (*Controller, error) {
	c, ok := m.Lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	if c.owner != owner {
		return nil, ErrForbidden
	}
	return c, nil
}

// Lookup returns a session without an ownership check.
func (m *Manager) Lookup(id string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return e.ctrl, true
}

// DeviceToken returns the push token registered for a session.
func (m *Manager) DeviceToken(id string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.sessions[id]; ok {
		return e.deviceToken
	}
	return ""
}

// Close stops owner's session and deletes its objects and track.
func (m *Manager) Close(ctx context.Context, id, owner string) error {
	c, err := m.Get(id, owner)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	c.close(ctx)
	log.Printf("controller: session %s closed", id)
	events.PublishAsync(m.deps.Publisher, events.KeySessionClosed, sessionEvent{SessionID: id, Owner: owner, At: time.Now()})
	return nil
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown stops every session loop. Stored objects are kept.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.sessions {
		e.ctrl.stop()
		delete(m.sessions, id)
	}
}

// EngineName names the routing engine in use.
func (m *Manager) EngineName() string {
	if m.deps.Engine == nil {
		return ""
	}
	return m.deps.Engine.Name()
}

// LocationFix routes fixes streamed by a device to its session.
func (m *Manager) LocationFix(ctx context.Context, sessionID string, reports []navigation.Report) error {
	c, ok := m.Lookup(sessionID)
	if !ok {
		return ErrNotFound
	}
	_, err := c.LocationFix(ctx, navigation.Locations(reports, time.Now()))
	return err
}

// LocationError routes a device's location provider failure to its session.
func (m *Manager) LocationError(ctx context.Context, sessionID, message string) error {
	c, ok := m.Lookup(sessionID)
	if !ok {
		return ErrNotFound
	}
	return c.LocationError(ctx, errors.New(message))
}
