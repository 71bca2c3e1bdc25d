// Package state holds the authoritative application state: the active
// session, language preference, last known location, and the append-only
// audit history. The container is constructed once and injected into every
// component that needs it.
package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/miktsoan/core/internal/domain"
)

// Region identifies which part of the state a change notification refers to.
type Region string

const (
	RegionSession  Region = "session"
	RegionLanguage Region = "language"
	RegionLocation Region = "location"
	RegionHistory  Region = "history"
)

// Event is delivered to subscribers after a mutation commits.
type Event struct {
	Region   Region
	Language domain.Language // set for RegionLanguage
}

// Subscriber receives state change notifications. Subscribers run inline
// under the container lock and must not call back into the container.
type Subscriber func(Event)

// Container is the process-wide application state. All mutations are
// serialized through an internal mutex; history updates are not commutative
// under interleaving, so there is exactly one writer at a time.
type Container struct {
	mu       sync.Mutex
	session  *domain.UserProfile
	language domain.Language
	location *domain.GeoLocation
	history  []domain.HistoryEvent // newest first

	store       SnapshotStore
	subscribers []Subscriber
}

// New creates a container with default state and the given snapshot store.
// A nil store disables persistence.
func New(store SnapshotStore) *Container {
	return &Container{
		language: domain.DefaultLanguage,
		store:    store,
	}
}

// Subscribe registers a change listener. Not safe to call concurrently with
// mutations; register subscribers during startup, before Rehydrate.
func (c *Container) Subscribe(fn Subscriber) {
	c.subscribers = append(c.subscribers, fn)
}

// Session returns the active session, or nil when logged out.
func (c *Container) Session() *domain.UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Language returns the current language preference.
func (c *Container) Language() domain.Language {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

// Location returns the last known location, or nil.
func (c *Container) Location() *domain.GeoLocation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.location
}

// History returns a copy of the audit log, newest first.
func (c *Container) History() []domain.HistoryEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.HistoryEvent, len(c.history))
	copy(out, c.history)
	return out
}

// SetSession replaces the active session. Passing nil is the logout path.
func (c *Container) SetSession(ctx context.Context, session *domain.UserProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
	c.persistLocked(ctx)
	c.notifyLocked(Event{Region: RegionSession})
}

// SetLanguage replaces the language preference and notifies subscribers so
// the presentation layer can update its text direction.
func (c *Container) SetLanguage(ctx context.Context, lang domain.Language) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.language = lang
	c.persistLocked(ctx)
	c.notifyLocked(Event{Region: RegionLanguage, Language: lang})
}

// SetLocation replaces the last known location. Location is not part of the
// persisted subset.
func (c *Container) SetLocation(loc *domain.GeoLocation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.location = loc
	c.notifyLocked(Event{Region: RegionLocation})
}

// Logout clears the session. History and language are kept.
func (c *Container) Logout(ctx context.Context) {
	c.SetSession(ctx, nil)
}

// AppendHistory stamps and prepends an audit event. The event ID and
// timestamp are generated here; the user ID is taken from the active session
// or falls back to the guest sentinel. Append is best-effort and never fails
// the action that produced the event.
func (c *Container) AppendHistory(ctx context.Context, action domain.Action, metadata map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	userID := domain.GuestUserID
	if c.session != nil {
		userID = c.session.ID
	}

	event := domain.HistoryEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Metadata:  metadata,
		Timestamp: time.Now(),
	}

	c.history = append([]domain.HistoryEvent{event}, c.history...)
	c.persistLocked(ctx)
	c.notifyLocked(Event{Region: RegionHistory})
}

func (c *Container) notifyLocked(ev Event) {
	for _, fn := range c.subscribers {
		fn(ev)
	}
}

func (c *Container) persistLocked(ctx context.Context) {
	if c.store == nil {
		return
	}
	blob, err := encodeSnapshot(c.session, c.language, c.history)
	if err != nil {
		slog.Warn("Failed to encode state snapshot", "error", err)
		return
	}
	if err := c.store.Save(ctx, blob); err != nil {
		slog.Warn("Failed to persist state snapshot", "error", err)
	}
}
