package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultIdleTimeout is how long a session may go untouched before it is evicted.
	DefaultIdleTimeout = 30 * time.Minute
	// DefaultMaxSessions caps the sessions a registry holds at once.
	DefaultMaxSessions = 1000
)

// Limits bound the sessions a Registry keeps. Zero values select the defaults.
type Limits struct {
	IdleTimeout time.Duration
	MaxSessions int
}

// Registry keeps the live sessions of a running server. A session is dropped when its page is replaced
// (Remove), when it has been idle longer than the idle timeout, or when the registry is full and it is
// the least recently used.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry

	// uses orders sessions by recency of use.
	uses uint64

	replier Replier
	opts    Options
	limits  Limits

	sessionLogger *slog.Logger
	logger        *slog.Logger
}

type entry struct {
	session  *Session
	lastSeen time.Time
	lastUse  uint64
}

// NewRegistry creates an empty Registry whose sessions talk to replier.
func NewRegistry(replier Replier, opts Options, logger *slog.Logger) *Registry {
	return NewRegistryWithLimits(replier, opts, Limits{}, logger)
}

// NewRegistryWithLimits creates an empty Registry bounded by limits.
func NewRegistryWithLimits(replier Replier, opts Options, limits Limits, logger *slog.Logger) *Registry {
	if limits.IdleTimeout <= 0 {
		limits.IdleTimeout = DefaultIdleTimeout
	}
	if limits.MaxSessions <= 0 {
		limits.MaxSessions = DefaultMaxSessions
	}

	return &Registry{
		sessions:      make(map[string]*entry),
		replier:       replier,
		opts:          opts,
		limits:        limits,
		sessionLogger: logger,
		logger:        logger.With(slog.String("module", "registry")),
	}
}

// Create starts a new session under a fresh id and seeds its greeting. Idle sessions are evicted first,
// then the least recently used one if the registry is still full.
func (r *Registry) Create(ctx context.Context) *Session {
	s := NewSession(uuid.New().String(), r.replier, r.opts, r.sessionLogger)

	r.mu.Lock()
	now := time.Now()
	r.evictIdle(now)
	if len(r.sessions) >= r.limits.MaxSessions {
		r.evictOldest()
	}
	r.uses++
	r.sessions[s.ID] = &entry{session: s, lastSeen: now, lastUse: r.uses}
	r.mu.Unlock()

	s.Start(ctx)
	return s
}

// Get returns the session with the given id and marks it as used.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	now := time.Now()
	if now.Sub(e.lastSeen) > r.limits.IdleTimeout {
		r.remove(id, "idle")
		return nil, false
	}
	r.uses++
	e.lastSeen = now
	e.lastUse = r.uses
	return e.session, true
}

// Remove drops the session with the given id. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; ok {
		r.remove(id, "replaced")
	}
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

func (r *Registry) evictIdle(now time.Time) {
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.limits.IdleTimeout {
			r.remove(id, "idle")
		}
	}
}

func (r *Registry) evictOldest() {
	var oldestID string
	var oldest uint64
	for id, e := range r.sessions {
		if oldestID == "" || e.lastUse < oldest {
			oldestID, oldest = id, e.lastUse
		}
	}
	if oldestID != "" {
		r.remove(oldestID, "full")
	}
}

func (r *Registry) remove(id, reason string) {
	delete(r.sessions, id)
	r.logger.Debug("Session removed", slog.String("session", id), slog.String("reason", reason))
}
