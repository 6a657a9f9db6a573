package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/CallPipe/internal/memory"
	"github.com/BTreeMap/CallPipe/internal/models"
)

// Registry maps caller identities to their State. Creation is atomic per
// caller; distinct callers never contend beyond the brief map lock, and the
// steady-state turn path holds only the per-caller lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*State

	systemPrompt string
	memoryCap    int
	now          func() time.Time
}

// NewRegistry creates an empty registry. Every new session's Memory is
// seeded with systemPrompt and bounded by memoryCap.
func NewRegistry(systemPrompt string, memoryCap int) *Registry {
	return &Registry{
		sessions:     make(map[string]*State),
		systemPrompt: systemPrompt,
		memoryCap:    memoryCap,
		now:          time.Now,
	}
}

// GetOrCreate returns the existing State for caller, or atomically creates a
// fresh one (turn counter 0, silence streak 0, sentiment neutral, topic
// unset, speaking flag false). The second return is true when a new session
// was created.
func (r *Registry) GetOrCreate(caller string) (*State, bool) {
	r.mu.RLock()
	st, ok := r.sessions[caller]
	r.mu.RUnlock()
	if ok {
		return st, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.sessions[caller]; ok {
		return st, false
	}
	now := r.now()
	st = &State{
		Caller:       caller,
		Sentiment:    models.SentimentNeutral,
		LastActivity: now,
		CreatedAt:    now,
		Memory:       memory.New(r.systemPrompt, r.memoryCap),
	}
	r.sessions[caller] = st
	slog.Info("Registry.GetOrCreate: created session", "caller", caller)
	return st, true
}

// Get returns the State for caller if one exists.
func (r *Registry) Get(caller string) (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.sessions[caller]
	return st, ok
}

// Destroy removes the caller's State and Conversation Memory entirely.
// Idempotent: destroying a missing or already-destroyed session is a no-op.
func (r *Registry) Destroy(caller string) {
	r.mu.Lock()
	_, existed := r.sessions[caller]
	delete(r.sessions, caller)
	r.mu.Unlock()
	if existed {
		slog.Info("Registry.Destroy: destroyed session", "caller", caller)
	} else {
		slog.Debug("Registry.Destroy: no session to destroy", "caller", caller)
	}
}

// Touch updates the caller's last-activity timestamp if a session exists.
// Called on every inbound event, including partial and empty ones.
func (r *Registry) Touch(caller string) {
	r.mu.RLock()
	st, ok := r.sessions[caller]
	r.mu.RUnlock()
	if !ok {
		return
	}
	st.Lock()
	st.Touch(r.now())
	st.Unlock()
}

// Callers returns the identities with an active session.
func (r *Registry) Callers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for caller := range r.sessions {
		out = append(out, caller)
	}
	return out
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SweepIdle destroys sessions whose last activity is older than idleFor and
// returns the number removed. Run periodically by the janitor so the
// registry cannot grow without bound when callers vanish mid-call.
func (r *Registry) SweepIdle(idleFor time.Duration) int {
	cutoff := r.now().Add(-idleFor)

	r.mu.RLock()
	var stale []string
	for caller, st := range r.sessions {
		st.Lock()
		idle := st.LastActivity.Before(cutoff)
		st.Unlock()
		if idle {
			stale = append(stale, caller)
		}
	}
	r.mu.RUnlock()

	for _, caller := range stale {
		r.Destroy(caller)
	}
	if len(stale) > 0 {
		slog.Info("Registry.SweepIdle: removed idle sessions", "count", len(stale), "idle_for", idleFor)
	}
	return len(stale)
}
