// Package memory implements per-caller conversation history with a bounded
// retention window. The system turn is pinned at index 0 and never evicted;
// older user/assistant turns are dropped FIFO once the cap is exceeded.
package memory

import (
	"log/slog"
	"time"

	"github.com/BTreeMap/CallPipe/internal/models"
)

// DefaultCap is the default number of retained non-system turns.
const DefaultCap = 20

// Memory is the ordered turn history for one caller. It is not internally
// synchronized: the owning session's lock serializes all access, and only
// the response coordinator mutates it.
type Memory struct {
	turns []models.Turn
	cap   int
}

// New creates a Memory seeded with the system turn. cap bounds the number of
// retained non-system turns; values below 2 fall back to DefaultCap so a
// user/assistant pair always fits.
func New(systemPrompt string, cap int) *Memory {
	if cap < 2 {
		cap = DefaultCap
	}
	return &Memory{
		turns: []models.Turn{{Role: models.RoleSystem, Content: systemPrompt, Timestamp: time.Now()}},
		cap:   cap,
	}
}

// Append adds a turn to the end of the history and evicts the oldest
// non-system turns if the cap is exceeded. System turns cannot be appended;
// there is exactly one, always at index 0.
func (m *Memory) Append(turn models.Turn) {
	if turn.Role == models.RoleSystem {
		slog.Warn("Memory.Append: ignoring system turn append; system turn is pinned")
		return
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	m.turns = append(m.turns, turn)
	m.evict()
}

// evict drops oldest non-system turns until the retained count is within the
// cap, then drops a leading orphaned assistant turn so eviction never leaves
// a reply without the user turn that prompted it. Odd-length histories after
// an interruption make exact pairing best-effort only.
func (m *Memory) evict() {
	evicted := 0
	for len(m.turns)-1 > m.cap {
		m.turns = append(m.turns[:1], m.turns[2:]...)
		evicted++
	}
	if len(m.turns) > 1 && m.turns[1].Role == models.RoleAssistant {
		m.turns = append(m.turns[:1], m.turns[2:]...)
		evicted++
	}
	if evicted > 0 {
		slog.Debug("Memory.evict: evicted oldest turns", "evicted", evicted, "retained", len(m.turns)-1)
	}
}

// Snapshot returns a read-only ordered copy of the history for the reply
// generator. Callers must not mutate the returned slice's contents.
func (m *Memory) Snapshot() []models.Turn {
	out := make([]models.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Len returns the number of retained non-system turns.
func (m *Memory) Len() int {
	return len(m.turns) - 1
}

// Cap returns the configured retention cap for non-system turns.
func (m *Memory) Cap() int {
	return m.cap
}

// System returns the pinned system turn content.
func (m *Memory) System() string {
	return m.turns[0].Content
}
