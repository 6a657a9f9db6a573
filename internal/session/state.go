// Package session manages per-caller call state and its lifecycle: lazy
// creation on first contact, idempotent destruction on goodbye or idle
// timeout, and per-caller serialization of turn processing.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/CallPipe/internal/memory"
	"github.com/BTreeMap/CallPipe/internal/models"
)

// State is the mutable per-caller record. All fields except the embedded
// mutex are guarded by Lock/Unlock; the registry hands out at most one State
// per caller identity, and holders must serialize turn processing through it.
type State struct {
	Caller string

	// TurnCount increments once per processed non-empty utterance that
	// reaches the reply generator path.
	TurnCount int
	// LastActivity is updated on every inbound event, including empty ones.
	LastActivity time.Time
	// Sentiment is recomputed per turn, not historically averaged.
	Sentiment models.Sentiment
	// Topic is set once by the first non-general classification and never
	// overwritten; an explicit topic change clears it first.
	Topic string
	// SilenceStreak counts consecutive empty/low-confidence turns since the
	// last accepted turn.
	SilenceStreak int
	// Speaking is true while a reply identified by ResponseID is being
	// delivered and may still be abandoned.
	Speaking   bool
	ResponseID string
	// Interruptions counts replies abandoned mid-delivery.
	Interruptions int
	// LastUserText is the previous accepted utterance, handed to the
	// classifier as optional context.
	LastUserText string

	CreatedAt time.Time
	Memory    *memory.Memory

	mu sync.Mutex
}

// Lock serializes turn processing for this caller.
func (s *State) Lock() { s.mu.Lock() }

// Unlock releases the per-caller lock.
func (s *State) Unlock() { s.mu.Unlock() }

// Touch updates the last-activity timestamp.
func (s *State) Touch(now time.Time) {
	s.LastActivity = now
}

// RecordSilence increments the silence streak and returns the new value.
func (s *State) RecordSilence() int {
	s.SilenceStreak++
	return s.SilenceStreak
}

// ResetSilence clears the silence streak after any non-empty classification.
func (s *State) ResetSilence() {
	s.SilenceStreak = 0
}

// AcceptTurn counts one processed utterance and records its sentiment.
func (s *State) AcceptTurn(sent models.Sentiment) {
	s.TurnCount++
	s.Sentiment = sent
}

// SetTopicIfUnset stores topic only when none is set yet and topic is
// non-general. Returns true when the topic was stored.
func (s *State) SetTopicIfUnset(topic string) bool {
	if s.Topic != "" || topic == "" {
		return false
	}
	s.Topic = topic
	return true
}

// ClearTopic forgets the stored topic so the next classification may set a
// new one. Used on explicit topic changes.
func (s *State) ClearTopic() {
	s.Topic = ""
}

// BeginDelivery marks a new reply as in delivery and returns its response
// handle. Any prior handle is implicitly superseded.
func (s *State) BeginDelivery() string {
	s.ResponseID = uuid.NewString()
	s.Speaking = true
	return s.ResponseID
}

// CompleteDelivery clears the speaking flag if id is still the current
// response. Completing a superseded or unknown handle is a no-op.
func (s *State) CompleteDelivery(id string) {
	if s.Speaking && s.ResponseID == id {
		s.Speaking = false
		s.ResponseID = ""
	}
}

// Supersede abandons the reply currently in delivery, increments the
// interruption counter, and returns the abandoned handle. Returns "" when
// nothing was in delivery.
func (s *State) Supersede() string {
	if !s.Speaking {
		return ""
	}
	old := s.ResponseID
	s.Speaking = false
	s.ResponseID = ""
	s.Interruptions++
	return old
}

// IsCurrent reports whether id identifies the reply still in delivery. The
// delivery layer polls this between chunks to honor logical abandonment.
func (s *State) IsCurrent(id string) bool {
	return s.Speaking && id != "" && s.ResponseID == id
}
