// Package models defines the core data structures for CallPipe.
//
// It includes types for call turns, classified utterances, and outbound
// directives, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	// RoleSystem is the pinned instruction turn at the head of every history.
	RoleSystem Role = "system"
	// RoleUser is a turn spoken by the caller.
	RoleUser Role = "user"
	// RoleAssistant is a turn spoken by the assistant.
	RoleAssistant Role = "assistant"
)

// Turn is a single role-tagged entry in a conversation history.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Utterance is one speech-recognition result delivered for a call leg.
// Confidence is the recognizer's score in [0,1]; Text may be empty.
type Utterance struct {
	From       string  `json:"from"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Time       int64   `json:"time"`
}

// Validation constants for inbound utterances.
const (
	// MaxUtteranceLength caps the accepted transcript length.
	MaxUtteranceLength = 4096
)

// Error variables for better error handling and testability.
var (
	ErrEmptyCaller       = errors.New("caller identity cannot be empty")
	ErrUtteranceTooLong  = errors.New("utterance exceeds maximum length")
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")
)

// Validate performs validation on an inbound Utterance.
func (u *Utterance) Validate() error {
	if u.From == "" {
		return ErrEmptyCaller
	}
	if len(u.Text) > MaxUtteranceLength {
		return ErrUtteranceTooLong
	}
	if u.Confidence < 0 || u.Confidence > 1 {
		return ErrInvalidConfidence
	}
	return nil
}

// Label is the classification assigned to an inbound utterance.
type Label string

const (
	// LabelEmpty marks low-confidence, blank, or filler input.
	LabelEmpty Label = "empty"
	// LabelGoodbye marks an explicit request to end the call.
	LabelGoodbye Label = "goodbye"
	// LabelStrongInterrupt marks attention-getting phrases ("stop", "wait").
	LabelStrongInterrupt Label = "strong_interrupt"
	// LabelQuestionInterrupt marks question-word utterances.
	LabelQuestionInterrupt Label = "question_interrupt"
	// LabelTopicChange marks phrases that pivot to a new subject.
	LabelTopicChange Label = "topic_change"
	// LabelOrdinary marks free-form content with no special handling.
	LabelOrdinary Label = "ordinary"
)

// IsValidLabel checks if the given classification label is supported.
func IsValidLabel(l Label) bool {
	switch l {
	case LabelEmpty, LabelGoodbye, LabelStrongInterrupt, LabelQuestionInterrupt, LabelTopicChange, LabelOrdinary:
		return true
	default:
		return false
	}
}

// Sentiment is the rolling per-turn sentiment of a call.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// DirectiveAction tells the telephony layer what to do next.
type DirectiveAction string

const (
	// ActionSpeakAndListen plays speech and gathers the next utterance.
	ActionSpeakAndListen DirectiveAction = "speak_and_listen"
	// ActionTerminate plays speech and hangs up the call.
	ActionTerminate DirectiveAction = "terminate"
)

// ListenParams carries the next-turn gather configuration. The values are a
// presentation concern; the orchestrator only threads them through.
type ListenParams struct {
	Language       string   `json:"language,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
	SpeechTimeout  string   `json:"speech_timeout,omitempty"`
	Hints          []string `json:"hints,omitempty"`
}

// Directive is the outbound instruction produced for one inbound utterance:
// the text to speak plus either the next listen configuration or a terminate
// signal. ResponseID identifies the in-flight reply for interruption tracking
// and is empty for canned prompts.
type Directive struct {
	Action     DirectiveAction `json:"action"`
	Speech     string          `json:"speech"`
	Listen     *ListenParams   `json:"listen,omitempty"`
	ResponseID string          `json:"response_id,omitempty"`
}

// Terminates reports whether the directive ends the call.
func (d Directive) Terminates() bool {
	return d.Action == ActionTerminate
}

// TurnRecord is one completed dialogue turn persisted to the store.
type TurnRecord struct {
	ID        string    `json:"id"`
	Caller    string    `json:"caller"`
	Sequence  int       `json:"sequence"`
	Label     Label     `json:"label"`
	UserText  string    `json:"user_text"`
	ReplyText string    `json:"reply_text"`
	Sentiment Sentiment `json:"sentiment"`
	Time      int64     `json:"time"`
}

// SessionEventKind enumerates call session lifecycle events.
type SessionEventKind string

const (
	SessionEventCreated   SessionEventKind = "created"
	SessionEventDestroyed SessionEventKind = "destroyed"
)

// SessionEvent records a session lifecycle transition for a caller.
type SessionEvent struct {
	Caller string           `json:"caller"`
	Kind   SessionEventKind `json:"kind"`
	Reason string           `json:"reason,omitempty"`
	Time   int64            `json:"time"`
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard JSON API response.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
