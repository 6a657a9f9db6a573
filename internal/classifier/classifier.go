// Package classifier labels inbound utterances from text and recognition
// confidence. Classification is a pure function over versioned, data-driven
// phrase tables; it never mutates call state.
package classifier

import (
	"strings"
	"unicode/utf8"

	"github.com/BTreeMap/CallPipe/internal/models"
)

// DefaultAcceptConfidence is the recognition score below which an utterance
// is treated as empty.
const DefaultAcceptConfidence = 0.4

// Classifier assigns a models.Label to each inbound utterance.
type Classifier struct {
	tables           Tables
	acceptConfidence float64
}

// New creates a Classifier over the given phrase tables. acceptConfidence is
// the minimum recognition score for an utterance to be accepted; pass 0 to
// use DefaultAcceptConfidence.
func New(tables Tables, acceptConfidence float64) *Classifier {
	if acceptConfidence <= 0 {
		acceptConfidence = DefaultAcceptConfidence
	}
	return &Classifier{tables: tables, acceptConfidence: acceptConfidence}
}

// Classify labels one utterance. prior is the caller's previous accepted
// utterance text; it is accepted as optional context for phrase tables that
// key on continuations, and may be empty.
//
// Rule precedence, first match wins: empty, goodbye, strong-interrupt,
// question-interrupt, topic-change, ordinary. Matching is case-insensitive
// substring containment, so any superstring of a listed phrase counts.
func (c *Classifier) Classify(text string, confidence float64, prior string) models.Label {
	_ = prior

	normalized := strings.ToLower(strings.TrimSpace(text))
	if c.isEmpty(normalized, confidence) {
		return models.LabelEmpty
	}
	if containsAny(normalized, c.tables.Goodbye) {
		return models.LabelGoodbye
	}
	if containsAny(normalized, c.tables.Interrupt) {
		return models.LabelStrongInterrupt
	}
	if containsAny(normalized, c.tables.Question) {
		return models.LabelQuestionInterrupt
	}
	if containsAny(normalized, c.tables.TopicChange) {
		return models.LabelTopicChange
	}
	return models.LabelOrdinary
}

// GuessTopic returns a coarse topic key for the utterance, or "" when no
// topic table matches (the "general" case).
func (c *Classifier) GuessTopic(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return ""
	}
	// Iterate in declared order so the first listed topic wins ties.
	for _, topic := range c.tables.TopicOrder() {
		if containsAny(normalized, c.tables.Topics[topic]) {
			return topic
		}
	}
	return ""
}

// isEmpty applies the acceptance gate: low confidence, blank text, filler
// words, or text shorter than the configured minimum.
func (c *Classifier) isEmpty(normalized string, confidence float64) bool {
	if confidence < c.acceptConfidence {
		return true
	}
	if normalized == "" {
		return true
	}
	if utf8.RuneCountInString(normalized) < c.tables.MinLength {
		return true
	}
	for _, filler := range c.tables.Fillers {
		if normalized == filler {
			return true
		}
	}
	return false
}

func containsAny(normalized string, phrases []string) bool {
	for _, p := range phrases {
		if p == "" {
			continue
		}
		if strings.Contains(normalized, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
