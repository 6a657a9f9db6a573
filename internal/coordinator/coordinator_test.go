package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/BTreeMap/CallPipe/internal/classifier"
	"github.com/BTreeMap/CallPipe/internal/models"
	"github.com/BTreeMap/CallPipe/internal/session"
)

// mockGenerator implements genai.Generator for tests.
type mockGenerator struct {
	reply string
	err   error
	calls int
	// seen is the turn history from the most recent call.
	seen []models.Turn
}

func (m *mockGenerator) GenerateReply(_ context.Context, turns []models.Turn) (string, error) {
	m.calls++
	m.seen = turns
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func newTestCoordinator(gen *mockGenerator) *Coordinator {
	cfg := DefaultConfig()
	cls := classifier.New(classifier.DefaultTables(), cfg.AcceptConfidence)
	reg := session.NewRegistry(cfg.SystemPrompt, cfg.MemoryCap)
	return New(cfg, cls, reg, gen)
}

func utterance(text string, confidence float64) models.Utterance {
	return models.Utterance{From: "+911234567890", Text: text, Confidence: confidence}
}

func TestHandleUtteranceOrdinaryFlow(t *testing.T) {
	gen := &mockGenerator{reply: "नौकरी के लिए आप स्थानीय रोजगार कार्यालय जा सकते हैं।"}
	c := newTestCoordinator(gen)

	res := c.HandleUtterance(context.Background(), utterance("मुझे नौकरी चाहिए", 0.9))

	if res.Label != models.LabelOrdinary {
		t.Errorf("expected ordinary label, got %s", res.Label)
	}
	if !res.SessionCreated {
		t.Error("expected session to be created on first utterance")
	}
	if res.Directive.Action != models.ActionSpeakAndListen {
		t.Errorf("expected speak_and_listen, got %s", res.Directive.Action)
	}
	if res.Directive.Speech != gen.reply {
		t.Errorf("expected generated reply, got %q", res.Directive.Speech)
	}
	if res.Directive.ResponseID == "" {
		t.Error("expected a response handle on a generated reply")
	}
	if res.Directive.Listen == nil || res.Directive.Listen.Language != "hi-IN" {
		t.Error("expected hi-IN listen params on the directive")
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 generator call, got %d", gen.calls)
	}

	st, ok := c.Registry().Get("+911234567890")
	if !ok {
		t.Fatal("expected session to exist after ordinary turn")
	}
	if st.TurnCount != 1 {
		t.Errorf("expected turn count 1, got %d", st.TurnCount)
	}
	if st.Memory.Len() != 2 {
		t.Errorf("expected user+assistant turns in memory, got %d", st.Memory.Len())
	}
	if !st.Speaking {
		t.Error("expected session to be in delivery after a generated reply")
	}

	// The generator must see the pinned system turn first and the newest
	// user turn last.
	if len(gen.seen) != 2 {
		t.Fatalf("expected system+user history, got %d turns", len(gen.seen))
	}
	if gen.seen[0].Role != models.RoleSystem {
		t.Errorf("expected system turn first, got %s", gen.seen[0].Role)
	}
	if gen.seen[1].Role != models.RoleUser || gen.seen[1].Content != "मुझे नौकरी चाहिए" {
		t.Errorf("unexpected last turn: %+v", gen.seen[1])
	}
}

func TestHandleUtteranceSilenceEscalation(t *testing.T) {
	gen := &mockGenerator{reply: "ठीक है।"}
	c := newTestCoordinator(gen)
	ctx := context.Background()

	// First two empty turns ask the caller to repeat.
	for i := 1; i <= 2; i++ {
		res := c.HandleUtterance(ctx, utterance("", 0.0))
		if res.Label != models.LabelEmpty {
			t.Fatalf("turn %d: expected empty label, got %s", i, res.Label)
		}
		if res.Directive.Terminates() {
			t.Fatalf("turn %d: call must not terminate before the threshold", i)
		}
		if res.Directive.Speech != c.cfg.RepeatPrompt {
			t.Errorf("turn %d: expected repeat prompt, got %q", i, res.Directive.Speech)
		}
	}

	st, _ := c.Registry().Get("+911234567890")
	if st.SilenceStreak != 2 {
		t.Errorf("expected silence streak 2, got %d", st.SilenceStreak)
	}

	// Third empty turn terminates the call and destroys the session.
	res := c.HandleUtterance(ctx, utterance("", 0.0))
	if !res.Directive.Terminates() {
		t.Error("expected termination at silence threshold")
	}
	if res.Directive.Speech != c.cfg.SilenceClosing {
		t.Errorf("expected silence closing line, got %q", res.Directive.Speech)
	}
	if _, ok := c.Registry().Get("+911234567890"); ok {
		t.Error("expected session destroyed after silence termination")
	}
	if gen.calls != 0 {
		t.Errorf("generator must not run on empty turns, got %d calls", gen.calls)
	}
}

func TestHandleUtteranceSilenceStreakResets(t *testing.T) {
	gen := &mockGenerator{reply: "समझ गया।"}
	c := newTestCoordinator(gen)
	ctx := context.Background()

	c.HandleUtterance(ctx, utterance("", 0.0))
	c.HandleUtterance(ctx, utterance("", 0.0))
	c.HandleUtterance(ctx, utterance("मुझे मदद चाहिए", 0.9))

	st, ok := c.Registry().Get("+911234567890")
	if !ok {
		t.Fatal("expected session to survive after accepted turn")
	}
	if st.SilenceStreak != 0 {
		t.Errorf("expected silence streak reset, got %d", st.SilenceStreak)
	}

	// The streak starts over: two more empty turns must not terminate.
	c.HandleUtterance(ctx, utterance("", 0.0))
	res := c.HandleUtterance(ctx, utterance("", 0.0))
	if res.Directive.Terminates() {
		t.Error("streak must restart from zero after an accepted turn")
	}
}

func TestHandleUtteranceGoodbye(t *testing.T) {
	gen := &mockGenerator{reply: "जी।"}
	c := newTestCoordinator(gen)
	ctx := context.Background()

	c.HandleUtterance(ctx, utterance("मुझे एक सवाल पूछना है", 0.9))

	res := c.HandleUtterance(ctx, utterance("धन्यवाद, बाय", 0.9))
	if res.Label != models.LabelGoodbye {
		t.Errorf("expected goodbye label, got %s", res.Label)
	}
	if !res.Directive.Terminates() {
		t.Error("expected goodbye to terminate the call")
	}
	if res.Directive.Speech != c.cfg.ClosingLine {
		t.Errorf("expected closing line, got %q", res.Directive.Speech)
	}
	if _, ok := c.Registry().Get("+911234567890"); ok {
		t.Error("expected session destroyed on goodbye")
	}
	if gen.calls != 1 {
		t.Errorf("generator must not run for the goodbye turn, got %d calls", gen.calls)
	}
}

func TestHandleUtteranceGeneratorFailure(t *testing.T) {
	gen := &mockGenerator{err: errors.New("upstream unavailable")}
	c := newTestCoordinator(gen)

	res := c.HandleUtterance(context.Background(), utterance("नौकरी नहीं मिल रही", 0.9))

	if res.Directive.Terminates() {
		t.Error("generation failure must not end the call")
	}
	if res.Directive.Speech != c.cfg.FallbackText {
		t.Errorf("expected fallback text, got %q", res.Directive.Speech)
	}
	if res.Generated {
		t.Error("expected Generated=false on generator failure")
	}

	// The user turn is recorded; no assistant turn is fabricated for the
	// fallback, so the history never carries a reply that was not generated.
	st, _ := c.Registry().Get("+911234567890")
	if st.Memory.Len() != 1 {
		t.Fatalf("expected only the user turn retained, got %d", st.Memory.Len())
	}
	snap := st.Memory.Snapshot()
	if snap[len(snap)-1].Role != models.RoleUser {
		t.Errorf("expected last turn to be the user turn, got %s", snap[len(snap)-1].Role)
	}
	if st.TurnCount != 1 {
		t.Errorf("fallback turn still counts as processed, got %d", st.TurnCount)
	}
}

func TestHandleUtteranceInterruptionDuringDelivery(t *testing.T) {
	gen := &mockGenerator{reply: "सरकारी योजनाओं के बारे में विस्तार से बताता हूं।"}
	c := newTestCoordinator(gen)
	ctx := context.Background()

	first := c.HandleUtterance(ctx, utterance("सरकारी योजना बताइए", 0.9))
	if first.Directive.ResponseID == "" {
		t.Fatal("expected a response handle for the first reply")
	}
	if !c.IsCurrent("+911234567890", first.Directive.ResponseID) {
		t.Fatal("expected first reply to be in delivery")
	}

	// The caller cuts in while the reply is still being spoken.
	res := c.HandleUtterance(ctx, utterance("रुको, दूसरी बात", 0.9))

	if res.Label != models.LabelStrongInterrupt {
		t.Errorf("expected strong interrupt label, got %s", res.Label)
	}
	if res.Superseded != first.Directive.ResponseID {
		t.Errorf("expected the in-flight reply to be superseded, got %q", res.Superseded)
	}
	if res.Directive.Speech != "जी हाँ, बोलिए" {
		t.Errorf("expected fixed interrupt acknowledgment, got %q", res.Directive.Speech)
	}
	if res.Directive.ResponseID != "" {
		t.Error("acknowledgment must not carry a response handle")
	}
	if gen.calls != 1 {
		t.Errorf("interrupt acknowledgment must not invoke the generator, got %d calls", gen.calls)
	}
	if c.IsCurrent("+911234567890", first.Directive.ResponseID) {
		t.Error("superseded reply must no longer be current")
	}

	st, _ := c.Registry().Get("+911234567890")
	if st.Interruptions != 1 {
		t.Errorf("expected interruption count 1, got %d", st.Interruptions)
	}
	if st.TurnCount != 1 {
		t.Errorf("acknowledgment must not increment the turn counter, got %d", st.TurnCount)
	}
	if st.Memory.Len() != 2 {
		t.Errorf("acknowledgment must not touch memory, got %d turns", st.Memory.Len())
	}
}

func TestHandleUtteranceNoInterruptionWhenIdle(t *testing.T) {
	gen := &mockGenerator{reply: "बताइए।"}
	c := newTestCoordinator(gen)
	ctx := context.Background()

	first := c.HandleUtterance(ctx, utterance("मेरी तबीयत ठीक नहीं है", 0.9))
	c.CompleteDelivery("+911234567890", first.Directive.ResponseID)

	// A new utterance after delivery completed is not an interruption.
	res := c.HandleUtterance(ctx, utterance("और क्या करूं", 0.9))
	if res.Superseded != "" {
		t.Errorf("expected no superseded handle after completed delivery, got %q", res.Superseded)
	}
	st, _ := c.Registry().Get("+911234567890")
	if st.Interruptions != 0 {
		t.Errorf("expected no interruptions, got %d", st.Interruptions)
	}
}

func TestHandleUtteranceTopicSetOnce(t *testing.T) {
	gen := &mockGenerator{reply: "जी, समझ गया।"}
	c := newTestCoordinator(gen)
	ctx := context.Background()

	c.HandleUtterance(ctx, utterance("मुझे रोजगार की तलाश है", 0.9))
	st, _ := c.Registry().Get("+911234567890")
	if st.Topic != "jobs" {
		t.Fatalf("expected jobs topic, got %q", st.Topic)
	}

	// A later health-flavored utterance must not overwrite the topic.
	c.HandleUtterance(ctx, utterance("मेरी सेहत भी खराब है", 0.9))
	if st.Topic != "jobs" {
		t.Errorf("topic must be sticky, got %q", st.Topic)
	}
}

func TestHandleUtteranceTopicChangeClearsTopic(t *testing.T) {
	gen := &mockGenerator{reply: "जी, बताइए।"}
	c := newTestCoordinator(gen)
	ctx := context.Background()

	c.HandleUtterance(ctx, utterance("मुझे रोजगार की तलाश है", 0.9))
	st, _ := c.Registry().Get("+911234567890")
	if st.Topic != "jobs" {
		t.Fatalf("expected jobs topic, got %q", st.Topic)
	}

	c.HandleUtterance(ctx, utterance("वैसे मेरी सेहत खराब रहती है", 0.9))
	if st.Topic != "health" {
		t.Errorf("expected topic change to re-derive topic, got %q", st.Topic)
	}
}

func TestGreetingCreatesSession(t *testing.T) {
	gen := &mockGenerator{}
	c := newTestCoordinator(gen)

	d := c.Greeting("+911234567890")
	if d.Action != models.ActionSpeakAndListen {
		t.Errorf("expected speak_and_listen greeting, got %s", d.Action)
	}
	if d.Speech != c.cfg.Greeting {
		t.Errorf("expected greeting text, got %q", d.Speech)
	}
	if _, ok := c.Registry().Get("+911234567890"); !ok {
		t.Error("expected greeting to create the session")
	}
}

func TestCompleteDeliveryStaleHandle(t *testing.T) {
	gen := &mockGenerator{reply: "पहला जवाब।"}
	c := newTestCoordinator(gen)
	ctx := context.Background()

	first := c.HandleUtterance(ctx, utterance("पहला सवाल है मेरा", 0.9))
	second := c.HandleUtterance(ctx, utterance("अच्छा, और एक बात बताओ", 0.9))

	// Completing the superseded handle must not clear the current delivery.
	c.CompleteDelivery("+911234567890", first.Directive.ResponseID)
	if !c.IsCurrent("+911234567890", second.Directive.ResponseID) {
		t.Error("stale completion must not affect the current reply")
	}

	c.CompleteDelivery("+911234567890", second.Directive.ResponseID)
	if c.IsCurrent("+911234567890", second.Directive.ResponseID) {
		t.Error("expected delivery to be complete")
	}
}
