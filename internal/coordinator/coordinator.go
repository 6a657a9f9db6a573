// Package coordinator implements the per-caller response state machine: it
// decides, for each classified utterance, whether to answer, acknowledge an
// interruption, ask for repetition, or end the call, and it is the only
// component that mutates conversation memory.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/CallPipe/internal/classifier"
	"github.com/BTreeMap/CallPipe/internal/genai"
	"github.com/BTreeMap/CallPipe/internal/models"
	"github.com/BTreeMap/CallPipe/internal/sentiment"
	"github.com/BTreeMap/CallPipe/internal/session"
)

// Config parameterizes one coordinator instance. One struct replaces the
// per-deployment prompt and threshold variants: everything that used to be a
// scattered literal is a field here.
type Config struct {
	// AcceptConfidence is the minimum recognition score for acceptance.
	AcceptConfidence float64
	// SilenceThreshold is the streak of empty turns that ends the call.
	SilenceThreshold int
	// MemoryCap bounds retained non-system turns per caller.
	MemoryCap int

	// SystemPrompt seeds every new session's memory.
	SystemPrompt string
	// Greeting opens a brand-new call.
	Greeting string
	// RepeatPrompt asks the caller to speak again after an empty turn.
	RepeatPrompt string
	// InterruptAck is the short fixed acknowledgment for strong interrupts.
	InterruptAck string
	// FallbackText replaces the reply when generation fails.
	FallbackText string
	// ClosingLine is spoken before hanging up on goodbye.
	ClosingLine string
	// SilenceClosing is spoken before hanging up on a full silence streak.
	SilenceClosing string

	// Listen is the gather configuration attached to every listen directive.
	Listen models.ListenParams

	// Lexicon scores per-turn sentiment.
	Lexicon sentiment.Lexicon
}

// DefaultConfig returns the Hindi deployment configuration.
func DefaultConfig() Config {
	return Config{
		AcceptConfidence: classifier.DefaultAcceptConfidence,
		SilenceThreshold: 3,
		MemoryCap:        20,
		SystemPrompt:     "आप एक सहायक हिंदी AI असिस्टेंट हैं। आप मुख्यतः हिंदी में जवाब देते हैं लेकिन अंग्रेजी भी समझ सकते हैं। अपने जवाब संक्षिप्त, स्पष्ट और मददगार रखें। फोन कॉल के लिए 30-40 शब्दों में जवाब दें।",
		Greeting:         "नमस्ते! मैं आपका AI सहायक हूं। कृपया अपना सवाल या समस्या बताएं।",
		RepeatPrompt:     "मुझे आपकी आवाज़ साफ़ सुनाई नहीं दी। कृपया दोबारा बोलें।",
		InterruptAck:     "जी हाँ, बोलिए",
		FallbackText:     "मुझे खुशी होगी आपकी सहायता करने में। कृपया फिर से कोशिश करें।",
		ClosingLine:      "बातचीत के लिए धन्यवाद! आपका दिन शुभ हो।",
		SilenceClosing:   "कोई आवाज़ नहीं सुनी गई। कॉल के लिए धन्यवाद!",
		Listen: models.ListenParams{
			Language:       "hi-IN",
			TimeoutSeconds: 8,
			SpeechTimeout:  "auto",
			Hints:          []string{"हाँ", "नहीं", "धन्यवाद", "नमस्ते", "समस्या", "सवाल", "मदद"},
		},
		Lexicon: sentiment.DefaultLexicon(),
	}
}

// Result is the outcome of one coordinator step.
type Result struct {
	Directive      models.Directive
	Label          models.Label
	SessionCreated bool
	// Superseded is the response handle abandoned by this utterance, if any.
	Superseded string
	// Generated is true when the reply generator was invoked successfully.
	Generated bool
}

// Coordinator runs the response state machine over a session registry.
type Coordinator struct {
	cfg        Config
	classifier *classifier.Classifier
	registry   *session.Registry
	generator  genai.Generator
}

// New creates a Coordinator. The registry must have been built with the same
// system prompt and memory cap as cfg.
func New(cfg Config, cls *classifier.Classifier, registry *session.Registry, generator genai.Generator) *Coordinator {
	return &Coordinator{cfg: cfg, classifier: cls, registry: registry, generator: generator}
}

// Registry exposes the session registry for lifecycle queries.
func (c *Coordinator) Registry() *session.Registry {
	return c.registry
}

// Greeting returns the opening directive for a brand-new call leg, before
// any utterance has been heard.
func (c *Coordinator) Greeting(caller string) models.Directive {
	_, created := c.registry.GetOrCreate(caller)
	c.registry.Touch(caller)
	if created {
		slog.Info("Coordinator.Greeting: new call", "caller", caller)
	}
	return c.speakAndListen(c.cfg.Greeting)
}

// HandleUtterance runs one full coordinator step for an inbound utterance
// and returns the outbound directive. It never returns an error: every
// failure path is absorbed into a safe directive.
func (c *Coordinator) HandleUtterance(ctx context.Context, utt models.Utterance) Result {
	st, created := c.registry.GetOrCreate(utt.From)
	st.Lock()
	defer st.Unlock()

	st.Touch(time.Now())
	label := c.classifier.Classify(utt.Text, utt.Confidence, st.LastUserText)
	slog.Debug("Coordinator.HandleUtterance: classified utterance", "caller", utt.From, "label", label, "confidence", utt.Confidence)

	res := Result{Label: label, SessionCreated: created}

	if label == models.LabelEmpty {
		c.handleEmpty(st, &res)
		return res
	}
	st.ResetSilence()

	// A reply still in delivery is abandoned before the new utterance is
	// dispatched; its remaining content must never be processed afterward.
	if superseded := st.Supersede(); superseded != "" {
		res.Superseded = superseded
		slog.Info("Coordinator.HandleUtterance: reply superseded by new utterance", "caller", utt.From, "response_id", superseded, "interruptions", st.Interruptions)
	}

	// Goodbye wins over everything, including interruption handling.
	if label == models.LabelGoodbye {
		c.registry.Destroy(utt.From)
		slog.Info("Coordinator.HandleUtterance: goodbye, session destroyed", "caller", utt.From, "turns", st.TurnCount)
		res.Directive = c.terminate(c.cfg.ClosingLine)
		return res
	}

	st.LastUserText = utt.Text

	if label == models.LabelStrongInterrupt {
		// Short fixed acknowledgment: no generator call, no memory append,
		// no turn counter increment.
		res.Directive = c.speakAndListen(c.cfg.InterruptAck)
		return res
	}

	if label == models.LabelTopicChange {
		st.ClearTopic()
	}
	res.Directive = c.respond(ctx, st, utt.Text, &res)
	return res
}

// handleEmpty advances the silence streak: repeat-prompt below the
// threshold, hangup at it. Memory is never touched on this path.
func (c *Coordinator) handleEmpty(st *session.State, res *Result) {
	streak := st.RecordSilence()
	if streak >= c.cfg.SilenceThreshold {
		c.registry.Destroy(st.Caller)
		slog.Info("Coordinator.handleEmpty: silence threshold reached, terminating", "caller", st.Caller, "streak", streak)
		res.Directive = c.terminate(c.cfg.SilenceClosing)
		return
	}
	slog.Debug("Coordinator.handleEmpty: asking caller to repeat", "caller", st.Caller, "streak", streak)
	res.Directive = c.speakAndListen(c.cfg.RepeatPrompt)
}

// respond runs the generation path: append the user turn, invoke the reply
// generator with a memory snapshot, append the reply, and update the call
// state. Generator failure substitutes the deterministic fallback without
// recording an assistant turn, so the history is never left with an empty
// reply.
func (c *Coordinator) respond(ctx context.Context, st *session.State, userText string, res *Result) models.Directive {
	st.Memory.Append(models.Turn{Role: models.RoleUser, Content: userText})

	reply, err := c.generator.GenerateReply(ctx, st.Memory.Snapshot())
	if err != nil {
		slog.Error("Coordinator.respond: generation failed, using fallback", "error", err, "caller", st.Caller)
		reply = c.cfg.FallbackText
	} else {
		st.Memory.Append(models.Turn{Role: models.RoleAssistant, Content: reply})
		res.Generated = true
	}

	st.AcceptTurn(sentiment.AnalyzeWith(c.cfg.Lexicon, userText))
	if st.SetTopicIfUnset(c.classifier.GuessTopic(userText)) {
		slog.Debug("Coordinator.respond: topic set", "caller", st.Caller, "topic", st.Topic)
	}

	d := c.speakAndListen(reply)
	d.ResponseID = st.BeginDelivery()
	return d
}

func (c *Coordinator) speakAndListen(speech string) models.Directive {
	listen := c.cfg.Listen
	return models.Directive{
		Action: models.ActionSpeakAndListen,
		Speech: speech,
		Listen: &listen,
	}
}

func (c *Coordinator) terminate(speech string) models.Directive {
	return models.Directive{Action: models.ActionTerminate, Speech: speech}
}

// CompleteDelivery reports that the delivery layer finished playing the
// reply identified by responseID. Unknown callers and stale handles are
// no-ops.
func (c *Coordinator) CompleteDelivery(caller, responseID string) {
	st, ok := c.registry.Get(caller)
	if !ok {
		return
	}
	st.Lock()
	st.CompleteDelivery(responseID)
	st.Unlock()
}

// IsCurrent reports whether responseID still identifies the reply in
// delivery for caller. Delivery layers poll this between chunks.
func (c *Coordinator) IsCurrent(caller, responseID string) bool {
	st, ok := c.registry.Get(caller)
	if !ok {
		return false
	}
	st.Lock()
	defer st.Unlock()
	return st.IsCurrent(responseID)
}
