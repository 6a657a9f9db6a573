// Package dialogue drives one full turn through the system: validate the
// inbound utterance, run the response coordinator, and persist the transcript
// record and any session lifecycle events. It is the seam between transport
// handlers and the conversation engine.
package dialogue

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/CallPipe/internal/coordinator"
	"github.com/BTreeMap/CallPipe/internal/models"
	"github.com/BTreeMap/CallPipe/internal/store"
)

// Driver orchestrates turn handling and persistence.
type Driver struct {
	coord *coordinator.Coordinator
	st    store.Store
	now   func() time.Time
}

// NewDriver creates a dialogue driver over coord and st.
func NewDriver(coord *coordinator.Coordinator, st store.Store) *Driver {
	return &Driver{coord: coord, st: st, now: time.Now}
}

// Coordinator returns the underlying response coordinator.
func (d *Driver) Coordinator() *coordinator.Coordinator {
	return d.coord
}

// Greet opens a new call leg: it creates the session, records the lifecycle
// event, and returns the greeting directive.
func (d *Driver) Greet(caller string) models.Directive {
	existed := false
	if _, ok := d.coord.Registry().Get(caller); ok {
		existed = true
	}
	directive := d.coord.Greeting(caller)
	if !existed {
		d.recordEvent(caller, models.SessionEventCreated, "call started")
	}
	return directive
}

// HandleUtterance runs one turn end to end and returns the outbound
// directive. Persistence failures are logged, never surfaced: the caller must
// always get a directive, and a broken store must not break the call.
func (d *Driver) HandleUtterance(ctx context.Context, utt models.Utterance) models.Directive {
	if err := utt.Validate(); err != nil {
		slog.Error("Driver.HandleUtterance: invalid utterance", "error", err, "caller", utt.From)
		// Treat malformed input like an empty turn: re-prompt rather than
		// fail the webhook.
		utt.Text = ""
		utt.Confidence = 0
	}
	if utt.From == "" {
		utt.From = "unknown"
	}

	created := false
	if _, ok := d.coord.Registry().Get(utt.From); !ok {
		created = true
	}

	res := d.coord.HandleUtterance(ctx, utt)

	if created {
		d.recordEvent(utt.From, models.SessionEventCreated, "first utterance")
	}

	switch res.Label {
	case models.LabelEmpty:
		if res.Directive.Terminates() {
			d.recordEvent(utt.From, models.SessionEventDestroyed, "silence timeout")
		}
	case models.LabelGoodbye:
		d.recordEvent(utt.From, models.SessionEventDestroyed, "goodbye")
	case models.LabelStrongInterrupt:
		// Acknowledgments are not dialogue turns; nothing to persist.
	default:
		d.recordTurn(utt, res)
	}
	return res.Directive
}

// EndCall tears down the session for a caller whose call leg ended without a
// goodbye (hangup, carrier drop). Idempotent.
func (d *Driver) EndCall(caller, reason string) {
	if _, ok := d.coord.Registry().Get(caller); !ok {
		return
	}
	d.coord.Registry().Destroy(caller)
	d.recordEvent(caller, models.SessionEventDestroyed, reason)
}

func (d *Driver) recordTurn(utt models.Utterance, res coordinator.Result) {
	st, ok := d.coord.Registry().Get(utt.From)
	sequence := 0
	sent := models.SentimentNeutral
	if ok {
		st.Lock()
		sequence = st.TurnCount
		sent = st.Sentiment
		st.Unlock()
	}
	rec := models.TurnRecord{
		ID:        uuid.NewString(),
		Caller:    utt.From,
		Sequence:  sequence,
		Label:     res.Label,
		UserText:  utt.Text,
		ReplyText: res.Directive.Speech,
		Sentiment: sent,
		Time:      d.now().Unix(),
	}
	if err := d.st.AddTurn(rec); err != nil {
		slog.Error("Driver.recordTurn: failed to persist turn", "error", err, "caller", utt.From)
	}
}

func (d *Driver) recordEvent(caller string, kind models.SessionEventKind, reason string) {
	ev := models.SessionEvent{Caller: caller, Kind: kind, Reason: reason, Time: d.now().Unix()}
	if err := d.st.AddSessionEvent(ev); err != nil {
		slog.Error("Driver.recordEvent: failed to persist session event", "error", err, "caller", caller, "kind", kind)
	}
}
