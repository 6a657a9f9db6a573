package store

import (
	"path/filepath"
	"testing"

	"github.com/BTreeMap/CallPipe/internal/models"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "callpipe.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	rec := models.TurnRecord{
		ID:        "t1",
		Caller:    "+911111111111",
		Sequence:  1,
		Label:     models.LabelOrdinary,
		UserText:  "मुझे नौकरी चाहिए",
		ReplyText: "रोजगार कार्यालय जाइए।",
		Sentiment: models.SentimentNeutral,
		Time:      100,
	}
	if err := s.AddTurn(rec); err != nil {
		t.Fatalf("AddTurn failed: %v", err)
	}

	turns, err := s.GetTurns("+911111111111")
	if err != nil {
		t.Fatalf("GetTurns failed: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if turns[0] != rec {
		t.Errorf("round trip mismatch: got %+v, want %+v", turns[0], rec)
	}

	ev := models.SessionEvent{Caller: "+911111111111", Kind: models.SessionEventDestroyed, Reason: "goodbye", Time: 200}
	if err := s.AddSessionEvent(ev); err != nil {
		t.Fatalf("AddSessionEvent failed: %v", err)
	}
	events, err := s.GetSessionEvents("+911111111111")
	if err != nil {
		t.Fatalf("GetSessionEvents failed: %v", err)
	}
	if len(events) != 1 || events[0] != ev {
		t.Errorf("round trip mismatch: got %+v, want %+v", events, ev)
	}
}

func TestSQLiteStoreEmptyReason(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "callpipe.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	ev := models.SessionEvent{Caller: "+911111111111", Kind: models.SessionEventCreated, Time: 100}
	if err := s.AddSessionEvent(ev); err != nil {
		t.Fatalf("AddSessionEvent failed: %v", err)
	}
	events, err := s.GetSessionEvents("+911111111111")
	if err != nil {
		t.Fatalf("GetSessionEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Reason != "" {
		t.Errorf("expected empty reason preserved, got %+v", events)
	}
}

func TestNewSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Error("expected error when no DSN is configured")
	}
}
