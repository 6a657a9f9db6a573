// Package api provides HTTP handlers for CallPipe endpoints.
package api

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	"github.com/BTreeMap/CallPipe/internal/models"
)

// sessionSummary is the JSON shape returned by the sessions endpoint.
type sessionSummary struct {
	Caller        string           `json:"caller"`
	Turns         int              `json:"turns"`
	Sentiment     models.Sentiment `json:"sentiment"`
	Topic         string           `json:"topic,omitempty"`
	SilenceStreak int              `json:"silence_streak"`
	Interruptions int              `json:"interruptions"`
	Speaking      bool             `json:"speaking"`
	CreatedAt     int64            `json:"created_at"`
	LastActivity  int64            `json:"last_activity"`
}

// voiceHandler answers the initial Twilio voice webhook with the greeting
// and the first gather.
func (s *Server) voiceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.voiceHandler: processing voice request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.voiceHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.validator.ValidateRequest(r) {
		slog.Warn("Server.voiceHandler: webhook validation failed")
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.voiceHandler: failed to parse form", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	caller := r.PostForm.Get("From")
	if caller == "" {
		caller = "unknown"
	}
	directive := s.driver.Greet(caller)
	doc, err := s.renderer.Render(directive)
	if err != nil {
		slog.Error("Server.voiceHandler: failed to render TwiML", "error", err, "caller", caller)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	slog.Info("Server.voiceHandler: call answered", "caller", caller)
	writeTwiMLResponse(w, doc)
}

// turnHandler processes one gathered utterance and answers with the next
// TwiML document. It always returns 200 with valid TwiML once the request is
// authenticated; conversation-level failures become spoken fallbacks.
func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.turnHandler: processing turn request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.turnHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.validator.ValidateRequest(r) {
		slog.Warn("Server.turnHandler: webhook validation failed")
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Warn("Server.turnHandler: failed to parse form", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	utt := parseUtterance(r)
	directive := s.driver.HandleUtterance(r.Context(), utt)

	// The synchronous webhook model delivers the whole reply in one
	// document, so delivery is complete as soon as it is rendered.
	if directive.ResponseID != "" {
		defer s.driver.Coordinator().CompleteDelivery(utt.From, directive.ResponseID)
	}

	doc, err := s.renderer.Render(directive)
	if err != nil {
		slog.Error("Server.turnHandler: failed to render TwiML", "error", err, "caller", utt.From)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeTwiMLResponse(w, doc)
}

// parseUtterance extracts the speech recognition result from a Twilio
// gather callback. A missing Confidence field with non-empty speech is
// treated as fully confident rather than silently dropping the text.
func parseUtterance(r *http.Request) models.Utterance {
	text := r.PostForm.Get("SpeechResult")
	confidence := 0.0
	if raw := r.PostForm.Get("Confidence"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			slog.Warn("parseUtterance: invalid confidence value", "value", raw)
		} else {
			confidence = parsed
		}
	} else if text != "" {
		confidence = 1.0
	}

	caller := r.PostForm.Get("From")
	if caller == "" {
		caller = "unknown"
	}
	return models.Utterance{From: caller, Text: text, Confidence: confidence}
}

// statusCallbackHandler tears down sessions for call legs that ended without
// a goodbye (hangup, carrier failure).
func (s *Server) statusCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.validator.ValidateRequest(r) {
		slog.Warn("Server.statusCallbackHandler: webhook validation failed")
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	caller := r.PostForm.Get("From")
	status := r.PostForm.Get("CallStatus")
	switch status {
	case "completed", "failed", "busy", "no-answer", "canceled":
		s.driver.EndCall(caller, "call "+status)
		slog.Info("Server.statusCallbackHandler: call ended", "caller", caller, "status", status)
	default:
		slog.Debug("Server.statusCallbackHandler: ignoring status", "caller", caller, "status", status)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"active_sessions": s.driver.Coordinator().Registry().Len(),
	}))
}

// sessionsHandler lists active sessions with their call state.
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	registry := s.driver.Coordinator().Registry()
	callers := registry.Callers()
	sort.Strings(callers)

	summaries := make([]sessionSummary, 0, len(callers))
	for _, caller := range callers {
		st, ok := registry.Get(caller)
		if !ok {
			continue
		}
		st.Lock()
		summaries = append(summaries, sessionSummary{
			Caller:        st.Caller,
			Turns:         st.TurnCount,
			Sentiment:     st.Sentiment,
			Topic:         st.Topic,
			SilenceStreak: st.SilenceStreak,
			Interruptions: st.Interruptions,
			Speaking:      st.Speaking,
			CreatedAt:     st.CreatedAt.Unix(),
			LastActivity:  st.LastActivity.Unix(),
		})
		st.Unlock()
	}
	writeJSONResponse(w, http.StatusOK, models.Success(summaries))
}

// transcriptsHandler returns persisted dialogue turns, optionally filtered
// by the caller query parameter.
func (s *Server) transcriptsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	caller := r.URL.Query().Get("caller")
	turns, err := s.st.GetTurns(caller)
	if err != nil {
		slog.Error("Server.transcriptsHandler: failed to load turns", "error", err, "caller", caller)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load transcripts"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(turns))
}
