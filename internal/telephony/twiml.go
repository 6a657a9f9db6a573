// Package telephony renders outbound directives as Twilio voice responses
// and validates inbound webhook signatures.
package telephony

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/twilio/twilio-go/twiml"

	"github.com/BTreeMap/CallPipe/internal/models"
)

// Voice rendering defaults for the Hindi deployment.
const (
	// DefaultVoice is the TTS voice used for spoken replies.
	DefaultVoice = "Polly.Aditi"
	// DefaultLanguage is the speech language tag.
	DefaultLanguage = "hi-IN"
)

// Renderer converts models.Directive values into TwiML documents.
type Renderer struct {
	// Voice is the TTS voice name passed to <Say>.
	Voice string
	// Language is the language tag for <Say> and <Gather>.
	Language string
	// Action is the webhook path the next gather posts to.
	Action string
}

// NewRenderer returns a renderer with the default voice configuration
// posting gathered speech to action.
func NewRenderer(action string) *Renderer {
	return &Renderer{Voice: DefaultVoice, Language: DefaultLanguage, Action: action}
}

// Render converts a directive into a TwiML document. Terminating directives
// speak and hang up; listening directives speak and gather the next
// utterance, with a trailing re-prompt and hangup for callers who stay
// silent through the gather window.
func (r *Renderer) Render(d models.Directive) (string, error) {
	if d.Terminates() {
		return r.speakAndHangup(d.Speech)
	}
	return r.speakAndGather(d)
}

func (r *Renderer) speakAndHangup(speech string) (string, error) {
	doc, err := twiml.Voice([]twiml.Element{
		twiml.VoiceSay{Message: speech, Voice: r.Voice, Language: r.Language},
		twiml.VoiceHangup{},
	})
	if err != nil {
		slog.Error("Renderer.speakAndHangup: twiml rendering failed", "error", err)
		return "", fmt.Errorf("failed to render hangup response: %w", err)
	}
	return doc, nil
}

func (r *Renderer) speakAndGather(d models.Directive) (string, error) {
	language := r.Language
	timeout := "8"
	speechTimeout := "auto"
	var hints string
	if d.Listen != nil {
		if d.Listen.Language != "" {
			language = d.Listen.Language
		}
		if d.Listen.TimeoutSeconds > 0 {
			timeout = strconv.Itoa(d.Listen.TimeoutSeconds)
		}
		if d.Listen.SpeechTimeout != "" {
			speechTimeout = d.Listen.SpeechTimeout
		}
		hints = strings.Join(d.Listen.Hints, ", ")
	}

	gather := twiml.VoiceGather{
		Input:         "speech",
		Action:        r.Action,
		Method:        "POST",
		Timeout:       timeout,
		SpeechTimeout: speechTimeout,
		Language:      language,
		Hints:         hints,
		InnerElements: []twiml.Element{
			twiml.VoiceSay{Message: d.Speech, Voice: r.Voice, Language: r.Language},
		},
	}

	// If the gather window closes with no speech at all, Twilio falls
	// through to the trailing verbs.
	doc, err := twiml.Voice([]twiml.Element{
		gather,
		twiml.VoiceSay{Message: "कोई जवाब नहीं मिला। कॉल समाप्त की जा रही है।", Voice: r.Voice, Language: r.Language},
		twiml.VoiceHangup{},
	})
	if err != nil {
		slog.Error("Renderer.speakAndGather: twiml rendering failed", "error", err)
		return "", fmt.Errorf("failed to render gather response: %w", err)
	}
	return doc, nil
}
