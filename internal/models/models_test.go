package models

import (
	"errors"
	"testing"
)

func TestUtteranceValidate(t *testing.T) {
	tests := []struct {
		name     string
		utt      Utterance
		expected error
	}{
		{
			name:     "valid utterance",
			utt:      Utterance{From: "+911234567890", Text: "नमस्ते", Confidence: 0.9},
			expected: nil,
		},
		{
			name:     "empty text is valid",
			utt:      Utterance{From: "+911234567890", Confidence: 0},
			expected: nil,
		},
		{
			name:     "missing caller",
			utt:      Utterance{Text: "नमस्ते", Confidence: 0.9},
			expected: ErrEmptyCaller,
		},
		{
			name:     "confidence above one",
			utt:      Utterance{From: "+911234567890", Text: "नमस्ते", Confidence: 1.5},
			expected: ErrInvalidConfidence,
		},
		{
			name:     "negative confidence",
			utt:      Utterance{From: "+911234567890", Text: "नमस्ते", Confidence: -0.1},
			expected: ErrInvalidConfidence,
		},
		{
			name:     "oversized text",
			utt:      Utterance{From: "+911234567890", Text: string(make([]byte, MaxUtteranceLength+1)), Confidence: 0.9},
			expected: ErrUtteranceTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.utt.Validate()
			if !errors.Is(err, tt.expected) {
				t.Errorf("Validate() = %v, want %v", err, tt.expected)
			}
		})
	}
}

func TestDirectiveTerminates(t *testing.T) {
	if (Directive{Action: ActionSpeakAndListen}).Terminates() {
		t.Error("speak_and_listen must not terminate")
	}
	if !(Directive{Action: ActionTerminate}).Terminates() {
		t.Error("terminate must terminate")
	}
}

func TestIsValidLabel(t *testing.T) {
	for _, l := range []Label{LabelEmpty, LabelGoodbye, LabelStrongInterrupt, LabelQuestionInterrupt, LabelTopicChange, LabelOrdinary} {
		if !IsValidLabel(l) {
			t.Errorf("expected %s to be valid", l)
		}
	}
	if IsValidLabel(Label("bogus")) {
		t.Error("expected unknown label to be invalid")
	}
}
