// Package sentiment provides lexicon-based sentiment scoring for single
// utterances. The lexicon is data-driven (YAML-loadable) so scoring logic is
// testable independent of word content.
package sentiment

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/CallPipe/internal/models"
)

// Lexicon holds positive and negative phrase lists, matched by
// case-insensitive substring containment like the classifier tables.
type Lexicon struct {
	Version  string   `yaml:"version"`
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// LoadLexicon reads a sentiment lexicon from a YAML file.
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("failed to read sentiment lexicon: %w", err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("failed to parse sentiment lexicon: %w", err)
	}
	return lex, nil
}

// DefaultLexicon returns the built-in Hindi/English lexicon.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Version: "2024-06-hi-en",
		Positive: []string{
			"धन्यवाद", "अच्छा", "बढ़िया", "खुश", "शानदार", "ठीक है", "मदद मिली",
			"good", "great", "thanks", "happy", "helpful", "perfect",
		},
		Negative: []string{
			"नहीं मिल", "समस्या", "परेशान", "बुरा", "दुखी", "गुस्सा", "दिक्कत", "मुश्किल",
			"bad", "problem", "angry", "sad", "terrible", "frustrated", "not working",
		},
	}
}

// Analyze scores one utterance against the default lexicon.
func Analyze(text string) models.Sentiment {
	return AnalyzeWith(DefaultLexicon(), text)
}

// AnalyzeWith scores one utterance against lex. The result is a per-turn
// label, not a historical average: whichever polarity matches more phrases
// wins, ties and no-matches are neutral.
func AnalyzeWith(lex Lexicon, text string) models.Sentiment {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return models.SentimentNeutral
	}

	pos := countMatches(normalized, lex.Positive)
	neg := countMatches(normalized, lex.Negative)
	switch {
	case pos > neg:
		return models.SentimentPositive
	case neg > pos:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func countMatches(normalized string, phrases []string) int {
	count := 0
	for _, p := range phrases {
		if p == "" {
			continue
		}
		if strings.Contains(normalized, strings.ToLower(p)) {
			count++
		}
	}
	return count
}
