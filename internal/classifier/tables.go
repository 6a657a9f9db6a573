// Package classifier phrase tables: versioned, language-tagged word lists
// that drive classification, loadable from YAML so the logic can be tested
// independent of phrase content.
package classifier

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Tables holds the phrase lists for one deployment. Languages lists the
// language tags the phrases cover; Version identifies the table revision so
// transcripts can be correlated with the rules that classified them.
type Tables struct {
	Version     string              `yaml:"version"`
	Languages   []string            `yaml:"languages"`
	MinLength   int                 `yaml:"min_length"`
	Fillers     []string            `yaml:"fillers"`
	Goodbye     []string            `yaml:"goodbye"`
	Interrupt   []string            `yaml:"interrupt"`
	Question    []string            `yaml:"question"`
	TopicChange []string            `yaml:"topic_change"`
	Topics      map[string][]string `yaml:"topics"`
}

// TopicOrder returns the topic keys in a stable order.
func (t Tables) TopicOrder() []string {
	keys := make([]string, 0, len(t.Topics))
	for k := range t.Topics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that the tables are usable.
func (t Tables) Validate() error {
	if t.Version == "" {
		return fmt.Errorf("phrase tables missing version")
	}
	if len(t.Goodbye) == 0 {
		return fmt.Errorf("phrase tables (version %s) have no goodbye phrases", t.Version)
	}
	if t.MinLength < 1 {
		return fmt.Errorf("phrase tables (version %s) min_length must be at least 1", t.Version)
	}
	return nil
}

// LoadTables reads phrase tables from a YAML file.
func LoadTables(path string) (Tables, error) {
	slog.Debug("classifier.LoadTables: loading phrase tables", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("failed to read phrase tables: %w", err)
	}
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, fmt.Errorf("failed to parse phrase tables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tables{}, err
	}
	slog.Info("classifier.LoadTables: phrase tables loaded", "path", path, "version", t.Version, "languages", t.Languages)
	return t, nil
}

// DefaultTables returns the built-in Hindi/English phrase tables.
func DefaultTables() Tables {
	return Tables{
		Version:   "2024-06-hi-en",
		Languages: []string{"hi-IN", "en-IN"},
		MinLength: 2,
		Fillers:   []string{"um", "uh", "hmm", "हम्म", "अं"},
		Goodbye: []string{
			"अलविदा", "धन्यवाद", "बाय", "bye", "goodbye",
			"खत्म", "समाप्त", "बंद करो", "फिर मिलेंगे",
		},
		Interrupt: []string{
			"रुको", "रुकिए", "सुनो", "सुनिए", "एक मिनट", "अरे",
			"stop", "wait", "hold on", "actually", "excuse me",
		},
		Question: []string{
			"क्या", "कैसे", "कौन", "कब", "कहाँ", "क्यों", "कितना", "किसका",
			"what", "how", "who", "when", "where", "why", "which",
		},
		TopicChange: []string{
			"दूसरी बात", "वैसे", "एक और बात", "अलग सवाल", "नया सवाल",
			"by the way", "another question", "something else", "change the topic",
		},
		Topics: map[string][]string{
			"jobs":      {"नौकरी", "रोजगार", "काम", "job", "employment", "salary"},
			"health":    {"स्वास्थ्य", "सेहत", "तबीयत", "बीमार", "डॉक्टर", "दवा", "health", "doctor", "medicine"},
			"money":     {"पैसा", "लोन", "बैंक", "कर्ज", "money", "loan", "bank"},
			"education": {"पढ़ाई", "स्कूल", "कॉलेज", "परीक्षा", "study", "school", "college", "exam"},
		},
	}
}
