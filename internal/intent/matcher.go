package intent

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	// DefaultThreshold is the acceptance ratio of the app profile.
	DefaultThreshold = 0.6
	// AssistantThreshold is the looser ratio of the standalone assistant profile.
	AssistantThreshold = 0.5
)

type Utterance struct {
	Text       string
	Normalized string
}

func NewUtterance(text string) Utterance {
	return Utterance{Text: text, Normalized: normalize(text)}
}

// Match is the outcome of resolving one utterance. An empty Tag means
// nothing matched. Phrase and Rest are only set on a literal hit.
type Match struct {
	Tag        string
	Confidence float64
	Phrase     string
	Rest       string
}

func (m Match) Resolved() bool { return m.Tag != "" }

type Matcher struct {
	templates []Template
	threshold float64
}

func NewMatcher(templates []Template, threshold float64) (*Matcher, error) {
	if err := Validate(templates); err != nil {
		return nil, err
	}
	if threshold < 0 || threshold >= 1 {
		return nil, fmt.Errorf("threshold %.2f out of range [0,1)", threshold)
	}

	return &Matcher{
		templates: normalizeTemplates(templates),
		threshold: threshold,
	}, nil
}

func (m *Matcher) Threshold() float64 { return m.threshold }

// Tags lists the closed tag set in template order.
func (m *Matcher) Tags() []string {
	tags := make([]string, len(m.templates))
	for i, t := range m.templates {
		tags[i] = t.Tag
	}
	return tags
}

func (m *Matcher) Has(tag string) bool {
	for _, t := range m.templates {
		if t.Tag == tag {
			return true
		}
	}
	return false
}

// Resolve maps text to an intent. A literal phrase hit wins outright with
// confidence 1; otherwise the best fuzzy ratio above the threshold is
// taken, with ties going to the first template evaluated.
func (m *Matcher) Resolve(text string) Match {
	u := NewUtterance(text)
	if u.Normalized == "" {
		return Match{}
	}

	for _, t := range m.templates {
		for _, p := range t.Phrases {
			if strings.Contains(u.Normalized, p) {
				return Match{
					Tag:        t.Tag,
					Confidence: 1,
					Phrase:     p,
					Rest:       trimTriggers(strip(u.Normalized, p), t.Phrases),
				}
			}
		}
	}

	var (
		best    string
		highest float64
	)
	for _, t := range m.templates {
		for _, p := range t.Phrases {
			r := Ratio(u.Normalized, p)
			if r > highest {
				highest = r
				best = t.Tag
			}
		}
	}

	if highest > m.threshold {
		return Match{Tag: best, Confidence: highest}
	}

	return Match{Confidence: highest}
}

// Ratio is the Levenshtein similarity of a and b scaled to [0,1].
func Ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func strip(text, phrase string) string {
	rest := strings.Replace(text, phrase, " ", 1)
	return strings.Join(strings.Fields(rest), " ")
}

// trimTriggers drops words of the template's own phrases from both ends
// of rest, so "search youtube" leaves no query and "youtube search for
// cats" leaves "cats".
func trimTriggers(rest string, phrases []string) string {
	vocab := make(map[string]bool)
	for _, p := range phrases {
		for _, w := range strings.Fields(p) {
			vocab[w] = true
		}
	}

	words := strings.Fields(rest)
	for len(words) > 0 && vocab[words[0]] {
		words = words[1:]
	}
	for len(words) > 0 && vocab[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}
