package intent

import (
	"errors"
	"fmt"
	"strings"
)

const (
	OpenFile      = "open_file"
	SearchFile    = "search_file"
	TrainFace     = "train_face"
	Calculator    = "calculator"
	Notepad       = "notepad"
	Chrome        = "chrome"
	YoutubeSearch = "youtube_search"
	GoogleSearch  = "google_search"
	Time          = "time"
	Exit          = "exit"
)

// Template binds an intent tag to the phrases that trigger it.
// Order matters: the matcher walks templates and phrases front to back.
type Template struct {
	Tag     string   `toml:"tag"`
	Phrases []string `toml:"phrases"`
}

// DefaultTemplates is ordered most-specific-first so that generic phrases
// such as "search" cannot shadow "search youtube for" or "search file",
// and searches that name an app ("search for chrome extensions") stay
// searches.
func DefaultTemplates() []Template {
	return []Template{
		{Tag: OpenFile, Phrases: []string{"open file", "open the file", "open document", "open a file"}},
		{Tag: SearchFile, Phrases: []string{"search in file", "search file", "find in file", "search for in file"}},
		{Tag: TrainFace, Phrases: []string{"train face", "learn face", "remember face", "add face"}},
		{Tag: YoutubeSearch, Phrases: []string{"search youtube for", "youtube search", "find on youtube", "youtube"}},
		{Tag: GoogleSearch, Phrases: []string{"search google for", "google search", "search for", "search", "find"}},
		{Tag: Calculator, Phrases: []string{"open calculator", "launch calculator", "start calculator", "calculator"}},
		{Tag: Notepad, Phrases: []string{"open notepad", "launch notepad", "start notepad", "notepad"}},
		{Tag: Chrome, Phrases: []string{"open chrome", "launch chrome", "start chrome", "chrome"}},
		{Tag: Time, Phrases: []string{"what is the time", "current time", "time now", "tell me the time"}},
		{Tag: Exit, Phrases: []string{"exit", "stop", "quit", "goodbye", "bye"}},
	}
}

// KnownTags lists every tag the built-in templates cover.
func KnownTags() []string {
	defaults := DefaultTemplates()
	tags := make([]string, len(defaults))
	for i, t := range defaults {
		tags[i] = t.Tag
	}
	return tags
}

var ErrInvalidTemplate = errors.New("invalid intent template")

// Validate rejects empty tags, duplicate tags and templates without phrases.
func Validate(templates []Template) error {
	if len(templates) == 0 {
		return fmt.Errorf("%w: no templates", ErrInvalidTemplate)
	}

	seen := make(map[string]bool, len(templates))
	for i, t := range templates {
		tag := strings.TrimSpace(t.Tag)
		if tag == "" {
			return fmt.Errorf("%w: template %d has empty tag", ErrInvalidTemplate, i)
		}
		if seen[tag] {
			return fmt.Errorf("%w: duplicate tag %q", ErrInvalidTemplate, tag)
		}
		seen[tag] = true

		if len(t.Phrases) == 0 {
			return fmt.Errorf("%w: tag %q has no phrases", ErrInvalidTemplate, tag)
		}
		for _, p := range t.Phrases {
			if normalize(p) == "" {
				return fmt.Errorf("%w: tag %q has an empty phrase", ErrInvalidTemplate, tag)
			}
		}
	}

	return nil
}

// normalizeTemplates returns a deep copy with trimmed tags and normalized
// phrases, so later edits by the caller cannot leak into a Matcher.
func normalizeTemplates(templates []Template) []Template {
	out := make([]Template, len(templates))
	for i, t := range templates {
		phrases := make([]string, len(t.Phrases))
		for j, p := range t.Phrases {
			phrases[j] = normalize(p)
		}
		out[i] = Template{Tag: strings.TrimSpace(t.Tag), Phrases: phrases}
	}
	return out
}
