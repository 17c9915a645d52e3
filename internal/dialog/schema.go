package dialog

import "friday/internal/intent"

// Slot is one parameter an intent needs before it can run.
type Slot struct {
	Name   string
	Label  string
	Prompt string
	// Prefill lets the slot take the utterance text left over after the
	// matched phrase, e.g. "cats" from "search youtube for cats".
	Prefill bool
}

// Schema maps intent tags to their ordered slots. Tags absent from the
// schema are stateless and execute right away.
type Schema map[string][]Slot

const (
	SlotFileName = "file_name"
	SlotKeyword  = "keyword"
	SlotQuery    = "query"
	SlotName     = "name"
)

func DefaultSchema() Schema {
	fileName := Slot{Name: SlotFileName, Label: "file name", Prompt: "Please say the file name."}

	return Schema{
		intent.OpenFile: {fileName},
		intent.SearchFile: {
			fileName,
			{Name: SlotKeyword, Label: "search keyword", Prompt: "Say the word to search."},
		},
		intent.TrainFace: {
			{Name: SlotName, Label: "name", Prompt: "What is the name of the person?"},
		},
		intent.GoogleSearch: {
			{Name: SlotQuery, Label: "search query", Prompt: "What would you like to search for?", Prefill: true},
		},
		intent.YoutubeSearch: {
			{Name: SlotQuery, Label: "search query", Prompt: "What would you like to search for on YouTube?", Prefill: true},
		},
	}
}

func (s Schema) slots(tag string) []Slot { return s[tag] }

func (s Schema) slot(tag, name string) (Slot, bool) {
	for _, sl := range s[tag] {
		if sl.Name == name {
			return sl, true
		}
	}
	return Slot{}, false
}
