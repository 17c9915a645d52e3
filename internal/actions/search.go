package actions

import (
	"fmt"
	"strings"
)

const maxMatches = 3

// SearchText slides a window as wide as keyword over the words of content
// and keeps windows in which every keyword word appears as a substring.
// At most three windows are returned, in document order.
func SearchText(content, keyword string) []string {
	words := strings.Fields(strings.ToLower(content))
	parts := strings.Fields(strings.ToLower(keyword))
	if len(parts) == 0 {
		return nil
	}

	var matches []string
	for i := range words {
		end := min(i+len(parts), len(words))
		window := strings.Join(words[i:end], " ")

		if containsAll(window, parts) {
			matches = append(matches, window)
			if len(matches) == maxMatches {
				break
			}
		}
	}

	return matches
}

func containsAll(s string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

func searchResponse(keyword string, matches []string) string {
	if len(matches) == 0 {
		return fmt.Sprintf("No matches found for '%s'", keyword)
	}
	return "Found matches: " + strings.Join(matches, ", ")
}
