// Package speechtest provides scripted speech ports for tests.
package speechtest

import (
	"context"
	"sync"
	"time"

	"friday/internal/speech"
)

// Script replays canned replies in order. An empty reply, or running out
// of replies, behaves like a listen timeout.
type Script struct {
	mu      sync.Mutex
	replies []string
	calls   int
}

func NewScript(replies ...string) *Script {
	return &Script{replies: replies}
}

func (s *Script) Listen(ctx context.Context, _, _ time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if len(s.replies) == 0 {
		return "", speech.ErrNotRecognized
	}

	r := s.replies[0]
	s.replies = s.replies[1:]
	if r == "" {
		return "", speech.ErrNotRecognized
	}
	return r, nil
}

// Calls reports how many times Listen was invoked.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Transcript collects everything spoken through it.
type Transcript struct {
	mu    sync.Mutex
	lines []string
}

func (t *Transcript) Speak(_ context.Context, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, text)
}

func (t *Transcript) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}
