// Package speech holds the speech capability ports and their adapters.
// A Speaker renders text, a Listener returns one recognized utterance.
package speech

import (
	"context"
	"errors"
	"time"
)

// ErrNotRecognized means nothing intelligible was heard before the timeout.
var ErrNotRecognized = errors.New("speech not recognized")

// Speaker is best effort: failures are logged, never returned.
type Speaker interface {
	Speak(ctx context.Context, text string)
}

// Listener waits up to timeout for speech to start and records at most
// phraseLimit of it. An empty result comes with ErrNotRecognized.
type Listener interface {
	Listen(ctx context.Context, timeout, phraseLimit time.Duration) (string, error)
}

// Synth is one concrete text-to-speech backend.
type Synth interface {
	Name() string
	Say(ctx context.Context, text string) error
}

// Transcriber turns 16 kHz mono PCM into text.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

// Silent is the port pair used by one-shot surfaces: it never talks and
// never hears anything.
type Silent struct{}

func (Silent) Speak(context.Context, string) {}

func (Silent) Listen(ctx context.Context, _, _ time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", ErrNotRecognized
}
