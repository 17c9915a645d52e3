package speech

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"time"
	"unicode"
)

// Recorder captures one phrase. No speech before the timeout is reported
// as an empty slice with a nil error.
type Recorder interface {
	Record(ctx context.Context, timeout, phraseLimit time.Duration) ([]float32, error)
}

// Ducker lowers other audio streams while the microphone is open.
type Ducker interface {
	DuckOthers(ctx context.Context, factor float64, duration time.Duration) error
	UnduckOthers(ctx context.Context, duration time.Duration) error
}

type MicOptions struct {
	// Cue runs right before recording, e.g. a chime.
	Cue        func()
	Ducker     Ducker
	DuckFactor float64
	DuckFade   time.Duration
}

// Mic is the voice Listener: record, then transcribe.
type Mic struct {
	rec  Recorder
	tr   Transcriber
	opts MicOptions
}

func NewMic(rec Recorder, tr Transcriber, opts MicOptions) *Mic {
	return &Mic{rec: rec, tr: tr, opts: opts}
}

func (m *Mic) Listen(ctx context.Context, timeout, phraseLimit time.Duration) (string, error) {
	if m.opts.Cue != nil {
		m.opts.Cue()
	}

	if m.opts.Ducker != nil {
		if err := m.opts.Ducker.DuckOthers(ctx, m.opts.DuckFactor, m.opts.DuckFade); err != nil {
			log.Warn("Failed to duck", "err", err)
		}
		defer func() {
			// the listen context may already be gone
			uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := m.opts.Ducker.UnduckOthers(uctx, m.opts.DuckFade); err != nil {
				log.Warn("Failed to unduck", "err", err)
			}
		}()
	}

	pcm, err := m.rec.Record(ctx, timeout, phraseLimit)
	if err != nil {
		return "", fmt.Errorf("record: %w", err)
	}
	if len(pcm) == 0 {
		return "", ErrNotRecognized
	}

	log.Debug("Recorded", "samples", len(pcm))

	text, err := m.tr.Transcribe(ctx, pcm)
	if err != nil {
		return "", err
	}

	text = Clean(text)
	if text == "" {
		return "", ErrNotRecognized
	}

	log.Info("Recognized", "text", text)
	return text, nil
}

// Clean lowercases a transcript and strips the sentence punctuation and
// whitespace recognizers put around it, e.g. " Report." becomes "report".
func Clean(text string) string {
	return strings.ToLower(strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}))
}
