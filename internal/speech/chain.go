package speech

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"
)

// SpeakerChain tries each synth in order until one succeeds.
type SpeakerChain []Synth

func (c SpeakerChain) Speak(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	for _, s := range c {
		err := s.Say(ctx, text)
		if err == nil {
			return
		}
		log.Warn("Synth failed", "synth", s.Name(), "err", err)
		if ctx.Err() != nil {
			return
		}
	}

	log.Error("No synth could speak", "text", text)
}

// TranscriberChain tries each transcriber in order. The first non-empty
// transcript wins; exhausting the chain yields ErrNotRecognized.
type TranscriberChain []Transcriber

func (c TranscriberChain) Name() string {
	names := make([]string, len(c))
	for i, t := range c {
		names[i] = t.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c TranscriberChain) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	var errs []error

	for _, t := range c {
		text, err := t.Transcribe(ctx, pcm)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Warn("Transcriber failed", "transcriber", t.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
			continue
		}

		if text = strings.TrimSpace(text); text != "" {
			return text, nil
		}
	}

	return "", errors.Join(append([]error{ErrNotRecognized}, errs...)...)
}

// ListenerChain asks each listener in turn, e.g. the microphone first and
// the keyboard when nothing was heard.
type ListenerChain []Listener

func (c ListenerChain) Listen(ctx context.Context, timeout, phraseLimit time.Duration) (string, error) {
	var errs []error

	for _, l := range c {
		text, err := l.Listen(ctx, timeout, phraseLimit)
		if err == nil && text != "" {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err != nil && !errors.Is(err, ErrNotRecognized) {
			log.Warn("Listener failed", "err", err)
			errs = append(errs, err)
		}
	}

	return "", errors.Join(append([]error{ErrNotRecognized}, errs...)...)
}
