package dialog

import (
	"context"
	"errors"
	"io"
	log "log/slog"
	"sync"
	"time"

	"friday/internal/speech"
)

// Loop is the continuous conversation: listen, handle, speak, repeat,
// until an exit intent or cancellation.
type Loop struct {
	c        *Controller
	idle     time.Duration
	observer func(Result, time.Duration)

	// one microphone, one turn at a time
	mu sync.Mutex
}

func NewLoop(c *Controller, idle time.Duration) *Loop {
	return &Loop{c: c, idle: idle}
}

// Observe registers fn to see every result and how long the turn took,
// e.g. for metrics.
func (l *Loop) Observe(fn func(Result, time.Duration)) { l.observer = fn }

// Run returns nil after an exit intent or when the input is exhausted,
// and ctx.Err() when cancelled.
func (l *Loop) Run(ctx context.Context) error {
	log.Info("Listening loop started")
	defer log.Info("Listening loop stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, heard, err := l.Turn(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if heard && res.Outcome == Terminate {
			return nil
		}

		if err := sleep(ctx, l.idle); err != nil {
			return err
		}
	}
}

// Turn listens once and, if anything was heard, handles and answers it.
// It is also the push-to-talk entry point. Only cancellation and end of
// input are returned as errors.
func (l *Loop) Turn(ctx context.Context) (Result, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	text, err := l.c.listener.Listen(ctx, l.c.opts.ListenTimeout, l.c.opts.PhraseLimit)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return Result{}, false, ctx.Err()
	case errors.Is(err, io.EOF):
		return Result{}, false, err
	case errors.Is(err, speech.ErrNotRecognized):
	default:
		log.Warn("Listen failed", "err", err)
	}

	if text == "" {
		return Result{Outcome: Continue, Response: ResponseNotHeard}, false, nil
	}

	res := l.c.Handle(ctx, text)
	l.c.speaker.Speak(ctx, res.Response)
	if l.observer != nil {
		l.observer(res, time.Since(start))
	}
	return res, true, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
