package identity

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"friday/internal/face"
	"friday/internal/speech"
)

type StateKind int

const (
	Capturing StateKind = iota
	Matched
	Enrolling
	Enrolled
	Abandoned
)

func (k StateKind) String() string {
	switch k {
	case Capturing:
		return "capturing"
	case Matched:
		return "matched"
	case Enrolling:
		return "enrolling"
	case Enrolled:
		return "enrolled"
	case Abandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("state(%d)", int(k))
	}
}

// ErrAbandoned means no face was captured within the attempt budget.
var ErrAbandoned = errors.New("identity session abandoned: no face captured")

const FallbackName = "User"

type Config struct {
	Attempts      int
	Delay         time.Duration
	FallbackName  string
	ListenTimeout time.Duration
	PhraseLimit   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Attempts:      30,
		Delay:         100 * time.Millisecond,
		FallbackName:  FallbackName,
		ListenTimeout: 15 * time.Second,
		PhraseLimit:   20 * time.Second,
	}
}

// Outcome is the terminal state of a Session.
type Outcome struct {
	State    StateKind
	Name     string
	Attempts int
}

type Session struct {
	registry *Registry
	embedder face.Embedder
	cmp      face.Comparator
	speaker  speech.Speaker
	listener speech.Listener
	cfg      Config
}

func NewSession(reg *Registry, emb face.Embedder, cmp face.Comparator, sp speech.Speaker, li speech.Listener, cfg Config) *Session {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultConfig().Attempts
	}
	if cfg.FallbackName == "" {
		cfg.FallbackName = FallbackName
	}

	return &Session{
		registry: reg,
		embedder: emb,
		cmp:      cmp,
		speaker:  sp,
		listener: li,
		cfg:      cfg,
	}
}

// Run captures until a face shows up, then either recognizes it or
// enrolls it. It returns ErrAbandoned once the budget is spent.
func (s *Session) Run(ctx context.Context) (Outcome, error) {
	s.speaker.Speak(ctx, "Let me take a look at you to recognize you.")

	emb, attempts, err := Capture(ctx, s.embedder, s.cfg.Attempts, s.cfg.Delay)
	if err != nil {
		if errors.Is(err, ErrAbandoned) {
			log.Warn("No face captured", "attempts", attempts)
		}
		return Outcome{State: Abandoned, Attempts: attempts}, err
	}

	if name, ok := s.registry.Match(emb, s.cmp); ok {
		log.Info("Recognized", "name", name, "attempts", attempts)
		s.speaker.Speak(ctx, fmt.Sprintf("Welcome back, %s!", name))
		return Outcome{State: Matched, Name: name, Attempts: attempts}, nil
	}

	name, err := s.enroll(ctx, emb)
	if err != nil {
		return Outcome{State: Enrolling, Attempts: attempts}, err
	}

	return Outcome{State: Enrolled, Name: name, Attempts: attempts}, nil
}

func (s *Session) enroll(ctx context.Context, emb []float64) (string, error) {
	s.speaker.Speak(ctx, "I don't recognize you. What's your name?")

	heard, err := s.listener.Listen(ctx, s.cfg.ListenTimeout, s.cfg.PhraseLimit)
	if err != nil && !errors.Is(err, speech.ErrNotRecognized) {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Warn("Listen failed", "err", err)
	}

	name := NormalizeName(heard)
	if name == "" {
		name = s.cfg.FallbackName
		s.speaker.Speak(ctx, fmt.Sprintf("I'll call you %s then!", name))
	}

	if err := s.registry.Enroll(Record{Name: name, Embedding: emb}); err != nil {
		return "", err
	}

	log.Info("Enrolled", "name", name)
	if name != s.cfg.FallbackName {
		s.speaker.Speak(ctx, fmt.Sprintf("Nice to meet you, %s! I'll remember your face.", name))
	}
	return name, nil
}

// Capture polls emb until it yields an embedding, at most attempts times
// with delay between tries. Capture errors count as failed attempts.
func Capture(ctx context.Context, emb face.Embedder, attempts int, delay time.Duration) ([]float64, int, error) {
	for n := 1; n <= attempts; n++ {
		vec, err := emb.Capture(ctx)
		if ctx.Err() != nil {
			return nil, n, ctx.Err()
		}
		if err != nil {
			log.Debug("Capture failed", "attempt", n, "err", err)
		}
		if err == nil && len(vec) > 0 {
			return vec, n, nil
		}

		if n == attempts {
			break
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, n, ctx.Err()
		case <-t.C:
		}
	}

	return nil, attempts, ErrAbandoned
}

// Train enrolls name with a freshly captured face. It backs the
// "train face" voice command.
func Train(ctx context.Context, reg *Registry, emb face.Embedder, name string, attempts int, delay time.Duration) (string, error) {
	name = NormalizeName(strings.TrimSpace(name))
	if name == "" {
		return "", ErrEmptyName
	}

	vec, _, err := Capture(ctx, emb, attempts, delay)
	if err != nil {
		return "", err
	}

	if err := reg.Enroll(Record{Name: name, Embedding: vec}); err != nil {
		return "", err
	}
	return name, nil
}
