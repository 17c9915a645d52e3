package intent

import (
	"context"
	log "log/slog"
)

// Classifier is a last-resort tagger consulted when no template matches.
type Classifier interface {
	Classify(ctx context.Context, text string, tags []string) (string, error)
}

const fallbackConfidence = 0.5

// Resolver runs the template matcher and, when configured, a fallback
// classifier. Fallback answers outside the matcher's tag set are dropped.
type Resolver struct {
	matcher  *Matcher
	fallback Classifier
}

func NewResolver(m *Matcher, fallback Classifier) *Resolver {
	return &Resolver{matcher: m, fallback: fallback}
}

func (r *Resolver) Matcher() *Matcher { return r.matcher }

func (r *Resolver) Resolve(ctx context.Context, text string) Match {
	m := r.matcher.Resolve(text)
	if m.Resolved() || r.fallback == nil || normalize(text) == "" {
		return m
	}

	tag, err := r.fallback.Classify(ctx, normalize(text), r.matcher.Tags())
	if err != nil {
		log.Warn("Fallback classifier failed", "err", err)
		return m
	}
	if !r.matcher.Has(tag) {
		log.Debug("Fallback classifier returned unknown tag", "tag", tag)
		return m
	}

	return Match{Tag: tag, Confidence: fallbackConfidence}
}
