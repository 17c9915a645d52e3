// Package identity establishes who is in front of the camera before the
// assistant starts talking to them.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"friday/internal/face"
)

type Record struct {
	Name      string    `json:"name"`
	Embedding []float64 `json:"embedding"`
}

// Store persists records. Load is called once at start-up.
type Store interface {
	Load() ([]Record, error)
	Save(Record) error
}

var (
	ErrEmptyName   = errors.New("empty identity name")
	ErrInvalidName = errors.New("invalid identity name")
)

// Registry is the process-wide name to embedding mapping. Reads work on
// an immutable snapshot and take no lock; Enroll is serialized.
type Registry struct {
	mu      sync.Mutex
	records atomic.Pointer[[]Record]
	store   Store
}

// NewRegistry loads every persisted record from store. A nil store keeps
// the registry in memory only.
func NewRegistry(store Store) (*Registry, error) {
	r := &Registry{store: store}

	var initial []Record
	if store != nil {
		recs, err := store.Load()
		if err != nil {
			return nil, fmt.Errorf("load identities: %w", err)
		}
		for _, rec := range recs {
			initial = upsert(initial, rec)
		}
	}

	r.records.Store(&initial)
	return r, nil
}

// Snapshot returns the records in insertion order.
func (r *Registry) Snapshot() []Record {
	return *r.records.Load()
}

func (r *Registry) Len() int { return len(r.Snapshot()) }

// Match returns the first record, in insertion order, that cmp accepts.
func (r *Registry) Match(candidate []float64, cmp face.Comparator) (string, bool) {
	for _, rec := range r.Snapshot() {
		if cmp.Compare(candidate, rec.Embedding) {
			return rec.Name, true
		}
	}
	return "", false
}

// Enroll persists rec and publishes it. An existing record with the same
// name is replaced in place.
func (r *Registry) Enroll(rec Record) error {
	if rec.Name == "" {
		return ErrEmptyName
	}
	if !validName(rec.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, rec.Name)
	}
	rec.Embedding = append([]float64(nil), rec.Embedding...)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Save(rec); err != nil {
			return fmt.Errorf("save identity %q: %w", rec.Name, err)
		}
	}

	next := upsert(append([]Record(nil), r.Snapshot()...), rec)
	r.records.Store(&next)
	return nil
}

func upsert(recs []Record, rec Record) []Record {
	for i := range recs {
		if recs[i].Name == rec.Name {
			recs[i] = rec
			return recs
		}
	}
	return append(recs, rec)
}

// NormalizeName upper-cases the first letter and lower-cases the rest.
// Characters that cannot appear in a stored name become spaces, and
// punctuation around the name is dropped, so "alex." is "Alex".
func NormalizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(reservedNameChars, r) {
			return ' '
		}
		return r
	}, name)
	name = strings.TrimFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}

	first, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(first)) + strings.ToLower(name[size:])
}

// validName reports whether name maps to its own record file.
func validName(name string) bool {
	return !strings.ContainsAny(name, reservedNameChars) &&
		!strings.HasPrefix(name, ".") &&
		strings.TrimSpace(name) == name
}
