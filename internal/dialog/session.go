package dialog

import "fmt"

type StateKind int

const (
	StateAwaitingSlot StateKind = iota
	StateExecuting
	StateDone
	StateFailed
)

func (k StateKind) String() string {
	switch k {
	case StateAwaitingSlot:
		return "awaiting_slot"
	case StateExecuting:
		return "executing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(k))
	}
}

// State is the current node of a Session. Slot is set while awaiting and
// on failure, Response on Done, Reason on Failed.
type State struct {
	Kind     StateKind
	Slot     string
	Response string
	Reason   string
}

func (s State) Terminal() bool {
	return s.Kind == StateDone || s.Kind == StateFailed
}

// Session carries one intent from resolved to executed.
type Session struct {
	Tag        string
	Collected  map[string]string
	Missing    []string
	RetryCount int
	MaxRetries int
	State      State
}

func newSession(tag string, slots []Slot, preset map[string]string, maxRetries int) *Session {
	s := &Session{
		Tag:        tag,
		Collected:  make(map[string]string, len(slots)),
		MaxRetries: maxRetries,
	}

	for _, sl := range slots {
		if v, ok := preset[sl.Name]; ok && v != "" {
			s.Collected[sl.Name] = v
			continue
		}
		s.Missing = append(s.Missing, sl.Name)
	}

	s.advance()
	return s
}

// fill records a value for the slot being awaited and moves on.
func (s *Session) fill(value string) {
	s.Collected[s.State.Slot] = value
	s.Missing = s.Missing[1:]
	s.RetryCount = 0
	s.advance()
}

func (s *Session) advance() {
	if len(s.Missing) > 0 {
		s.State = State{Kind: StateAwaitingSlot, Slot: s.Missing[0]}
		return
	}
	s.State = State{Kind: StateExecuting}
}

func (s *Session) done(response string) {
	s.State = State{Kind: StateDone, Response: response}
}

func (s *Session) fail(slot string) {
	s.State = State{
		Kind:   StateFailed,
		Slot:   slot,
		Reason: "could not resolve " + slot,
	}
}

// slotsCopy hands executors a map they cannot use to mutate the session.
func (s *Session) slotsCopy() map[string]string {
	out := make(map[string]string, len(s.Collected))
	for k, v := range s.Collected {
		out[k] = v
	}
	return out
}
