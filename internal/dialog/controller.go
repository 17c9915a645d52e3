// Package dialog drives a resolved intent to a spoken response, asking
// follow-up questions for any slot the utterance did not supply.
package dialog

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"friday/internal/intent"
	"friday/internal/speech"
)

const (
	ResponseGoodbye       = "Goodbye!"
	ResponseNotUnderstood = "I didn't understand. Please try again."
	ResponseNotHeard      = "I didn't hear anything. Please try again."
)

// Outcome tells the enclosing loop what to do after a turn.
type Outcome int

const (
	Continue Outcome = iota
	Terminate
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Terminate:
		return "terminate"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is what one turn produced. Response is always speakable.
type Result struct {
	Tag      string
	Outcome  Outcome
	Response string
	Reason   string
}

// Resolver maps an utterance to an intent.
type Resolver interface {
	Resolve(ctx context.Context, text string) intent.Match
}

// Executor runs a fully specified intent. Returned errors are turned into
// a response by the controller.
type Executor interface {
	Execute(ctx context.Context, tag string, slots map[string]string) (string, error)
}

// SlotChecker is optionally implemented by an Executor to reject a slot
// value early. A rejection ends the dialog with the given response.
type SlotChecker interface {
	CheckSlot(ctx context.Context, tag, slot, value string) (response string, ok bool)
}

type Options struct {
	MaxRetries    int
	ListenTimeout time.Duration
	PhraseLimit   time.Duration
	Schema        Schema
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:    1,
		ListenTimeout: 15 * time.Second,
		PhraseLimit:   20 * time.Second,
		Schema:        DefaultSchema(),
	}
}

type Controller struct {
	resolver Resolver
	exec     Executor
	speaker  speech.Speaker
	listener speech.Listener
	opts     Options
}

func NewController(r Resolver, exec Executor, sp speech.Speaker, li speech.Listener, opts Options) *Controller {
	if opts.Schema == nil {
		opts.Schema = DefaultSchema()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	return &Controller{
		resolver: r,
		exec:     exec,
		speaker:  sp,
		listener: li,
		opts:     opts,
	}
}

// Handle runs one conversational turn for text.
func (c *Controller) Handle(ctx context.Context, text string) Result {
	return c.Dispatch(ctx, text, nil)
}

// Dispatch is Handle with slot values supplied up front. Values for slots
// the intent does not declare are ignored.
func (c *Controller) Dispatch(ctx context.Context, text string, slots map[string]string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Outcome: Continue, Response: ResponseNotHeard}
	}

	m := c.resolver.Resolve(ctx, text)
	log.Debug("Resolved", "text", text, "tag", m.Tag, "confidence", m.Confidence)

	if !m.Resolved() {
		return Result{Outcome: Continue, Response: ResponseNotUnderstood}
	}
	if m.Tag == intent.Exit {
		return Result{Tag: m.Tag, Outcome: Terminate, Response: ResponseGoodbye}
	}

	s := c.Begin(m, slots)
	for !s.State.Terminal() {
		c.Step(ctx, s)
	}

	return c.result(s)
}

// Begin opens a session for m. Prefill slots take the text left over
// after the matched phrase unless the caller supplied a value.
func (c *Controller) Begin(m intent.Match, slots map[string]string) *Session {
	schema := c.opts.Schema.slots(m.Tag)

	preset := make(map[string]string, len(schema))
	for _, sl := range schema {
		if v := speech.Clean(slots[sl.Name]); v != "" {
			preset[sl.Name] = v
		} else if sl.Prefill && m.Rest != "" {
			preset[sl.Name] = m.Rest
		}
	}

	return newSession(m.Tag, schema, preset, c.opts.MaxRetries)
}

// Step performs exactly one transition of s.
func (c *Controller) Step(ctx context.Context, s *Session) {
	switch s.State.Kind {
	case StateAwaitingSlot:
		c.collect(ctx, s)
	case StateExecuting:
		c.execute(ctx, s)
	}
}

func (c *Controller) collect(ctx context.Context, s *Session) {
	slot, _ := c.opts.Schema.slot(s.Tag, s.State.Slot)

	c.speaker.Speak(ctx, slot.Prompt)
	value, err := c.listener.Listen(ctx, c.opts.ListenTimeout, c.opts.PhraseLimit)
	if err != nil && !errors.Is(err, speech.ErrNotRecognized) {
		log.Warn("Listen failed", "slot", slot.Name, "err", err)
	}

	if ctx.Err() != nil {
		s.fail(slot.Name)
		return
	}

	value = speech.Clean(value)
	if value == "" {
		if s.RetryCount >= s.MaxRetries {
			s.fail(slot.Name)
			return
		}
		s.RetryCount++
		log.Debug("Re-prompting", "slot", slot.Name, "retry", s.RetryCount)
		return
	}

	if checker, ok := c.exec.(SlotChecker); ok {
		if resp, ok := checker.CheckSlot(ctx, s.Tag, slot.Name, value); !ok {
			s.done(resp)
			return
		}
	}

	s.fill(value)
}

func (c *Controller) execute(ctx context.Context, s *Session) {
	resp, err := c.exec.Execute(ctx, s.Tag, s.slotsCopy())
	if err != nil {
		log.Error("Action failed", "intent", s.Tag, "err", err)
		resp = fmt.Sprintf("Sorry, I couldn't do that: %v", err)
	}
	s.done(resp)
}

func (c *Controller) result(s *Session) Result {
	if s.State.Kind == StateFailed {
		label := s.State.Slot
		if slot, ok := c.opts.Schema.slot(s.Tag, s.State.Slot); ok {
			label = slot.Label
		}
		return Result{
			Tag:      s.Tag,
			Outcome:  Failed,
			Response: fmt.Sprintf("I couldn't understand the %s.", label),
			Reason:   s.State.Reason,
		}
	}

	return Result{Tag: s.Tag, Outcome: Continue, Response: s.State.Response}
}
