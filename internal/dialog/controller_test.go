package dialog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"friday/internal/intent"
	"friday/internal/speech/speechtest"
)

type call struct {
	tag   string
	slots map[string]string
}

type stubExecutor struct {
	mu       sync.Mutex
	calls    []call
	response string
	err      error
	missing  map[string]bool
}

func (e *stubExecutor) Execute(_ context.Context, tag string, slots map[string]string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call{tag: tag, slots: slots})
	if e.err != nil {
		return "", e.err
	}
	if e.response != "" {
		return e.response, nil
	}
	return "done " + tag, nil
}

func (e *stubExecutor) CheckSlot(_ context.Context, _, slot, value string) (string, bool) {
	if slot == SlotFileName && e.missing[value] {
		return "File not found.", false
	}
	return "", true
}

type harness struct {
	ctrl     *Controller
	exec     *stubExecutor
	listener *speechtest.Script
	speaker  *speechtest.Transcript
}

func newHarness(t *testing.T, replies ...string) *harness {
	t.Helper()

	m, err := intent.NewMatcher(intent.DefaultTemplates(), intent.DefaultThreshold)
	require.NoError(t, err)

	h := &harness{
		exec:     &stubExecutor{},
		listener: speechtest.NewScript(replies...),
		speaker:  &speechtest.Transcript{},
	}
	opts := DefaultOptions()
	opts.ListenTimeout = time.Second
	h.ctrl = NewController(intent.NewResolver(m, nil), h.exec, h.speaker, h.listener, opts)
	return h
}

func TestSearchFileFailsAfterOneRetry(t *testing.T) {
	h := newHarness(t, "", "")

	res := h.ctrl.Handle(context.Background(), "search in file")

	assert.Equal(t, Failed, res.Outcome)
	assert.Equal(t, "could not resolve file_name", res.Reason)
	assert.Equal(t, "I couldn't understand the file name.", res.Response)
	assert.Empty(t, h.exec.calls, "executor must not run")
	assert.Equal(t, 2, h.listener.Calls())
	assert.Equal(t, []string{"Please say the file name.", "Please say the file name."}, h.speaker.Lines())
}

func TestSearchFileCollectsSlotsInOrder(t *testing.T) {
	h := newHarness(t, "notes", "hello world")

	res := h.ctrl.Handle(context.Background(), "find in file")

	assert.Equal(t, Continue, res.Outcome)
	assert.Equal(t, "done search_file", res.Response)
	require.Len(t, h.exec.calls, 1)
	assert.Equal(t, map[string]string{SlotFileName: "notes", SlotKeyword: "hello world"}, h.exec.calls[0].slots)
	assert.Equal(t, []string{"Please say the file name.", "Say the word to search."}, h.speaker.Lines())
}

func TestSlotValuesLosePunctuation(t *testing.T) {
	h := newHarness(t, " Report.", "Hello world!")

	h.ctrl.Handle(context.Background(), "search file")

	require.Len(t, h.exec.calls, 1)
	assert.Equal(t, map[string]string{SlotFileName: "report", SlotKeyword: "hello world"}, h.exec.calls[0].slots)

	h = newHarness(t)
	h.ctrl.Dispatch(context.Background(), "open file", map[string]string{SlotFileName: "Notes."})
	require.Len(t, h.exec.calls, 1)
	assert.Equal(t, "notes", h.exec.calls[0].slots[SlotFileName])
}

func TestRetryResetsPerSlot(t *testing.T) {
	h := newHarness(t, "", "notes", "", "hello")

	res := h.ctrl.Handle(context.Background(), "search file")

	assert.Equal(t, Continue, res.Outcome)
	require.Len(t, h.exec.calls, 1)
	assert.Equal(t, "hello", h.exec.calls[0].slots[SlotKeyword])
	assert.Equal(t, 4, h.listener.Calls())
}

func TestQueryPrefilledFromUtterance(t *testing.T) {
	h := newHarness(t)

	res := h.ctrl.Handle(context.Background(), "search youtube for cat videos")

	assert.Equal(t, "done youtube_search", res.Response)
	require.Len(t, h.exec.calls, 1)
	assert.Equal(t, "youtube_search", h.exec.calls[0].tag)
	assert.Equal(t, "cat videos", h.exec.calls[0].slots[SlotQuery])
	assert.Zero(t, h.listener.Calls())
}

func TestQueryPromptedWhenAbsent(t *testing.T) {
	h := newHarness(t, "lofi beats")

	h.ctrl.Handle(context.Background(), "youtube")

	require.Len(t, h.exec.calls, 1)
	assert.Equal(t, "lofi beats", h.exec.calls[0].slots[SlotQuery])
	assert.Equal(t, []string{"What would you like to search for on YouTube?"}, h.speaker.Lines())
}

func TestQueryPromptedWhenOnlyTriggerWords(t *testing.T) {
	h := newHarness(t, "cats")

	h.ctrl.Handle(context.Background(), "search youtube")

	require.Len(t, h.exec.calls, 1)
	assert.Equal(t, intent.YoutubeSearch, h.exec.calls[0].tag)
	assert.Equal(t, "cats", h.exec.calls[0].slots[SlotQuery])
	assert.Equal(t, 1, h.listener.Calls())
}

func TestExitTerminates(t *testing.T) {
	h := newHarness(t)

	res := h.ctrl.Handle(context.Background(), "ok goodbye")

	assert.Equal(t, Terminate, res.Outcome)
	assert.Equal(t, ResponseGoodbye, res.Response)
	assert.Empty(t, h.exec.calls)
}

func TestUnresolvedAndEmpty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res := h.ctrl.Handle(ctx, "xyz")
	assert.Equal(t, Continue, res.Outcome)
	assert.Equal(t, ResponseNotUnderstood, res.Response)
	assert.Empty(t, res.Tag)

	res = h.ctrl.Handle(ctx, "  ")
	assert.Equal(t, ResponseNotHeard, res.Response)
	assert.Empty(t, h.exec.calls)
}

func TestExecutorErrorBecomesResponse(t *testing.T) {
	h := newHarness(t)
	h.exec.err = errors.New("permission denied")

	res := h.ctrl.Handle(context.Background(), "open calculator")

	assert.Equal(t, Continue, res.Outcome)
	assert.Equal(t, "Sorry, I couldn't do that: permission denied", res.Response)
}

func TestSlotCheckerEndsDialogEarly(t *testing.T) {
	h := newHarness(t, "ghost", "never asked")
	h.exec.missing = map[string]bool{"ghost": true}

	res := h.ctrl.Handle(context.Background(), "search in file")

	assert.Equal(t, Continue, res.Outcome)
	assert.Equal(t, "File not found.", res.Response)
	assert.Empty(t, h.exec.calls)
	assert.Equal(t, 1, h.listener.Calls())
}

func TestDispatchDropsUndeclaredSlots(t *testing.T) {
	h := newHarness(t)

	res := h.ctrl.Dispatch(context.Background(), "open file", map[string]string{
		SlotFileName: "notes",
		"bogus":      "value",
	})

	assert.Equal(t, "done open_file", res.Response)
	require.Len(t, h.exec.calls, 1)
	assert.Equal(t, map[string]string{SlotFileName: "notes"}, h.exec.calls[0].slots)
}

func TestSessionTransitions(t *testing.T) {
	h := newHarness(t, "notes", "")
	ctx := context.Background()

	s := h.ctrl.Begin(intent.Match{Tag: intent.SearchFile, Confidence: 1}, nil)
	assert.Equal(t, State{Kind: StateAwaitingSlot, Slot: SlotFileName}, s.State)
	assert.Equal(t, []string{SlotFileName, SlotKeyword}, s.Missing)
	assert.Equal(t, 1, s.MaxRetries)

	h.ctrl.Step(ctx, s)
	assert.Equal(t, State{Kind: StateAwaitingSlot, Slot: SlotKeyword}, s.State)
	assert.Equal(t, []string{SlotKeyword}, s.Missing)

	h.ctrl.Step(ctx, s)
	assert.Equal(t, StateAwaitingSlot, s.State.Kind)
	assert.Equal(t, 1, s.RetryCount)

	h.ctrl.Step(ctx, s)
	assert.Equal(t, StateFailed, s.State.Kind)
	assert.True(t, s.State.Terminal())
	assert.NotContains(t, s.Collected, SlotKeyword)

	stateless := h.ctrl.Begin(intent.Match{Tag: intent.Time, Confidence: 1}, nil)
	assert.Equal(t, StateExecuting, stateless.State.Kind)
	h.ctrl.Step(ctx, stateless)
	assert.Equal(t, State{Kind: StateDone, Response: "done time"}, stateless.State)
}

func TestCancelledContextFailsSlot(t *testing.T) {
	h := newHarness(t, "notes")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := h.ctrl.Handle(ctx, "open file")

	assert.Equal(t, Failed, res.Outcome)
	assert.Empty(t, h.exec.calls)
}

func TestLoopRunsUntilExit(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, "open calculator", "", "xyz", "bye", "never heard")
	loop := NewLoop(h.ctrl, 0)

	var outcomes []Outcome
	loop.Observe(func(r Result, _ time.Duration) { outcomes = append(outcomes, r.Outcome) })

	err := loop.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []Outcome{Continue, Continue, Terminate}, outcomes)
	assert.Equal(t, []string{"done calculator", ResponseNotUnderstood, ResponseGoodbye}, h.speaker.Lines())
	assert.Equal(t, 4, h.listener.Calls())
}

func TestLoopTurn(t *testing.T) {
	h := newHarness(t, "", "what is the time")
	loop := NewLoop(h.ctrl, 0)

	res, heard, err := loop.Turn(context.Background())
	require.NoError(t, err)
	assert.False(t, heard)
	assert.Equal(t, ResponseNotHeard, res.Response)
	assert.Empty(t, h.speaker.Lines())

	res, heard, err = loop.Turn(context.Background())
	require.NoError(t, err)
	assert.True(t, heard)
	assert.Equal(t, "done time", res.Response)
	assert.Equal(t, []string{"done time"}, h.speaker.Lines())
}

func TestLoopStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t)
	loop := NewLoop(h.ctrl, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
