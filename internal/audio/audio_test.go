package audio

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sinkInputs = `Sink Input #41
	Driver: protocol-native.c
	Volume: front-left: 52428 /  80% / -5.81 dB,   front-right: 52428 /  80% / -5.81 dB
	Properties:
		application.name = "Firefox"
Sink Input #57
	Volume: front-left: 65536 / 100% / 0.00 dB
	Properties:
		application.name = "friday"
Sink Input #bogus
	Volume: 10%
`

func TestParseSinkInputs(t *testing.T) {
	got := parseSinkInputs(sinkInputs)
	assert.Equal(t, []streamInfo{
		{ID: 41, Volume: 80, AppName: "Firefox"},
		{ID: 57, Volume: 100, AppName: "friday"},
	}, got)

	assert.Empty(t, parseSinkInputs(""))
}

type fakePactl struct {
	mu   sync.Mutex
	list string
	sets []string
}

func (f *fakePactl) run(_ context.Context, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if args[0] == "list" {
		return []byte(f.list), nil
	}
	f.sets = append(f.sets, strings.Join(args[1:], " "))
	return nil, nil
}

func TestDuckerSkipsSelfAndRestores(t *testing.T) {
	fake := &fakePactl{list: sinkInputs}
	d := NewDucker([]string{"friday"}, 10)
	d.pactl = fake.run

	ctx := context.Background()
	require.NoError(t, d.DuckOthers(ctx, 0.25, 0))
	assert.Equal(t, []string{"41 20%"}, fake.sets)

	// second duck is a no-op
	require.NoError(t, d.DuckOthers(ctx, 0.25, 0))
	assert.Len(t, fake.sets, 1)

	fake.list = strings.Replace(sinkInputs, "80%", "20%", 1)
	require.NoError(t, d.UnduckOthers(ctx, 0))
	assert.Equal(t, []string{"41 20%", "41 80%"}, fake.sets)
}

func TestDuckerFloorAndFade(t *testing.T) {
	fake := &fakePactl{list: sinkInputs}
	d := NewDucker(nil, 70)
	d.pactl = fake.run
	d.step = time.Millisecond

	require.NoError(t, d.DuckOthers(context.Background(), 0.1, 2*time.Millisecond))
	assert.Equal(t, []string{"41 80%", "57 100%", "41 75%", "57 85%", "41 70%", "57 70%"}, fake.sets)
}

func frame(level float32) []float32 {
	f := make([]float32, frameSize)
	for i := range f {
		f[i] = level
	}
	return f
}

func TestSegmenterTimesOutWithoutSpeech(t *testing.T) {
	seg := newSegmenter(DefaultRecorderConfig(), 100*time.Millisecond, time.Second)
	for i := 1; i < 5; i++ {
		assert.False(t, seg.push(frame(0)))
	}
	assert.True(t, seg.push(frame(0)))
	assert.Empty(t, seg.out)
}

func TestSegmenterEndsOnPause(t *testing.T) {
	seg := newSegmenter(DefaultRecorderConfig(), time.Second, 10*time.Second)

	assert.False(t, seg.push(frame(0)))
	for range 10 {
		assert.False(t, seg.push(frame(0.2)))
	}
	// 600ms of silence is 30 frames
	for range 29 {
		assert.False(t, seg.push(frame(0)))
	}
	assert.True(t, seg.push(frame(0)))
	assert.Len(t, seg.out, 40*frameSize)
}

func TestSegmenterPhraseLimit(t *testing.T) {
	seg := newSegmenter(DefaultRecorderConfig(), time.Second, 100*time.Millisecond)
	for range 4 {
		assert.False(t, seg.push(frame(0.2)))
	}
	assert.True(t, seg.push(frame(0.2)))
}
