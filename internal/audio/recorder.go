// Package audio talks to the sound system: microphone capture through
// PortAudio and volume ducking through pactl.
package audio

import (
	"context"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	sampleRate = 16000
	frameSize  = 320 // 20ms
	frameDur   = 20 * time.Millisecond
)

type RecorderConfig struct {
	// SilenceRMS is the level below which a frame counts as silence.
	SilenceRMS float64
	// SilenceHold ends a phrase once this much silence followed speech.
	SilenceHold time.Duration
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		SilenceRMS:  0.015,
		SilenceHold: 600 * time.Millisecond,
	}
}

type Recorder struct {
	cfg RecorderConfig
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	if cfg.SilenceRMS <= 0 {
		cfg.SilenceRMS = DefaultRecorderConfig().SilenceRMS
	}
	if cfg.SilenceHold <= 0 {
		cfg.SilenceHold = DefaultRecorderConfig().SilenceHold
	}
	return &Recorder{cfg: cfg}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Record waits up to timeout for speech to start, then keeps recording
// until a pause or phraseLimit. No speech at all yields an empty slice.
func (r *Recorder) Record(ctx context.Context, timeout, phraseLimit time.Duration) ([]float32, error) {
	buf := make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, sampleRate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	seg := newSegmenter(r.cfg, timeout, phraseLimit)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		if seg.push(buf) {
			return seg.out, nil
		}
	}
}

// segmenter is the frame-level phrase detector behind Record.
type segmenter struct {
	cfg          RecorderConfig
	waitFrames   int
	phraseFrames int

	frames   int
	speaking bool
	spoken   int
	silence  int
	out      []float32
}

func newSegmenter(cfg RecorderConfig, timeout, phraseLimit time.Duration) *segmenter {
	s := &segmenter{
		cfg:          cfg,
		waitFrames:   int(timeout / frameDur),
		phraseFrames: int(phraseLimit / frameDur),
	}
	if s.waitFrames <= 0 {
		s.waitFrames = math.MaxInt
	}
	if s.phraseFrames <= 0 {
		s.phraseFrames = math.MaxInt
	}
	return s
}

// push consumes one frame and reports whether the phrase is over.
func (s *segmenter) push(frame []float32) bool {
	s.frames++
	loud := frameRMS(frame) > s.cfg.SilenceRMS

	if !s.speaking {
		if !loud {
			return s.frames >= s.waitFrames
		}
		s.speaking = true
	}

	s.out = append(s.out, frame...)
	s.spoken++

	if loud {
		s.silence = 0
	} else {
		s.silence++
		if time.Duration(s.silence)*frameDur >= s.cfg.SilenceHold {
			return true
		}
	}
	return s.spoken >= s.phraseFrames
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
