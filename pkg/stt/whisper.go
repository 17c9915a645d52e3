// Package stt runs whisper.cpp models on 16 kHz mono PCM.
package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

var ErrNoSamples = errors.New("no audio samples provided")

type Options struct {
	Language      string // "auto", "en", "ru", ...
	Translate     bool   // translate non-EN -> EN
	Threads       int    // <=0 => NumCPU()
	InitialPrompt string // biases decoding towards command vocabulary
	BeamSize      int    // 0 = greedy
	SplitOnWord   bool
}

type Segment struct {
	Text     string
	StartSec float64
	EndSec   float64
}

type Result struct {
	Text     string
	Segments []Segment
	Language string // detected or forced
}

// Transcriber owns one loaded model. whisper contexts are not shared
// between calls, but model use is serialized.
type Transcriber struct {
	mu    sync.Mutex
	name  string
	model whisper.Model
	opt   Options
}

func NewTranscriber(modelPath string, opt Options) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", modelPath, err)
	}
	if opt.Language == "" {
		opt.Language = "auto"
	}
	return &Transcriber{
		name:  "whisper:" + strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath)),
		model: m,
		opt:   opt,
	}, nil
}

func (t *Transcriber) Name() string { return t.name }

func (t *Transcriber) Close() error {
	if t.model == nil {
		return nil
	}
	return t.model.Close()
}

// Transcribe returns the joined segment text.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	res, err := t.TranscribePCM(ctx, pcm)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// pcm must be mono @ 16 kHz, float32 in [-1, 1]
func (t *Transcriber) TranscribePCM(ctx context.Context, pcm []float32) (Result, error) {
	if t.model == nil {
		return Result{}, errors.New("nil model")
	}
	if len(pcm) == 0 {
		return Result{}, ErrNoSamples
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	wctx, err := t.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("new context: %w", err)
	}

	if err := wctx.SetLanguage(t.opt.Language); err != nil {
		return Result{}, fmt.Errorf("set language: %w", err)
	}
	wctx.SetTranslate(t.opt.Translate)

	threads := t.opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if t.opt.SplitOnWord {
		wctx.SetSplitOnWord(true)
	}
	if t.opt.BeamSize > 0 {
		wctx.SetBeamSize(t.opt.BeamSize)
	}
	if t.opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(t.opt.InitialPrompt)
	}

	if err := wctx.Process(pcm, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("process: %w", err)
	}

	var (
		segs  []Segment
		parts []string
	)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("next segment: %w", err)
		}
		segs = append(segs, Segment{
			Text:     s.Text,
			StartSec: s.Start.Seconds(),
			EndSec:   s.End.Seconds(),
		})
		parts = append(parts, strings.TrimSpace(s.Text))
	}

	lang := wctx.DetectedLanguage()
	if lang == "" {
		lang = wctx.Language()
	}

	return Result{
		Text:     strings.Join(parts, " "),
		Segments: segs,
		Language: lang,
	}, nil
}
