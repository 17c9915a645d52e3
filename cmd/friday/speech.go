package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"

	"friday/internal/audio"
	"friday/internal/config"
	"friday/internal/notify"
	"friday/internal/speech"
	"friday/internal/tts"
	"friday/pkg/stt"
)

type speechIO struct {
	speaker     speech.Speaker
	listener    speech.Listener
	transcriber speech.Transcriber
	closers     []func()
}

func (s *speechIO) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newSpeechIO(cfg *config.Config, textMode bool) (*speechIO, error) {
	sio := &speechIO{}

	// uploads to /process can be transcribed in either mode
	chain, err := loadTranscribers(cfg.Speech, sio)
	if err != nil && !textMode {
		return nil, err
	}
	if len(chain) > 0 {
		sio.transcriber = chain
	}

	if textMode {
		console := speech.NewConsole(os.Stdin, os.Stdout, "Friday: ")
		sio.speaker = console
		sio.listener = console
		return sio, nil
	}

	synths := speech.SpeakerChain{tts.NewEspeak(cfg.Speech.EspeakVoice, cfg.Speech.EspeakRate)}
	if len(cfg.Speech.TTSCommand) > 0 {
		synths = append(synths, tts.Command{Argv: cfg.Speech.TTSCommand})
	}
	sio.speaker = synths

	rec := audio.NewRecorder(audio.RecorderConfig{
		SilenceRMS:  cfg.Speech.SilenceRMS,
		SilenceHold: cfg.Speech.SilenceHold.Duration,
	})
	if err := rec.Init(); err != nil {
		sio.Close()
		return nil, fmt.Errorf("init audio: %w", err)
	}
	sio.closers = append(sio.closers, rec.Close)
	log.Debug("Loaded recorder")

	opts := speech.MicOptions{
		Cue:        cue(cfg.Speech),
		DuckFactor: cfg.Speech.DuckFactor,
		DuckFade:   cfg.Speech.DuckFade.Duration,
	}
	if cfg.Speech.DuckFactor > 0 && cfg.Speech.DuckFactor < 1 {
		opts.Ducker = audio.NewDucker([]string{"friday", "espeak-ng"}, cfg.Speech.DuckMinVolume)
	}
	mic := speech.NewMic(rec, chain, opts)
	if cfg.Speech.KeyboardFallback {
		sio.listener = speech.ListenerChain{mic, speech.NewConsole(os.Stdin, os.Stdout, "> ")}
	} else {
		sio.listener = mic
	}

	return sio, nil
}

// loadTranscribers loads every configured whisper model that opens, in
// order, so a broken large model falls back to a smaller one.
func loadTranscribers(cfg config.SpeechConfig, sio *speechIO) (speech.TranscriberChain, error) {
	if len(cfg.WhisperModels) == 0 {
		return nil, errors.New("no whisper models configured")
	}

	var (
		chain speech.TranscriberChain
		errs  []error
	)
	for _, path := range cfg.WhisperModels {
		tr, err := stt.NewTranscriber(path, stt.Options{
			Language:      cfg.Language,
			Threads:       cfg.Threads,
			InitialPrompt: cfg.InitialPrompt,
		})
		if err != nil {
			log.Warn("Failed to load whisper model", "path", path, "err", err)
			errs = append(errs, err)
			continue
		}
		sio.closers = append(sio.closers, func() { tr.Close() })
		chain = append(chain, tr)
		log.Debug("Loaded whisper", "model", tr.Name())
	}

	if len(chain) == 0 {
		return nil, fmt.Errorf("no whisper model could be loaded: %w", errors.Join(errs...))
	}
	return chain, nil
}

func cue(cfg config.SpeechConfig) func() {
	var chime *notify.Chime
	if cfg.Chime != "" {
		chime = notify.NewChime(cfg.Chime)
	}
	var desktop *notify.Desktop
	if cfg.Notify {
		desktop = notify.NewDesktop("friday")
	}

	return func() {
		if desktop != nil {
			if err := desktop.Send(context.Background(), "Listening..."); err != nil {
				log.Debug("Notification failed", "err", err)
			}
		}
		if chime != nil {
			if err := chime.Play(); err != nil {
				log.Debug("Chime failed", "err", err)
			}
		}
	}
}
