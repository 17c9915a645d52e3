// Package config loads the daemon configuration: built-in defaults, then
// an optional TOML file, then FRIDAY_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"friday/internal/actions"
	"friday/internal/dialog"
	"friday/internal/face"
	"friday/internal/identity"
	"friday/internal/intent"
)

const (
	ModeApp       = "app"
	ModeAssistant = "assistant"
)

var ErrInvalid = errors.New("invalid config")

// Duration reads "15s" style strings from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type MatcherConfig struct {
	Threshold          float64 `toml:"threshold"`
	AssistantThreshold float64 `toml:"assistant_threshold"`
	LLMFallback        bool    `toml:"llm_fallback"`
	Model              string  `toml:"model"`
}

type DialogConfig struct {
	MaxRetries    int      `toml:"max_retries"`
	ListenTimeout Duration `toml:"listen_timeout"`
	PhraseLimit   Duration `toml:"phrase_limit"`
	Idle          Duration `toml:"idle"`
	// PushToTalk listens only when friday-ctl sends a trigger.
	PushToTalk bool `toml:"push_to_talk"`
}

type IdentityConfig struct {
	Enabled      bool     `toml:"enabled"`
	Dir          string   `toml:"dir"`
	Attempts     int      `toml:"attempts"`
	Delay        Duration `toml:"delay"`
	Tolerance    float64  `toml:"tolerance"`
	EmbedderURL  string   `toml:"embedder_url"`
	FallbackName string   `toml:"fallback_name"`
}

type SpeechConfig struct {
	WhisperModels []string `toml:"whisper_models"`
	Language      string   `toml:"language"`
	InitialPrompt string   `toml:"initial_prompt"`
	Threads       int      `toml:"threads"`

	EspeakVoice string   `toml:"espeak_voice"`
	EspeakRate  int      `toml:"espeak_rate"`
	TTSCommand  []string `toml:"tts_command"`

	Chime         string   `toml:"chime"`
	Notify        bool     `toml:"notify"`
	DuckFactor    float64  `toml:"duck_factor"`
	DuckFade      Duration `toml:"duck_fade"`
	DuckMinVolume int      `toml:"duck_min_volume"`
	SilenceRMS    float64  `toml:"silence_rms"`
	SilenceHold   Duration `toml:"silence_hold"`

	// KeyboardFallback reads stdin when the microphone hears nothing.
	KeyboardFallback bool `toml:"keyboard_fallback"`
}

type ActionsConfig struct {
	DocumentsDir string                 `toml:"documents_dir"`
	Opener       []string               `toml:"opener"`
	Apps         map[string]actions.App `toml:"apps"`
	Engines      map[string]string      `toml:"engines"`
}

type ServerConfig struct {
	Addr      string  `toml:"addr"`
	RateLimit float64 `toml:"rate_limit"` // requests per second, 0 = off
	Burst     int     `toml:"burst"`
	MaxUpload int64   `toml:"max_upload"`
}

type IPCConfig struct {
	Socket string `toml:"socket"`
}

type BusConfig struct {
	URL       string   `toml:"url"`
	Name      string   `toml:"name"`
	Reconnect Duration `toml:"reconnect"`
}

type OpenAIConfig struct {
	APIKey  string   `toml:"api_key"`
	Proxy   string   `toml:"proxy"`
	Timeout Duration `toml:"timeout"`
}

type Config struct {
	Mode     string            `toml:"mode"`
	Matcher  MatcherConfig     `toml:"matcher"`
	Intents  []intent.Template `toml:"intents"`
	Dialog   DialogConfig      `toml:"dialog"`
	Identity IdentityConfig    `toml:"identity"`
	Speech   SpeechConfig      `toml:"speech"`
	Actions  ActionsConfig     `toml:"actions"`
	Server   ServerConfig      `toml:"server"`
	IPC      IPCConfig         `toml:"ipc"`
	Bus      BusConfig         `toml:"bus"`
	OpenAI   OpenAIConfig      `toml:"openai"`
}

func Default() *Config {
	dopts := dialog.DefaultOptions()
	icfg := identity.DefaultConfig()
	acfg := actions.DefaultConfig()

	dataDir, err := os.UserConfigDir()
	if err != nil {
		dataDir = "."
	}

	return &Config{
		Mode: ModeApp,
		Matcher: MatcherConfig{
			Threshold:          intent.DefaultThreshold,
			AssistantThreshold: intent.AssistantThreshold,
		},
		Intents: intent.DefaultTemplates(),
		Dialog: DialogConfig{
			MaxRetries:    dopts.MaxRetries,
			ListenTimeout: Duration{dopts.ListenTimeout},
			PhraseLimit:   Duration{dopts.PhraseLimit},
			Idle:          Duration{100 * time.Millisecond},
		},
		Identity: IdentityConfig{
			Enabled:      true,
			Dir:          filepath.Join(dataDir, "friday", "known_faces"),
			Attempts:     icfg.Attempts,
			Delay:        Duration{icfg.Delay},
			Tolerance:    face.DefaultTolerance,
			EmbedderURL:  "http://127.0.0.1:8093",
			FallbackName: icfg.FallbackName,
		},
		Speech: SpeechConfig{
			WhisperModels: []string{"models/ggml-base.en.bin"},
			Language:      "en",
			EspeakVoice:   "en",
			Chime:         "beep.mp3",
			DuckFactor:    0.3,
			DuckFade:      Duration{200 * time.Millisecond},
			DuckMinVolume: 10,
			SilenceRMS:    0.015,
			SilenceHold:   Duration{600 * time.Millisecond},
		},
		Actions: ActionsConfig{
			DocumentsDir: acfg.DocumentsDir,
			Opener:       acfg.Opener,
			Apps:         acfg.Apps,
			Engines:      acfg.Engines,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:5000",
			RateLimit: 5,
			Burst:     10,
			MaxUpload: 10 << 20,
		},
		IPC: IPCConfig{
			Socket: filepath.Join(os.TempDir(), "friday.sock"),
		},
		Bus: BusConfig{
			Name:      "friday",
			Reconnect: Duration{2 * time.Second},
		},
		OpenAI: OpenAIConfig{
			Timeout: Duration{120 * time.Second},
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// An [[intents]] list in the file replaces the built-in templates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var file struct {
		Intents []intent.Template `toml:"intents"`
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if len(file.Intents) > 0 {
		cfg.Intents = nil
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from FRIDAY_* variables, plus the
// conventional OPENAI_API_KEY.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	float := func(key string, dst *float64) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = f
		return nil
	}

	str("FRIDAY_MODE", &c.Mode)
	str("FRIDAY_DOCUMENTS_DIR", &c.Actions.DocumentsDir)
	str("FRIDAY_IDENTITY_DIR", &c.Identity.Dir)
	str("FRIDAY_EMBEDDER_URL", &c.Identity.EmbedderURL)
	str("FRIDAY_SERVER_ADDR", &c.Server.Addr)
	str("FRIDAY_IPC_SOCKET", &c.IPC.Socket)
	str("FRIDAY_BUS_URL", &c.Bus.URL)
	str("FRIDAY_PROXY", &c.OpenAI.Proxy)
	str("OPENAI_API_KEY", &c.OpenAI.APIKey)

	if v := getenv("FRIDAY_WHISPER_MODELS"); v != "" {
		c.Speech.WhisperModels = strings.Split(v, ",")
	}
	if v := getenv("FRIDAY_IDENTITY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FRIDAY_IDENTITY: %w", err)
		}
		c.Identity.Enabled = b
	}

	return errors.Join(
		float("FRIDAY_THRESHOLD", &c.Matcher.Threshold),
		float("FRIDAY_ASSISTANT_THRESHOLD", &c.Matcher.AssistantThreshold),
	)
}

// Threshold is the fuzzy threshold of the active mode.
func (c *Config) Threshold() float64 {
	if c.Mode == ModeAssistant {
		return c.Matcher.AssistantThreshold
	}
	return c.Matcher.Threshold
}

func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Mode != ModeApp && c.Mode != ModeAssistant {
		bad("mode %q, want %q or %q", c.Mode, ModeApp, ModeAssistant)
	}
	for name, v := range map[string]float64{
		"matcher.threshold":           c.Matcher.Threshold,
		"matcher.assistant_threshold": c.Matcher.AssistantThreshold,
	} {
		if v < 0 || v >= 1 {
			bad("%s %v not in [0, 1)", name, v)
		}
	}

	if err := intent.Validate(c.Intents); err != nil {
		errs = append(errs, err)
	}
	known := intent.KnownTags()
	for _, t := range c.Intents {
		if !slices.Contains(known, strings.TrimSpace(t.Tag)) {
			bad("unknown intent tag %q", t.Tag)
		}
	}

	if c.Dialog.MaxRetries < 0 {
		bad("dialog.max_retries must not be negative")
	}
	if c.Dialog.ListenTimeout.Duration <= 0 {
		bad("dialog.listen_timeout must be positive")
	}
	if c.Identity.Enabled {
		if c.Identity.Attempts <= 0 {
			bad("identity.attempts must be positive")
		}
		if c.Identity.Dir == "" {
			bad("identity.dir is required")
		}
		if c.Identity.EmbedderURL == "" {
			bad("identity.embedder_url is required")
		}
	}
	if c.Matcher.LLMFallback && c.OpenAI.APIKey == "" {
		bad("matcher.llm_fallback needs an OpenAI API key")
	}
	if c.Speech.DuckFactor < 0 || c.Speech.DuckFactor > 1 {
		bad("speech.duck_factor %v not in [0, 1]", c.Speech.DuckFactor)
	}

	return errors.Join(errs...)
}

func (c *Config) DialogOptions() dialog.Options {
	opts := dialog.DefaultOptions()
	opts.MaxRetries = c.Dialog.MaxRetries
	opts.ListenTimeout = c.Dialog.ListenTimeout.Duration
	opts.PhraseLimit = c.Dialog.PhraseLimit.Duration
	return opts
}

func (c *Config) IdentityConfig() identity.Config {
	icfg := identity.DefaultConfig()
	icfg.Attempts = c.Identity.Attempts
	icfg.Delay = c.Identity.Delay.Duration
	icfg.FallbackName = c.Identity.FallbackName
	icfg.ListenTimeout = c.Dialog.ListenTimeout.Duration
	icfg.PhraseLimit = c.Dialog.PhraseLimit.Duration
	return icfg
}

func (c *Config) ActionsConfig() actions.Config {
	return actions.Config{
		DocumentsDir: c.Actions.DocumentsDir,
		Opener:       c.Actions.Opener,
		Apps:         c.Actions.Apps,
		Engines:      c.Actions.Engines,
	}
}
