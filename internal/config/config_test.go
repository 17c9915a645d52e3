package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"friday/internal/intent"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "friday.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModeApp, cfg.Mode)
	assert.Equal(t, 0.6, cfg.Threshold())
	assert.Equal(t, intent.DefaultTemplates(), cfg.Intents)
	assert.Equal(t, 1, cfg.DialogOptions().MaxRetries)
	assert.Equal(t, 30, cfg.IdentityConfig().Attempts)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "assistant"

[matcher]
assistant_threshold = 0.45

[dialog]
listen_timeout = "5s"

[identity]
attempts = 7
delay = "250ms"

[server]
addr = ":8080"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.45, cfg.Threshold())
	assert.Equal(t, 0.6, cfg.Matcher.Threshold)
	assert.Equal(t, 5*time.Second, cfg.DialogOptions().ListenTimeout)
	assert.Equal(t, 20*time.Second, cfg.DialogOptions().PhraseLimit)
	assert.Equal(t, 7, cfg.IdentityConfig().Attempts)
	assert.Equal(t, 250*time.Millisecond, cfg.IdentityConfig().Delay)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, intent.DefaultTemplates(), cfg.Intents)
}

func TestLoadReplacesIntents(t *testing.T) {
	path := writeConfig(t, `
[[intents]]
tag = "time"
phrases = ["what time is it"]

[[intents]]
tag = "exit"
phrases = ["see you"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []intent.Template{
		{Tag: intent.Time, Phrases: []string{"what time is it"}},
		{Tag: intent.Exit, Phrases: []string{"see you"}},
	}, cfg.Intents)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeConfig(t, "mode = "))
	assert.ErrorContains(t, err, "failed to parse TOML")

	_, err = Load(writeConfig(t, "[dialog]\nidle = \"soon\"\n"))
	assert.Error(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Mode = "kiosk"
	cfg.Matcher.Threshold = 1
	cfg.Intents = append(cfg.Intents, intent.Template{Tag: "dance", Phrases: []string{"dance"}})
	cfg.Dialog.MaxRetries = -1
	cfg.Identity.Attempts = 0
	cfg.Matcher.LLMFallback = true

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	for _, want := range []string{
		`mode "kiosk"`,
		"matcher.threshold 1 not in [0, 1)",
		`unknown intent tag "dance"`,
		"dialog.max_retries",
		"identity.attempts",
		"llm_fallback",
	} {
		assert.ErrorContains(t, err, want)
	}

	cfg = Default()
	cfg.Intents = append(cfg.Intents, intent.Template{Tag: intent.Time, Phrases: []string{"clock"}})
	assert.ErrorIs(t, cfg.Validate(), intent.ErrInvalidTemplate)

	cfg = Default()
	cfg.Identity.Enabled = false
	cfg.Identity.Attempts = 0
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"FRIDAY_MODE":           "assistant",
		"FRIDAY_THRESHOLD":      "0.7",
		"FRIDAY_WHISPER_MODELS": "a.bin,b.bin",
		"FRIDAY_IDENTITY":       "false",
		"OPENAI_API_KEY":        "sk-test",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, ModeAssistant, cfg.Mode)
	assert.Equal(t, 0.7, cfg.Matcher.Threshold)
	assert.Equal(t, 0.5, cfg.Threshold())
	assert.Equal(t, []string{"a.bin", "b.bin"}, cfg.Speech.WhisperModels)
	assert.False(t, cfg.Identity.Enabled)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)

	env = map[string]string{"FRIDAY_THRESHOLD": "high", "FRIDAY_IDENTITY": "maybe"}
	err := Default().ApplyEnv(func(k string) string { return env[k] })
	assert.ErrorContains(t, err, "FRIDAY_IDENTITY")

	env = map[string]string{"FRIDAY_ASSISTANT_THRESHOLD": "x"}
	err = Default().ApplyEnv(func(k string) string { return env[k] })
	assert.ErrorContains(t, err, "FRIDAY_ASSISTANT_THRESHOLD")
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(b))
}
