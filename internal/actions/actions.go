// Package actions executes resolved intents against the local machine.
// Every failure a user can cause (missing file, unknown app) becomes a
// response; only unexpected I/O problems are returned as errors.
package actions

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"friday/internal/dialog"
	"friday/internal/intent"
)

// Runner starts a detached process. It returns once the process started.
type Runner interface {
	Start(ctx context.Context, name string, args ...string) error
}

// Trainer enrolls the current camera face under name.
type Trainer interface {
	Train(ctx context.Context, name string) (string, error)
}

type App struct {
	Name    string   `toml:"name"`
	Command []string `toml:"command"`
}

type Config struct {
	DocumentsDir string
	// Opener opens a path or URL with the desktop default, e.g. xdg-open.
	Opener []string
	Apps   map[string]App
	// Engines maps an engine name to a URL prefix the query is appended to.
	Engines map[string]string
}

const (
	EngineGoogle  = "google"
	EngineYoutube = "youtube"
)

func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DocumentsDir: filepath.Join(home, "Documents"),
		Opener:       []string{"xdg-open"},
		Apps: map[string]App{
			intent.Calculator: {Name: "Calculator", Command: []string{"gnome-calculator"}},
			intent.Notepad:    {Name: "Notepad", Command: []string{"gedit"}},
			intent.Chrome:     {Name: "Google Chrome", Command: []string{"google-chrome"}},
		},
		Engines: map[string]string{
			EngineGoogle:  "https://www.google.com/search?q=",
			EngineYoutube: "https://www.youtube.com/results?search_query=",
		},
	}
}

var ErrUnknownIntent = errors.New("unknown intent")

type Executor struct {
	cfg     Config
	run     Runner
	trainer Trainer
	now     func() time.Time
}

// Option customizes an Executor.
type Option func(*Executor)

func WithRunner(r Runner) Option {
	return func(e *Executor) { e.run = r }
}

func WithTrainer(t Trainer) Option {
	return func(e *Executor) { e.trainer = t }
}

func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

func New(cfg Config, opts ...Option) *Executor {
	e := &Executor{cfg: cfg, run: ExecRunner{}, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

var (
	_ dialog.Executor    = (*Executor)(nil)
	_ dialog.SlotChecker = (*Executor)(nil)
)

func (e *Executor) Execute(ctx context.Context, tag string, slots map[string]string) (string, error) {
	switch tag {
	case intent.OpenFile:
		return e.OpenFile(ctx, slots[dialog.SlotFileName])
	case intent.SearchFile:
		return e.SearchFile(slots[dialog.SlotFileName], slots[dialog.SlotKeyword])
	case intent.TrainFace:
		return e.TrainFace(ctx, slots[dialog.SlotName])
	case intent.Calculator, intent.Notepad, intent.Chrome:
		return e.Launch(ctx, tag)
	case intent.GoogleSearch:
		return e.WebSearch(ctx, EngineGoogle, slots[dialog.SlotQuery])
	case intent.YoutubeSearch:
		return e.WebSearch(ctx, EngineYoutube, slots[dialog.SlotQuery])
	case intent.Time:
		return e.CurrentTime(), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownIntent, tag)
	}
}

// CheckSlot rejects a search_file file name before asking for the keyword.
func (e *Executor) CheckSlot(_ context.Context, tag, slot, value string) (string, bool) {
	if tag != intent.SearchFile || slot != dialog.SlotFileName {
		return "", true
	}
	if _, err := os.Stat(e.documentPath(value)); err != nil {
		return "File not found.", false
	}
	return "", true
}

func (e *Executor) OpenFile(ctx context.Context, name string) (string, error) {
	path := e.documentPath(name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "File not found.", nil
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	if err := e.open(ctx, path); err != nil {
		return "", err
	}
	return fmt.Sprintf("Opening %s", name), nil
}

func (e *Executor) SearchFile(name, keyword string) (string, error) {
	path := e.documentPath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "File not found.", nil
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	return searchResponse(keyword, SearchText(string(data), keyword)), nil
}

func (e *Executor) Launch(ctx context.Context, appName string) (string, error) {
	app, ok := e.cfg.Apps[appName]
	if !ok || len(app.Command) == 0 {
		return fmt.Sprintf("I don't know how to open %s.", appName), nil
	}

	if err := e.run.Start(ctx, app.Command[0], app.Command[1:]...); err != nil {
		return "", fmt.Errorf("launch %s: %w", app.Name, err)
	}
	return fmt.Sprintf("Opening %s.", app.Name), nil
}

func (e *Executor) WebSearch(ctx context.Context, engine, query string) (string, error) {
	prefix, ok := e.cfg.Engines[engine]
	if !ok {
		return fmt.Sprintf("I can't search %s.", engine), nil
	}

	if err := e.open(ctx, prefix+url.QueryEscape(query)); err != nil {
		return "", err
	}
	return fmt.Sprintf("Searching %s for %s", engineLabel(engine), query), nil
}

func (e *Executor) CurrentTime() string {
	return "The time is " + e.now().Format("15:04")
}

func (e *Executor) TrainFace(ctx context.Context, name string) (string, error) {
	if e.trainer == nil {
		return "Face training is not available.", nil
	}

	enrolled, err := e.trainer.Train(ctx, name)
	if err != nil {
		log.Warn("Face training failed", "name", name, "err", err)
		return "Failed to train face", nil
	}
	return fmt.Sprintf("Successfully trained face for %s", enrolled), nil
}

func (e *Executor) documentPath(name string) string {
	// spoken names never carry directories
	base := filepath.Base(strings.TrimSpace(name))
	return filepath.Join(e.cfg.DocumentsDir, base+".txt")
}

func (e *Executor) open(ctx context.Context, target string) error {
	if len(e.cfg.Opener) == 0 {
		return errors.New("no opener configured")
	}
	args := append(append([]string(nil), e.cfg.Opener[1:]...), target)
	if err := e.run.Start(ctx, e.cfg.Opener[0], args...); err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	return nil
}

func engineLabel(engine string) string {
	switch engine {
	case EngineGoogle:
		return "Google"
	case EngineYoutube:
		return "YouTube"
	default:
		return engine
	}
}

// ExecRunner starts real processes and reaps them in the background.
type ExecRunner struct{}

func (ExecRunner) Start(_ context.Context, name string, args ...string) error {
	// not tied to ctx: launched apps outlive the request
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			log.Debug("Process exited", "cmd", name, "err", err)
		}
	}()
	return nil
}
