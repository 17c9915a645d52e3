package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"friday/internal/actions"
	"friday/internal/bus"
	"friday/internal/config"
	"friday/internal/dialog"
	"friday/internal/face"
	"friday/internal/identity"
	"friday/internal/intent"
	"friday/internal/ipc"
	"friday/internal/metrics"
	"friday/internal/proxy"
	"friday/internal/server"
	"friday/internal/speech"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	cfgPath := cli.StringP("config", "c", "", "TOML config file")
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	mode := cli.StringP("mode", "m", "", "Matcher profile: app or assistant")
	text := cli.BoolP("text", "t", false, "Type commands instead of speaking them")
	noIdentity := cli.Bool("no-identity", false, "Skip the face check")
	proxyAddr := cli.StringP("proxy", "p", "", "SOCKS5 proxy for OpenAI calls")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevelMap[*logLevel],
		TimeFormat: time.TimeOnly,
	})))

	log.Info("Booting up")

	if err := godotenv.Load(*envFile); err != nil {
		log.Debug("No env file", "path", *envFile)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		log.Error("Bad environment", "err", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}
	if *proxyAddr != "" {
		cfg.OpenAI.Proxy = *proxyAddr
	}
	if *noIdentity {
		cfg.Identity.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *text); err != nil {
		log.Error("Friday stopped", "err", err)
		os.Exit(1)
	}
	log.Info("Bye")
}

func run(ctx context.Context, cfg *config.Config, textMode bool) error {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(promReg)

	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}
	log.Debug("Loaded matcher", "mode", cfg.Mode, "threshold", cfg.Threshold(), "intents", len(cfg.Intents))

	sio, err := newSpeechIO(cfg, textMode)
	if err != nil {
		return err
	}
	defer sio.Close()

	registry, err := identity.NewRegistry(identity.DirStore{Dir: cfg.Identity.Dir})
	if err != nil {
		return fmt.Errorf("load identities: %w", err)
	}
	embedder := face.NewClient(cfg.Identity.EmbedderURL, nil)
	cmp := face.Euclidean{Tolerance: cfg.Identity.Tolerance}

	user := cfg.Identity.FallbackName
	if cfg.Identity.Enabled {
		sess := identity.NewSession(registry, embedder, cmp, sio.speaker, sio.listener, cfg.IdentityConfig())
		out, err := sess.Run(ctx)
		m.ObserveIdentity(out, registry.Len())
		if err != nil {
			if errors.Is(err, identity.ErrAbandoned) {
				sio.speaker.Speak(ctx, "I couldn't see your face. Please make sure your camera is working.")
			}
			return fmt.Errorf("identity check: %w", err)
		}
		user = out.Name
	}

	exec := actions.New(cfg.ActionsConfig(), actions.WithTrainer(&faceTrainer{
		registry: registry,
		embedder: embedder,
		attempts: cfg.Identity.Attempts,
		delay:    cfg.Identity.Delay.Duration,
	}))

	voice := dialog.NewController(resolver, exec, sio.speaker, sio.listener, cfg.DialogOptions())
	oneShot := dialog.NewController(resolver, exec, speech.Silent{}, speech.Silent{}, cfg.DialogOptions())

	loop := dialog.NewLoop(voice, cfg.Dialog.Idle.Duration)
	loop.Observe(func(res dialog.Result, took time.Duration) {
		m.ObserveTurn("loop", res, took)
	})

	sio.speaker.Speak(ctx, fmt.Sprintf("Hello %s! I am Friday, your personal AI assistant. "+
		"I can help you with various tasks like opening applications, "+
		"searching the web, and much more. How can I assist you today?", user))

	// the loop ending (exit intent, end of input) stops every surface
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if !cfg.Dialog.PushToTalk {
		g.Go(func() error {
			defer cancel()
			if err := loop.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if cfg.Server.Addr != "" {
		srv := server.New(oneShot, server.Options{
			Transcriber: sio.transcriber,
			Metrics:     m,
			Gatherer:    promReg,
			RateLimit:   cfg.Server.RateLimit,
			Burst:       cfg.Server.Burst,
			MaxUpload:   cfg.Server.MaxUpload,
		})
		g.Go(func() error { return srv.Run(gctx, cfg.Server.Addr) })
	}

	if cfg.IPC.Socket != "" {
		h := &control{oneShot: oneShot, loop: loop, m: m, pushToTalk: cfg.Dialog.PushToTalk, stop: cancel}
		g.Go(func() error { return ipc.Serve(gctx, cfg.IPC.Socket, h.handle) })
	}

	if cfg.Bus.URL != "" {
		client := bus.NewClient(cfg.Bus.URL, cfg.Bus.Name, cfg.Bus.Reconnect.Duration)
		g.Go(func() error {
			return client.Run(gctx, func(ctx context.Context, msg bus.Message) string {
				start := time.Now()
				res := oneShot.Dispatch(ctx, msg.Content, nil)
				m.ObserveTurn("bus", res, time.Since(start))
				m.ObserveRequest("bus", res.Outcome != dialog.Failed)
				return res.Response
			})
		})
	}

	log.Info("Boot up - successful", "user", user)
	return g.Wait()
}

func newResolver(cfg *config.Config) (*intent.Resolver, error) {
	matcher, err := intent.NewMatcher(cfg.Intents, cfg.Threshold())
	if err != nil {
		return nil, err
	}
	if !cfg.Matcher.LLMFallback {
		return intent.NewResolver(matcher, nil), nil
	}

	httpClient, err := proxy.NewClient(cfg.OpenAI.Proxy, cfg.OpenAI.Timeout.Duration)
	if err != nil {
		return nil, fmt.Errorf("openai proxy: %w", err)
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.OpenAI.APIKey),
		option.WithHTTPClient(httpClient),
	)
	log.Debug("LLM fallback enabled", "proxy", cfg.OpenAI.Proxy != "")

	return intent.NewResolver(matcher, intent.NewLLMClassifier(client, cfg.Matcher.Model)), nil
}

// faceTrainer backs the "train face" voice command.
type faceTrainer struct {
	registry *identity.Registry
	embedder face.Embedder
	attempts int
	delay    time.Duration
}

func (t *faceTrainer) Train(ctx context.Context, name string) (string, error) {
	return identity.Train(ctx, t.registry, t.embedder, name, t.attempts, t.delay)
}

// control answers friday-ctl requests.
type control struct {
	oneShot    *dialog.Controller
	loop       *dialog.Loop
	m          *metrics.Metrics
	pushToTalk bool
	stop       context.CancelFunc
}

func (c *control) handle(ctx context.Context, msg ipc.ControlMessage) ipc.Reply {
	switch msg.Cmd {
	case ipc.CmdPing:
		return ipc.Reply{Response: "pong", Success: true}

	case ipc.CmdProcess:
		start := time.Now()
		res := c.oneShot.Dispatch(ctx, msg.Text, msg.Slots)
		c.m.ObserveTurn("ipc", res, time.Since(start))
		c.m.ObserveRequest("ipc", res.Outcome != dialog.Failed)
		return reply(res)

	case ipc.CmdTrigger:
		if !c.pushToTalk {
			return ipc.Reply{Response: "Friday is already listening."}
		}
		res, _, err := c.loop.Turn(ctx)
		if err != nil {
			return ipc.Reply{Response: err.Error()}
		}
		if res.Outcome == dialog.Terminate {
			c.stop()
		}
		return reply(res)

	default:
		log.Warn("Unknown command", "cmd", msg.Cmd)
		return ipc.Reply{Response: "unknown command " + msg.Cmd}
	}
}

func reply(res dialog.Result) ipc.Reply {
	return ipc.Reply{
		Response: res.Response,
		Success:  res.Outcome != dialog.Failed,
		Intent:   res.Tag,
	}
}
