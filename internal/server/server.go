// Package server is the HTTP surface: one-shot command processing,
// Prometheus metrics and a health probe.
package server

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"friday/internal/dialog"
	"friday/internal/metrics"
	"friday/internal/speech"
	"friday/pkg/audioconv"
)

const (
	RequestIDHeader = "X-Request-ID"
	source          = "http"
)

// Dispatcher runs one command to completion without talking to the user.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string, slots map[string]string) dialog.Result
}

type Options struct {
	// Transcriber handles multipart audio uploads; nil disables them.
	Transcriber speech.Transcriber
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	RateLimit   float64 // requests per second, 0 = unlimited
	Burst       int
	MaxUpload   int64
}

type Server struct {
	d    Dispatcher
	opts Options
}

func New(d Dispatcher, opts Options) *Server {
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = 10 << 20
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Server{d: d, opts: opts}
}

type ProcessRequest struct {
	Command string            `json:"command"`
	Slots   map[string]string `json:"slots,omitempty"`
}

type ProcessResponse struct {
	Response  string `json:"response"`
	Success   bool   `json:"success"`
	Intent    string `json:"intent,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/")
	if s.opts.RateLimit > 0 {
		api.Use(limit(rate.NewLimiter(rate.Limit(s.opts.RateLimit), s.opts.Burst)))
	}
	api.POST("/process", s.Process)

	return r
}

func (s *Server) Process(c *gin.Context) {
	id := c.GetString("request_id")
	reply := func(status int, res ProcessResponse) {
		res.RequestID = id
		if s.opts.Metrics != nil {
			s.opts.Metrics.ObserveRequest(source, res.Success)
		}
		c.JSON(status, res)
	}

	var req ProcessRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		text, status, err := s.transcribeUpload(c)
		if err != nil {
			reply(status, ProcessResponse{Response: fmt.Sprintf("Error: %v", err)})
			return
		}
		req.Command = text
	} else if err := c.ShouldBindJSON(&req); err != nil {
		reply(http.StatusBadRequest, ProcessResponse{Response: fmt.Sprintf("Error: %v", err)})
		return
	}

	command := strings.ToLower(strings.TrimSpace(req.Command))
	if command == "" {
		reply(http.StatusOK, ProcessResponse{Response: "No command received"})
		return
	}

	start := time.Now()
	res := s.d.Dispatch(c.Request.Context(), command, req.Slots)
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveTurn(source, res, time.Since(start))
	}

	log.Info("Processed", "request_id", id, "command", command, "intent", res.Tag, "outcome", res.Outcome)
	reply(http.StatusOK, ProcessResponse{
		Response: res.Response,
		Success:  res.Outcome != dialog.Failed,
		Intent:   res.Tag,
	})
}

func (s *Server) transcribeUpload(c *gin.Context) (string, int, error) {
	if s.opts.Transcriber == nil {
		return "", http.StatusServiceUnavailable, errors.New("speech recognition is not available")
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUpload)
	fh, err := c.FormFile("audio")
	if err != nil {
		return "", http.StatusBadRequest, fmt.Errorf("audio upload: %w", err)
	}
	f, err := fh.Open()
	if err != nil {
		return "", http.StatusBadRequest, err
	}
	defer f.Close()

	ctx := c.Request.Context()
	pcm, err := audioconv.Decode(ctx, f, fh.Filename, audioconv.Options{MaxSamples: 60 * audioconv.SampleRate})
	if err != nil {
		return "", http.StatusUnsupportedMediaType, err
	}

	text, err := s.opts.Transcriber.Transcribe(ctx, pcm)
	if err != nil && !errors.Is(err, speech.ErrNotRecognized) {
		return "", http.StatusInternalServerError, err
	}
	return text, http.StatusOK, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start),
			"request_id", c.GetString("request_id"),
		)
	}
}

func limit(l *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ProcessResponse{
				Response:  "Too many requests",
				RequestID: c.GetString("request_id"),
			})
			return
		}
		c.Next()
	}
}
