// Package api serves the agentops HTTP API: telemetry ingest, session and
// agent queries, health checks, and live session streams.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/openclaw/agentops/internal/config"
	"github.com/openclaw/agentops/internal/ingest"
	"github.com/openclaw/agentops/internal/store"
)

// Defaults for the session stream.
const (
	DefaultStreamPoll      = 2 * time.Second
	DefaultStreamHeartbeat = 15 * time.Second
)

// StartOpts holds the dependencies of the API server.
type StartOpts struct {
	Config  *config.Config
	Store   *store.Store
	Ingest  *ingest.Service // built from Store and Config when nil
	Version string
	Out     io.Writer // receives the "listening" banner when set

	StreamPoll      time.Duration
	StreamHeartbeat time.Duration
}

// server carries handler dependencies.
type server struct {
	store     *store.Store
	ingest    *ingest.Service
	dev       bool
	version   string
	started   time.Time
	poll      time.Duration
	heartbeat time.Duration
}

func (o *StartOpts) normalize() error {
	if o.Store == nil {
		return fmt.Errorf("api: store is required")
	}
	if o.Config == nil {
		o.Config = config.Default()
	}
	if o.Ingest == nil {
		o.Ingest = ingest.New(o.Store, ingest.WithMaxBatchEvents(o.Config.Ingest.MaxBatchEvents))
	}
	if o.Version == "" {
		o.Version = "dev"
	}
	if o.StreamPoll <= 0 {
		o.StreamPoll = DefaultStreamPoll
	}
	if o.StreamHeartbeat <= 0 {
		o.StreamHeartbeat = DefaultStreamHeartbeat
	}
	return nil
}

// NewRouter builds the gin engine with all middleware and routes.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	cfg := opts.Config

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(
		requestID(),
		requestLogger(),
		recovery(cfg.Development()),
		cors(),
		securityHeaders(),
		bodyLimit(cfg.Server.BodyLimitBytes),
	)

	s := &server{
		store:     opts.Store,
		ingest:    opts.Ingest,
		dev:       cfg.Development(),
		version:   opts.Version,
		started:   time.Now(),
		poll:      opts.StreamPoll,
		heartbeat: opts.StreamHeartbeat,
	}
	registerRoutes(router, s)
	return router, nil
}

// Handler returns the router, wrapped with OpenTelemetry instrumentation when
// tracing is enabled.
func Handler(opts StartOpts) (http.Handler, error) {
	router, err := NewRouter(opts)
	if err != nil {
		return nil, err
	}
	if opts.Config != nil && opts.Config.Tracing.Enabled {
		return otelhttp.NewHandler(router, opts.Config.Tracing.ServiceName), nil
	}
	return router, nil
}

// Start launches the API server. It blocks until ctx is cancelled, then
// shuts down gracefully within the configured shutdown timeout.
func Start(ctx context.Context, opts StartOpts) error {
	if err := opts.normalize(); err != nil {
		return err
	}
	handler, err := Handler(opts)
	if err != nil {
		return err
	}
	cfg := opts.Config

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("api: listen: %w", err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("api: graceful shutdown incomplete")
			srv.Close()
		}
	}()

	log.Info().Str("addr", ln.Addr().String()).Str("mode", cfg.Mode).Msg("agentops API listening")
	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "agentops API running at http://%s/api\n", ln.Addr())
	}

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: %w", err)
	}
	<-shutdownDone
	return nil
}
