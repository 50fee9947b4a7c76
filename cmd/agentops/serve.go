package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openclaw/agentops/internal/alert"
	"github.com/openclaw/agentops/internal/alert/discord"
	"github.com/openclaw/agentops/internal/alert/slack"
	"github.com/openclaw/agentops/internal/api"
	"github.com/openclaw/agentops/internal/config"
	"github.com/openclaw/agentops/internal/db"
	"github.com/openclaw/agentops/internal/ingest"
	"github.com/openclaw/agentops/internal/logging"
	"github.com/openclaw/agentops/internal/rollup"
	"github.com/openclaw/agentops/internal/store"
	"github.com/openclaw/agentops/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the AgentOps API server",
		Long: `Migrates the database, then serves the telemetry ingest and query API
until interrupted. Alerts and the skill rollup job run in-process when
configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to AgentOps config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)
	if port > 0 {
		cfg.Server.Port = port
	}

	logging.Setup(cfg.Log, cmd.ErrOrStderr())

	if err := db.Migrate(gormDB); err != nil {
		return err
	}
	st := store.New(gormDB)

	if cfg.Tracing.Enabled {
		shutdown, err := telemetry.InitTracer(cfg.Tracing.ServiceName, Version, cmd.OutOrStdout())
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	opts := []ingest.Option{ingest.WithMaxBatchEvents(cfg.Ingest.MaxBatchEvents)}
	dispatcher, err := newDispatcher(cfg.Alerts)
	if err != nil {
		return err
	}
	if dispatcher != nil {
		opts = append(opts, ingest.WithNotifier(dispatcher))
		defer dispatcher.Wait()
	}

	if cfg.Rollup.Schedule != "" {
		sched, err := rollup.NewScheduler(cfg.Rollup.Schedule, st)
		if err != nil {
			return err
		}
		sched.Start()
		log.Info().Str("schedule", cfg.Rollup.Schedule).Time("next", sched.Next()).Msg("skill rollup scheduled")
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			sched.Stop(ctx)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return api.Start(ctx, api.StartOpts{
		Config:  cfg,
		Store:   st,
		Ingest:  ingest.New(st, opts...),
		Version: Version,
		Out:     cmd.OutOrStdout(),
	})
}

// newDispatcher builds the alert fan-out from cfg, or returns nil when no
// destination is configured.
func newDispatcher(cfg config.AlertsConfig) (*alert.Dispatcher, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	var senders []alert.Sender
	if cfg.SlackWebhookURL != "" {
		s, err := slack.New(slack.Opts{WebhookURL: cfg.SlackWebhookURL})
		if err != nil {
			return nil, fmt.Errorf("slack alerts: %w", err)
		}
		senders = append(senders, s)
	}
	if cfg.DiscordWebhookURL != "" {
		s, err := discord.New(discord.Opts{WebhookURL: cfg.DiscordWebhookURL})
		if err != nil {
			return nil, fmt.Errorf("discord alerts: %w", err)
		}
		senders = append(senders, s)
	}
	for _, s := range senders {
		log.Info().Str("sender", s.Name()).Strs("on_statuses", cfg.OnStatuses).Msg("alerts enabled")
	}
	return alert.NewDispatcher(senders, cfg.OnStatuses, cfg.Timeout), nil
}
