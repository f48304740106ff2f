// AgentFlow server: ingests events from coding agents, serves the query and
// realtime APIs, and runs the insight scheduler and cron runner.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/agentflow-dev/agentflow/pkg/agent"
	"github.com/agentflow-dev/agentflow/pkg/api"
	"github.com/agentflow-dev/agentflow/pkg/auth"
	"github.com/agentflow-dev/agentflow/pkg/cleanup"
	"github.com/agentflow-dev/agentflow/pkg/config"
	agentcron "github.com/agentflow-dev/agentflow/pkg/cron"
	"github.com/agentflow-dev/agentflow/pkg/database"
	"github.com/agentflow-dev/agentflow/pkg/events"
	"github.com/agentflow-dev/agentflow/pkg/gateway"
	"github.com/agentflow-dev/agentflow/pkg/ingest"
	"github.com/agentflow-dev/agentflow/pkg/insight"
	"github.com/agentflow-dev/agentflow/pkg/llm"
	"github.com/agentflow-dev/agentflow/pkg/slack"
	"github.com/agentflow-dev/agentflow/pkg/sources"
	"github.com/agentflow-dev/agentflow/pkg/store"
	"github.com/agentflow-dev/agentflow/pkg/version"
)

// wsWriteTimeout bounds a single WebSocket send.
const wsWriteTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment")
	}

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: slog.LevelInfo,
	})))

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting AgentFlow",
		"version", version.GitCommit,
		"port", cfg.Port,
		"slack_enabled", cfg.SlackEnabled())

	// Database (migrations run on connect).
	dbClient, err := database.NewClient(ctx, database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// Core pipeline.
	st := store.New(dbClient.DB())
	bus := events.NewBus()
	defer bus.Close()
	publisher := events.NewPublisher(bus)
	recorder := ingest.NewRecorder(st, publisher)

	authService := auth.NewService(st, cfg.AuthSecret, cfg.AllowedEmailDomains)
	connManager := gateway.NewConnectionManager(st, bus, wsWriteTimeout)

	slackSvc := slack.NewService(slack.ServiceConfig{
		Token:        cfg.SlackBotToken,
		Channel:      cfg.SlackChannelID,
		DashboardURL: cfg.PublicURL,
	})
	if slackSvc.Available() {
		slog.Info("Slack question channel configured", "channel", cfg.SlackChannelID)
	}

	server := api.NewServer(cfg, st, recorder, publisher, authService, connManager)

	// Retention sweeps, when configured.
	retention := cleanup.Config{
		SessionRetentionDays: cfg.SessionRetentionDays,
		InsightRetentionDays: cfg.InsightRetentionDays,
		Interval:             cfg.CleanupInterval,
	}
	if retention.Enabled() {
		cleanupSvc := cleanup.NewService(retention, st)
		cleanupSvc.Start(ctx)
		defer cleanupSvc.Stop()
	}

	// Optional pull-based sources (sandbox runner logs).
	if cfg.SandboxLogDir != "" {
		registry := sources.NewRegistry(recorder)
		registry.Register(sources.NewDirListener(cfg.SandboxLogDir, cfg.SandboxSyncInterval))
		registry.StartAll(ctx)
		defer registry.StopAll()
		slog.Info("Sandbox log listener started", "dir", cfg.SandboxLogDir)
	}

	// Schedulers need a chat client; without an API key they stay off and
	// the ingest/query/realtime surfaces run standalone.
	if cfg.AnthropicAPIKey != "" {
		chatClient, err := llm.NewAnthropicFromAPIKey(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		if err != nil {
			slog.Error("Failed to create chat client", "error", err)
			os.Exit(1)
		}
		tools := agent.NewToolset(st, slackSvc)

		scheduler := insight.NewScheduler(st, bus, publisher, slackSvc,
			insight.NewAnalyzer(chatClient, tools),
			insight.Config{
				CronSpec:  cfg.InsightCron,
				MinEvents: cfg.InsightMinEvents,
				Timeout:   cfg.AnalyzerTimeout,
			})
		if err := scheduler.Start(ctx); err != nil {
			slog.Error("Failed to start insight scheduler", "error", err)
			os.Exit(1)
		}
		defer scheduler.Stop()

		runner := agentcron.NewRunner(st,
			agentcron.NewExecutor(recorder, chatClient, tools),
			publisher, slackSvc)
		if err := runner.Start(ctx); err != nil {
			slog.Error("Failed to start cron runner", "error", err)
			os.Exit(1)
		}
		defer runner.Stop()
		server.SetCronTrigger(runner)
	} else {
		slog.Warn("ANTHROPIC_API_KEY not set, insight scheduler and cron runner disabled")
	}

	// HTTP server (non-blocking).
	go func() {
		slog.Info("HTTP server listening", "addr", server.Addr())
		if err := server.Start(server.Addr()); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("Shutdown signal received", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
