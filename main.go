package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mooai/internal/api"
	"mooai/internal/auth"
	"mooai/internal/config"
	"mooai/internal/delivery"
	"mooai/internal/logger"
	"mooai/internal/metrics"
	"mooai/internal/service/ai"
	"mooai/internal/service/assistant"
	"mooai/internal/slack"
	"mooai/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("mooai: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		addr    string
		envFile string
	)
	cmd := &cobra.Command{
		Use:           "mooai",
		Short:         "Slack assistant backed by a language model",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.BasicConfig.ServerAddress = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to the JSON config file (defaults to $"+config.EnvConfigPath+")")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides basic_config.server_address")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lg, err := logger.New(cfg.Slack.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(lg)
	if cfg.Slack.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()
	ledger, err := delivery.Open(ctx, cfg, m, lg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	completer, err := ai.NewAiService(ctx, cfg.Provider, cfg.Providers[cfg.Provider], m)
	if err != nil {
		return err
	}
	platform := slack.New(cfg.Slack, &http.Client{Timeout: 10 * time.Second}, lg)
	assistantService := assistant.NewService(platform, completer, cfg, lg)

	verifier, err := auth.NewVerifier(cfg.Slack.SigningSecret, lg)
	if err != nil {
		return err
	}
	runner := worker.NewRunner(worker.Options{
		MinWorkers:  cfg.BasicConfig.MinWorkers,
		MaxWorkers:  cfg.BasicConfig.MaxWorkers,
		QueueSize:   cfg.BasicConfig.QueueSize,
		IdleTimeout: time.Duration(cfg.BasicConfig.WorkerIdleTimeout) * time.Second,
		TaskTimeout: time.Duration(cfg.BasicConfig.TaskTimeout) * time.Second,
	}, m, lg)
	handlers := api.NewHandler(assistantService, verifier, runner, ledger, m, lg)

	router := gin.New()
	router.Use(gin.Recovery(), logger.Middleware(lg))
	handlers.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.BasicConfig.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		lg.Info("listening", "addr", srv.Addr, "provider", cfg.Provider, "model", cfg.Model(), "delivery_backend", cfg.Delivery.Backend)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("http shutdown", "error", err)
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		lg.Error("runner shutdown", "error", err)
	}
	return nil
}
