package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/example/lingotrack/internal/achievement"
	"github.com/example/lingotrack/internal/config"
	"github.com/example/lingotrack/internal/database"
	"github.com/example/lingotrack/internal/excel"
	"github.com/example/lingotrack/internal/notification"
	"github.com/example/lingotrack/internal/scheduler"
	"github.com/example/lingotrack/internal/tracking"
)

const (
	shutdownTimeout = 5 * time.Second
	jobLockTTL      = 30 * time.Minute
)

func main() {
	root := &cobra.Command{
		Use:           "lingotrack",
		Short:         "Progress mastery and gamification service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newCatalogCommand())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the notification dispatcher and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			setupLogger(cfg.LogLevel)
			return serve(cfg)
		},
	}
}

func newCatalogCommand() *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Achievement catalog tools",
	}
	catalogCmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Load a YAML, Excel or CSV catalog and report its contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d achievements, %d badges\n", len(catalog.Achievements()), len(catalog.Badges()))
			for _, def := range catalog.Achievements() {
				fmt.Fprintf(out, "  achievement %-24s %-18s active=%t\n", def.ID, def.Type, def.Active)
			}
			for _, def := range catalog.Badges() {
				fmt.Fprintf(out, "  badge       %-24s %-18s active=%t\n", def.ID, def.Type, def.Active)
			}
			return nil
		},
	})
	return catalogCmd
}

func serve(cfg *config.Config) error {
	// Handle termination signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return errors.Wrap(err, "failed to connect to database")
	}
	defer db.Close()

	catalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	slog.Info("achievement catalog loaded",
		"achievements", len(catalog.Achievements()), "badges", len(catalog.Badges()))

	users := database.NewUserRepository(db)
	sinks, closeSinks, err := buildSinks(cfg, users)
	if err != nil {
		return err
	}
	defer closeSinks()

	dispatcher := notification.NewDispatcher(cfg.Notification, sinks...)
	svc := tracking.NewFromDB(db, catalog, dispatcher, tracking.Options{
		Policies:       cfg.Policies,
		StreakLocation: cfg.StreakLocation,
	})

	var locker gocron.Locker
	if cfg.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		pingCtx, pingCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer pingCancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return errors.Wrap(err, "failed to connect to redis")
		}
		locker = scheduler.NewRedisLocker(client, jobLockTTL)
		slog.Info("distributed job locking enabled", "redis", cfg.Redis.Address)
	}

	sched := scheduler.New(cfg.Scheduler, dispatcher, users,
		database.NewMasteryRepository(db),
		scheduler.SummarizerFunc(svc.GetProgressSummary),
		locker)
	if err := sched.Start(); err != nil {
		return err
	}
	slog.Info("service started, press Ctrl+C to stop")

	sig := <-sigChan
	slog.Info("received signal, shutting down", "signal", sig.String())

	// Give queued notifications time to go out
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	sched.Stop()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		slog.Warn("error during shutdown", "error", err)
	}
	slog.Info("service stopped")
	return nil
}

// buildSinks returns the configured notification sinks and a func closing them
func buildSinks(cfg *config.Config, users notification.UserLookup) ([]notification.Sink, func(), error) {
	var (
		sinks   []notification.Sink
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.TelegramToken != "" {
		tg, err := notification.NewTelegramSink(cfg.TelegramToken, users)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, tg)
	}

	if cfg.RabbitMQ.URI != "" {
		mq, err := notification.NewAMQPSink(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, mq)
		closers = append(closers, func() { _ = mq.Close() })
	}

	if len(sinks) == 0 {
		slog.Warn("no notification channel configured, notifications are only logged")
		sinks = append(sinks, notification.NewLogSink())
	}
	return sinks, closeAll, nil
}

// loadCatalog picks the loader by file extension
func loadCatalog(path string) (*achievement.Catalog, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return achievement.LoadYAML(path)
	case ".xlsx", ".csv":
		importCfg := excel.DefaultImportConfig()
		importCfg.FilePath = path
		catalog, result, err := excel.ImportCatalog(importCfg)
		if err != nil {
			return nil, err
		}
		for _, msg := range result.Errors {
			slog.Warn("catalog row skipped", "file", path, "error", msg)
		}
		return catalog, nil
	}
	return nil, errors.Errorf("unsupported catalog format %q", filepath.Ext(path))
}

func setupLogger(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
