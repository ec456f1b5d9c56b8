package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ifuryst/autopost/internal/config"
	"github.com/ifuryst/autopost/internal/service"
	"github.com/ifuryst/autopost/internal/service/publisher"
	"github.com/ifuryst/autopost/internal/service/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the publishing job worker",
	Long:  `Consumes queued publishing jobs and periodically re-enqueues jobs that got stuck.`,
	RunE:  runWorker,
}

func parseDuration(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return d, nil
}

func workerOptions(cfg config.WorkerConfig) (service.WorkerOptions, service.ReconcilerOptions, error) {
	poll, err := parseDuration("worker.poll_interval", cfg.PollInterval)
	if err != nil {
		return service.WorkerOptions{}, service.ReconcilerOptions{}, err
	}
	interval, err := parseDuration("worker.reconcile_interval", cfg.ReconcileInterval)
	if err != nil {
		return service.WorkerOptions{}, service.ReconcilerOptions{}, err
	}
	stale, err := parseDuration("worker.stale_after", cfg.StaleAfter)
	if err != nil {
		return service.WorkerOptions{}, service.ReconcilerOptions{}, err
	}

	return service.WorkerOptions{PollInterval: poll, BatchSize: cfg.BatchSize},
		service.ReconcilerOptions{Interval: interval, StaleAfter: stale},
		nil
}

func runWorker(*cobra.Command, []string) error {
	cfg, appLogger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	defer appLogger.Sync()

	workerOpts, reconcilerOpts, err := workerOptions(cfg.Worker)
	if err != nil {
		return err
	}

	appLogger.Info("Starting Autopost worker", zap.String("version", version))

	db, err := service.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	q, err := queue.New(queue.Config{URL: cfg.Redis.URL, Key: cfg.Redis.QueueKey}, appLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize queue: %w", err)
	}
	defer q.Close()

	registry := publisher.NewRegistry(appLogger)
	if err := service.RegisterDefaults(registry, cfg.Agents, appLogger); err != nil {
		return fmt.Errorf("failed to register agents: %w", err)
	}

	store := service.NewGormStore(db)
	worker := service.NewWorker(store, store, q, registry, appLogger, workerOpts)
	reconciler := service.NewReconciler(store, q, store, appLogger, reconcilerOpts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker.Start(ctx)
	reconciler.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down worker...")
	reconciler.Stop()
	worker.Stop()

	appLogger.Info("Worker exited")
	return nil
}
