package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/granary/config"
	"example.com/granary/internal/database"
	"example.com/granary/internal/messaging"
	"example.com/granary/internal/metrics"
	"example.com/granary/internal/models"
	"example.com/granary/internal/services"
	"example.com/granary/internal/tracing"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker to ingest temperature readings from Azure Service Bus and evaluate silo alerts`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	// Initialize database connections
	db, readOnlyDB, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}

	if err := models.SetupModels(db); err != nil {
		return errors.Wrap(err, "failed to run migrations")
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize the alert service
	alertService := services.NewAlertService(db, readOnlyDB, metricsCollector, tracer)

	// Initialize Azure Service Bus reading consumer
	consumer, err := messaging.NewReadingConsumer(cfg.Azure, tracer)
	if err != nil {
		return err
	}

	// Start the service bus processor
	g.Go(func() error {
		log.Info().Str("queue", cfg.Azure.QueueName).Msg("Starting Azure Service Bus reading consumer")
		return consumer.ProcessMessages(ctx, alertService.ProcessReadingMessage)
	})

	// Start the alert re-evaluation cron job as a fallback mechanism
	g.Go(func() error {
		log.Info().Msg("Starting alert re-evaluation cron job as fallback mechanism")

		// Create a scheduler
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		// Re-evaluate every 5 minutes so alerts converge even when
		// individual reading messages were missed
		_, err = scheduler.NewJob(
			gocron.DurationJob(5*time.Minute),
			gocron.NewTask(func() {
				log.Info().Msg("Running fallback alert re-evaluation job")
				if err := alertService.ReevaluateAlerts(ctx); err != nil {
					log.Error().Err(err).Msg("Failed to re-evaluate alerts in fallback job")
				}
			}),
		)
		if err != nil {
			return err
		}

		// Start the scheduler
		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		// Shutdown the scheduler
		return scheduler.Shutdown()
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
