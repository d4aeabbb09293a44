package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/campaign-agent/internal/campaign"
	"github.com/campaign-agent/internal/config"
	"github.com/campaign-agent/internal/storage"
	"github.com/campaign-agent/internal/storage/sqlite"
	"github.com/campaign-agent/internal/wordpress"
	"github.com/campaign-agent/pkg/logger"
	"github.com/campaign-agent/pkg/ratelimit"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "campaign-scheduler",
		Short: "Background scheduler for the campaign agent",
		Long: `Publishes scheduled campaign posts to WordPress when their time
arrives. This daemon should be run as a service for autonomous operation.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Msg("Starting Campaign Agent Scheduler")

	// Initialize storage
	repo, err = sqlite.New(cfg.Database.DSN, cfg.History.Limit)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Saved settings override the config file
	ctx := context.Background()
	if saved, err := repo.GetWordPressConfig(ctx); err == nil {
		cfg.WordPress = *saved
	}
	if err := cfg.WordPress.Ready(); err != nil {
		return fmt.Errorf("WordPress is not configured, nothing to publish: %w", err)
	}

	// Start health check server
	go startHealthServer()

	limiter := ratelimit.NewDefaultLimiter()
	wpClient := wordpress.NewClient(cfg.WordPress, limiter, log)
	publisher := campaign.NewPublisher(repo, wpClient, cfg, log)

	// Create cron scheduler
	c := cron.New(cron.WithLogger(cronLogger{log}))

	_, err = c.AddFunc(cfg.Scheduler.PublishCron, func() {
		ctx := context.Background()
		log.Debug().Msg("Checking for due posts")

		published, err := publisher.ProcessDue(ctx, time.Now())
		if err != nil {
			log.Error().Err(err).Msg("Scheduled publish run failed")
			return
		}
		if published > 0 {
			log.Info().Int("published", published).Msg("Scheduled publish completed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule publish job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.PublishCron).Msg("Publish job scheduled")

	// Start scheduler
	c.Start()
	log.Info().Msg("Scheduler started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down scheduler")
	c.Stop()

	return nil
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Info().Msgf(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Msgf(msg, keysAndValues...)
}

// startHealthServer starts a simple HTTP server for health checks
func startHealthServer() {
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Scheduler.HealthPort
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Campaign Agent Scheduler"))
	})

	log.Info().Str("port", port).Msg("Health check server starting")
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Error().Err(err).Msg("Health server failed")
	}
}
