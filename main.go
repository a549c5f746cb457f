package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/quill-be/internal/api"
	"github.com/isdelr/quill-be/internal/auth"
	"github.com/isdelr/quill-be/internal/config"
	"github.com/isdelr/quill-be/internal/database"
	"github.com/isdelr/quill-be/internal/logger"
	"github.com/isdelr/quill-be/internal/monitoring"
	"github.com/isdelr/quill-be/internal/services"
	"github.com/isdelr/quill-be/internal/websocket"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "quill",
		Short:         "Blogging backend: users, posts and comments over a JSON API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Apply migrations and start the HTTP server (default)",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations and exit",
			RunE:  runMigrate,
		},
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

// setup loads configuration, initializes logging and opens the migrated database.
func setup() (*config.Config, *sqlx.DB, error) {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(cfg.LogLevel, !cfg.IsProduction())

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	return cfg, db, nil
}

func runMigrate(_ *cobra.Command, _ []string) error {
	_, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info().Msg("Migrations complete")
	return nil
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	eventService := services.NewEventService(db)
	userService := services.NewUserService(db, eventService)
	commentService := services.NewCommentService(db, eventService, hub)
	postService := services.NewPostService(db, commentService, eventService, hub)

	// Set up and run the background stats updater
	statUpdater := monitoring.NewStatUpdater(postService, hub, cfg.StatsInterval)
	go statUpdater.Run()

	// Set up and run the background scheduler
	scheduler, err := monitoring.NewScheduler(eventService, cfg.EventPruneSchedule, cfg.EventRetention)
	if err != nil {
		return err
	}
	scheduler.Run()

	// Set up router
	router := api.NewRouter(cfg.AllowedOrigins, db, tokens, hub, statUpdater,
		userService, postService, commentService, eventService)

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ServerPort).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		statUpdater.Stop()
		scheduler.Stop()
		hub.Stop()
		return fmt.Errorf("server failed: %w", err)
	}
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	statUpdater.Stop() // Stop the stats sampler
	scheduler.Stop()   // Stop the scheduler
	hub.Stop()         // Disconnect websocket clients

	log.Info().Msg("Server exiting")
	return nil
}
