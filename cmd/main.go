package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bracketforge/tournament-engine/brackets"
	"github.com/bracketforge/tournament-engine/clock"
	"github.com/bracketforge/tournament-engine/config"
	"github.com/bracketforge/tournament-engine/db"
	"github.com/bracketforge/tournament-engine/handlers"
	"github.com/bracketforge/tournament-engine/profile"
	"github.com/bracketforge/tournament-engine/realtime"
	"github.com/bracketforge/tournament-engine/repositories"
	"github.com/bracketforge/tournament-engine/routes"
	"github.com/bracketforge/tournament-engine/services"
	"github.com/bracketforge/tournament-engine/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	database, err := db.Connect(cfg.DatabaseURL, 10*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer database.Close()
	logger.Info("database connection established")

	if err := db.Migrate(database, cfg.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations applied")

	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("R2 uploader initialized")
	} else {
		logger.Warn("R2 storage not configured, banner uploads disabled")
	}

	hub := realtime.NewHub(logger)
	go hub.Run()
	dispatcher := realtime.NewDispatcher(hub)

	var skills brackets.SkillSource
	if cfg.ProfileServiceURL != "" {
		skills = profile.NewClient(cfg.ProfileServiceURL, logger)
	}

	transactor := repositories.NewTransactor(database)
	tournamentRepo := repositories.NewPostgresTournamentRepository(database)
	participantRepo := repositories.NewPostgresParticipantRepository(database)
	bracketRepo := repositories.NewPostgresBracketRepository(database)
	matchRepo := repositories.NewPostgresMatchRepository(database)

	clk := clock.New()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	tournamentService := services.NewTournamentService(
		transactor, tournamentRepo, participantRepo, bracketRepo, matchRepo,
		uploader, dispatcher, clk, logger,
	)
	bracketService := services.NewBracketService(
		transactor, tournamentRepo, participantRepo, bracketRepo, matchRepo,
		skills, dispatcher, clk, logger, rnd,
	)
	matchService := services.NewMatchService(
		transactor, tournamentRepo, participantRepo, bracketRepo, matchRepo,
		tournamentService, dispatcher, clk, logger,
	)
	participantService := services.NewParticipantService(tournamentRepo, participantRepo, clk, logger)
	schedulerService := services.NewSchedulerService(
		transactor, tournamentRepo, participantRepo, bracketService,
		tournamentService, dispatcher, cfg.CompletionGrace, logger,
	)
	logger.Info("services initialized")

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go runSweep(sweepCtx, schedulerService, clk, cfg.SweepInterval, logger)

	tournamentHandler := handlers.NewTournamentHandler(tournamentService, bracketService)
	participantHandler := handlers.NewParticipantHandler(participantService)
	matchHandler := handlers.NewMatchHandler(matchService)
	webSocketHandler := handlers.NewWebSocketHandler(hub, tournamentService, logger)

	router := chi.NewRouter()
	routes.SetupRoutes(router, cfg.JWTSecretKey, tournamentHandler, participantHandler, matchHandler, webSocketHandler)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		stopSweep()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			_ = server.Close()
		}
	}
	logger.Info("server stopped")
}

// runSweep drives the lifecycle controller: one immediate pass on
// startup, then one per tick until the context ends.
func runSweep(ctx context.Context, scheduler services.SchedulerService, clk clock.Clock, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("lifecycle sweep started", slog.Duration("interval", interval))

	sweep := func() {
		results, err := scheduler.AdvanceTournaments(ctx, clk.Now())
		if err != nil {
			logger.Error("sweep failed", slog.Any("error", err))
			return
		}
		if len(results) > 0 {
			logger.Info("sweep applied transitions", slog.Int("count", len(results)))
		}
	}

	sweep()
	for {
		select {
		case <-ticker.C:
			sweep()
		case <-ctx.Done():
			logger.Info("lifecycle sweep stopped")
			return
		}
	}
}
