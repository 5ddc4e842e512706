package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tastebuds/room-server-go/internal/config"
	"github.com/tastebuds/room-server-go/internal/database"
	"github.com/tastebuds/room-server-go/internal/handler"
	"github.com/tastebuds/room-server-go/internal/jobs"
	"github.com/tastebuds/room-server-go/internal/middleware"
	"github.com/tastebuds/room-server-go/internal/places"
	"github.com/tastebuds/room-server-go/internal/redis"
	"github.com/tastebuds/room-server-go/internal/repository"
	"github.com/tastebuds/room-server-go/internal/service"
	"github.com/tastebuds/room-server-go/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()

	if err := db.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	identityRepo := repository.NewIdentityRepository(db.DB)
	roomRepo := repository.NewRoomRepository(db.DB)
	historyRepo := repository.NewHistoryRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	placesClient := places.NewClient(cfg.GoogleAPIKey)

	identityService := service.NewIdentityService(identityRepo)
	roomService := service.NewRoomService(db, roomRepo, identityRepo, historyRepo, broker)
	historyService := service.NewHistoryService(historyRepo)

	authMiddleware := middleware.NewAuthMiddleware(identityRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.RateLimitPerMin)
	guestRateLimitMiddleware := middleware.NewIPRateLimitMiddleware(redisClient.Client, cfg.GuestRateLimitPerMin, "guest")
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	identityHandler := handler.NewIdentityHandler(identityService)
	roomHandler := handler.NewRoomHandler(roomService)
	eventsHandler := handler.NewEventsHandler(broker, roomService)
	restaurantsHandler := handler.NewRestaurantsHandler(placesClient)
	historyHandler := handler.NewHistoryHandler(historyService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		// Identity issuance runs before auth, so it is throttled by IP.
		r.Group(func(r chi.Router) {
			r.Use(guestRateLimitMiddleware.Handler)
			r.Mount("/identity", identityHandler.Routes())
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.Use(rateLimitMiddleware.Handler)

			// The SSE route skips the chi request timeout: streams stay
			// open until the client disconnects.
			r.Get("/rooms/{code}/events", eventsHandler.ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
				r.Mount("/rooms", roomHandler.Routes())
				r.Get("/restaurants", restaurantsHandler.ServeHTTP)
				r.Get("/history", historyHandler.ServeHTTP)
			})
		})
	})

	cleanupJob := jobs.NewCleanupJob(roomRepo, config.CleanupJobInterval, cfg.RoomTTL())
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
