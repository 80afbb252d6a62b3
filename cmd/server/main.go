// Package main is the entry point for the SAML SSO bridge service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpromedia/samltoken"
	"github.com/artpromedia/samltoken/internal/config"
	"github.com/artpromedia/samltoken/internal/handler"
	"github.com/artpromedia/samltoken/internal/middleware"
	"github.com/artpromedia/samltoken/internal/replaycache"
	"github.com/artpromedia/samltoken/internal/repository"
	"github.com/artpromedia/samltoken/internal/service"
	"github.com/artpromedia/samltoken/internal/token"
	pkgvalidator "github.com/artpromedia/samltoken/pkg/validator"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	initLogger()

	cfg := config.Load()

	log.Info().
		Str("environment", cfg.Server.Environment).
		Int("port", cfg.Server.Port).
		Msg("Starting samltoken SSO bridge")

	dbPool, err := initDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	redisClient, err := initRedis(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	repo := repository.New(dbPool)
	replay := replaycache.New(redisClient, cfg.SAML.ReplayCacheTTL)
	tokenService := token.NewService(&cfg.JWT)

	samlHandler, err := samltoken.NewHandlerBuilder().
		WithMaxTokenSize(cfg.SAML.MaxTokenSize).
		Build()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build SAML handler")
	}

	ssoService := service.NewSSOService(repo, samlHandler, tokenService, replay, cfg)

	v := pkgvalidator.NewValidator()
	ssoHandler := handler.NewSSOHandler(ssoService, cfg, v)

	authMiddleware := middleware.NewAuthMiddleware(tokenService)
	adminAuth := middleware.AdminAuth(cfg.Server.AdminAPIKeyHash)
	acsRateLimit := middleware.StrictRateLimit(20)

	router := createRouter(cfg, ssoHandler, authMiddleware, adminAuth, acsRateLimit, dbPool, redisClient)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Msgf("Server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func initLogger() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch os.Getenv("LOG_LEVEL") {
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

func initDatabase(cfg *config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Connected to PostgreSQL")
	return pool, nil
}

func initRedis(cfg *config.Config) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	log.Info().Msg("Connected to Redis")
	return client, nil
}

func createRouter(
	cfg *config.Config,
	ssoHandler *handler.SSOHandler,
	authMiddleware *middleware.AuthMiddleware,
	adminAuth func(http.Handler) http.Handler,
	acsRateLimit func(http.Handler) http.Handler,
	dbPool *pgxpool.Pool,
	redisClient *redis.Client,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(middleware.SecurityHeaders)
	r.Use(httprate.LimitByIP(100, time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthCheck)
	r.Get("/ready", makeReadinessCheck(dbPool, redisClient))

	r.Route("/", func(r chi.Router) {
		ssoHandler.RegisterRoutes(r, adminAuth, authMiddleware.Authenticate, acsRateLimit)
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"samltoken"}`))
}

func makeReadinessCheck(dbPool *pgxpool.Pool, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		allHealthy := true

		if err := dbPool.Ping(ctx); err != nil {
			checks["database"] = fmt.Sprintf("error: %v", err)
			allHealthy = false
			log.Error().Err(err).Msg("Database health check failed")
		}

		if err := redisClient.Ping(ctx).Err(); err != nil {
			checks["redis"] = fmt.Sprintf("error: %v", err)
			allHealthy = false
			log.Error().Err(err).Msg("Redis health check failed")
		}

		w.Header().Set("Content-Type", "application/json")

		response := map[string]interface{}{"service": "samltoken", "checks": checks}
		if allHealthy {
			response["status"] = "ready"
			w.WriteHeader(http.StatusOK)
		} else {
			response["status"] = "not_ready"
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		jsonBytes, _ := json.Marshal(response)
		w.Write(jsonBytes)
	}
}
