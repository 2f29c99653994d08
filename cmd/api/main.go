// cmd/api/main.go
// Main entry point for the application
// This file bootstraps all components and starts the server

package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imadgeboyega/movienight-backend/internal/auth"
	"github.com/imadgeboyega/movienight-backend/internal/catalog"
	"github.com/imadgeboyega/movienight-backend/internal/common/database"
	"github.com/imadgeboyega/movienight-backend/internal/common/logging"
	"github.com/imadgeboyega/movienight-backend/internal/common/utils"
	"github.com/imadgeboyega/movienight-backend/internal/config"
	"github.com/imadgeboyega/movienight-backend/internal/matching"
)

var startTime = time.Now()

func main() {
	// 1. Load environment variables
	envErr := godotenv.Load()

	// 2. Load configuration
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Caller: cfg.IsDevelopment(),
	})
	if envErr != nil {
		logging.Warn().Err(envErr).Msg("no .env file found, using environment variables")
	}

	logging.Info().Str("environment", cfg.Environment).Msg("starting movie night API")

	// 3. Validate configuration
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 4. Connect to PostgreSQL
	db, err := database.NewPostgresDB(ctx, &database.PostgresConfig{
		URL:          cfg.DatabaseURL,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	logging.Info().Msg("connected to PostgreSQL")

	// 5. Connect to Redis (optional, only caches catalog listings)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClientFromURL(ctx, cfg.RedisURL)
		if err != nil {
			logging.Warn().Err(err).Msg("redis unavailable, catalog cache disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
			logging.Info().Msg("connected to Redis")
		}
	}

	// 6. Run database migrations
	if err := database.Migrate(ctx, db); err != nil {
		logging.Fatal().Err(err).Msg("failed to run migrations")
	}

	// 7. Catalog
	tmdb := catalog.NewTMDBClient(catalog.TMDBConfig{
		APIKey:    cfg.TMDBAPIKey,
		BaseURL:   cfg.TMDBBaseURL,
		Language:  cfg.TMDBLanguage,
		Timeout:   cfg.TMDBTimeout,
		RateLimit: cfg.TMDBRateLimit,
		RateBurst: cfg.TMDBRateBurst,
	})
	provider := catalog.NewCachedProvider(tmdb, redisClient, cfg.CatalogCacheTTL)
	movieStore := catalog.NewPostgresStore(db)

	// 8. Authentication
	authService := auth.NewService(&auth.Config{JWTSecret: cfg.JWTSecret})
	authMiddleware := auth.NewMiddleware(authService)

	// 9. Matching
	hub := matching.NewHub()
	go hub.Run(ctx)

	matchingRepo := matching.NewPostgresRepository(db)
	suggestions := matching.NewSuggestionEngine(matchingRepo, provider, movieStore)
	seed := cfg.MatchingSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	partitioner := matching.NewPartitioner(matching.NewRandomSource(seed), suggestions)
	pairwise := matching.NewPairwiseRecommender(matchingRepo, movieStore, provider)

	matchingService := matching.NewService(matchingRepo, partitioner, pairwise, movieStore, hub, matching.Config{
		DefaultGroupSize: cfg.DefaultGroupSize,
	})
	matchingHandler := matching.NewHandler(matchingService)

	if cfg.EnableScheduler {
		matching.NewScheduler(matchingService, cfg.MatchingInterval).Start(ctx)
		logging.Info().Dur("interval", cfg.MatchingInterval).Msg("matching scheduler started")
	}

	// 10. Setup routes
	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)

	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	catalog.RegisterRoutes(router, catalog.NewHandler(movieStore), authMiddleware)
	matching.RegisterRoutes(router, matchingHandler, hub, authMiddleware)

	// 11. Create and start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutdown signal received")

	// stops the scheduler and the websocket hub
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	logging.Info().Msg("server exited gracefully")
}

// healthCheck returns server health status
func healthCheck(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	})
}

// Middleware functions

// loggingMiddleware logs all requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		logging.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", wrapped.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
