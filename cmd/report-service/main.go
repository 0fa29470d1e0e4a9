package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/reportrx/reportrx-backend/internal/interpret"
	"github.com/reportrx/reportrx-backend/internal/labreport/events"
	"github.com/reportrx/reportrx-backend/internal/labreport/extract"
	"github.com/reportrx/reportrx-backend/internal/labreport/handler"
	"github.com/reportrx/reportrx-backend/internal/labreport/repository"
	"github.com/reportrx/reportrx-backend/internal/labreport/service"
	"github.com/reportrx/reportrx-backend/pkg/config"
	"github.com/reportrx/reportrx-backend/pkg/database"
	"github.com/reportrx/reportrx-backend/pkg/httputil"
	"github.com/reportrx/reportrx-backend/pkg/logger"
	"github.com/reportrx/reportrx-backend/pkg/messaging"
)

func main() {
	// Local .env is optional; real deployments set environment variables
	_ = godotenv.Load()

	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("report-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("report-service", cfg.Server.Environment)
	log.Info().Msg("starting Report Service")

	// Connect to database. Parse auditing is best-effort in development,
	// so a missing database only disables the audit trail there.
	var auditRepo *repository.AuditRepository
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		if config.IsProductionLike() {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		log.Warn().Err(err).Msg("database unavailable, parse auditing disabled")
	} else {
		defer db.Close()
		auditRepo = repository.NewAuditRepository(db)
	}

	// Connect to RabbitMQ, same best-effort policy as the database
	var publisher *events.Publisher
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		if config.IsProductionLike() {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		log.Warn().Err(err).Msg("RabbitMQ unavailable, report events disabled")
	} else {
		defer rmq.Close()
		publisher, err = events.NewPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	}

	// Initialize services
	extractor := extract.New(&cfg.Parse, log.WithComponent("extract"))
	interpreter := interpret.NewService(&cfg.OpenAI, log.WithComponent("interpret"))
	reportService := service.New(&cfg.Parse, extractor, interpreter, auditRepo, publisher, log.WithComponent("report"))

	// Initialize handlers
	reportHandler := handler.New(reportService, &cfg.Parse, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS for the web frontend
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":  "healthy",
			"service": "report-service",
		}
		if db != nil {
			health["database"] = db.Health(r.Context())
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	// API endpoints
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/", reportHandler.Routes())
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
