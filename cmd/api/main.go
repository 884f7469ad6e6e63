package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/installments-api/internal/application/service"
	"github.com/sangkips/installments-api/internal/config"
	"github.com/sangkips/installments-api/internal/infrastructure/database"
	"github.com/sangkips/installments-api/internal/infrastructure/logger"
	"github.com/sangkips/installments-api/internal/infrastructure/repository"
	"github.com/sangkips/installments-api/internal/presentation/http/handler"
	"github.com/sangkips/installments-api/internal/presentation/http/middleware"
	"github.com/sangkips/installments-api/internal/presentation/http/routes"
	"github.com/sangkips/installments-api/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	issueToken := flag.String("issue-token", "", "print an admin token for the named operator and exit")
	flag.Parse()

	// Load configuration
	cfg := config.Load()

	log := logger.New(&cfg.Log)
	defer func() { _ = log.Sync() }()

	// Initialize JWT manager
	jwtManager := utils.NewJWTManager(cfg.Auth.Secret, cfg.Auth.ExpiryHours, cfg.Auth.Issuer)

	if *issueToken != "" {
		token, err := jwtManager.GenerateToken(*issueToken, []string{utils.RoleAdmin})
		if err != nil {
			log.Fatal("Failed to issue token", zap.Error(err))
		}
		fmt.Println(token)
		return
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Open(&cfg.Database, &cfg.Log, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	// Run auto-migrations
	if err := db.AutoMigrate(); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize repositories
	txManager := repository.NewTransactionManager(db.DB)
	customerRepo := repository.NewCustomerRepository(db.DB)
	productRepo := repository.NewProductRepository(db.DB)
	saleRepo := repository.NewSaleRepository(db.DB)
	installmentRepo := repository.NewInstallmentRepository(db.DB)
	transactionRepo := repository.NewPaymentTransactionRepository(db.DB)
	idempotencyRepo := repository.NewIdempotencyRepository(db.DB)

	if removed, err := idempotencyRepo.DeleteExpired(context.Background()); err != nil {
		log.Warn("Failed to clean up idempotency keys", zap.Error(err))
	} else if removed > 0 {
		log.Info("Removed expired idempotency keys", zap.Int64("removed", removed))
	}

	// Initialize services
	identifierService := service.NewIdentifierService(saleRepo, cfg.Ledger.SaleNumberPrefix)
	customerService := service.NewCustomerService(customerRepo)
	productService := service.NewProductService(productRepo)
	saleService := service.NewSaleService(txManager, saleRepo, installmentRepo, transactionRepo, customerRepo, productRepo, identifierService, cfg.Ledger, log)
	installmentService := service.NewInstallmentService(txManager, installmentRepo, saleRepo, transactionRepo, cfg.Ledger.UpcomingDays, log)

	// Initialize handlers
	handlers := &routes.Handlers{
		Customer:    handler.NewCustomerHandler(customerService),
		Product:     handler.NewProductHandler(productService),
		Sale:        handler.NewSaleHandler(saleService, installmentService, log),
		Installment: handler.NewInstallmentHandler(installmentService, cfg.Ledger.DefaultLateFee),
	}

	// Per-client rate limiter
	rateLimiter := middleware.NewClientRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: float64(cfg.RateLimit.Requests) / float64(max(cfg.RateLimit.Duration, 1)),
		BurstSize:         cfg.RateLimit.Requests,
		CleanupInterval:   5 * time.Minute,
		EntryTTL:          10 * time.Minute,
	})
	defer rateLimiter.Stop()

	// Setup routes
	router := routes.Setup(handlers, &routes.Deps{
		JWTManager:      jwtManager,
		Cfg:             cfg,
		IdempotencyRepo: idempotencyRepo,
		Logger:          log,
		RateLimiter:     rateLimiter,
	})

	// Get port from environment or use default
	port := cfg.App.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Starting server",
			zap.String("service", cfg.App.Name),
			zap.String("port", port),
			zap.String("env", cfg.App.Env),
			zap.String("db_driver", db.Driver),
			zap.Bool("auth", cfg.Auth.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server stopped", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	timeout := cfg.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info("Shutting down server")
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
}
