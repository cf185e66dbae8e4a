package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	paymentsapp "github.com/payrec/backend/internal/application/payments"
	"github.com/payrec/backend/internal/domain/payments"
	"github.com/payrec/backend/internal/domain/shared/valueobject"
	"github.com/payrec/backend/internal/infrastructure/config"
	"github.com/payrec/backend/internal/infrastructure/event"
	"github.com/payrec/backend/internal/infrastructure/logger"
	"github.com/payrec/backend/internal/interfaces/http/handler"
	"github.com/payrec/backend/internal/interfaces/http/middleware"
	"github.com/payrec/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting payment reconciliation service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	table, err := currencyTable(cfg.Currency)
	if err != nil {
		log.Fatal("Invalid currency configuration", zap.Error(err))
	}

	// Wire the reconciliation engine, event store and application service
	engine := payments.NewEngine(payments.WithCurrencyTable(table))
	store := event.NewInMemoryStore(log.Named("store"))
	resultService := paymentsapp.NewResultService(paymentsapp.ResultServiceConfig{
		Source: store,
		Engine: engine,
		Logger: log.Named("payments"),
	})

	// Set up gin
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	ginEngine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := ginEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}

	ginEngine.Use(middleware.RequestID())
	ginEngine.Use(middleware.RequestLogger(log))
	ginEngine.Use(middleware.Recovery(log))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	ginEngine.Use(middleware.CORSWithConfig(corsCfg))

	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		ginEngine.Use(middleware.RateLimit(limiter))
	}

	// Register routes
	r := router.NewRouter(ginEngine)
	r.Register(handler.NewPaymentHandler(resultService)).
		Register(handler.NewSystemHandler())
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        ginEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// currencyTable applies configured overrides on top of the built-in
// currency policies
func currencyTable(cfg config.CurrencyConfig) (payments.CurrencyTable, error) {
	table := payments.DefaultCurrencyTable()

	for code, raw := range cfg.MinimumPayment {
		currency := valueobject.Currency(strings.ToUpper(code))
		policy, ok := table[currency]
		if !ok {
			return nil, fmt.Errorf("currency.minimum_payment: unsupported currency %q", code)
		}
		minimum, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("currency.minimum_payment.%s: %w", code, err)
		}
		policy.MinimumPayment = minimum
		table[currency] = policy
	}

	for code, raw := range cfg.Precision {
		currency := valueobject.Currency(strings.ToUpper(code))
		policy, ok := table[currency]
		if !ok {
			return nil, fmt.Errorf("currency.precision: unsupported currency %q", code)
		}
		precision, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("currency.precision.%s: %w", code, err)
		}
		policy.Precision = int32(precision)
		table[currency] = policy
	}

	return table, nil
}
