package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dapur-be/internal/cart"
	"dapur-be/internal/config"
	"dapur-be/internal/db"
	"dapur-be/internal/handler"
	"dapur-be/internal/logger"
	"dapur-be/internal/metrics"
	"dapur-be/internal/middleware"
	"dapur-be/internal/notify"
	"dapur-be/internal/order"
	"dapur-be/internal/product"
	"dapur-be/internal/verification"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

var (
	initDBFunc      = db.InitDB
	newRedisFunc    = cart.NewRedisClient
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server stopped", zap.Error(err))
	}
}

type app struct {
	handler    http.Handler
	limiter    *middleware.RateLimiter
	verifier   verification.Service
	dispatcher *notify.Dispatcher
}

func newApp(ctx context.Context, cfg *config.Config, database *sql.DB, redisClient redis.UniversalClient) (*app, error) {
	m := metrics.NewRegistry()

	notifier, err := notify.NewFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}
	dispatcher := notify.NewDispatcher(notifier, m, cfg.NotifyTimeout)

	catalog := product.NewRepository(database)
	carts := cart.NewRedisStore(redisClient, cfg.CartTTL)

	verifier := verification.NewService(
		verification.NewRepository(database),
		dispatcher,
		m,
		verification.Options{
			TTL:          cfg.OTPTTL,
			MaxPerWindow: cfg.OTPMaxPerWindow,
			Window:       cfg.OTPRateWindow,
		},
	)

	orders := order.NewService(
		order.NewRepository(database),
		carts,
		catalog,
		verifier,
		dispatcher,
		m,
		cfg.Location(),
	)

	limiter := middleware.NewRateLimiter()
	h := handler.New(orders, verifier, carts, catalog, m)

	return &app{
		handler:    h.Routes([]byte(cfg.SecretKey), limiter),
		limiter:    limiter,
		verifier:   verifier,
		dispatcher: dispatcher,
	}, nil
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)
	defer logger.Sync()
	log := logger.L()

	if cfg.SecretKey == "" {
		log.Warn("SECRET_KEY is empty; admin endpoints will reject every request")
	}

	database := initDBFunc(cfg)
	defer database.Close()

	redisClient, err := newRedisFunc(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, database, redisClient)
	if err != nil {
		return err
	}
	defer a.dispatcher.Close()

	go a.limiter.Run(ctx, time.Minute)
	if cfg.SweepInterval > 0 {
		go verification.RunSweeper(ctx, a.verifier, cfg.SweepInterval)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- startServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
