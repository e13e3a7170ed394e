package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillbit/marketplace/internal/app/migrate"
	httpx "github.com/skillbit/marketplace/internal/http"
	"github.com/skillbit/marketplace/internal/repository/postgres"
	"github.com/skillbit/marketplace/internal/service/auth"
	"github.com/skillbit/marketplace/internal/service/job"
	"github.com/skillbit/marketplace/internal/service/ledger"
	"github.com/skillbit/marketplace/internal/service/oracle"
	"github.com/skillbit/marketplace/internal/service/pipeline"
	"github.com/skillbit/marketplace/internal/service/session"
	"github.com/skillbit/marketplace/internal/ws"
	"github.com/skillbit/marketplace/pkg/config"
	"github.com/skillbit/marketplace/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", slog.LevelInfo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	runner, err := migrate.New(pool, cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migrations", "error", err)
		os.Exit(1)
	}
	defer runner.Close()
	if err := runner.Ping(ctx); err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	if err := runner.Ensure(ctx); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.New(pool)
	hub := ws.NewHub()

	oracleClient := oracle.NewHTTPClient(log, cfg)
	ledgerSvc := ledger.New(repo, hub, log)
	authSvc := auth.New(repo, ledgerSvc, log, cfg)
	jobSvc := job.New(repo, log)
	pipelineSvc := pipeline.New(repo, repo, repo, ledgerSvc, oracleClient, hub, log, cfg)
	sessionSvc := session.New(ledgerSvc, oracleClient, repo, hub, log, cfg)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, authSvc, jobSvc, pipelineSvc, ledgerSvc, sessionSvc, hub, limiter, pool.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}
