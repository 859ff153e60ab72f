/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the wallet engine server: configuration,
  dependency wiring, HTTP router, daily scheduler, graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse flags with env fallback
  2. Open the SQLite store
  3. Wire notifier (circuit breaker over the log sink), metrics, services
  4. Start the recurring scheduler and HTTP server
  5. On SIGINT/SIGTERM: stop the scheduler, drain requests, close the db

CONFIGURATION (flag / env):
  -port      PORT              HTTP port (default 8080)
  -db        DB_PATH           SQLite path, ":memory:" for in-memory
  -max       MAX_AMOUNT        maximum single transfer (default 10000)
  -run-hour  RECURRING_HOUR    hour of day for the recurring run (default 8)
  -admin     ADMIN_ACCOUNT     account id granted admin overrides
  -scheduler SCHEDULER_ENABLED "false" disables the in-process scheduler
                               (use an external cron on /api/recurring/run)

SEE ALSO:
  - api/server.go: router configuration
  - store/sqlite/sqlite.go: persistence
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/wallet-engine/api"
	"github.com/warp/wallet-engine/store/sqlite"
	"github.com/warp/wallet-engine/wallet"
)

func main() {
	_ = godotenv.Load()

	var (
		port      = flag.String("port", envOr("PORT", "8080"), "HTTP server port")
		dbPath    = flag.String("db", envOr("DB_PATH", "wallet.db"), "SQLite database path")
		maxAmount = flag.String("max", envOr("MAX_AMOUNT", "10000"), "maximum single transfer amount")
		runHour   = flag.Int("run-hour", envOrInt("RECURRING_HOUR", 8), "hour of day for the recurring run")
		admin     = flag.String("admin", envOr("ADMIN_ACCOUNT", "admin"), "account id granted admin overrides")
		scheduler = flag.Bool("scheduler", envOr("SCHEDULER_ENABLED", "true") == "true", "run the in-process daily scheduler")
	)
	flag.Parse()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	maxDec, err := decimal.NewFromString(*maxAmount)
	if err != nil {
		logger.Fatal().Err(err).Str("max", *maxAmount).Msg("invalid max amount")
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Fatal().Err(err).Str("db", *dbPath).Msg("could not open store")
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics := wallet.NewMetrics("wallet", registry)

	directory := wallet.NewStoreDirectory(store, wallet.AccountID(*admin))
	notifier := wallet.NewBreakerNotifier(&wallet.LogNotifier{Logger: logger}, logger)

	service := &wallet.Service{
		Store:     store,
		Directory: directory,
		Notifier:  notifier,
		Logger:    logger,
		Metrics:   metrics,
		MaxAmount: maxDec,
	}
	recurring := &wallet.RecurringService{
		Store:     store,
		Directory: directory,
		Notifier:  notifier,
		Logger:    logger,
		Metrics:   metrics,
	}

	handler := &api.Handler{
		Service:   service,
		Recurring: recurring,
		Store:     store,
		Logger:    logger,
	}

	sched := api.NewRecurringScheduler(recurring, logger)
	sched.RunHour = *runHour
	sched.Enabled = *scheduler
	sched.Start()
	defer sched.Stop()

	server := &http.Server{
		Addr:    ":" + *port,
		Handler: api.NewRouter(handler, registry),
	}

	go func() {
		logger.Info().Str("port", *port).Str("db", *dbPath).Msg("wallet engine listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return fallback
}
