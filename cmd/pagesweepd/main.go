// Command pagesweepd serves blank-page removal over HTTP.
//
// Configuration comes from an optional file named by PAGESWEEP_CONFIG, then
// from the environment; a .env file in the working directory is loaded first.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tsawler/pagesweep/internal/config"
	"github.com/tsawler/pagesweep/internal/delivery"
	"github.com/tsawler/pagesweep/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load()

	baseLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer baseLogger.Sync()

	cfg, err := loadConfig()
	if err != nil {
		baseLogger.Fatal("invalid configuration", zap.Error(err))
	}

	svc, err := service.New(cfg, baseLogger.Named("service"))
	if err != nil {
		baseLogger.Fatal("failed to init service", zap.Error(err))
	}
	handler := delivery.NewHandler(svc, baseLogger.Named("http"))
	router := delivery.NewRouter(handler, delivery.RouterConfig{
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RateLimit:      cfg.HTTP.RateLimit,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("listening",
			zap.String("addr", cfg.HTTP.Addr),
			zap.String("max_input_size", humanize.IBytes(uint64(svc.MaxInputSize()))),
			zap.Bool("allow_empty", cfg.AllowEmpty),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("shutdown", zap.Error(err))
	}
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if path := os.Getenv("PAGESWEEP_CONFIG"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.ApplyEnv(os.LookupEnv)
}
