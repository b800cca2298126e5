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

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mt5-analysis-service/internal/analysis"
	"mt5-analysis-service/internal/api"
	"mt5-analysis-service/internal/config"
	"mt5-analysis-service/internal/export"
	"mt5-analysis-service/internal/mt5"
	"mt5-analysis-service/internal/runner"
	"mt5-analysis-service/internal/store"
	"mt5-analysis-service/internal/tasks"
	"mt5-analysis-service/internal/telemetry"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.APIKey == "" {
		logger.Fatal("API_KEY must be set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	gateway := mt5.NewGateway(mt5.GatewayConfig{
		BaseURL:  cfg.MT5GatewayURL,
		Login:    cfg.MT5Login,
		Password: cfg.MT5Password,
		Server:   cfg.MT5Server,
		Timeout:  cfg.MT5RequestTimeout,
	})

	exporter, err := export.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init exporter", zap.Error(err))
	}

	analyzer := analysis.NewAnalyzer(gateway, exporterOrNil(exporter), cfg.AnalysisWindowDays, cfg.InitialEquity, logger)

	st := store.New()
	if cfg.TaskTTL > 0 {
		go st.RunJanitor(ctx, cfg.TaskTTL, cfg.TaskSweepInterval)
	}

	rn := runner.New(st, logger)
	svc := tasks.New(st, rn, func(ctx context.Context) (any, error) {
		return analyzer.Run(ctx)
	}, logger)

	server := api.New(cfg, svc, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: telemetry.Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", zap.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		_ = metricsServer.Shutdown(shutdownCtx)
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// exporterOrNil avoids handing the analyzer a typed nil interface.
func exporterOrNil(e *export.Exporter) analysis.Exporter {
	if e == nil {
		return nil
	}
	return e
}
