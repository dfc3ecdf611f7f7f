package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	v1 "agentdash/api/v1"
	"agentdash/internal/cache"
	"agentdash/internal/config"
	"agentdash/internal/coordinator"
	"agentdash/internal/events"
	"agentdash/internal/logging"
	"agentdash/internal/metrics"
)

func main() {
	cfg, err := config.LoadDefault()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	base, closer, err := logging.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()
	logger := logrus.NewEntry(base).WithField("service", "agentsd")
	logger.Info("✓ Configuration loaded")

	if err := run(cfg, logger); err != nil {
		logger.Errorf("Exited with error: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		dispatchMetrics *metrics.Dispatch
		metricsHandler  http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		dispatchMetrics = metrics.MustNewDispatch(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	bus := events.NewBus()
	coord, err := coordinator.New(coordinator.Config{
		OfflineAgents: cfg.Simulation.OfflineAgents,
		Policy:        coordinator.Policy(cfg.Dispatcher.Policy),
		Interval:      cfg.Dispatcher.Interval(),
		LogCap:        cfg.Dispatcher.LogCap,
		HistoryCap:    cfg.Dispatcher.HistoryCap,
		Seed:          cfg.Simulation.Seed,
		Simulation: coordinator.Simulation{
			DelayScale:  cfg.Simulation.DelayScale,
			FailureRate: cfg.Simulation.FailureRate,
		},
		Bus:     bus,
		Metrics: dispatchMetrics,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	logger.Infof("✓ Coordinator ready (policy=%s, interval=%v)", cfg.Dispatcher.Policy, cfg.Dispatcher.Interval())

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		logger.Info("✓ Redis connected")

		relay := events.NewRedisRelay(client, cfg.Redis.Channel, logger)
		g.Go(func() error {
			relay.Forward(gctx, bus)
			return nil
		})
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	v1.SetupRouter(r, coord, metricsHandler, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		coord.RunLoop(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Infof("✓ Server starting on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("HTTP shutdown: %v", err)
		}
		return coord.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
