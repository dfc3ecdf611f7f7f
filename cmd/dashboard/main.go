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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	v1 "agentdash/api/v1"
	dashapi "agentdash/api/v1/dashboard"
	"agentdash/internal/apiclient"
	"agentdash/internal/cache"
	"agentdash/internal/config"
	"agentdash/internal/dashboard"
	"agentdash/internal/events"
	"agentdash/internal/logging"
	"agentdash/internal/metrics"
	"agentdash/internal/poller"
	"agentdash/internal/ws"
)

func main() {
	cfg, err := config.LoadDefault()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ValidateDashboard(); err != nil {
		logrus.Fatalf("Invalid dashboard config: %v", err)
	}

	base, closer, err := logging.New(cfg.Log)
	if err != nil {
		logrus.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()
	logger := logrus.NewEntry(base).WithField("service", "dashboard")
	logger.Infof("✓ Configuration loaded (backend=%s)", cfg.BackendURL)

	if err := run(cfg, logger); err != nil {
		logger.Errorf("Exited with error: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := apiclient.NewClient(cfg.BackendURL, cfg.Poller.Timeout())
	if err != nil {
		return err
	}

	var (
		pollMetrics    *metrics.Poll
		metricsHandler http.Handler
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		pollMetrics = metrics.MustNewPoll(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	state := dashboard.NewState(cfg.Dispatcher.LogCap)
	p := poller.New(&poller.Config{
		Source:      client,
		State:       state,
		Logger:      logger,
		Metrics:     pollMetrics,
		Interval:    cfg.Poller.Interval(),
		Timeout:     cfg.Poller.Timeout(),
		Concurrency: cfg.Poller.Concurrency,
		AgentIDs:    cfg.Poller.AgentIDs,
	})
	defer p.Stop()

	push := ws.NewServer(p, state, logger)
	state.OnChange(push.Broadcast)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedis(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()
		logger.Info("✓ Redis connected, polling on task events")

		relay := events.NewRedisRelay(rdb, cfg.Redis.Channel, logger)
		g.Go(func() error {
			return relay.Listen(gctx, func(ev events.Event) {
				if ev.Terminal() || ev.Type == events.TypeTaskQueued {
					p.Trigger()
				}
			})
		})
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handler := dashapi.NewHandler(state, client, p, cfg.Poller.Timeout())
	v1.SetupDashboardRouter(r, handler, push.Handler(), metricsHandler, logger)

	srv := &http.Server{
		Addr:              cfg.DashboardAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		go func() {
			<-gctx.Done()
			_ = push.Close()
		}()
		return push.Serve()
	})
	g.Go(func() error {
		logger.Infof("✓ Dashboard starting on %s", cfg.DashboardAddr)
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
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
