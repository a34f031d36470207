package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TradeDash/internal/handler/ws"
	imiddleware "TradeDash/internal/middleware"
	"TradeDash/internal/usecase"
	pkgcache "TradeDash/pkg/cache"
	"TradeDash/pkg/config"
	xhttp "TradeDash/pkg/http"
	pkgkafka "TradeDash/pkg/kafka"
	applogger "TradeDash/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	signals    *usecase.SignalView
	accounts   *usecase.AccountView
	hub        *ws.Hub
	httpServer *xhttp.Server
	handler    xhttp.Handler

	consumer *pkgkafka.Consumer
	kh       pkgkafka.MessageHandler
	pipe     *imiddleware.IngestPipeline
	redis    *pkgcache.RedisCache
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	signals *usecase.SignalView,
	accounts *usecase.AccountView,
	handler xhttp.Handler,
	hub *ws.Hub,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		signals:  signals,
		accounts: accounts,
		handler:  handler,
		hub:      hub,
	}
}

// SetConsumer attaches the optional Kafka live-ingest components.
func (a *App) SetConsumer(c *pkgkafka.Consumer, kh pkgkafka.MessageHandler, pipe *imiddleware.IngestPipeline) {
	a.consumer = c
	a.kh = kh
	a.pipe = pipe
}

// SetRedis attaches the optional Redis snapshot client for shutdown.
func (a *App) SetRedis(r *pkgcache.RedisCache) { a.redis = r }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.log),
	)

	// Repopulate caches from mirrored snapshots before serving requests.
	a.signals.WarmStart(ctx)

	// Kick off the initial fetch cycle so the dashboard has data without
	// waiting for the first manual refresh.
	a.signals.RequestRefresh(ctx)
	go func() {
		if err := a.accounts.Refresh(ctx, a.cfg.Feeds.BotID); err != nil {
			a.log.Warn("initial account refresh failed", applogger.Error(err))
		}
	}()

	if a.consumer != nil && a.kh != nil {
		if a.pipe != nil {
			a.pipe.Start(ctx)
		}
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("dashboard server started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("bot_id", a.cfg.Feeds.BotID),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	// Stop accepting HTTP traffic first.
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.hub != nil {
		a.hub.Close()
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.pipe != nil {
		a.pipe.Stop()
	}

	if err := a.signals.Close(); err != nil {
		a.log.Warn("signal view close error", applogger.Error(err))
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	// Final flush of any aggregated error logs.
	a.log.RemoveCollector()

	a.log.Info("shutdown complete")
	return nil
}
