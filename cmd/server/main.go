package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/api"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/cache"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/config"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/engine"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ledger"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/logger"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/messaging"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/metrics"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/middleware"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/pricing"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/service"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/store"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ws"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	markets, err := config.LoadMarkets(cfg.MarketsFile)
	if err != nil {
		return fmt.Errorf("load markets: %w", err)
	}
	log.Info("markets loaded",
		zap.Int("currencies", len(markets.Currencies())),
		zap.Int("pairs", len(markets.Pairs())))

	ledgerStore, err := openLedger(ctx, cfg, markets, log)
	if err != nil {
		return err
	}
	defer ledgerStore.Close()

	m := metrics.New()

	eng := engine.New(ledgerStore, markets.Pairs(), log.Named("engine"))
	restored, err := eng.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore books: %w", err)
	}
	log.Info("order books restored", zap.Int("orders", restored))

	prices := pricing.NewCache(eng, log.Named("pricing"))
	go prices.Run(ctx, cfg.PriceRefreshInterval)

	var svcOpts []service.Option
	svcOpts = append(svcOpts, service.WithMetrics(m))

	var redisCache *cache.RedisCache
	if cfg.RedisEnabled {
		redisCache, err = cache.NewRedisCache(ctx, cfg)
		if err != nil {
			log.Warn("redis cache not available", zap.String("addr", cfg.GetRedisAddr()), zap.Error(err))
			redisCache = nil
		} else {
			log.Info("redis cache connected", zap.String("addr", cfg.GetRedisAddr()))
			defer redisCache.Close()
			svcOpts = append(svcOpts, service.WithTradeReader(redisCache))
		}
	}

	svc := service.NewOrderService(ledgerStore, eng, markets, log.Named("service"), svcOpts...)

	dispatcher := messaging.NewDispatcher(cfg.WorkerCount, cfg.EventQueueSize, log.Named("events"), m)
	eng.SetTradeCallback(dispatcher.OnTrade).SetOrderCallback(dispatcher.OnOrder)

	publisher, err := openPublisher(cfg, log)
	if err != nil {
		log.Warn("event broker not available, events stay in process",
			zap.String("broker", cfg.EventBroker), zap.Error(err))
	}
	var breaker *messaging.BreakerPublisher
	if publisher != nil {
		defer publisher.Close()
		breaker = messaging.NewBreakerPublisher(publisher, messaging.DefaultCircuitBreakerConfig())
		dispatcher.RegisterPublisher(breaker)
		log.Info("event publisher ready", zap.String("broker", publisher.Name()))
	}
	if redisCache != nil {
		dispatcher.Register("redis", redisCache.EventHandler(svc.Snapshot))
	}

	var (
		hub       *ws.Hub
		wsHandler *ws.Handler
	)
	if cfg.WSEnabled {
		hub = ws.NewHub(ws.DefaultHubConfig(), svc, log.Named("ws"), m)
		go hub.Run(ctx)
		dispatcher.Register("websocket", hub.HandleEvent)
		wsHandler = ws.NewHandler(ctx, hub, cfg.WSMaxConnsPerIP, log.Named("ws"))
	}

	dispatcher.Start(ctx)

	rlCfg := middleware.DefaultRateLimitConfig()
	rlCfg.RequestsPerSecond = cfg.RateLimitRPS
	rlCfg.Burst = cfg.RateLimitBurst
	limiter := middleware.NewRateLimiter(rlCfg)

	go housekeeping(ctx, eng, limiter, m)

	deps := api.Deps{
		Service:     svc,
		Prices:      prices,
		Books:       eng,
		Ledger:      ledgerStore,
		Logger:      log.Named("http"),
		WS:          wsHandler,
		Metrics:     m,
		RateLimiter: limiter,
	}
	if redisCache != nil {
		deps.Cache = redisCache
		deps.Statuses = redisCache
	}
	if hub != nil {
		deps.Feed = hub
	}
	if breaker != nil {
		deps.Breaker = breaker
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	api.RegisterRoutes(router, deps)

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("exchange listening", zap.String("addr", cfg.ServerPort), zap.String("ledger", cfg.LedgerDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}
	dispatcher.Stop(cfg.ShutdownTimeout)
	return nil
}

func openLedger(ctx context.Context, cfg *config.Config, markets *models.Markets, log *zap.Logger) (ledger.Store, error) {
	switch cfg.LedgerDriver {
	case "bolt":
		st, err := store.NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt ledger: %w", err)
		}
		log.Info("bolt ledger opened", zap.String("path", cfg.BoltPath))
		return st, nil
	case "postgres":
		st, err := store.NewPostgresStore(cfg.GetPostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("open postgres ledger: %w", err)
		}
		if err := store.NewMigrator(st.GetDB(), log.Named("migrate")).Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		synced, err := store.SyncMarkets(ctx, st.GetDB(), markets)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("sync markets: %w", err)
		}
		log.Info("markets synced",
			zap.Int("pairs_added", synced.AddedPairs),
			zap.Int64("currencies_deactivated", synced.DeactivatedCurrencies))
		for _, p := range synced.Unlisted {
			log.Warn("pair in database is not in the registry; its orders stay off the books",
				zap.String("pair", p.Symbol()))
		}
		if len(synced.Inactive) > 0 {
			log.Info("inactive currencies", zap.Strings("codes", synced.Inactive))
		}
		log.Info("postgres ledger connected", zap.String("host", cfg.PostgresHost), zap.String("db", cfg.PostgresDB))
		return st, nil
	default:
		return nil, fmt.Errorf("unknown LEDGER_DRIVER %q", cfg.LedgerDriver)
	}
}

func openPublisher(cfg *config.Config, log *zap.Logger) (messaging.Publisher, error) {
	switch cfg.EventBroker {
	case "rabbitmq":
		p, err := messaging.NewAMQPPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, log.Named("amqp"))
		if err != nil {
			return nil, err
		}
		return p, nil
	case "kafka":
		return messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown EVENT_BROKER %q", cfg.EventBroker)
	}
}

// housekeeping refreshes the book size gauges and drops idle rate limiters.
func housekeeping(ctx context.Context, eng *engine.Engine, limiter *middleware.RateLimiter, m *metrics.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetBookSizes(eng.RestingCounts())
			limiter.Sweep()
		}
	}
}
