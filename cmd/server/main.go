package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"idsearch/internal/identity/resolver"
	"idsearch/internal/identity/store"
	"idsearch/internal/platform/config"
	"idsearch/internal/platform/httpserver"
	"idsearch/internal/platform/logger"
	"idsearch/internal/platform/metrics"
	"idsearch/internal/platform/redis"
	"idsearch/internal/search/coordinator"
	"idsearch/internal/search/events"
	"idsearch/internal/search/handler"
	"idsearch/internal/search/service"
	httptransport "idsearch/internal/transport/http"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	m := metrics.New()

	client := resolver.NewClient(cfg.Resolver.WalletURL, cfg.Resolver.Timeout,
		resolver.WithOriginator(cfg.Resolver.Originator),
	)
	router, err := resolver.NewRouter(client,
		resolver.WithLogger(log),
		resolver.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	var res coordinator.Resolver = router
	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithHealthReporter(router),
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		cached, err := store.NewRedisCache(router, redisClient,
			store.WithTTL(cfg.Redis.CacheTTL),
			store.WithLogger(log),
		)
		if err != nil {
			return err
		}
		res = cached
		svcOpts = append(svcOpts, service.WithDependency("redis", redisClient.Health))
		log.Info("shared resolution cache enabled", "ttl", cfg.Redis.CacheTTL)
	}

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Events.Brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.SelectionTopic)
		if err != nil {
			return err
		}
		async := events.NewAsyncPublisher(kafka,
			events.WithLogger(log),
			events.WithMetrics(m),
		)
		defer async.Close()
		g.Go(func() error { return async.Run(gctx) })
		svcOpts = append(svcOpts,
			service.WithPublisher(async),
			service.WithDependency("kafka", kafka.Ping),
		)
		log.Info("selection events enabled", "topic", cfg.Events.SelectionTopic)
	}

	svc, err := service.New(res, cfg.Search, svcOpts...)
	if err != nil {
		return err
	}

	h := handler.New(svc, log, handler.WithAllowedOrigins(cfg.Server.AllowedOrigins))
	srv := httpserver.New(cfg.Server.Addr, httptransport.NewRouter(log, nil, h))

	g.Go(func() error {
		return httpserver.Run(gctx, srv, log, cfg.Server.ShutdownTimeout)
	})
	return g.Wait()
}
