package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/highlight"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/store"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/display/view"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/internal/searcher/router"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/redis"
)

const snapshotInterval = time.Minute

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the search-view HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	m := metrics.New()
	checker := health.NewChecker(5 * time.Second)

	var pages handler.PageStore = store.NewMemory()
	var snapshots *aggregator.Store
	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, page numbers kept in memory", "error", err)
	} else {
		defer pg.Close()
		if err := pg.Migrate(ctx, store.Schema, aggregator.Schema); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
		pages = store.NewPostgres(pg)
		snapshots = aggregator.NewStore(pg)
		checker.Register("postgres", pg.HealthCheck())
	}

	client, err := grpc.Dial(ctx, cfg.Search.Addr)
	if err != nil {
		return fmt.Errorf("connecting to search backend: %w", err)
	}
	defer client.Close()
	rpc := executor.NewRPC(client, cfg.Search, m)
	checker.Register("search", rpc.HealthCheck())

	var backend executor.Executor = rpc
	var pageCache *cache.PageCache
	rdb, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, page cache disabled", "error", err)
	} else {
		defer rdb.Close()
		pageCache = cache.New(rpc, rdb, cfg.Redis.CacheTTL, m)
		backend = pageCache
		checker.Register("redis", rdb.HealthCheck())
	}

	g, gctx := errgroup.WithContext(ctx)

	agg := analytics.NewAggregator()
	var tracker analytics.Tracker = agg
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DisplayEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 100, 2*time.Second)
		collector.Start(gctx)
		defer collector.Close()
		tracker = collector

		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DisplayEvents, agg.HandleMessage())
		g.Go(func() error { return consumer.Start(gctx) })
	}
	if snapshots != nil {
		g.Go(func() error { return snapshots.RunPeriodicSave(gctx, agg, snapshotInterval) })
	}

	engine, err := highlight.New(highlight.ClassMarker{Class: cfg.Paging.HighlightClass}, cfg.Paging.TermCacheSize)
	if err != nil {
		return fmt.Errorf("building highlight engine: %w", err)
	}

	registry := view.NewRegistry(gctx, cfg.Paging.MaxViews)
	dispatcher := executor.NewDispatcher(backend, tracker, m)

	deps := handler.Deps{
		Registry:   registry,
		Dispatcher: dispatcher,
		Engine:     engine,
		Store:      pages,
		Tracker:    tracker,
		Metrics:    m,
		Paging:     cfg.Paging,
	}
	if pageCache != nil {
		deps.Cache = pageCache
	}
	h := handler.New(deps)

	var limiter *ratelimit.Limiter
	if cfg.Server.ViewsPerMinute > 0 {
		limiter = ratelimit.New(cfg.Server.ViewsPerMinute, time.Minute)
		go limiter.Run(gctx, 5*time.Minute)
	}

	var history http.HandlerFunc
	if snapshots != nil {
		history = aggregator.HistoryHandler(snapshots)
	}

	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.New(h, router.Options{
			Analytics:   analytics.NewHandler(agg),
			History:     history,
			Health:      checker,
			Metrics:     m,
			Timeout:     cfg.Server.WriteTimeout,
			ViewLimiter: limiter,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout + time.Second,
	}

	g.Go(func() error {
		slog.Info("display service starting", "addr", srv.Addr, "search_backend", cfg.Search.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down display service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
		registry.Shutdown()
		dispatcher.Wait()
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("display service stopped")
	return nil
}
