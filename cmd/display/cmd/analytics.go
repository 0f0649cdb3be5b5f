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
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/postgres"
)

// newAnalyticsCmd runs the aggregation side on its own: it consumes display
// events from Kafka, snapshots the running statistics to PostgreSQL and
// serves them over HTTP.
func newAnalyticsCmd(cfg *config.Config) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Run the standalone display-analytics aggregation service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cfg.Kafka.Enabled {
				return errors.New("analytics service needs kafka.enabled")
			}
			if port == 0 {
				port = cfg.Server.Port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serveAnalytics(ctx, cfg, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (defaults to server.port)")
	return cmd
}

func serveAnalytics(ctx context.Context, cfg *config.Config, port int) error {
	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pg.Close()
	if err := pg.Migrate(ctx, aggregator.Schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	snapshots := aggregator.NewStore(pg)

	agg := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DisplayEvents, agg.HandleMessage())

	checker := health.NewChecker(5 * time.Second)
	checker.Register("postgres", pg.HealthCheck())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(agg).Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", aggregator.HistoryHandler(snapshots))
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.AccessLog(chain)
	chain = middleware.RequestID(chain)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Start(gctx) })
	g.Go(func() error { return snapshots.RunPeriodicSave(gctx, agg, snapshotInterval) })
	g.Go(func() error {
		slog.Info("analytics service listening", "addr", srv.Addr, "topic", cfg.Kafka.Topics.DisplayEvents)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("analytics service stopped")
	return nil
}
