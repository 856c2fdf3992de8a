package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/config"
	"github.com/dmitrymomot/billsync/pkg/httpserver"
	"github.com/dmitrymomot/billsync/pkg/logger"
	"github.com/dmitrymomot/billsync/svc/billingapi"
)

func newServeCmd(envFiles *[]string) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the billing HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(config.WithEnvFiles(*envFiles...))
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			return serve(ctx, cfg, log, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply store migrations before serving")
	return cmd
}

func newLogger(cfg appConfig) *slog.Logger {
	return logger.NewFromConfig(cfg.Log, logger.WithContextExtractors(requestIDExtractor))
}

func requestIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id := middleware.GetReqID(ctx)
	if id == "" {
		return slog.Attr{}, false
	}
	return logger.RequestID(id), true
}

func serve(ctx context.Context, cfg appConfig, log *slog.Logger, migrate bool) error {
	b, err := newBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	if migrate {
		if err := b.Migrate(ctx, log); err != nil {
			return err
		}
	}

	svc, err := newService(cfg, b, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := newRouter(cfg, svc, b.checks, reg, log)
	log.InfoContext(ctx, "Starting billingd",
		slog.String("version", Version),
		slog.String("provider", cfg.Provider),
		slog.String("store", cfg.Store),
		slog.String("locker", cfg.Locker),
	)
	return httpserver.New(cfg.HTTP, httpserver.WithLogger(log)).Run(ctx, router)
}

func newService(cfg appConfig, b *backends, log *slog.Logger) (billing.Service, error) {
	catalog, err := billing.CatalogFromConfig(cfg.Billing)
	if err != nil {
		return nil, err
	}
	provider, auth, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	return billing.NewService(catalog,
		billing.NewBreakerProvider(provider, cfg.Breaker, log.With(logger.Component("provider"))),
		auth,
		b.store,
		billing.WithLogger(log.With(logger.Component("billing"))),
		billing.WithLocker(b.locker),
	), nil
}

func newRouter(cfg appConfig, svc billing.Service, checks []httpserver.Check, reg *prometheus.Registry, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(log, checks...))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	api := billingapi.NewHandler(svc, cfg.API,
		billingapi.WithLogger(log.With(logger.Component("billingapi"))),
		billingapi.WithMetrics(billingapi.NewMetrics(reg)),
	)
	r.Mount("/billing", api.Router())
	return r
}
