package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"backoffice/internal/audit"
	"backoffice/internal/auth"
	"backoffice/internal/backend"
	"backoffice/internal/config"
	"backoffice/internal/httpapi"
	"backoffice/internal/mediaproxy"
	"backoffice/internal/metrics"
	"backoffice/internal/monitor"
	"backoffice/internal/operators"
	"backoffice/internal/stats"
	"backoffice/internal/streamcheck"
	"backoffice/internal/web"
	"backoffice/pkg/db"
	"backoffice/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = lo.Must(cmd.Flags().GetString("port"))
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Listen port (overrides PORT)")
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(cfg.LogLevel)
	m := metrics.New(cfg.BuildVersion)

	client := backend.New(backend.Options{
		BaseURL:    cfg.BackendURL,
		Logger:     log.With().Str("component", "backend").Logger(),
		Metrics:    m,
		HealthPath: cfg.HealthPath,
	})

	auditStore, closeAudit, err := openAudit(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	dir, closeDir, err := openOperators(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDir()

	proxy := mediaproxy.NewHandler(mediaproxy.Options{
		Prefix:  cfg.ProxyPrefix,
		Client:  &http.Client{Timeout: cfg.ProxyTimeout},
		Limiter: cfg.ProxyLimiter(),
		Logger:  log.With().Str("component", "proxy").Logger(),
		Metrics: m,
	})

	checker := streamcheck.New(streamcheck.Options{Logger: log.With().Str("component", "streamcheck").Logger(), Metrics: m})

	var mon *monitor.Monitor
	if cfg.MonitorEnabled() {
		mon = monitor.New(monitor.Options{
			Source:     client,
			Prober:     checker,
			Sink:       m,
			Token:      cfg.Monitor.Token,
			APIBaseURL: cfg.APIBaseURL,
			Interval:   cfg.Monitor.Interval,
			Concurrent: cfg.Monitor.Concurrent,
			Logger:     log.With().Str("component", "monitor").Logger(),
		})
		go mon.Run(ctx)
	}

	router := httpapi.NewRouter(&httpapi.Deps{
		Backend:        client,
		Auth:           auth.NewService(cfg.AppSecret, cfg.SessionTTL, cfg.CookieSecure),
		Stats:          stats.NewService(client, cfg.StatsTTL, log.With().Str("component", "stats").Logger()),
		Audit:          auditStore,
		Operators:      dir,
		Checker:        checker,
		Monitor:        mon,
		Proxy:          proxy,
		Metrics:        m,
		UI:             web.Handler(),
		Logger:         log,
		APIBaseURL:     cfg.APIBaseURL,
		GoogleClientID: cfg.GoogleClient,
		MetricsToken:   cfg.MetricsToken,
		BuildVersion:   cfg.BuildVersion,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", cfg.BuildVersion).Str("backend", cfg.BackendURL).Msg("backoffice listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openAudit(ctx context.Context, cfg config.Config, log zerolog.Logger) (audit.Store, func(), error) {
	if cfg.DBURL == "" {
		log.Info().Msg("DB_URL not set, audit trail kept in memory")
		return audit.NewMemStore(0), func() {}, nil
	}
	pool, err := db.Connect(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}
	store := audit.NewPGStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func openOperators(ctx context.Context, cfg config.Config, log zerolog.Logger) (operators.Directory, func(), error) {
	if !cfg.ScyllaEnabled() {
		log.Info().Msg("SCYLLA_HOSTS not set, operator directory kept in memory")
		return operators.NewMemDirectory(), func() {}, nil
	}
	session, err := operators.Connect(ctx, cfg.Scylla, 20, 5*time.Second, log.With().Str("component", "operators").Logger())
	if err != nil {
		return nil, nil, err
	}
	return operators.NewCassandraDirectory(session, cfg.Scylla.Keyspace), session.Close, nil
}
