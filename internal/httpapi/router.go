// Package httpapi is the HTTP facade of the back office: auth, dashboard
// data, backend passthroughs, the media proxy and the embedded UI.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"backoffice/internal/audit"
	"backoffice/internal/auth"
	"backoffice/internal/backend"
	"backoffice/internal/mediaproxy"
	"backoffice/internal/metrics"
	"backoffice/internal/monitor"
	"backoffice/internal/nav"
	"backoffice/internal/operators"
	"backoffice/internal/stats"
	"backoffice/internal/streamcheck"
	apitoken "backoffice/pkg/auth"
)

type Deps struct {
	Backend   *backend.Client
	Auth      *auth.Service
	Stats     *stats.Service
	Audit     audit.Store
	Operators operators.Directory
	Checker   *streamcheck.Checker
	Monitor   *monitor.Monitor
	Proxy     *mediaproxy.Handler
	Metrics   *metrics.Metrics
	UI        http.Handler
	Logger    zerolog.Logger

	APIBaseURL     string
	GoogleClientID string
	MetricsToken   string
	BuildVersion   string
}

func NewRouter(d *Deps) http.Handler {
	if d.Audit == nil {
		d.Audit = audit.NewMemStore(0)
	}
	if d.Operators == nil {
		d.Operators = operators.NewMemDirectory()
	}
	if d.UI == nil {
		d.UI = http.NotFoundHandler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": d.BuildVersion})
	})
	r.Get("/readyz", handleReady(d))
	r.With(apitoken.TokenMiddleware(d.MetricsToken)).Handle("/metrics", d.Metrics.Handler())

	if d.Proxy != nil {
		r.Handle(d.Proxy.Prefix(), d.Proxy)
		if d.Proxy.Prefix() != "/api/proxy-stream" {
			r.Handle("/api/proxy-stream", d.Proxy)
		}
	}

	r.Get("/", d.UI.ServeHTTP)
	r.Get("/dashboard", handleDashboard(d))
	r.Get("/dashboard/*", handleDashboard(d))

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", handleClientConfig(d))
		r.Post("/auth/login", handleLogin(d))
		r.Post("/auth/validate", handleLogin(d))
		r.Post("/auth/logout", handleLogout(d))

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.RequireAuth)
			r.Get("/me", handleMe(d))
			r.Get("/stats", handleStats(d))
			r.Get("/viewer/channels", handleViewerChannels(d))
			r.Get("/viewer/channels/{id}", handleViewerChannel(d))
		})

		r.With(d.Auth.RequireAnyRole(nav.ChannelRoles...)).Get("/viewer/channels/{id}/check", handleCheckChannel(d))

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.RequireAnyRole(nav.ChannelRoles...))
			r.Get("/channels", handleRaw(d, "Channels", d.Backend.Channels))
			r.Get("/channels/online/count", handleCount(d, "Channels online count", d.Backend.OnlineChannelsCount))
			r.Get("/monitor", handleMonitor(d))
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Use(d.Auth.RequireAnyRole(nav.SessionRoles...))
			r.Get("/", handleRaw(d, "Sessions", d.Backend.Sessions))
			r.Get("/last-hour/count", handleCount(d, "Sessions last hour count", d.Backend.SessionsLastHourCount))
			r.Get("/{id}", handleSession(d))
			r.Get("/{id}/frames", handleSessionPart(d, "Session frames", d.Backend.SessionFrames))
			r.Get("/{id}/videos", handleSessionPart(d, "Session videos", d.Backend.SessionVideos))
			r.Get("/{id}/logs", handleSessionPart(d, "Session logs", d.Backend.SessionLogs))
		})

		r.With(d.Auth.RequireAnyRole(nav.RedisRoles...)).Get("/redis/{key}", handleRedis(d))

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.RequireAnyRole(nav.AdminRoles...))
			r.Get("/audit", handleAudit(d))
			r.Get("/operators", handleOperators(d))
		})
	})

	return r
}
