// Package metrics exposes Prometheus counters for the proxy, the backend
// client and the playback state machine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backoffice"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	reg      *prometheus.Registry
	proxy    *prometheus.CounterVec
	backend  *prometheus.CounterVec
	player   *prometheus.CounterVec
	chanUp   *prometheus.GaugeVec
	chanLat  *prometheus.GaugeVec
	buildInf *prometheus.GaugeVec
}

func New(version string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		proxy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_requests_total",
			Help:      "Media proxy requests by kind and response status.",
		}, []string{"kind", "status"}),
		backend: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend REST calls by operation and status.",
		}, []string{"op", "status"}),
		player: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "player_events_total",
			Help:      "Playback state machine events.",
		}, []string{"event"}),
		chanUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_up",
			Help:      "1 when the last headless check of the channel succeeded.",
		}, []string{"channel"}),
		chanLat: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_check_seconds",
			Help:      "Duration of the last headless check of the channel.",
		}, []string{"channel"}),
		buildInf: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build version of the running binary.",
		}, []string{"version"}),
	}
	reg.MustRegister(
		m.proxy, m.backend, m.player, m.chanUp, m.chanLat, m.buildInf,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if version == "" {
		version = "dev"
	}
	m.buildInf.WithLabelValues(version).Set(1)
	return m
}

func (m *Metrics) ProxyRequest(kind string, status int) {
	if m == nil {
		return
	}
	m.proxy.WithLabelValues(kind, strconv.Itoa(status)).Inc()
}

func (m *Metrics) BackendRequest(op string, status int) {
	if m == nil {
		return
	}
	m.backend.WithLabelValues(op, strconv.Itoa(status)).Inc()
}

func (m *Metrics) PlayerEvent(name string) {
	if m == nil {
		return
	}
	m.player.WithLabelValues(name).Inc()
}

func (m *Metrics) ChannelHealth(channel string, up bool, took time.Duration) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.chanUp.WithLabelValues(channel).Set(v)
	m.chanLat.WithLabelValues(channel).Set(took.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
