// Package mediaproxy fetches remote media on behalf of the browser and rewrites
// HLS manifests so that every sub-playlist and segment is fetched through it too.
package mediaproxy

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Recorder receives one call per proxied request. kind is "manifest", "media"
// or "error".
type Recorder interface {
	ProxyRequest(kind string, status int)
}

type Options struct {
	// Prefix is the same-origin path rewritten manifests point at.
	Prefix  string
	Client  *http.Client
	Limiter *rate.Limiter
	Logger  zerolog.Logger
	Metrics Recorder
}

type Handler struct {
	prefix  string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
	metrics Recorder
}

func NewHandler(opts Options) *Handler {
	if opts.Prefix == "" {
		opts.Prefix = "/proxy-stream"
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Handler{
		prefix:  opts.Prefix,
		client:  opts.Client,
		limiter: opts.Limiter,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
}

// Prefix returns the path rewritten manifest lines point at.
func (h *Handler) Prefix() string {
	return h.prefix
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		h.preflight(w)
	case http.MethodGet:
		h.serve(w, r)
	default:
		setCORS(w.Header())
		w.Header().Set("Allow", "GET, OPTIONS")
		h.fail(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *Handler) preflight(w http.ResponseWriter) {
	hdr := w.Header()
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	hdr.Set("Access-Control-Allow-Headers", "Content-Type")
	hdr.Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())
	target := r.URL.Query().Get("url")
	if target == "" {
		h.fail(w, http.StatusBadRequest, "Missing URL parameter")
		return
	}
	if !ValidTarget(target) {
		h.fail(w, http.StatusBadRequest, "Invalid URL parameter")
		return
	}
	if h.limiter != nil && !h.limiter.Allow() {
		h.fail(w, http.StatusTooManyRequests, "Too many proxy requests")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		h.log.Error().Err(err).Str("url", target).Msg("proxy request build failed")
		h.fail(w, http.StatusInternalServerError, "Proxy failed")
		return
	}
	// Only the user agent is forwarded. An empty value suppresses Go's default.
	req.Header.Set("User-Agent", r.UserAgent())

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Error().Err(err).Str("url", target).Msg("proxy fetch failed")
		h.fail(w, http.StatusInternalServerError, "Proxy failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.log.Warn().Int("status", resp.StatusCode).Str("url", target).Msg("upstream error status")
		h.fail(w, resp.StatusCode, "Failed to fetch media")
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = DefaultContentType
	}

	if IsManifest(contentType, target) {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			h.log.Error().Err(err).Str("url", target).Msg("manifest read failed")
			h.fail(w, http.StatusInternalServerError, "Proxy failed")
			return
		}
		text := Rewrite(string(body), target, h.prefix)
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, text)
		h.record("manifest", http.StatusOK)
		h.log.Debug().
			Str("url", target).
			Str("playlist", PlaylistKind(text)).
			Dur("upstream", time.Since(start)).
			Msg("manifest rewritten")
		return
	}

	w.Header().Set("Content-Type", contentType)
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.WriteHeader(http.StatusOK)
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		// Headers are gone already; the client sees a truncated body.
		h.log.Warn().Err(err).Str("url", target).Int64("bytes", n).Msg("media stream interrupted")
	}
	h.record("media", http.StatusOK)
}

func (h *Handler) fail(w http.ResponseWriter, status int, msg string) {
	h.record("error", status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (h *Handler) record(kind string, status int) {
	if h.metrics != nil {
		h.metrics.ProxyRequest(kind, status)
	}
}

func setCORS(hdr http.Header) {
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Cache-Control", "no-cache")
}
