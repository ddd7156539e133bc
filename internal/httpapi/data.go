package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/audit"
	"backoffice/internal/auth"
	"backoffice/internal/monitor"
	"backoffice/internal/viewer"
)

type rawFetch func(ctx context.Context, token string) (json.RawMessage, error)
type rawFetchByID func(ctx context.Context, token, id string) (json.RawMessage, error)
type countFetch func(ctx context.Context, token string) (int, error)

func idToken(r *http.Request) string {
	if sess := auth.SessionFromContext(r.Context()); sess != nil {
		return sess.IDToken
	}
	return ""
}

func handleRaw(d *Deps, service string, fetch rawFetch) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := fetch(r.Context(), idToken(r))
		if err != nil {
			backendError(d, w, service, err)
			return
		}
		writeRaw(w, body)
	}
}

func handleCount(d *Deps, service string, fetch countFetch) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := fetch(r.Context(), idToken(r))
		if err != nil {
			backendError(d, w, service, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": n})
	}
}

func handleSession(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := d.Backend.Session(r.Context(), idToken(r), chi.URLParam(r, "id"))
		if err != nil {
			backendError(d, w, "Session", err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleSessionPart(d *Deps, service string, fetch rawFetchByID) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := fetch(r.Context(), idToken(r), chi.URLParam(r, "id"))
		if err != nil {
			backendError(d, w, service, err)
			return
		}
		writeRaw(w, body)
	}
}

func handleRedis(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		sess := auth.SessionFromContext(r.Context())
		body, err := d.Backend.RedisKey(r.Context(), idToken(r), key)
		status := "ok"
		if err != nil {
			status = "error"
		}
		recordAudit(d, r, audit.NewEvent(sess.Profile.Email, audit.ActionRedisLookup, key, status, ""))
		if err != nil {
			backendError(d, w, "Redis", err)
			return
		}
		writeRaw(w, body)
	}
}

func handleStats(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := d.Stats.Get(r.Context(), idToken(r))
		if err != nil {
			backendError(d, w, "Dashboard stats", err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func viewerOptions(d *Deps, r *http.Request) viewer.Options {
	opts := viewer.Options{APIBaseURL: d.APIBaseURL, SecureOrigin: viewer.SecureRequest(r)}
	if d.Proxy != nil {
		opts.ProxyPrefix = d.Proxy.Prefix()
	}
	return opts
}

func handleViewerChannels(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := d.Backend.ViewerChannels(r.Context(), idToken(r))
		if err != nil {
			backendError(d, w, "Viewer channels", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleViewerChannel(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := d.Backend.ViewerChannel(r.Context(), idToken(r), chi.URLParam(r, "id"))
		if err != nil {
			backendError(d, w, "Viewer channel", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"channel_id":  ch.ChannelID,
			"title":       ch.Title,
			"description": ch.Description,
			"status":      ch.Status,
			"hls_url":     ch.HLSURL,
			"media_url":   ch.MediaURL,
			"stream_url":  viewer.StreamURL(*ch, viewerOptions(d, r)),
		})
	}
}

// handleCheckChannel plays the channel headlessly from the server, which is
// never subject to mixed content, so the proxy is not involved.
func handleCheckChannel(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := auth.SessionFromContext(r.Context())
		id := chi.URLParam(r, "id")
		ch, err := d.Backend.ViewerChannel(r.Context(), idToken(r), id)
		if err != nil {
			backendError(d, w, "Viewer channel", err)
			return
		}
		src := viewer.StreamURL(*ch, viewer.Options{APIBaseURL: d.APIBaseURL})
		if src == "" {
			errorJSON(w, http.StatusNotFound, "channel has no stream")
			return
		}
		rep, err := d.Checker.Check(r.Context(), src)
		if err != nil {
			errorJSON(w, http.StatusGatewayTimeout, "stream check aborted")
			return
		}
		status := "ok"
		if !rep.OK {
			status = string(rep.State)
		}
		recordAudit(d, r, audit.NewEvent(sess.Profile.Email, audit.ActionStreamCheck, id, status, rep.Message))
		writeJSON(w, http.StatusOK, rep)
	}
}

func handleAudit(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				errorJSON(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}
		if limit > 1000 {
			limit = 1000
		}
		events, err := d.Audit.Recent(r.Context(), limit)
		if err != nil {
			d.Logger.Error().Err(err).Msg("audit read failed")
			errorJSON(w, http.StatusInternalServerError, "audit unavailable")
			return
		}
		if events == nil {
			events = []audit.Event{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
	}
}

func handleOperators(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ops, err := d.Operators.List(r.Context())
		if err != nil {
			d.Logger.Error().Err(err).Msg("operator list failed")
			errorJSON(w, http.StatusInternalServerError, "operators unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"operators": ops})
	}
}

func handleReady(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		took, err := d.Backend.Ping(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ready", "backend_ms": took.Milliseconds()})
	}
}

func handleMonitor(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := []monitor.Result{}
		if d.Monitor != nil {
			results = d.Monitor.Snapshot()
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"enabled":  d.Monitor != nil,
			"channels": results,
		})
	}
}
