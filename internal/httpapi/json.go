package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"backoffice/internal/backend"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeRaw relays a backend JSON body unchanged.
func writeRaw(w http.ResponseWriter, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// backendError maps a backend client failure onto the facade response.
// service names the upstream in the "<service> service unavailable" body.
func backendError(d *Deps, w http.ResponseWriter, service string, err error) {
	switch {
	case errors.Is(err, backend.ErrUnauthorized):
		d.Auth.Clear(w)
		errorJSON(w, http.StatusUnauthorized, "unauthorized")
		return
	case errors.Is(err, backend.ErrNoContent):
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var he *backend.HTTPError
	if errors.As(err, &he) {
		writeJSON(w, he.Status, map[string]string{"error": he.Error(), "message": he.Body})
		return
	}
	d.Logger.Error().Err(err).Str("service", service).Msg("backend call failed")
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   service + " service unavailable",
		"message": err.Error(),
	})
}
