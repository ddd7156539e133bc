package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"backoffice/internal/audit"
	"backoffice/internal/auth"
	"backoffice/internal/backend"
	"backoffice/internal/nav"
	"backoffice/internal/operators"
)

type loginRequest struct {
	IDToken string `json:"id_token"`
}

func handleLogin(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.IDToken) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "message": "id_token is required"})
			return
		}
		tok := strings.TrimSpace(req.IDToken)
		fp := auth.Fingerprint(tok)
		log := d.Logger.With().Str("token_fp", fp).Logger()

		if auth.IdentityTokenExpired(tok, time.Now()) {
			recordAudit(d, r, audit.NewEvent("", audit.ActionLoginRejected, "", "expired", fp))
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "Identity token expired"})
			return
		}

		res, err := d.Backend.Validate(r.Context(), tok)
		if err != nil {
			var he *backend.HTTPError
			if errors.As(err, &he) {
				log.Warn().Int("status", he.Status).Msg("identity validation refused")
				writeJSON(w, he.Status, map[string]interface{}{"success": false, "message": he.Body})
				return
			}
			log.Error().Err(err).Msg("identity validation failed")
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "message": "Authentication service unavailable"})
			return
		}
		if !res.Success || res.User == nil {
			msg := res.Message
			if msg == "" {
				msg = "Authentication failed"
			}
			recordAudit(d, r, audit.NewEvent("", audit.ActionLoginRejected, "", "rejected", fp))
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": msg})
			return
		}

		u := res.User
		profile := auth.Profile{ID: u.ID, Email: u.Email, Name: u.Name, Picture: u.Picture, Roles: u.Roles}
		if profile.Roles == nil {
			profile.Roles = []string{}
		}
		_, sess, err := d.Auth.Init(w, tok, profile)
		if err != nil {
			log.Error().Err(err).Msg("session issue failed")
			errorJSON(w, http.StatusInternalServerError, "session issue failed")
			return
		}

		recordAudit(d, r, audit.NewEvent(profile.Email, audit.ActionLogin, "", "ok", fp))
		if err := d.Operators.Upsert(r.Context(), operators.Operator{
			ID:        profile.ID,
			Email:     profile.Email,
			Name:      profile.Name,
			Picture:   profile.Picture,
			Roles:     profile.Roles,
			LastLogin: sess.IssuedAt,
		}); err != nil {
			log.Warn().Err(err).Str("email", profile.Email).Msg("operator upsert failed")
		}
		log.Info().Str("email", profile.Email).Strs("roles", profile.Roles).Msg("operator signed in")

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"user":       profile,
			"expires_at": sess.ExpiresAt,
		})
	}
}

func handleLogout(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sess := d.Auth.Current(r); sess != nil {
			recordAudit(d, r, audit.NewEvent(sess.Profile.Email, audit.ActionLogout, "", "ok", ""))
		}
		d.Auth.Clear(w)
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

func handleMe(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := auth.SessionFromContext(r.Context())
		roles := sess.Profile.Roles
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"profile":       sess.Profile,
			"expires_at":    sess.ExpiresAt,
			"nav":           nav.Filter(nav.Items, roles),
			"quick_actions": nav.FilterActions(nav.QuickActions, roles),
		})
	}
}

// handleDashboard serves the UI shell for dashboard routes, sending visitors
// without a session to the sign-in page and operators lacking the route's
// roles back to the dashboard home.
func handleDashboard(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := d.Auth.Current(r)
		if sess == nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		if need, ok := nav.RolesFor(r.URL.Path); ok && len(need) > 0 && !sess.HasAnyRole(need...) {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
		d.UI.ServeHTTP(w, r)
	}
}

func handleClientConfig(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefix := "/proxy-stream"
		if d.Proxy != nil {
			prefix = d.Proxy.Prefix()
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"google_client_id": d.GoogleClientID,
			"api_base_url":     d.APIBaseURL,
			"proxy_prefix":     prefix,
			"version":          d.BuildVersion,
		})
	}
}

func recordAudit(d *Deps, r *http.Request, ev audit.Event) {
	if err := d.Audit.Record(r.Context(), ev); err != nil {
		d.Logger.Warn().Err(err).Str("action", ev.Action).Msg("audit record failed")
	}
}
