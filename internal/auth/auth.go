// Package auth holds the operator session: a signed token carrying the
// validated profile and the raw identity token, plus the route guards.
package auth

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"
	"golang.org/x/crypto/blake2b"
)

const CookieName = "bo_session"

var ErrInvalidSession = errors.New("invalid session")

type Profile struct {
	ID      string   `json:"id"`
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Picture string   `json:"picture"`
	Roles   []string `json:"roles"`
}

// Session is the explicit operator context handed to handlers and the backend
// client. IDToken is never serialized back to the browser.
type Session struct {
	IDToken   string    `json:"-"`
	Profile   Profile   `json:"profile"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) HasAnyRole(roles ...string) bool {
	if s == nil {
		return false
	}
	return lo.Some(roles, s.Profile.Roles)
}

type jwtClaims struct {
	Profile Profile `json:"profile"`
	IDToken string  `json:"idt"`
	jwt.RegisteredClaims
}

type Service struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewService signs sessions with secret. secureCookie sets the Secure flag on
// the session cookie.
func NewService(secret string, ttl time.Duration, secureCookie bool) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{secret: []byte(secret), ttl: ttl, secure: secureCookie, now: time.Now}
}

// Issue signs a session token for an already validated identity token.
func (s *Service) Issue(idToken string, p Profile) (string, *Session, error) {
	now := s.now()
	sess := &Session{
		IDToken:   idToken,
		Profile:   p,
		IssuedAt:  now.Truncate(time.Second),
		ExpiresAt: now.Add(s.ttl).Truncate(time.Second),
	}
	claims := jwtClaims{
		Profile: p,
		IDToken: idToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return token, sess, nil
}

func (s *Service) Parse(tokenStr string) (*Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwtClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidSession
	}
	c, ok := token.Claims.(*jwtClaims)
	if !ok || c.IDToken == "" {
		return nil, ErrInvalidSession
	}
	sess := &Session{IDToken: c.IDToken, Profile: c.Profile}
	if c.IssuedAt != nil {
		sess.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		sess.ExpiresAt = c.ExpiresAt.Time
	}
	return sess, nil
}

// Init issues a session and stores it in the session cookie.
func (s *Service) Init(w http.ResponseWriter, idToken string, p Profile) (string, *Session, error) {
	token, sess, err := s.Issue(idToken, p)
	if err != nil {
		return "", nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(s.ttl / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, sess, nil
}

// Clear drops the session cookie.
func (s *Service) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type ctxKey string

const sessionKey ctxKey = "session"

func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

func SessionFromContext(ctx context.Context) *Session {
	val, ok := ctx.Value(sessionKey).(*Session)
	if !ok {
		return nil
	}
	return val
}

func tokenFromRequest(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Current returns the request's session, if it carries a valid one.
func (s *Service) Current(r *http.Request) *Session {
	if sess := SessionFromContext(r.Context()); sess != nil {
		return sess
	}
	tok := tokenFromRequest(r)
	if tok == "" {
		return nil
	}
	sess, err := s.Parse(tok)
	if err != nil {
		return nil
	}
	return sess
}

func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := tokenFromRequest(r)
		if tok == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		sess, err := s.Parse(tok)
		if err != nil {
			s.Clear(w)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// RequireAnyRole admits sessions holding at least one of roles.
func (s *Service) RequireAnyRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if !sess.HasAnyRole(roles...) {
				have := []string{}
				if sess != nil && sess.Profile.Roles != nil {
					have = sess.Profile.Roles
				}
				writeJSON(w, http.StatusForbidden, map[string]interface{}{
					"error":          "access denied",
					"required_roles": roles,
					"roles":          have,
				})
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// IdentityTokenExpired reads the exp claim of a JWT without verifying it.
// Unreadable tokens count as expired; a token without exp does not.
func IdentityTokenExpired(idToken string, now time.Time) bool {
	if idToken == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return true
	}
	if exp == nil {
		return false
	}
	return exp.Time.Before(now.Truncate(time.Second))
}

// Fingerprint identifies a token in logs and audit rows without storing it.
func Fingerprint(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
