package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var qaProfile = Profile{ID: "u1", Email: "qa@example.com", Name: "QA", Roles: []string{"qa"}}

func TestIssueParse_roundTrip(t *testing.T) {
	s := NewService("secret", time.Hour, false)
	tok, issued, err := s.Issue("idtok", qaProfile)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := s.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.IDToken != "idtok" || got.Profile.Email != qaProfile.Email || got.Profile.Roles[0] != "qa" {
		t.Errorf("session = %+v", got)
	}
	if !got.ExpiresAt.Equal(issued.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, issued.ExpiresAt)
	}
}

func TestParse_expiredAndForeign(t *testing.T) {
	s := NewService("secret", time.Hour, false)
	s.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := s.Issue("idtok", qaProfile)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	s.now = time.Now
	if _, err := s.Parse(old); err == nil {
		t.Error("expired session accepted")
	}

	other := NewService("other-secret", time.Hour, false)
	foreign, _, _ := other.Issue("idtok", qaProfile)
	if _, err := s.Parse(foreign); err == nil {
		t.Error("session signed with another secret accepted")
	}
}

func TestInitClear_cookie(t *testing.T) {
	s := NewService("secret", time.Hour, true)
	rr := httptest.NewRecorder()
	tok, _, err := s.Init(rr, "idtok", qaProfile)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || cookies[0].Value != tok {
		t.Fatalf("cookies = %+v", cookies)
	}
	if !cookies[0].HttpOnly || !cookies[0].Secure {
		t.Errorf("cookie flags = %+v", cookies[0])
	}

	rr = httptest.NewRecorder()
	s.Clear(rr)
	cleared := rr.Result().Cookies()
	if len(cleared) != 1 || cleared[0].Value != "" || cleared[0].MaxAge >= 0 {
		t.Errorf("cleared = %+v", cleared)
	}
}

func guarded(s *Service, roles ...string) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		w.Write([]byte(sess.Profile.Email))
	})
	if len(roles) == 0 {
		return s.RequireAuth(ok)
	}
	return s.RequireAnyRole(roles...)(ok)
}

func TestRequireAuth(t *testing.T) {
	s := NewService("secret", time.Hour, false)
	tok, _, _ := s.Issue("idtok", qaProfile)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rr := httptest.NewRecorder()
	guarded(s).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no token: status %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr = httptest.NewRecorder()
	guarded(s).ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status %d", rr.Code)
	}
	if len(rr.Result().Cookies()) != 1 {
		t.Errorf("bad token should clear the cookie")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: tok})
	rr = httptest.NewRecorder()
	guarded(s).ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != qaProfile.Email {
		t.Errorf("cookie: status %d body %q", rr.Code, rr.Body.String())
	}
}

func TestRequireAnyRole(t *testing.T) {
	s := NewService("secret", time.Hour, false)
	tok, _, _ := s.Issue("idtok", qaProfile)

	req := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	guarded(s, "admin", "developer").ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status %d", rr.Code)
	}
	var body struct {
		Error         string   `json:"error"`
		RequiredRoles []string `json:"required_roles"`
		Roles         []string `json:"roles"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "access denied" || len(body.RequiredRoles) != 2 || body.Roles[0] != "qa" {
		t.Errorf("body = %+v", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	guarded(s, "admin", "qa", "developer").ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("qa on sessions: status %d", rr.Code)
	}
}

func unsignedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("idp"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestIdentityTokenExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cases := []struct {
		name  string
		token string
		want  bool
	}{
		{"empty", "", true},
		{"garbage", "not.a.jwt", true},
		{"future", unsignedToken(t, jwt.MapClaims{"exp": now.Add(time.Minute).Unix()}), false},
		{"past", unsignedToken(t, jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()}), true},
		{"no exp", unsignedToken(t, jwt.MapClaims{"email": "a@b.c"}), false},
	}
	for _, c := range cases {
		if got := IdentityTokenExpired(c.token, now); got != c.want {
			t.Errorf("%s: got %v want %v", c.name, got, c.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	a, b := Fingerprint("token-a"), Fingerprint("token-b")
	if len(a) != 16 || a == b || a != Fingerprint("token-a") {
		t.Errorf("fingerprints %q %q", a, b)
	}
}
