package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeVerifier struct {
	idToken     map[string]*Claims
	accessToken map[string]*Claims
}

func (f *fakeVerifier) VerifyToken(ctx context.Context, raw string) (*Claims, error) {
	if c, ok := f.idToken[raw]; ok {
		return c, nil
	}
	return nil, errors.New("bad id token")
}

func (f *fakeVerifier) VerifyAccessToken(ctx context.Context, raw string) (*Claims, error) {
	if c, ok := f.accessToken[raw]; ok {
		return c, nil
	}
	return nil, errors.New("bad access token")
}

func TestMiddleware_Handler(t *testing.T) {
	v := &fakeVerifier{
		idToken: map[string]*Claims{
			"good":    {Subject: "alice", Roles: []string{"operator"}},
			"expired": {Subject: "bob", Roles: []string{"operator"}, Expiry: time.Now().Add(-time.Minute)},
			"norole":  {Subject: "carol"},
		},
		accessToken: map[string]*Claims{
			"opaque": {Subject: "dave", Roles: []string{"operator"}},
		},
	}
	m := NewMiddleware(v, &MiddlewareConfig{Enabled: true, RequiredRoles: []string{"operator"}})

	var gotSubject string
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := GetClaims(r.Context()); c != nil {
			gotSubject = c.Subject
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		path        string
		header      string
		wantStatus  int
		wantSubject string
	}{
		{"public path", "/health", "", http.StatusOK, ""},
		{"missing header", "/api/v1/sessions", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "/api/v1/sessions", "Basic abc", http.StatusUnauthorized, ""},
		{"valid id token", "/api/v1/sessions", "Bearer good", http.StatusOK, "alice"},
		{"access token fallback", "/api/v1/sessions", "Bearer opaque", http.StatusOK, "dave"},
		{"invalid", "/api/v1/sessions", "Bearer nope", http.StatusUnauthorized, ""},
		{"expired", "/api/v1/sessions", "Bearer expired", http.StatusUnauthorized, ""},
		{"missing role", "/api/v1/sessions", "Bearer norole", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSubject = ""
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if gotSubject != tt.wantSubject {
				t.Errorf("subject = %q, want %q", gotSubject, tt.wantSubject)
			}
		})
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	m := NewMiddleware(nil, &MiddlewareConfig{Enabled: false})
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestPerIPRateLimiter(t *testing.T) {
	rl := NewPerIPRateLimiter(0.001, 2)
	defer rl.Stop()

	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if do("1.1.1.1") != http.StatusOK || do("1.1.1.1") != http.StatusOK {
		t.Fatal("burst should be allowed")
	}
	if code := do("1.1.1.1"); code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", code)
	}
	if code := do("2.2.2.2"); code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", code)
	}

	rl.evict(time.Now().Add(2 * time.Hour))
	if code := do("1.1.1.1"); code != http.StatusOK {
		t.Errorf("evicted client status = %d, want 200", code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:5000"
	if got := ClientIP(req); got != "::1" {
		t.Errorf("ClientIP() = %q", got)
	}
	req.Header.Set("X-Real-IP", "9.9.9.9")
	if got := ClientIP(req); got != "9.9.9.9" {
		t.Errorf("ClientIP() = %q", got)
	}
}
