package integration_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/geocoder89/friendhub/internal/auth"
)

func TestRegisterLoginAndList(t *testing.T) {
	r := setupRouter(t, testConfig())

	w := do(t, r, http.MethodPost, "/register", "", registration("alice", "a@x.com", "pw1"))
	if w.Code != http.StatusCreated {
		t.Fatalf("register: got %d body=%s", w.Code, w.Body.String())
	}
	if w.Body.String() != "Registration successful" {
		t.Fatalf("unexpected register body %q", w.Body.String())
	}

	token := mustLogin(t, r, "a@x.com", "pw1")

	w = do(t, r, http.MethodGet, "/registrations", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("registrations: got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"email":"a@x.com"`) {
		t.Fatalf("expected alice in registrations, got %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "pw1") || strings.Contains(w.Body.String(), "$2a$") {
		t.Fatalf("registrations leak credentials: %s", w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/registrations", "", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("no header: got %d, want 403", w.Code)
	}

	w = do(t, r, http.MethodPost, "/login", "", map[string]string{"email": "a@x.com", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: got %d, want 401", w.Code)
	}
}

func TestRegister_Failures(t *testing.T) {
	r := setupRouter(t, testConfig())
	mustRegister(t, r, "alice", "a@x.com", "pw1")

	missing := registration("bob", "b@x.com", "pw2")
	delete(missing, "department")

	emptyHobbies := registration("carol", "c@x.com", "pw3")
	emptyHobbies["hobbies"] = []string{}

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing department", missing},
		{"empty hobbies", emptyHobbies},
		{"duplicate email differing in case", registration("alice2", "A@X.com", "pw4")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/register", "", tt.body)
			if w.Code != http.StatusInternalServerError {
				t.Fatalf("got %d, want 500, body=%s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), `"code":"registration_failed"`) {
				t.Fatalf("unexpected body %s", w.Body.String())
			}
		})
	}
}

func TestProtectedRoutes_RejectBadTokens(t *testing.T) {
	cfg := testConfig()
	r := setupRouter(t, cfg)
	mustRegister(t, r, "alice", "a@x.com", "pw1")
	good := mustLogin(t, r, "a@x.com", "pw1")

	forged, err := auth.NewManager("another-secret").Issue("someone")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"garbage", "Bearer not.a.jwt"},
		{"other secret", "Bearer " + forged},
		{"tampered", "Bearer " + tamperSignature(good)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doWithHeader(t, r, "/suggested-friends", tt.header)
			if w.Code != http.StatusForbidden {
				t.Fatalf("got %d, want 403, body=%s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), `"message":"Forbidden"`) {
				t.Fatalf("expected generic message, got %s", w.Body.String())
			}
		})
	}

	// a raw token without the Bearer scheme is still accepted
	if w := doWithHeader(t, r, "/suggested-friends", good); w.Code != http.StatusOK {
		t.Fatalf("raw token: got %d body=%s", w.Code, w.Body.String())
	}
}

func TestAuthRoutes_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.AuthRateLimit = 2
	r := setupRouter(t, cfg)

	for i := 0; i < 2; i++ {
		w := do(t, r, http.MethodPost, "/login", "", map[string]string{"email": "nobody@x.com", "password": "x"})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: got %d", i+1, w.Code)
		}
	}

	w := do(t, r, http.MethodPost, "/login", "", map[string]string{"email": "nobody@x.com", "password": "x"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	// /register keeps its own window
	mustRegister(t, r, "alice", "a@x.com", "pw1")
}

func TestOperationalRoutes(t *testing.T) {
	r := setupRouter(t, testConfig())

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		w := do(t, r, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: got %d body=%s", path, w.Code, w.Body.String())
		}
	}

	do(t, r, http.MethodPost, "/login", "", map[string]string{"email": "x@x.com", "password": "x"})

	w := do(t, r, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(w.Body.String(), `friendhub_auth_failures_total{reason="invalid_credentials"} 1`) {
		t.Fatalf("expected auth failure metric, got:\n%s", w.Body.String())
	}
}

func tamperSignature(token string) string {
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	parts[2] = string(sig)
	return strings.Join(parts, ".")
}
