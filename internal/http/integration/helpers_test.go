package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/friendhub/internal/config"
	apphttp "github.com/geocoder89/friendhub/internal/http"
	"github.com/geocoder89/friendhub/internal/observability"
	"github.com/geocoder89/friendhub/internal/repo/memory"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() config.Config {
	return config.Config{
		Env:                "test",
		StoreDriver:        config.DriverMemory,
		JWTSecret:          "test-secret-key",
		BcryptCost:         bcrypt.MinCost,
		CORSAllowedOrigins: []string{"*"},
		AuthRateLimit:      100,
		AuthRateWindow:     time.Minute,
		MaxBodyBytes:       1 << 20,
	}
}

func setupRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	reg := prometheus.NewRegistry()

	return apphttp.NewRouter(logger, cfg, apphttp.Deps{
		Store:    memory.NewUsersRepo(),
		Prom:     observability.NewProm(reg),
		Gatherer: reg,
	})
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doWithHeader(t *testing.T, r http.Handler, path, authorization string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func registration(name, email, password string) map[string]any {
	return map[string]any{
		"name":           name,
		"email":          email,
		"password":       password,
		"profilePicture": name + ".png",
		"department":     "Engineering",
		"about":          "hi, I am " + name,
		"hobbies":        []string{"chess", "running"},
	}
}

func mustRegister(t *testing.T, r http.Handler, name, email, password string) {
	t.Helper()

	w := do(t, r, http.MethodPost, "/register", "", registration(name, email, password))
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: got %d body=%s", email, w.Code, w.Body.String())
	}
}

func mustLogin(t *testing.T, r http.Handler, email, password string) string {
	t.Helper()

	w := do(t, r, http.MethodPost, "/login", "", map[string]string{"email": email, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: got %d body=%s", email, w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login %s: missing token, body=%s", email, w.Body.String())
	}
	return resp.Token
}

type registeredUser struct {
	ID      string   `json:"id"`
	Email   string   `json:"email"`
	Name    string   `json:"name"`
	Friends []string `json:"friends"`
}

func listRegistrations(t *testing.T, r http.Handler, token string) []registeredUser {
	t.Helper()

	w := do(t, r, http.MethodGet, "/registrations", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("registrations: got %d body=%s", w.Code, w.Body.String())
	}

	var out []registeredUser
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("registrations: %v body=%s", err, w.Body.String())
	}
	return out
}

func idOf(t *testing.T, users []registeredUser, email string) string {
	t.Helper()

	for _, u := range users {
		if u.Email == email {
			return u.ID
		}
	}
	t.Fatalf("no registration for %s in %+v", email, users)
	return ""
}

type candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func listCandidates(t *testing.T, r http.Handler, path, token string) []candidate {
	t.Helper()

	w := do(t, r, http.MethodGet, path, token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("%s: got %d body=%s", path, w.Code, w.Body.String())
	}

	var out []candidate
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s: %v body=%s", path, err, w.Body.String())
	}
	return out
}

func doConditional(t *testing.T, r http.Handler, path, token, etag string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("If-None-Match", etag)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
