package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goFlow "github.com/MrEthical07/goFlow"
	"github.com/MrEthical07/goFlow/middleware"
)

// fakeVendor is a minimal Authsignal-shaped backend.
func fakeVendor(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/users/{user}/actions/{action}", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"state":          "CHALLENGE_REQUIRED",
			"idempotencyKey": "k1",
			"url":            "https://challenge.example/c/1",
		})
	})
	mux.HandleFunc("GET /v1/users/{user}/actions/{action}/{key}", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"state": "CHALLENGE_REQUIRED"})
	})
	mux.HandleFunc("POST /v1/validate", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"isValid": true,
			"state":   "CHALLENGE_SUCCEEDED",
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testEngine(t *testing.T, mutate func(*goFlow.Config)) *goFlow.Engine {
	t.Helper()

	vendor := fakeVendor(t)
	cfg := goFlow.Config{
		Flow: goFlow.FlowConfig{
			TTL:     15 * time.Minute,
			LockTTL: 30 * time.Second,
			Action:  "signIn",
		},
		Challenge: goFlow.ChallengeConfig{
			BaseURL: vendor.URL,
			Secret:  "test-secret",
			Timeout: time.Second,
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := goFlow.New().WithConfig(cfg).WithMemoryStore().Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func authenticateBody(flowID string) string {
	return `{"flowId":"` + flowID + `","resumeUrl":"https://idp.example/resume","event":{"user":{"id":"u1"}}}`
}

func TestAuthenticateEndpointReturnsEnvelope(t *testing.T) {
	srv := New(testEngine(t, nil), Config{})
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/authenticate", strings.NewReader(authenticateBody("f1")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}

	var resp goFlow.AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.Status != goFlow.StatusIncomplete {
		t.Fatalf("expected INCOMPLETE, got %+v", resp)
	}
	if len(resp.Operations) != 1 || resp.Operations[0].Op != goFlow.OpRedirect {
		t.Fatalf("expected one redirect operation, got %+v", resp.Operations)
	}
}

func TestAuthenticateEndpointRejectsBadRequests(t *testing.T) {
	srv := New(testEngine(t, nil), Config{})
	handler := srv.Handler()

	for _, body := range []string{"{not json", `{"resumeUrl":"https://x"}`} {
		req := httptest.NewRequest(http.MethodPost, "/authenticate", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestAuthenticateEndpointEnforcesGuard(t *testing.T) {
	srv := New(testEngine(t, nil), Config{
		Guard: middleware.Config{Mode: middleware.ModeBearer, BearerToken: "tok-1"},
	})
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/authenticate", strings.NewReader(authenticateBody("f1")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/authenticate", strings.NewReader(authenticateBody("f1")))
	req.Header.Set("Authorization", "Bearer tok-1")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}

	// The callback and probes stay reachable without credentials.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected unguarded healthz, got %d", rec.Code)
	}
}

func TestCallbackEndpointRedirectsToResumeURL(t *testing.T) {
	engine := testEngine(t, func(cfg *goFlow.Config) {
		cfg.Variant = goFlow.VariantCallback
		cfg.Flow.CallbackURL = "https://goflow.example/callback"
	})
	srv := New(engine, Config{})
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/authenticate", strings.NewReader(authenticateBody("f1")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticate failed with %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/callback?flowId=f1&token=tok-1", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://idp.example/resume" {
		t.Fatalf("expected redirect to resume URL, got %q", loc)
	}
}

func TestCallbackEndpointErrorSemantics(t *testing.T) {
	srv := New(testEngine(t, nil), Config{})
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/callback?token=tok-1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without flowId, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/callback?flowId=never-seen&token=tok-1", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown flow, got %d", rec.Code)
	}
}

func TestReadyzReportsStoreHealth(t *testing.T) {
	vendor := fakeVendor(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	engine, err := goFlow.New().
		WithConfig(goFlow.Config{
			Flow: goFlow.FlowConfig{
				TTL:     15 * time.Minute,
				LockTTL: 30 * time.Second,
				Action:  "signIn",
			},
			Challenge: goFlow.ChallengeConfig{
				BaseURL: vendor.URL,
				Secret:  "test-secret",
				Timeout: time.Second,
			},
		}).
		WithRedis(client).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	handler := New(engine, Config{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 while backend is up, got %d", rec.Code)
	}

	mr.Close()

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after backend shutdown, got %d", rec.Code)
	}
}
