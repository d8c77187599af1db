package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dhawalhost/sociallogin/internal/audit"
	"github.com/dhawalhost/sociallogin/internal/callback"
	"github.com/dhawalhost/sociallogin/internal/config"
	"github.com/dhawalhost/sociallogin/internal/login"
	"github.com/dhawalhost/sociallogin/internal/social"
	"github.com/dhawalhost/sociallogin/pkg/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

const adminToken = "admin-secret-0123"

type emptyStore struct{}

func (emptyStore) Log(context.Context, audit.Event) (string, error) { return "", nil }

func (emptyStore) Query(context.Context, audit.QueryParams) ([]audit.Event, int, error) {
	return nil, 0, nil
}

func (emptyStore) GetEvent(context.Context, string) (audit.Event, error) {
	return audit.Event{}, audit.ErrNotFound
}

func (emptyStore) EnsureSchema(context.Context) error { return nil }

func testConfig(token string) *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{PublicURL: "http://localhost:8080", AdminToken: token},
		Tracing: config.TracingConfig{ServiceName: "socialsvc"},
	}
}

func setupServer(t *testing.T, cfg *config.Config, withAudit bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	broker := callback.NewBroker(cfg.Server.PublicURL, nil)
	tracker := login.NewTracker(time.Minute)
	presenter := login.NewPresenter(tracker, nil)

	adapter := social.New(cfg.Social(), adapterOptions(cfg, zap.NewNop(), broker, presenter)...)
	providers := adapter.Init(nil)

	rt := routes{
		gatherer: reg,
		metrics:  observability.NewMetrics(reg),
		broker:   broker,
		logins:   login.NewService(adapter, tracker, *providers, time.Minute, nil),
	}
	if withAudit {
		rt.audit = audit.NewHTTPHandler(audit.NewService(emptyStore{}), zap.NewNop())
	}
	return newRouter(cfg, zap.NewNop(), rt)
}

func serve(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouterRoutes(t *testing.T) {
	r := setupServer(t, testConfig(adminToken), true)

	want := map[string]bool{
		"GET /healthz":                        false,
		"GET /metrics":                        false,
		"GET /oauth/:provider/callback":       false,
		"GET /api/v1/social/providers":        false,
		"POST /api/v1/social/:provider/login": false,
		"GET /api/v1/social/logins/:id":       false,
		"GET /api/v1/audit/logins":            false,
		"GET /api/v1/audit/logins/export":     false,
		"GET /api/v1/audit/logins/:id":        false,
	}
	for _, route := range r.Routes() {
		key := route.Method + " " + route.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for key, found := range want {
		if !found {
			t.Errorf("route %s not registered", key)
		}
	}

	w := serve(r, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK || w.Header().Get("X-Request-ID") == "" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("unexpected healthz response %d %v", w.Code, w.Header())
	}
}

func TestRouterGatesAuditAPI(t *testing.T) {
	r := setupServer(t, testConfig(adminToken), true)

	for _, path := range []string{"/api/v1/audit/logins", "/api/v1/audit/logins/export"} {
		if w := serve(r, http.MethodGet, path, ""); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s without token: expected 401, got %d", path, w.Code)
		}
		if w := serve(r, http.MethodGet, path, "wrong-token-0000000"); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s with wrong token: expected 401, got %d", path, w.Code)
		}
		if w := serve(r, http.MethodGet, path, adminToken); w.Code != http.StatusOK {
			t.Fatalf("%s with token: expected 200, got %d", path, w.Code)
		}
	}

	if w := serve(r, http.MethodGet, "/api/v1/social/providers", ""); w.Code != http.StatusOK {
		t.Fatalf("login routes must stay public, got %d", w.Code)
	}
}

func TestRouterWithoutAdminTokenHidesAuditAPI(t *testing.T) {
	r := setupServer(t, testConfig(""), true)
	if w := serve(r, http.MethodGet, "/api/v1/audit/logins", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without admin token, got %d", w.Code)
	}
}

func TestRouterProviders(t *testing.T) {
	cfg := testConfig(adminToken)
	cfg.Facebook = config.FacebookConfig{AppID: "1234", AppSecret: "s3cret"}
	r := setupServer(t, cfg, false)

	w := serve(r, http.MethodGet, "/api/v1/social/providers", "")
	var got social.InitializationResult
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Facebook.IsInitialized || got.Google.IsInitialized {
		t.Fatalf("unexpected providers %+v", got)
	}
}

func TestAdapterOptionsRegisterHooks(t *testing.T) {
	cfg := testConfig("")
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	broker := callback.NewBroker(cfg.Server.PublicURL, nil)

	seen := make(chan social.LoginResult, 1)
	record := func(_ context.Context, r social.LoginResult) { seen <- r }

	adapter := social.New(cfg.Social(), adapterOptions(cfg, zap.NewNop(), broker, nil, metrics.ResultHook(), record)...)
	adapter.Init(nil)

	done := make(chan struct{})
	adapter.LoginWithFacebook(context.Background(), func(social.LoginResult) { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("callback never ran")
	}

	r := <-seen
	if r.Provider != social.ProviderFacebook || r.Code != social.ResultFailed {
		t.Fatalf("unexpected hooked result %+v", r)
	}
	if got := testutil.ToFloat64(metrics.LoginResults.WithLabelValues("facebook", "failed")); got != 1 {
		t.Fatalf("expected 1 counted result, got %v", got)
	}
}
