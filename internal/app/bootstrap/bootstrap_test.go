package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/rasterhub/internal/app/system/payload"
	"github.com/dalemusser/waffle/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func testConfig(t *testing.T) AppConfig {
	t.Helper()
	return AppConfig{
		BackendURL:    "http://localhost:8000",
		EmailDomain:   payload.DefaultEmailDomain,
		NameStamp:     payload.StampDate,
		StagingPath:   t.TempDir(),
		DraftTTL:      time.Hour,
		MaxUploadMB:   1,
		SessionKey:    "test-session-key-for-testing-only",
		SessionName:   "test-session",
		SessionMaxAge: time.Hour,
	}
}

func TestValidateConfig(t *testing.T) {
	good := testConfig(t)
	require.NoError(t, ValidateConfig(&config.CoreConfig{}, good, testLogger()))

	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{"relative backend", func(c *AppConfig) { c.BackendURL = "/api" }, "backend_url"},
		{"ftp backend", func(c *AppConfig) { c.BackendURL = "ftp://host" }, "backend_url"},
		{"no domain", func(c *AppConfig) { c.EmailDomain = "" }, "email_domain"},
		{"no staging", func(c *AppConfig) { c.StagingPath = "" }, "staging_path"},
		{"zero upload", func(c *AppConfig) { c.MaxUploadMB = 0 }, "max_upload_mb"},
		{"zero ttl", func(c *AppConfig) { c.DraftTTL = 0 }, "draft_ttl"},
		{"bad mongo", func(c *AppConfig) { c.MongoURI = "postgres://x"; c.MongoDatabase = "db" }, "MongoDB URI"},
		{"mongo without db", func(c *AppConfig) { c.MongoURI = "mongodb://localhost:27017"; c.MongoDatabase = "" }, "mongo_database"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := good
			tt.mutate(&cfg)
			err := ValidateConfig(&config.CoreConfig{}, cfg, testLogger())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error: got %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func startApp(t *testing.T) (DBDeps, http.Handler) {
	t.Helper()
	ctx := context.Background()
	core := &config.CoreConfig{Env: "dev"}
	cfg := testConfig(t)

	deps, err := ConnectDB(ctx, core, cfg, testLogger())
	require.NoError(t, err)
	require.Nil(t, deps.MongoClient, "history is disabled without mongo_uri")
	require.NoError(t, EnsureSchema(ctx, core, cfg, deps, testLogger()))
	require.NoError(t, Startup(ctx, core, cfg, deps, testLogger()))
	t.Cleanup(func() { _ = Shutdown(ctx, core, cfg, deps, testLogger()) })

	h, err := BuildHandler(core, cfg, deps, testLogger())
	require.NoError(t, err)
	return deps, h
}

func TestBuildHandler_Routes(t *testing.T) {
	_, h := startApp(t)

	tests := []struct {
		method, path string
		want         int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/api/health", http.StatusOK},
		{"GET", "/api/login", http.StatusUnauthorized},
		{"POST", "/api/logout", http.StatusOK},
		{"POST", "/api/drafts", http.StatusUnauthorized},
		{"GET", "/api/submissions", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestBuildHandler_RequiresStartup(t *testing.T) {
	_, err := BuildHandler(&config.CoreConfig{}, testConfig(t), DBDeps{Services: &Services{}}, testLogger())
	if err == nil {
		t.Fatal("expected error when Startup has not run")
	}
}

func TestShutdown_FlushesDrafts(t *testing.T) {
	ctx := context.Background()
	core := &config.CoreConfig{Env: "dev"}
	cfg := testConfig(t)

	deps, err := ConnectDB(ctx, core, cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, Startup(ctx, core, cfg, deps, testLogger()))

	d := deps.Services.Drafts.Create()
	_, err = deps.Services.Staging.Save(d.ID, strings.NewReader("II*\x00"))
	require.NoError(t, err)

	require.NoError(t, Shutdown(ctx, core, cfg, deps, testLogger()))
	if n := deps.Services.Drafts.Len(); n != 0 {
		t.Errorf("drafts after shutdown: got %d, want 0", n)
	}

	// Without a database, health keeps answering after shutdown.
	rec := httptest.NewRecorder()
	h, err := BuildHandler(core, cfg, deps, testLogger())
	require.NoError(t, err)
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	if body["database"] != "disabled" {
		t.Errorf("database: got %v", body["database"])
	}
}
