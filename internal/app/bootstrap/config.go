// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dalemusser/rasterhub/internal/app/store/drafts"
	"github.com/dalemusser/rasterhub/internal/app/system/payload"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for RasterHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: backend_url, staging_path, etc.
//   - Environment variables: RASTERHUB_BACKEND_URL, RASTERHUB_STAGING_PATH, etc.
//   - Command-line flags: --backend_url, --staging_path, etc.
var appConfigKeys = []config.AppKey{
	{Name: "backend_url", Default: "http://localhost:8000", Desc: "Base URL of the raster processing backend"},
	{Name: "backend_timeout", Default: "0s", Desc: "HTTP client timeout for backend calls (0 = per-phase timeouts only)"},

	{Name: "email_domain", Default: payload.DefaultEmailDomain, Desc: "Institutional email domain for members and login"},
	{Name: "project_name_stamp", Default: string(payload.StampDate), Desc: "Project name stamp: 'date' or 'datetime'"},

	{Name: "staging_path", Default: "./staging", Desc: "Directory for uploaded TIFFs awaiting submission"},
	{Name: "draft_ttl", Default: "2h", Desc: "Idle lifetime of an editor session (e.g., 30m, 2h)"},
	{Name: "max_upload_mb", Default: 512, Desc: "Maximum size of one uploaded TIFF, in MiB"},

	{Name: "session_key", Default: "", Desc: "Session signing key (blank = random per process)"},
	{Name: "session_name", Default: "rasterhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "12h", Desc: "Session cookie lifetime"},

	{Name: "mongo_uri", Default: "", Desc: "MongoDB connection URI (blank disables submission history)"},
	{Name: "mongo_database", Default: "rasterhub", Desc: "MongoDB database name"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// RASTERHUB_* environment variables and flags, with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "RASTERHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	stamp, err := payload.ParseStamp(appValues.String("project_name_stamp"))
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		BackendURL:     appValues.String("backend_url"),
		BackendTimeout: appValues.Duration("backend_timeout", 0),

		EmailDomain: appValues.String("email_domain"),
		NameStamp:   stamp,

		StagingPath: appValues.String("staging_path"),
		DraftTTL:    appValues.Duration("draft_ttl", drafts.DefaultTTL),
		MaxUploadMB: appValues.Int("max_upload_mb"),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 12*time.Hour),

		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),
	}
	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The backend URL must be absolute, the staging path and email domain must
// be set, and a configured MongoDB URI must be well formed.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	var errs []error

	u, err := url.Parse(appCfg.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend_url must be an absolute http(s) URL: %q", appCfg.BackendURL))
	}
	if appCfg.EmailDomain == "" {
		errs = append(errs, errors.New("email_domain is required"))
	}
	if appCfg.StagingPath == "" {
		errs = append(errs, errors.New("staging_path is required"))
	}
	if appCfg.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_mb must be positive, got %d", appCfg.MaxUploadMB))
	}
	if appCfg.DraftTTL <= 0 {
		errs = append(errs, fmt.Errorf("draft_ttl must be positive, got %s", appCfg.DraftTTL))
	}
	if appCfg.HistoryEnabled() {
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			errs = append(errs, fmt.Errorf("invalid MongoDB URI: %w", err))
		}
		if appCfg.MongoDatabase == "" {
			errs = append(errs, errors.New("mongo_database is required when mongo_uri is set"))
		}
	}
	if coreCfg != nil && coreCfg.Env == "prod" && appCfg.SessionKey == "" {
		logger.Warn("no session_key in prod; sessions will not survive a restart")
	}
	return errors.Join(errs...)
}
