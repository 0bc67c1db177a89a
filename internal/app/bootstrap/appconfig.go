// internal/app/bootstrap/appconfig.go
package bootstrap

import (
	"time"

	"github.com/dalemusser/rasterhub/internal/app/system/payload"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration; ports, TLS, logging and
// CORS live in WAFFLE's CoreConfig.
type AppConfig struct {
	// Processing backend
	BackendURL     string        // base URL of the raster processing server
	BackendTimeout time.Duration // per-request ceiling on the HTTP client (0 = contexts only)

	// Payload building
	EmailDomain string        // appended to member user names; also the login domain
	NameStamp   payload.Stamp // how the submission stamp is appended to the project name

	// Editor sessions
	StagingPath string        // directory for uploaded TIFFs awaiting submission
	DraftTTL    time.Duration // idle lifetime of an editor session
	MaxUploadMB int           // per-file upload limit

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (blank = random per process)
	SessionName   string        // Cookie name for sessions (default: rasterhub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// MongoDB connection configuration (blank URI disables submission history)
	MongoURI      string
	MongoDatabase string
}

// HistoryEnabled reports whether submission attempts are persisted.
func (c AppConfig) HistoryEnabled() bool { return c.MongoURI != "" }

// MaxUploadBytes converts MaxUploadMB.
func (c AppConfig) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) << 20 }
