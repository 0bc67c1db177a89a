// Package timeouts provides centralized timeout values for handler and
// backend operations.
//
// Guidelines for choosing a timeout:
//   - Ping: health checks and connectivity verification
//   - Short: login forwarding, history reads and writes
//   - Upload: the multipart TIFF upload phase of a submission
//   - Create: the project creation phase (the backend processes rasters inline)
//
// Upload and Create default to zero: a submission phase has no deadline of
// its own and ends only when the network stack gives up. A positive value
// set through Configure or the environment opts into one.
package timeouts

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 10 * time.Second
	DefaultUpload = time.Duration(0)
	DefaultCreate = time.Duration(0)
)

var mu sync.RWMutex

var (
	ping   = DefaultPing
	short  = DefaultShort
	upload = DefaultUpload
	create = DefaultCreate
)

// Ping returns the timeout for health checks.
func Ping() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return ping
}

// Short returns the timeout for single round trips such as login.
func Short() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return short
}

// Upload returns the timeout for sending the TIFF bundle; zero means none.
func Upload() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return upload
}

// Create returns the timeout for the project creation call; zero means none.
func Create() time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return create
}

// Config holds timeout configuration values.
// Zero values are ignored (current values are kept).
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Upload time.Duration
	Create time.Duration
}

// Configure sets custom timeout values. Call during startup.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		ping = cfg.Ping
	}
	if cfg.Short > 0 {
		short = cfg.Short
	}
	if cfg.Upload > 0 {
		upload = cfg.Upload
	}
	if cfg.Create > 0 {
		create = cfg.Create
	}
}

// Reset restores all timeouts to their default values.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	short = DefaultShort
	upload = DefaultUpload
	create = DefaultCreate
}

// ConfigureFromEnv reads RASTERHUB_TIMEOUT_{PING,SHORT,UPLOAD,CREATE}
// (Go duration strings). Invalid or non-positive values are ignored.
// Returns the number of timeouts configured.
func ConfigureFromEnv() int {
	mu.Lock()
	defer mu.Unlock()
	configured := 0
	for _, e := range []struct {
		env string
		dst *time.Duration
	}{
		{"RASTERHUB_TIMEOUT_PING", &ping},
		{"RASTERHUB_TIMEOUT_SHORT", &short},
		{"RASTERHUB_TIMEOUT_UPLOAD", &upload},
		{"RASTERHUB_TIMEOUT_CREATE", &create},
	} {
		v := os.Getenv(e.env)
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*e.dst = d
			configured++
		}
	}
	return configured
}

// Current returns the current timeout configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{Ping: ping, Short: short, Upload: upload, Create: create}
}

// WithTimeout creates a context with timeout and returns a cancel function that
// logs a warning if the context ended because the deadline passed. A timeout
// of zero or less adds no deadline.
//
//	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Upload(), log, "upload tiffs")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
