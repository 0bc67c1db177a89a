// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/rasterhub/internal/app/store/drafts"
	"github.com/dalemusser/rasterhub/internal/app/store/submissions"
	"github.com/dalemusser/rasterhub/internal/app/system/filestage"
	"github.com/dalemusser/rasterhub/internal/app/system/ratelimit"
	"github.com/dalemusser/rasterhub/internal/app/system/submission"
	"github.com/dalemusser/rasterhub/internal/app/system/timeouts"
	"github.com/dalemusser/rasterhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// stagingSweepInterval is how often orphaned staging directories are removed.
const stagingSweepInterval = 15 * time.Minute

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built: timeouts,
// the backend client, the staging area, the draft store and the sweeper.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Services == nil {
		return errors.New("startup: services not allocated")
	}
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n), zap.Any("timeouts", timeouts.Current()))
	}

	svc := deps.Services

	backend, err := submission.NewClient(appCfg.BackendURL, &http.Client{Timeout: appCfg.BackendTimeout}, logger.Named("backend"))
	if err != nil {
		return err
	}
	svc.Backend = backend

	staging, err := filestage.New(appCfg.StagingPath, appCfg.MaxUploadBytes(), logger.Named("staging"))
	if err != nil {
		return err
	}
	svc.Staging = staging

	if deps.MongoDatabase != nil {
		svc.History = submissions.New(deps.MongoDatabase)
	}

	svc.Drafts = drafts.New(drafts.Config{
		TTL: appCfg.DraftTTL,
		Submitter: func(id string) *submission.Orchestrator {
			opts := []submission.Option{submission.WithLabel(id)}
			if svc.History != nil {
				opts = append(opts, submission.WithRecorder(svc.History))
			}
			return submission.New(backend, logger.Named("submission"), opts...)
		},
		OnExpire: func(id string) {
			if err := staging.RemoveDraft(id); err != nil {
				logger.Warn("remove staged files", zap.String("draft_id", id), zap.Error(err))
			}
		},
	}, logger.Named("drafts"))

	svc.Limiter = ratelimit.NewLoginLimiter()

	svc.Sweeper = workers.NewStagingCleanup(staging.Root(), svc.Drafts.Has, logger.Named("sweeper"), stagingSweepInterval, appCfg.DraftTTL)
	svc.Sweeper.Start()

	logger.Info("rasterhub ready",
		zap.String("backend_url", appCfg.BackendURL),
		zap.String("staging_path", staging.Root()),
		zap.Duration("draft_ttl", appCfg.DraftTTL),
		zap.Bool("history", svc.History != nil))
	return nil
}
