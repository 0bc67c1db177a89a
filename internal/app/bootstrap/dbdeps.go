// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/rasterhub/internal/app/store/drafts"
	"github.com/dalemusser/rasterhub/internal/app/store/submissions"
	"github.com/dalemusser/rasterhub/internal/app/system/filestage"
	"github.com/dalemusser/rasterhub/internal/app/system/ratelimit"
	"github.com/dalemusser/rasterhub/internal/app/system/submission"
	"github.com/dalemusser/rasterhub/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app. The Mongo fields
// are nil when submission history is disabled.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Services is allocated by ConnectDB and filled in by Startup.
	Services *Services
}

// Services are the long-lived components shared by handlers.
type Services struct {
	Backend *submission.Client
	Staging *filestage.Area
	Drafts  *drafts.Store
	History *submissions.Store // nil when history is disabled
	Limiter *ratelimit.LoginLimiter
	Sweeper *workers.StagingCleanup
}
