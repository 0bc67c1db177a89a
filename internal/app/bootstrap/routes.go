// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	healthfeature "github.com/dalemusser/rasterhub/internal/app/features/health"
	loginfeature "github.com/dalemusser/rasterhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/rasterhub/internal/app/features/logout"
	projectsfeature "github.com/dalemusser/rasterhub/internal/app/features/projects"
	"github.com/dalemusser/rasterhub/internal/app/system/auth"
	"github.com/dalemusser/rasterhub/internal/app/system/payload"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. RasterHub applies the session middleware
// and mounts the JSON API under /api: login and logout are public, drafts
// and submission history require a signed-in session.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := deps.Services
	if svc == nil || svc.Drafts == nil {
		return nil, errors.New("build handler: Startup did not run")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, svc.Drafts, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Route("/api", func(api chi.Router) {
		api.Mount("/health", healthfeature.Routes(healthHandler))

		// Authentication
		loginHandler := loginfeature.NewHandler(sessionMgr, svc.Backend, svc.Limiter, appCfg.EmailDomain, logger)
		api.Mount("/login", loginfeature.Routes(loginHandler))

		logoutHandler := logoutfeature.NewHandler(sessionMgr, logger)
		api.Mount("/logout", logoutfeature.Routes(logoutHandler))

		// Editor sessions and submission
		build := payload.Options{EmailDomain: appCfg.EmailDomain, Stamp: appCfg.NameStamp}
		projectsHandler := projectsfeature.NewHandler(svc.Drafts, svc.Staging, build, logger)
		api.Mount("/drafts", projectsfeature.Routes(projectsHandler, sessionMgr.RequireSignedIn))

		historyHandler := projectsfeature.NewHistoryHandler(svc.History, projectsHandler)
		api.Mount("/submissions", projectsfeature.HistoryRoutes(historyHandler, sessionMgr.RequireSignedIn))
	})

	return r, nil
}
