// internal/app/features/logout/handler.go
package logout

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/rasterhub/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
}

func NewHandler(sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
	}
}

// ServeLogout handles POST /api/logout. It always answers 200, signed in or not.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	email := ""
	if u, ok := auth.CurrentUser(r); ok {
		email = u.Email
	}

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Error("logout: save session", zap.Error(err))
	}
	if email != "" {
		h.Log.Info("logout", zap.String("email", email))
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Sesión cerrada"})
}
