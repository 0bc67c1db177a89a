// internal/app/features/login/handler.go
package login

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/rasterhub/internal/app/system/auth"
	"github.com/dalemusser/rasterhub/internal/app/system/normalize"
	"github.com/dalemusser/rasterhub/internal/app/system/ratelimit"
	"github.com/dalemusser/rasterhub/internal/app/system/submission"
	"github.com/dalemusser/rasterhub/internal/app/system/timeouts"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

// Authenticator asks the processing backend whether an address may
// configure projects. *submission.Client implements it.
type Authenticator interface {
	Login(ctx context.Context, email string) (string, error)
}

type Handler struct {
	Log         *zap.Logger
	SessionMgr  *auth.SessionManager
	Backend     Authenticator
	Limiter     *ratelimit.LoginLimiter // nil disables throttling
	EmailDomain string
	Clock       func() time.Time
}

func NewHandler(sessionMgr *auth.SessionManager, backend Authenticator, limiter *ratelimit.LoginLimiter, emailDomain string, logger *zap.Logger) *Handler {
	return &Handler{
		Log:         logger,
		SessionMgr:  sessionMgr,
		Backend:     backend,
		Limiter:     limiter,
		EmailDomain: emailDomain,
		Clock:       time.Now,
	}
}

type loginRequest struct {
	Username string `json:"username"`
}

type loginResponse struct {
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Email   string `json:"email,omitempty"`
}

// maxLoginBody bounds the login request body.
const maxLoginBody = 4 << 10

// HandleLoginPost handles POST /api/login. The address must belong to the
// institutional domain; the backend then decides. On success the session
// cookie carries the address until logout or expiry.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, loginResponse{Detail: "Solicitud inválida"})
		return
	}

	email := normalize.Email(req.Username)
	if _, ok := normalize.LocalPart(email, h.EmailDomain); !ok {
		writeJSON(w, http.StatusBadRequest, loginResponse{
			Detail: "Ingresar un correo válido de @" + h.EmailDomain,
		})
		return
	}

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, email); !ok {
			h.Log.Warn("login rate limited",
				zap.String("email", email),
				zap.String("ip", ratelimit.ClientIP(r)))
			writeJSON(w, http.StatusTooManyRequests, loginResponse{Detail: reason})
			return
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "backend login")
	defer cancel()

	msg, err := h.Backend.Login(ctx, email)
	if err != nil {
		status := http.StatusUnauthorized
		detail := "Ingresar un usuario con los permisos adecuados"
		var pe *submission.PhaseError
		if errors.As(err, &pe) {
			detail = pe.Report()
			if !errors.Is(err, submission.ErrRejected) {
				status = http.StatusBadGateway
			}
		}
		h.Log.Info("login refused", zap.String("email", email), zap.Error(err))
		writeJSON(w, status, loginResponse{Detail: detail})
		return
	}

	sess, err := h.SessionMgr.GetSession(r)
	if err != nil {
		if scErr, ok := err.(securecookie.Error); ok && scErr.IsDecode() {
			h.Log.Warn("session cookie invalid, using fresh session",
				zap.Error(err),
				zap.String("email", email))
		} else {
			h.Log.Error("session store error during login, using fresh session",
				zap.Error(err),
				zap.String("email", email))
		}
	}
	auth.SignIn(sess, email, h.Clock())
	if err := sess.Save(r, w); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("email", email))
		writeJSON(w, http.StatusInternalServerError, loginResponse{Detail: "No se pudo crear la sesión. Inténtalo de nuevo."})
		return
	}

	if h.Limiter != nil {
		h.Limiter.ResetEmail(email)
	}
	h.Log.Info("login", zap.String("email", email))
	writeJSON(w, http.StatusOK, loginResponse{Message: msg, Email: email})
}

// ServeWhoAmI handles GET /api/login: the signed-in address, or 401.
func (h *Handler) ServeWhoAmI(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, loginResponse{Detail: "Ingresar un usuario con los permisos adecuados"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"email":      u.Email,
		"signedInAt": u.SignedInAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
