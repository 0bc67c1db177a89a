package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/rasterhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// DraftCounter reports how many editing sessions are live.
type DraftCounter interface {
	Len() int
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client // nil when submission history is disabled
	Drafts DraftCounter
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. client may be nil.
func NewHandler(client *mongo.Client, drafts DraftCounter, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Drafts: drafts,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Drafts   *int   `json:"drafts,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "drafts":3 }
//
// Without a database the status is still ok and database is "disabled".
//
// On DB failure: 503 and
//
//	{ "status":"error", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "disabled",
	}
	if h.Drafts != nil {
		n := h.Drafts.Len()
		resp.Drafts = &n
	}

	if h.Client != nil {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
		defer cancel()

		if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
			h.Log.Error("health-check: mongo ping failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			resp.Status = "error"
			resp.Database = "disconnected"
			resp.Message = "Database unavailable"
			resp.Error = err.Error()
			_ = json.NewEncoder(w).Encode(resp)
			return
		}
		resp.Database = "connected"
	}

	_ = json.NewEncoder(w).Encode(resp)
}
