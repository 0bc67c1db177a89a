// internal/app/features/projects/history.go
package projects

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/rasterhub/internal/app/store/submissions"
	"github.com/dalemusser/rasterhub/internal/app/system/timeouts"
)

// HistoryHandler lists recorded submission attempts.
type HistoryHandler struct {
	Store *submissions.Store // nil when no database is configured
	*Handler
}

// NewHistoryHandler shares h's logger and error mapping.
func NewHistoryHandler(store *submissions.Store, h *Handler) *HistoryHandler {
	return &HistoryHandler{Store: store, Handler: h}
}

type historyResponse struct {
	Enabled     bool                 `json:"enabled"`
	Submissions []submissions.Record `json:"submissions"`
}

// ServeList handles GET /submissions?limit=N&project=&draft=&state=.
func (h *HistoryHandler) ServeList(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeJSON(w, http.StatusOK, historyResponse{Submissions: []submissions.Record{}})
		return
	}

	q := r.URL.Query()
	f := submissions.Filter{
		ProjectName: q.Get("project"),
		DraftID:     q.Get("draft"),
		State:       q.Get("state"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			h.fail(w, r, &badRequest{msg: "limit inválido: " + raw})
			return
		}
		f.Limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	recs, err := h.Store.List(ctx, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Enabled: true, Submissions: recs})
}
