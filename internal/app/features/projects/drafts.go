// internal/app/features/projects/drafts.go
package projects

import (
	"net/http"
	"time"

	"github.com/dalemusser/rasterhub/internal/app/store/drafts"
	"github.com/dalemusser/rasterhub/internal/app/system/submission"
	"github.com/dalemusser/rasterhub/internal/domain/project"
	"go.uber.org/zap"
)

// draftView is the full editor state returned by GET and by every edit.
type draftView struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	project.Snapshot
	Submission string `json:"submission,omitempty"`
}

func viewOf(d *drafts.Draft) draftView {
	v := draftView{ID: d.ID, CreatedAt: d.CreatedAt, Snapshot: d.View()}
	if d.Submitter != nil {
		v.Submission = d.Submitter.Status().State.String()
	}
	return v
}

// ServeCreate handles POST /drafts.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	d := h.Drafts.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"id": d.ID})
}

// ServeGet handles GET /drafts/{id}.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(d))
}

// ServeDelete handles DELETE /drafts/{id}. Staged files go with the draft.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	if err := idle(d); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Drafts.Delete(d.ID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Log.Info("draft deleted", zap.String("draft_id", d.ID))
	w.WriteHeader(http.StatusNoContent)
}

// idle refuses changes to staged files while they are being uploaded.
func idle(d *drafts.Draft) error {
	if d.Submitter != nil && d.Submitter.Status().State.InFlight() {
		return submission.ErrSubmissionInFlight
	}
	return nil
}

// edit runs fn against the draft's session and answers with the new state.
func (h *Handler) edit(w http.ResponseWriter, r *http.Request, fn func(s *project.Session) error) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	if err := d.Edit(fn); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(d))
}
