// internal/app/features/projects/submit.go
package projects

import (
	"errors"
	"net/http"

	"github.com/dalemusser/rasterhub/internal/app/system/payload"
	"github.com/dalemusser/rasterhub/internal/app/system/projectcheck"
	"github.com/dalemusser/rasterhub/internal/app/system/submission"
	"github.com/dalemusser/rasterhub/internal/domain/project"
	"go.uber.org/zap"
)

type validateResponse struct {
	Valid      bool                     `json:"valid"`
	Violations []projectcheck.Violation `json:"violations"`
	Message    string                   `json:"message,omitempty"`
}

// ServeValidate handles POST /drafts/{id}/validate. Violations are data,
// so the status is 200 either way.
func (h *Handler) ServeValidate(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	vs := projectcheck.Check(d.View())
	resp := validateResponse{Valid: len(vs) == 0, Violations: nonNil(vs)}
	if len(vs) > 0 {
		resp.Message = "⚠️ Errores detectados:\n" + projectcheck.Messages(vs)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ServePayload handles POST /drafts/{id}/payload: the create request and
// upload manifest that a submission would send now.
func (h *Handler) ServePayload(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	res, err := payload.Build(d.View(), h.buildOptions())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type submitResponse struct {
	State   submission.State    `json:"state"`
	Outcome *submission.Outcome `json:"outcome"`
	Report  string              `json:"report"`
}

// ServeSubmit handles POST /drafts/{id}/submit. It blocks until both
// phases finish; a client that disconnects does not abort the attempt.
func (h *Handler) ServeSubmit(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	if d.Submitter == nil {
		h.fail(w, r, errors.New("submission backend not configured"))
		return
	}
	// Building and reserving under the draft lock keeps file binds from
	// replacing what this attempt is about to upload.
	var res *payload.Result
	err := d.Edit(func(s *project.Session) error {
		built, err := payload.Build(s.Snapshot(), h.buildOptions())
		if err != nil {
			return err
		}
		if err := d.Submitter.Begin(); err != nil {
			return err
		}
		res = built
		return nil
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.Log.Info("submission started",
		zap.String("draft_id", d.ID),
		zap.String("project", res.Request.ProjectName),
		zap.Int("files", len(res.Bundle.Files)))

	out, err := d.Submitter.Run(r.Context(), res)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{State: submission.StateDone, Outcome: out, Report: out.Report()})
}

// ServeSubmitStatus handles GET /drafts/{id}/submit.
func (h *Handler) ServeSubmitStatus(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}
	if d.Submitter == nil {
		writeJSON(w, http.StatusOK, submission.Status{})
		return
	}
	writeJSON(w, http.StatusOK, d.Submitter.Status())
}
