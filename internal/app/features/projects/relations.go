// internal/app/features/projects/relations.go
package projects

import (
	"net/http"

	"github.com/dalemusser/rasterhub/internal/domain/project"
	"go.uber.org/zap"
)

type relationRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (req relationRequest) key() (project.Key, error) {
	from, err := project.ParseEntityID(req.From)
	if err != nil {
		return project.Key{}, err
	}
	to, err := project.ParseEntityID(req.To)
	if err != nil {
		return project.Key{}, err
	}
	return project.Key{From: from, To: to}, nil
}

type relationView struct {
	draftView
	Association project.Association `json:"association"`
}

// ServeConnect handles POST /drafts/{id}/relations.
func (h *Handler) ServeConnect(w http.ResponseWriter, r *http.Request) {
	var req relationRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	k, err := req.key()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, ok := h.draft(w, r)
	if !ok {
		return
	}

	var a project.Association
	if err := d.Edit(func(s *project.Session) error {
		var err error
		a, err = s.Connect(k.From, k.To)
		return err
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Log.Debug("association added",
		zap.String("draft_id", d.ID),
		zap.String("from", a.From.String()),
		zap.String("to", a.To.String()))
	writeJSON(w, http.StatusCreated, relationView{draftView: viewOf(d), Association: a})
}

// ServeDisconnect handles DELETE /drafts/{id}/relations?from=&to=.
func (h *Handler) ServeDisconnect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	k, err := relationRequest{From: q.Get("from"), To: q.Get("to")}.key()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.edit(w, r, func(s *project.Session) error {
		if !s.Disconnect(k) {
			return &project.GraphError{Kind: project.ErrUnknownAssociation, Key: k}
		}
		return nil
	})
}

// ServeRelations handles GET /drafts/{id}/relations?class=raster|member.
// Without class every association is listed, in insertion order.
func (h *Handler) ServeRelations(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draft(w, r)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("class")
	if raw == "" {
		writeJSON(w, http.StatusOK, map[string]any{"associations": nonNil(d.View().Associations)})
		return
	}
	c, ok := project.ParseClass(raw)
	if !ok {
		h.fail(w, r, &badRequest{msg: "clase desconocida: " + raw})
		return
	}
	var out []project.Association
	_ = d.Edit(func(s *project.Session) error {
		out = s.Relations(c)
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{"associations": nonNil(out)})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
