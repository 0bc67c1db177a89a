// internal/app/features/projects/edit.go
package projects

import (
	"net/http"

	"github.com/dalemusser/rasterhub/internal/domain/project"
	"github.com/go-chi/chi/v5"
)

type projectRequest struct {
	ProjectName *string `json:"projectName"`
	CIAFLevel   *int    `json:"ciafLevel"`
}

// ServeProject handles PUT /drafts/{id}/project.
func (h *Handler) ServeProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.edit(w, r, func(s *project.Session) error {
		if req.ProjectName != nil {
			s.SetProjectName(*req.ProjectName)
		}
		if req.CIAFLevel != nil {
			s.SetCIAFLevel(*req.CIAFLevel)
		}
		return nil
	})
}

type modeRequest struct {
	StudentTutor string `json:"studentTutor"`
}

// ServeMode handles PUT /drafts/{id}/mode. Changing the mode resets every
// member's role and clears all associations.
func (h *Handler) ServeMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	m := project.ParseMode(req.StudentTutor)
	if m == project.ModeUnset {
		h.fail(w, r, &badRequest{msg: `studentTutor debe ser "si" o "no"`})
		return
	}
	h.edit(w, r, func(s *project.Session) error {
		s.SetMode(m)
		return nil
	})
}

type countRequest struct {
	Count int `json:"count"`
}

// ServeCount handles PUT /drafts/{id}/counts/{kind}. Any count change
// clears all associations.
func (h *Handler) ServeCount(w http.ResponseWriter, r *http.Request) {
	kind, ok := project.ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		h.fail(w, r, &badRequest{msg: "tipo desconocido: " + chi.URLParam(r, "kind")})
		return
	}
	var req countRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.edit(w, r, func(s *project.Session) error {
		return s.SetCount(kind, req.Count)
	})
}

type groupRequest struct {
	Name string `json:"name"`
}

// ServeGroup handles PUT /drafts/{id}/groups/{index}.
func (h *Handler) ServeGroup(w http.ResponseWriter, r *http.Request) {
	idx, err := index(r, "index")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req groupRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	h.edit(w, r, func(s *project.Session) error {
		return s.SetGroupName(project.GroupID(idx), req.Name)
	})
}

type memberRequest struct {
	UserName  *string `json:"username"`
	Role      *string `json:"role"`
	Container *bool   `json:"container"`
}

// ServeMember handles PUT /drafts/{id}/members/{index}. The update is
// checked before anything is applied, so a rejected request changes nothing.
func (h *Handler) ServeMember(w http.ResponseWriter, r *http.Request) {
	idx, err := index(r, "index")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req memberRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	id := project.MemberID(idx)
	h.edit(w, r, func(s *project.Session) error {
		m, ok := s.Registry().Member(id)
		if !ok {
			return &project.EntityError{Kind: project.ErrUnknownEntity, ID: id}
		}
		role := m.Role
		if req.Role != nil {
			role = project.Role(*req.Role)
			if !s.Mode().Allows(role) {
				return &project.EntityError{Kind: project.ErrIllegalRole, ID: id, Detail: *req.Role}
			}
		}
		if req.Container != nil && *req.Container && !role.Supervises() {
			return &project.EntityError{Kind: project.ErrContainerRole, ID: id, Detail: string(role)}
		}

		if req.UserName != nil {
			if err := s.SetMemberUserName(id, *req.UserName); err != nil {
				return err
			}
		}
		if req.Role != nil {
			if err := s.SetMemberRole(id, role); err != nil {
				return err
			}
		}
		if req.Container != nil {
			return s.SetContainer(id, *req.Container)
		}
		return nil
	})
}
