// internal/app/features/projects/routes.go
package projects

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the editor API, mounted under /api/drafts. gate normally
// requires a signed-in session.
func Routes(h *Handler, gate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(gate)

	r.Post("/", h.ServeCreate)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.ServeGet)
		r.Delete("/", h.ServeDelete)

		r.Put("/project", h.ServeProject)
		r.Put("/mode", h.ServeMode)
		r.Put("/counts/{kind}", h.ServeCount)
		r.Put("/groups/{index}", h.ServeGroup)
		r.Put("/members/{index}", h.ServeMember)
		r.Put("/images/{index}/file", h.ServeBindFile)
		r.Delete("/images/{index}/file", h.ServeUnbindFile)

		r.Get("/relations", h.ServeRelations)
		r.Post("/relations", h.ServeConnect)
		r.Delete("/relations", h.ServeDisconnect)

		r.Post("/validate", h.ServeValidate)
		r.Post("/payload", h.ServePayload)
		r.Post("/submit", h.ServeSubmit)
		r.Get("/submit", h.ServeSubmitStatus)
	})
	return r
}

// HistoryRoutes returns the submission history, mounted under /api/submissions.
func HistoryRoutes(h *HistoryHandler, gate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(gate)
	r.Get("/", h.ServeList)
	return r
}
