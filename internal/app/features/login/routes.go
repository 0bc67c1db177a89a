// internal/app/features/login/routes.go
package login

import "github.com/go-chi/chi/v5"

// Routes is mounted at /api/login. GET reports the signed-in address.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeWhoAmI)
	r.Post("/", h.HandleLoginPost)
	return r
}
