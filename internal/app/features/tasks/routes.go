// internal/app/features/tasks/routes.go
package tasks

import (
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Everything under /tasks requires authentication
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/", h.ServeList)
		pr.Post("/", h.HandleCreate)

		pr.Get("/{id}", h.ServeTask)
		pr.Patch("/{id}", h.HandleUpdate)
		pr.Post("/{id}/reorder", h.HandleReorder)

		// COMMENTS
		pr.Get("/{id}/comments", h.ServeComments)
		pr.Post("/{id}/comments", h.HandleAddComment)

		// DELETE (managers and admins)
		pr.With(sm.RequireRole(models.RoleAdmin, models.RoleManager)).Delete("/{id}", h.HandleDelete)
	})

	return r
}
