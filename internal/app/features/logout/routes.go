// internal/app/features/logout/routes.go
package logout

import (
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		// Only signed-in users have anything to log out of.
		pr.Use(sm.RequireSignedIn)
		pr.Post("/", h.HandleLogout)
	})

	return r
}
