// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
}

func NewHandler(sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
	}
}

// HandleLogout handles POST /logout. The Redis payload is deleted, so the
// session ID stops working for both HTTP and the real-time handshake.
// Connections already open stay open until they close or go idle.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.SessionMgr.Destroy(w, r); err != nil {
		h.Log.Error("logout: destroy session", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	respond.NoContent(w)
}
