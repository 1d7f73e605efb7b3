// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"

	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/ratelimit"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const msgBadCredentials = "invalid email or password"

type Handler struct {
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter // nil disables rate limiting
	Log        *zap.Logger
}

func NewHandler(users *userstore.Store, sessionMgr *auth.SessionManager, limiter *ratelimit.LoginLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		Log:        logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID string `json:"organization_id,omitempty"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !respond.Decode(w, r, &req) {
		return
	}
	email := normalize.Email(req.Email)
	if email == "" || req.Password == "" {
		respond.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if h.Limiter != nil {
		ok, reason, err := h.Limiter.Check(ctx, r, email)
		if err != nil {
			// Fail open: a Redis hiccup should not lock everyone out.
			h.Log.Warn("login rate limit check failed", zap.Error(err))
		} else if !ok {
			respond.Error(w, http.StatusTooManyRequests, reason)
			return
		}
	}

	u, err := h.Users.GetByEmail(ctx, email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		respond.Error(w, http.StatusUnauthorized, msgBadCredentials)
		return
	}
	if err != nil {
		h.Log.Error("login: user lookup failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		h.Log.Info("login failed", zap.String("user_id", u.ID.Hex()))
		respond.Error(w, http.StatusUnauthorized, msgBadCredentials)
		return
	}
	if strings.EqualFold(u.Status, models.StatusDisabled) {
		respond.Error(w, http.StatusForbidden, "account disabled")
		return
	}

	if err := h.SessionMgr.SignIn(w, r, u.ID.Hex()); err != nil {
		h.Log.Error("login: save session", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if h.Limiter != nil {
		if err := h.Limiter.ResetEmail(ctx, email); err != nil {
			h.Log.Warn("login rate limit reset failed", zap.Error(err))
		}
	}

	h.Log.Info("user signed in", zap.String("user_id", u.ID.Hex()), zap.String("role", u.Role))

	resp := userResponse{ID: u.ID.Hex(), Name: u.FullName, Email: u.Email, Role: u.Role}
	if u.OrganizationID != nil {
		resp.OrganizationID = u.OrganizationID.Hex()
	}
	respond.JSON(w, http.StatusOK, resp)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login (who am I)                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeCurrent returns the signed-in user, or 401.
func (h *Handler) ServeCurrent(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respond.JSON(w, http.StatusOK, userResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           u.Role,
		OrganizationID: u.OrganizationID,
	})
}
