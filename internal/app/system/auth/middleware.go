package auth

import (
	"context"
	"net/http"
	"strings"

	sessionstore "github.com/dalemusser/taskhub/internal/app/store/sessions"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"go.uber.org/zap"
)

// SessionUser is the signed-in user injected into r.Context().
type SessionUser struct {
	ID               string
	Name             string
	Email            string
	Role             string
	OrganizationID   string
	OrganizationName string
}

// UserFetcher loads fresh user data for a session. It returns nil when the
// user no longer exists or is disabled, which signs the session out.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user and a found flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithTestUser puts u into the request context. Tests only.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// LoadSessionUser injects the session's user into the request context when
// the session is authenticated and the user is still active.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sm.GetSession(r)
		userID := sessionstore.Payload(stringKeys(sess.Values)).UserID()
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		if sm.fetcher == nil {
			next.ServeHTTP(w, withUser(r, &SessionUser{ID: userID}))
			return
		}
		u := sm.fetcher.FetchUser(r.Context(), userID)
		if u == nil {
			sm.log.Info("session user missing or disabled", zap.String("user_id", userID))
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, withUser(r, u))
	})
}

// RequireSignedIn rejects requests without a user with 401.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			respond.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects anonymous requests with 401 and users outside the
// allowed roles with 403. Role comparison ignores case.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; !has {
				respond.Error(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func stringKeys(values map[interface{}]interface{}) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if s, ok := k.(string); ok {
			out[s] = v
		}
	}
	return out
}
