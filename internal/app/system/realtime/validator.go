package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	sessionstore "github.com/dalemusser/taskhub/internal/app/store/sessions"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Identity is who a validated handshake belongs to.
type Identity struct {
	UserID         primitive.ObjectID
	OrganizationID primitive.ObjectID
	Name           string
	Role           string
}

// SessionCodec verifies the signed session cookie (auth.SessionManager).
type SessionCodec interface {
	CookieName() string
	DecodeSessionID(value string) (string, error)
}

// SessionStore loads session payloads by ID.
type SessionStore interface {
	Get(ctx context.Context, id string) (sessionstore.Payload, error)
}

// UserStore loads users. A miss must return mongo.ErrNoDocuments.
type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Authenticator resolves a handshake request to an Identity.
type Authenticator interface {
	Validate(ctx context.Context, r *http.Request) (Identity, error)
}

// Validator authenticates WebSocket handshakes from the session cookie. It
// never trusts identity claimed by the client.
type Validator struct {
	codec    SessionCodec
	sessions SessionStore
	users    UserStore
	origins  map[string]struct{}
	anyOrig  bool
	log      *zap.Logger
}

var _ Authenticator = (*Validator)(nil)

// NewValidator builds a Validator. An empty allowedOrigins list (or one
// containing "*") accepts any Origin.
func NewValidator(codec SessionCodec, sessions SessionStore, users UserStore, allowedOrigins []string, logger *zap.Logger) *Validator {
	v := &Validator{
		codec:    codec,
		sessions: sessions,
		users:    users,
		origins:  make(map[string]struct{}),
		log:      logger,
	}
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			v.anyOrig = true
		default:
			v.origins[normalizeOrigin(o)] = struct{}{}
		}
	}
	if len(v.origins) == 0 {
		v.anyOrig = true
	}
	return v
}

// Validate checks, in order: origin, cookie presence, cookie signature,
// session payload, user, organization.
func (v *Validator) Validate(ctx context.Context, r *http.Request) (Identity, error) {
	if origin := r.Header.Get("Origin"); origin != "" && !v.originAllowed(origin) {
		return Identity{}, ErrOriginRejected
	}

	c, err := r.Cookie(v.codec.CookieName())
	if err != nil || c.Value == "" {
		return Identity{}, ErrNoSessionCookie
	}

	sid, err := v.codec.DecodeSessionID(c.Value)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	payload, err := v.sessions.Get(ctx, sid)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return Identity{}, ErrInvalidSession
	}
	if err != nil {
		return Identity{}, fmt.Errorf("load session: %w", err)
	}

	uid, err := primitive.ObjectIDFromHex(payload.UserID())
	if err != nil {
		return Identity{}, ErrInvalidSession
	}

	u, err := v.users.GetByID(ctx, uid)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Identity{}, ErrUserNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("load user: %w", err)
	}
	if u.Status == models.StatusDisabled {
		return Identity{}, ErrUserNotFound
	}
	if u.OrganizationID == nil || u.OrganizationID.IsZero() {
		return Identity{}, ErrNoOrganization
	}

	return Identity{
		UserID:         u.ID,
		OrganizationID: *u.OrganizationID,
		Name:           u.FullName,
		Role:           u.Role,
	}, nil
}

func (v *Validator) originAllowed(origin string) bool {
	if v.anyOrig {
		return true
	}
	_, ok := v.origins[normalizeOrigin(origin)]
	return ok
}

// normalizeOrigin lowercases scheme and host and drops any path.
func normalizeOrigin(o string) string {
	u, err := url.Parse(strings.TrimSpace(o))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.ToLower(strings.TrimRight(o, "/"))
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
