package auth

import (
	"errors"
	"net/http"
	"time"

	sessionstore "github.com/dalemusser/taskhub/internal/app/store/sessions"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// ErrShortSessionKey is returned when the signing key is shorter than 32 bytes
// and the manager was asked to enforce key length.
var ErrShortSessionKey = errors.New("session key must be at least 32 characters")

// SessionManager owns the session cookie and the user-loading middleware.
type SessionManager struct {
	store   *serverStore
	name    string
	fetcher UserFetcher
	log     *zap.Logger
}

// NewSessionManager builds a manager whose cookie is signed with sessionKey.
//
// In production (secure=true) cookies are Secure with SameSite=None; over
// plain-http localhost use secure=false so the browser keeps the cookie.
func NewSessionManager(payloads PayloadStore, sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, errors.New("session key is empty; provide 32+ random chars")
	}
	if len(sessionKey) < 32 {
		if secure {
			return nil, ErrShortSessionKey
		}
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}

	opts := &sessions.Options{
		Path:     "/",
		Domain:   domain,
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	}

	codec := securecookie.New([]byte(sessionKey), nil)
	codec.MaxAge(opts.MaxAge)

	sm := &SessionManager{
		store: &serverStore{
			codecs:   []securecookie.Codec{codec},
			payloads: payloads,
			options:  opts,
		},
		name: name,
		log:  logger,
	}

	logger.Info("session manager initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("max_age", maxAge))

	return sm, nil
}

// CookieName is the name of the session cookie.
func (sm *SessionManager) CookieName() string { return sm.name }

// DecodeSessionID verifies a raw cookie value and returns the session ID it carries.
func (sm *SessionManager) DecodeSessionID(value string) (string, error) {
	return sm.store.decodeID(sm.name, value)
}

// SetUserFetcher installs the per-request user loader used by LoadSessionUser.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) {
	sm.fetcher = f
}

// GetSession returns the request's session. An unreadable cookie yields a
// fresh session rather than an error.
func (sm *SessionManager) GetSession(r *http.Request) *sessions.Session {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		sm.log.Debug("discarding unreadable session cookie", zap.Error(err))
	}
	return sess
}

// SignIn marks the session authenticated for userID. The session ID is
// rotated so a pre-login ID cannot be reused.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, userID string) error {
	sess := sm.GetSession(r)
	if err := sm.rotate(r, sess); err != nil {
		return err
	}
	sess.Values[sessionstore.KeyAuthenticated] = true
	sess.Values[sessionstore.KeyUserID] = userID
	sess.Values[keySignedInAt] = time.Now().UTC().Format(time.RFC3339)
	return sess.Save(r, w)
}

// Destroy removes the session payload and expires the cookie.
func (sm *SessionManager) Destroy(w http.ResponseWriter, r *http.Request) error {
	sess := sm.GetSession(r)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

func (sm *SessionManager) rotate(r *http.Request, sess *sessions.Session) error {
	if sess.ID == "" {
		return nil
	}
	if err := sm.store.payloads.Delete(r.Context(), sess.ID); err != nil {
		return err
	}
	sess.ID = ""
	return nil
}

const keySignedInAt = "signed_in_at"
