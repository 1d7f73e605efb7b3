package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	sessionstore "github.com/dalemusser/taskhub/internal/app/store/sessions"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

// PayloadStore persists session payloads by session ID.
type PayloadStore interface {
	Get(ctx context.Context, id string) (sessionstore.Payload, error)
	Save(ctx context.Context, id string, p sessionstore.Payload, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// serverStore is a sessions.Store whose cookie carries only a signed session
// ID. Values live in a PayloadStore keyed by that ID.
type serverStore struct {
	codecs   []securecookie.Codec
	payloads PayloadStore
	options  *sessions.Options
}

var _ sessions.Store = (*serverStore)(nil)

func (s *serverStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New returns the session for the request cookie, or a fresh one when the
// cookie is absent, forged, or points at an expired payload. The decode
// error is returned alongside the fresh session so callers may log it.
func (s *serverStore) New(r *http.Request, name string) (*sessions.Session, error) {
	sess := sessions.NewSession(s, name)
	opts := *s.options
	sess.Options = &opts
	sess.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return sess, nil
	}
	id, err := s.decodeID(name, c.Value)
	if err != nil {
		return sess, err
	}
	p, err := s.payloads.Get(r.Context(), id)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return sess, nil
	}
	if err != nil {
		return sess, err
	}

	sess.ID = id
	for k, v := range p {
		sess.Values[k] = v
	}
	sess.IsNew = false
	return sess, nil
}

// Save writes the payload and refreshes the cookie. MaxAge < 0 deletes both.
func (s *serverStore) Save(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	if sess.Options.MaxAge < 0 {
		if sess.ID != "" {
			if err := s.payloads.Delete(r.Context(), sess.ID); err != nil {
				return err
			}
		}
		http.SetCookie(w, sessions.NewCookie(sess.Name(), "", sess.Options))
		return nil
	}

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}

	p := make(sessionstore.Payload, len(sess.Values))
	for k, v := range sess.Values {
		key, ok := k.(string)
		if !ok {
			return fmt.Errorf("session value key %v is not a string", k)
		}
		p[key] = v
	}
	ttl := time.Duration(sess.Options.MaxAge) * time.Second
	if err := s.payloads.Save(r.Context(), sess.ID, p, ttl); err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, sessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}

func (s *serverStore) decodeID(name, value string) (string, error) {
	var id string
	if err := securecookie.DecodeMulti(name, value, &id, s.codecs...); err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New("empty session id")
	}
	return id, nil
}
