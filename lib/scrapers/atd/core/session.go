package core

import (
	"context"
	"strconv"
	"time"

	"atdkit/lib/kvstore"
)

// the portal invalidates sessions server-side after a day
const sessionLifetime = time.Hour * 24

// a session this close to expiry is treated as already gone, a request
// issued with it could die mid-flight
const sessionExpiryBuffer = time.Minute * 5

const sessionCookieName = "_session_id"

const (
	keySessionId      = "session:id"
	keySessionCookies = "session:cookies"
	keySessionExpires = "session:expires_at"
)

// Session is the authenticated cookie state substituting for a
// logged-in browser. Only one exists per installation.
type Session struct {
	Id        string
	Cookies   string
	ExpiresAt time.Time
}

// SessionStore persists the single live Session in the key-value store.
type SessionStore struct {
	kv kvstore.Store
}

func NewSessionStore(kv kvstore.Store) SessionStore {
	return SessionStore{kv: kv}
}

// Read returns the stored session and whether one exists at all.
// Expiry is not checked here, that is the session manager's call.
func (s SessionStore) Read(ctx context.Context) (Session, bool, error) {
	id, err := s.kv.Get(ctx, keySessionId)
	if err == kvstore.ErrKeyNotFound {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	cookies, err := s.kv.Get(ctx, keySessionCookies)
	if err != nil && err != kvstore.ErrKeyNotFound {
		return Session{}, false, err
	}
	expires, err := s.kv.Get(ctx, keySessionExpires)
	if err == kvstore.ErrKeyNotFound {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}

	unix, err := strconv.ParseInt(string(expires.Value), 10, 64)
	if err != nil {
		return Session{}, false, nil
	}

	return Session{
		Id:        string(id.Value),
		Cookies:   string(cookies.Value),
		ExpiresAt: time.Unix(unix, 0),
	}, true, nil
}

func (s SessionStore) Write(ctx context.Context, session Session) error {
	err := s.kv.Set(ctx, keySessionId, []byte(session.Id))
	if err != nil {
		return err
	}
	err = s.kv.Set(ctx, keySessionCookies, []byte(session.Cookies))
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, keySessionExpires, []byte(strconv.FormatInt(session.ExpiresAt.Unix(), 10)))
}

func (s SessionStore) Clear(ctx context.Context) error {
	for _, key := range []string{keySessionId, keySessionCookies, keySessionExpires} {
		err := s.kv.Delete(ctx, key)
		if err != nil {
			return err
		}
	}
	return nil
}
