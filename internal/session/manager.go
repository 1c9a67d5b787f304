// Package session owns the session lifecycle: issuance on login, resolution
// with the expiry policy applied, and revocation on logout.
//
// # Expiry policy
//
// Sessions use a fixed validity window measured from the session start time
// (configured as session_window, default [DefaultWindow]): resolution does
// not refresh the window, and a session older than the window is invalid no
// matter how recently it was used. A sliding last-access window is
// deliberately not implemented.
package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/stolasapp/yaap/internal/sec"
	"github.com/stolasapp/yaap/internal/storage"
	"github.com/stolasapp/yaap/internal/storage/db"
)

// DefaultWindow is the validity window applied when none is configured.
const DefaultWindow = 3 * time.Hour

const (
	// ErrInvalidCredentials is returned by Login for an unknown username or a
	// wrong password; the two cases are indistinguishable to the caller.
	ErrInvalidCredentials storage.Error = "invalid username or password"
	// ErrSessionNotFound is returned by Resolve when no session holds the
	// token.
	ErrSessionNotFound storage.Error = "session not found"
	// ErrSessionExpired is returned by Resolve when the session has aged out
	// of the validity window.
	ErrSessionExpired storage.Error = "session expired"
)

// dummyHash is a well-formed argon2id hash that matches no password. Login
// verifies against it when the username is unknown so the unknown-user and
// wrong-password paths do comparable work.
const dummyHash = "$argon2id$v=19$m=65536,t=1,p=4" +
	"$AAAAAAAAAAAAAAAAAAAAAA" +
	"$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Identity is the resolved owner of a valid session. Groups is sorted.
type Identity struct {
	Username string
	Email    string
	Groups   []string
}

// Manager issues, resolves, and revokes sessions against a store.
type Manager struct {
	store  storage.Store
	window time.Duration
	now    func() time.Time
}

// NewManager returns a Manager applying the given validity window. A zero or
// negative window falls back to [DefaultWindow].
func NewManager(store storage.Store, window time.Duration) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Manager{
		store:  store,
		window: window,
		now:    time.Now,
	}
}

// Login verifies the credentials and issues a new session token for the user,
// displacing any session the user already held (the sessions table is keyed
// by userid). Unknown usernames and wrong passwords both fail with
// [ErrInvalidCredentials]. A login whose stored hash encodes outdated
// parameters transparently re-hashes the password inside the same
// transaction.
func (m *Manager) Login(ctx context.Context, username, password string) (string, error) {
	key, err := sec.NewSessionKey()
	if err != nil {
		return "", err
	}

	err = m.store.WithTx(ctx, func(q *db.Queries) error {
		user, err := q.GetUserByName(ctx, username)
		if errors.Is(err, sql.ErrNoRows) {
			sec.ComparePassword(password, dummyHash)
			return ErrInvalidCredentials
		} else if err != nil {
			return err
		}
		if !sec.ComparePassword(password, user.Password) {
			return ErrInvalidCredentials
		}

		if sec.NeedsRehash(user.Password) {
			hash, err := sec.HashPassword(password)
			if err != nil {
				return err
			}
			if _, err = q.UpdateUserPassword(ctx, hash, username); err != nil {
				return err
			}
		}
		return q.ReplaceSession(ctx, user.UserID, key, m.now())
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Logout revokes the user's session. Logging out a user without a session is
// a no-op, not an error.
func (m *Manager) Logout(ctx context.Context, username string) error {
	return m.store.WithTx(ctx, func(q *db.Queries) error {
		return q.DeleteSessionByUser(ctx, username)
	})
}

// Resolve returns the identity owning the session token, with its group
// memberships loaded. It returns [ErrSessionNotFound] for an unknown token
// and [ErrSessionExpired] for one past the validity window.
func (m *Manager) Resolve(ctx context.Context, token string) (Identity, error) {
	var identity Identity
	err := m.store.WithTx(ctx, func(q *db.Queries) error {
		su, err := q.GetSessionUser(ctx, token)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSessionNotFound
		} else if err != nil {
			return err
		}
		if Expired(su.Started, m.now(), m.window) {
			return ErrSessionExpired
		}
		groups, err := q.GetUserGroups(ctx, su.Username)
		if err != nil {
			return err
		}
		identity = Identity{Username: su.Username, Email: su.Email, Groups: groups}
		return nil
	})
	return identity, err
}

// Expired reports whether a session started at the given time has aged out of
// the window by now. Pure so the boundary is testable without a store.
func Expired(started, now time.Time, window time.Duration) bool {
	return now.Sub(started) > window
}
