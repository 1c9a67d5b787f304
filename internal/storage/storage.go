// Package storage provides the relational state management for users, groups,
// memberships, sessions, and settings.
package storage

import (
	"context"

	"github.com/stolasapp/yaap/internal/storage/db"
)

const (
	// ErrNotFound is returned when a user, group, or session cannot be found.
	ErrNotFound Error = "not found"
	// ErrDuplicateUser is returned if the username or email is already in use.
	ErrDuplicateUser Error = "username or email already in use"
	// ErrInvalidSettingKey is returned when a settings key is not on the
	// allow-list.
	ErrInvalidSettingKey Error = "invalid setting key"
)

// Error is an error type returned by the storage implementation.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// SettingKeys is the allow-list of persistable settings. Rows with these keys
// override the file configuration at startup.
var SettingKeys = []string{
	"registration",
	"session_window",
	"cookie_key",
	"cookie_secret",
	"login_path",
	"logout_path",
	"register_path",
	"reset_path",
	"user_path",
}

// Store is the transactional unit of work over the schema. Every logical
// operation that touches more than one row runs end-to-end inside a single
// WithTx call; partial application is never observable.
type Store interface {
	// WithTx begins a transaction, passes a query handle to fn, commits when
	// fn returns nil, and rolls back when fn returns an error or panics. The
	// connection is released on every exit path.
	WithTx(ctx context.Context, fn func(q *db.Queries) error) error
	// Settings returns the persisted settings rows as a key-value map.
	Settings(ctx context.Context) (map[string]string, error)
	// ConfigureSetting stores one settings row. An [ErrInvalidSettingKey] is
	// returned if key is not in [SettingKeys].
	ConfigureSetting(ctx context.Context, key, value string) error
	// Close releases any resources held by the store. An error is returned if
	// the store cannot be cleanly closed.
	Close() error
}
