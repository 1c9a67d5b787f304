package db

import (
	"database/sql"
	"time"
)

// User is a row in the users table. Password holds the encoded credential
// hash, never a plaintext password.
type User struct {
	UserID   int64
	Username string
	Password string
	Email    string
}

// Group is a row in the groups table.
type Group struct {
	GroupID int64
	Name    string
}

// Session is a row in the sessions table. The userid primary key means a user
// holds at most one session at a time.
type Session struct {
	UserID  int64
	Key     string
	Started time.Time
}

// Setting is a row in the settings table.
type Setting struct {
	Key   string
	Value sql.NullString
}

// SessionUser is the join of a session row with its owning user, as loaded by
// [Queries.GetSessionUser].
type SessionUser struct {
	Username string
	Email    string
	Started  time.Time
}
