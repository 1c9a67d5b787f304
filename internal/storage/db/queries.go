package db

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is the subset of [sql.DB] and [sql.Tx] the query layer runs on.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries bundles the statements over a database handle or transaction.
type Queries struct {
	db DBTX
}

// New returns a Queries bound to the given handle.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const insertUser = `
INSERT INTO users (username, password, email) VALUES (?, ?, ?)
`

// InsertUser adds a user row and returns its generated userid.
func (q *Queries) InsertUser(ctx context.Context, username, password, email string) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertUser, username, password, email)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getUserByName = `
SELECT userid, username, password, email FROM users WHERE username = ?
`

// GetUserByName returns the full user row for a username. Returns
// [sql.ErrNoRows] if the username does not exist.
func (q *Queries) GetUserByName(ctx context.Context, username string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUserByName, username).
		Scan(&u.UserID, &u.Username, &u.Password, &u.Email)
	return u, err
}

const getUserID = `
SELECT userid FROM users WHERE username = ?
`

// GetUserID resolves a username to its userid. Returns [sql.ErrNoRows] if the
// username does not exist.
func (q *Queries) GetUserID(ctx context.Context, username string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, getUserID, username).Scan(&id)
	return id, err
}

const countUserByNameOrEmail = `
SELECT count(*) FROM users WHERE username = ? OR email = ?
`

// CountUserByNameOrEmail counts users holding either the given username or
// email. Used for duplicate detection prior to inserting.
func (q *Queries) CountUserByNameOrEmail(ctx context.Context, username, email string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUserByNameOrEmail, username, email).Scan(&n)
	return n, err
}

const countOtherUserByEmail = `
SELECT count(*) FROM users WHERE email = ? AND username != ?
`

// CountOtherUserByEmail counts users other than username that hold the given
// email.
func (q *Queries) CountOtherUserByEmail(ctx context.Context, email, username string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countOtherUserByEmail, email, username).Scan(&n)
	return n, err
}

const updateUsername = `
UPDATE users SET username = ? WHERE username = ?
`

// UpdateUsername renames a user. Returns the number of affected rows.
func (q *Queries) UpdateUsername(ctx context.Context, newName, oldName string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateUsername, newName, oldName)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateUserEmail = `
UPDATE users SET email = ? WHERE username = ?
`

// UpdateUserEmail replaces a user's email. Returns the number of affected rows.
func (q *Queries) UpdateUserEmail(ctx context.Context, email, username string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateUserEmail, email, username)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const updateUserPassword = `
UPDATE users SET password = ? WHERE username = ?
`

// UpdateUserPassword replaces a user's credential hash. Returns the number of
// affected rows.
func (q *Queries) UpdateUserPassword(ctx context.Context, password, username string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateUserPassword, password, username)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteUserByName = `
DELETE FROM users WHERE username = ?
`

// DeleteUserByName removes a user row; memberships and sessions cascade.
// Returns the number of affected rows.
func (q *Queries) DeleteUserByName(ctx context.Context, username string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteUserByName, username)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteOrphanGroups = `
DELETE FROM groups
WHERE NOT EXISTS (
    SELECT NULL FROM usergroups ug WHERE ug.groupid = groups.groupid
)
`

// DeleteOrphanGroups removes every group that no longer has any membership.
func (q *Queries) DeleteOrphanGroups(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteOrphanGroups)
	return err
}

const getGroupID = `
SELECT groupid FROM groups WHERE name = ?
`

// GetGroupID resolves a group name to its groupid. Returns [sql.ErrNoRows] if
// the group does not exist.
func (q *Queries) GetGroupID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, getGroupID, name).Scan(&id)
	return id, err
}

const insertGroup = `
INSERT INTO groups (name) VALUES (?)
`

// InsertGroup adds a group row and returns its generated groupid.
func (q *Queries) InsertGroup(ctx context.Context, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertGroup, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const insertMembership = `
INSERT INTO usergroups (userid, groupid) VALUES (?, ?)
`

// InsertMembership links a user to a group.
func (q *Queries) InsertMembership(ctx context.Context, userID, groupID int64) error {
	_, err := q.db.ExecContext(ctx, insertMembership, userID, groupID)
	return err
}

const deleteMembership = `
DELETE FROM usergroups
WHERE userid = (SELECT userid FROM users WHERE username = ?)
AND groupid = (SELECT groupid FROM groups WHERE name = ?)
`

// DeleteMembership unlinks a user from a group. The group row itself is left
// in place even if this was its last member.
func (q *Queries) DeleteMembership(ctx context.Context, username, group string) error {
	_, err := q.db.ExecContext(ctx, deleteMembership, username, group)
	return err
}

const getUserGroups = `
SELECT name
FROM groups
INNER JOIN usergroups ON usergroups.groupid = groups.groupid
INNER JOIN users ON users.userid = usergroups.userid
WHERE users.username = ?
ORDER BY name
`

// GetUserGroups returns the sorted group names the user belongs to.
func (q *Queries) GetUserGroups(ctx context.Context, username string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, getUserGroups, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		groups = append(groups, name)
	}
	return groups, rows.Err()
}

const replaceSession = `
REPLACE INTO sessions (userid, key, started) VALUES (?, ?, ?)
`

// ReplaceSession inserts the session row for a user, displacing any prior
// session the user held.
func (q *Queries) ReplaceSession(ctx context.Context, userID int64, key string, started time.Time) error {
	_, err := q.db.ExecContext(ctx, replaceSession, userID, key, started.UTC())
	return err
}

const deleteSessionByUser = `
DELETE FROM sessions
WHERE userid = (SELECT userid FROM users WHERE username = ?)
`

// DeleteSessionByUser removes the session row for a user, if any.
func (q *Queries) DeleteSessionByUser(ctx context.Context, username string) error {
	_, err := q.db.ExecContext(ctx, deleteSessionByUser, username)
	return err
}

const getSessionUser = `
SELECT username, email, started
FROM sessions
INNER JOIN users ON users.userid = sessions.userid
WHERE sessions.key = ?
`

// GetSessionUser loads the user owning the session identified by key. Returns
// [sql.ErrNoRows] if no such session exists. Expiry is not applied here; it is
// the caller's policy decision.
func (q *Queries) GetSessionUser(ctx context.Context, key string) (SessionUser, error) {
	var su SessionUser
	err := q.db.QueryRowContext(ctx, getSessionUser, key).
		Scan(&su.Username, &su.Email, &su.Started)
	return su, err
}

const countSessionsByUser = `
SELECT count(*)
FROM sessions
WHERE userid = (SELECT userid FROM users WHERE username = ?)
`

// CountSessionsByUser counts session rows held by a user. At most one exists
// by schema, so this is effectively an existence check.
func (q *Queries) CountSessionsByUser(ctx context.Context, username string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countSessionsByUser, username).Scan(&n)
	return n, err
}

const upsertSetting = `
REPLACE INTO settings (key, value) VALUES (?, ?)
`

// UpsertSetting stores a settings row, replacing any prior value.
func (q *Queries) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, upsertSetting, key, value)
	return err
}

const listSettings = `
SELECT key, value FROM settings ORDER BY key
`

// ListSettings returns every settings row.
func (q *Queries) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := q.db.QueryContext(ctx, listSettings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}
