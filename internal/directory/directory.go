// Package directory provides the CRUD operations over users, groups, and
// memberships, each wrapped in a single storage transaction.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stolasapp/yaap/internal/sec"
	"github.com/stolasapp/yaap/internal/storage"
	"github.com/stolasapp/yaap/internal/storage/db"
)

// User is the directory view of a user: no identifier, no credential hash.
// Groups is sorted.
type User struct {
	Username string
	Email    string
	Groups   []string
}

// Directory performs user and group administration on a store.
type Directory struct {
	store storage.Store
}

// New returns a Directory on the given store.
func New(store storage.Store) *Directory {
	return &Directory{store: store}
}

// CreateUser hashes the password, inserts the user, and links it to every
// named group, creating groups that do not exist yet. The whole operation is
// one unit of work. A [storage.ErrDuplicateUser] is returned if the username
// or the email is already in use.
func (d *Directory) CreateUser(
	ctx context.Context,
	username, password, email string,
	groups ...string,
) (int64, error) {
	hash, err := sec.HashPassword(password)
	if err != nil {
		return 0, err
	}

	var userID int64
	err = d.store.WithTx(ctx, func(q *db.Queries) error {
		if n, err := q.CountUserByNameOrEmail(ctx, username, email); err != nil {
			return err
		} else if n > 0 {
			return storage.ErrDuplicateUser
		}
		if userID, err = q.InsertUser(ctx, username, hash, email); err != nil {
			if storage.IsConstraintErr(err) {
				return storage.ErrDuplicateUser
			}
			return err
		}
		for _, group := range groups {
			if err := addMembership(ctx, q, userID, group); err != nil {
				return err
			}
		}
		return nil
	})
	return userID, err
}

// GetUser returns the user with its group memberships. A
// [storage.ErrNotFound] is returned if the username does not exist.
func (d *Directory) GetUser(ctx context.Context, username string) (User, error) {
	var user User
	err := d.store.WithTx(ctx, func(q *db.Queries) error {
		row, err := q.GetUserByName(ctx, username)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		} else if err != nil {
			return err
		}
		groups, err := q.GetUserGroups(ctx, username)
		if err != nil {
			return err
		}
		user = User{Username: row.Username, Email: row.Email, Groups: groups}
		return nil
	})
	return user, err
}

// Groups returns the sorted group names the user belongs to. An unknown user
// yields an empty set, not an error.
func (d *Directory) Groups(ctx context.Context, username string) ([]string, error) {
	var groups []string
	err := d.store.WithTx(ctx, func(q *db.Queries) (err error) {
		groups, err = q.GetUserGroups(ctx, username)
		return err
	})
	return groups, err
}

// RemoveUser deletes the user; memberships and sessions cascade, and any
// group left without members afterwards is pruned. Removing an unknown user
// is a no-op, matching the underlying DELETE semantics.
func (d *Directory) RemoveUser(ctx context.Context, username string) error {
	return d.store.WithTx(ctx, func(q *db.Queries) error {
		if _, err := q.DeleteUserByName(ctx, username); err != nil {
			return err
		}
		return q.DeleteOrphanGroups(ctx)
	})
}

// RemoveUserGroup deletes a single membership. Unlike [Directory.RemoveUser],
// a group orphaned by this call is deliberately left in place so it keeps its
// identity for future members.
func (d *Directory) RemoveUserGroup(ctx context.Context, username, group string) error {
	return d.store.WithTx(ctx, func(q *db.Queries) error {
		return q.DeleteMembership(ctx, username, group)
	})
}

// UpdateUser applies one mutation to the user in a single unit of work. A
// [storage.ErrNotFound] is returned if the username does not exist.
func (d *Directory) UpdateUser(ctx context.Context, username string, update Update) error {
	return d.store.WithTx(ctx, func(q *db.Queries) error {
		return update.apply(ctx, q, username)
	})
}

// Update is one mutation of a user, constructed by [SetUsername],
// [SetPassword], [SetEmail], or [SetGroups]. The closed set makes an invalid
// attribute unrepresentable.
type Update interface {
	apply(ctx context.Context, q *db.Queries, username string) error
}

type updateFunc func(ctx context.Context, q *db.Queries, username string) error

func (f updateFunc) apply(ctx context.Context, q *db.Queries, username string) error {
	return f(ctx, q, username)
}

// SetUsername renames the user. A [storage.ErrDuplicateUser] is returned if
// the name is taken.
func SetUsername(name string) Update {
	return updateFunc(func(ctx context.Context, q *db.Queries, username string) error {
		n, err := q.UpdateUsername(ctx, name, username)
		if storage.IsConstraintErr(err) {
			return storage.ErrDuplicateUser
		} else if err != nil {
			return err
		}
		return affected(n)
	})
}

// SetPassword re-hashes and stores the new password.
func SetPassword(password string) Update {
	return updateFunc(func(ctx context.Context, q *db.Queries, username string) error {
		hash, err := sec.HashPassword(password)
		if err != nil {
			return err
		}
		n, err := q.UpdateUserPassword(ctx, hash, username)
		if err != nil {
			return err
		}
		return affected(n)
	})
}

// SetEmail replaces the user's email. A [storage.ErrDuplicateUser] is
// returned if another user already holds it.
func SetEmail(email string) Update {
	return updateFunc(func(ctx context.Context, q *db.Queries, username string) error {
		if n, err := q.CountOtherUserByEmail(ctx, email, username); err != nil {
			return err
		} else if n > 0 {
			return storage.ErrDuplicateUser
		}
		n, err := q.UpdateUserEmail(ctx, email, username)
		if err != nil {
			return err
		}
		return affected(n)
	})
}

// SetGroups reconciles the user's memberships to exactly the target set:
// memberships outside it are removed, missing ones are added (creating groups
// as needed). The user row itself is untouched, and groups orphaned by the
// removals are not pruned.
func SetGroups(groups ...string) Update {
	return updateFunc(func(ctx context.Context, q *db.Queries, username string) error {
		userID, err := q.GetUserID(ctx, username)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		} else if err != nil {
			return err
		}

		current, err := q.GetUserGroups(ctx, username)
		if err != nil {
			return err
		}

		target := make(map[string]bool, len(groups))
		for _, group := range groups {
			target[group] = true
		}
		for _, group := range current {
			if !target[group] {
				if err := q.DeleteMembership(ctx, username, group); err != nil {
					return err
				}
			}
		}

		held := make(map[string]bool, len(current))
		for _, group := range current {
			held[group] = true
		}
		for _, group := range groups {
			if held[group] {
				continue
			}
			held[group] = true // dedupe repeated targets
			if err := addMembership(ctx, q, userID, group); err != nil {
				return err
			}
		}
		return nil
	})
}

func affected(n int64) error {
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// addMembership links userID into the named group, creating the group row if
// it does not exist yet.
func addMembership(ctx context.Context, q *db.Queries, userID int64, group string) error {
	groupID, err := q.GetGroupID(ctx, group)
	if errors.Is(err, sql.ErrNoRows) {
		if groupID, err = q.InsertGroup(ctx, group); err != nil {
			return fmt.Errorf("failed to create group %q: %w", group, err)
		}
	} else if err != nil {
		return err
	}
	return q.InsertMembership(ctx, userID, groupID)
}
