package directory

import (
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolasapp/yaap/internal/sec"
	"github.com/stolasapp/yaap/internal/storage"
	"github.com/stolasapp/yaap/internal/storage/db"
)

func newTestDirectory(t *testing.T) (*Directory, storage.Store) {
	t.Helper()
	store, err := storage.NewDB(t.Context(), slog.Default(), filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store), store
}

func TestCreateAndGetUser(t *testing.T) {
	t.Parallel()
	users, _ := newTestDirectory(t)

	id, err := users.CreateUser(t.Context(), "pieter", "123abc", "p@i.org", "abc", "123")
	require.NoError(t, err)
	assert.Positive(t, id)

	user, err := users.GetUser(t.Context(), "pieter")
	require.NoError(t, err)
	assert.Equal(t, User{
		Username: "pieter",
		Email:    "p@i.org",
		Groups:   []string{"123", "abc"}, // sorted
	}, user)

	groups, err := users.Groups(t.Context(), "pieter")
	require.NoError(t, err)
	assert.Equal(t, []string{"123", "abc"}, groups)

	_, err = users.GetUser(t.Context(), "nobody")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateUserDuplicates(t *testing.T) {
	t.Parallel()
	users, store := newTestDirectory(t)

	_, err := users.CreateUser(t.Context(), "pieter", "123abc", "p@i.org")
	require.NoError(t, err)

	_, err = users.CreateUser(t.Context(), "pieter", "other", "other@i.org", "grp")
	require.ErrorIs(t, err, storage.ErrDuplicateUser)

	_, err = users.CreateUser(t.Context(), "other", "other", "p@i.org")
	require.ErrorIs(t, err, storage.ErrDuplicateUser)

	// the failed creates added nothing, group table included
	err = store.WithTx(t.Context(), func(q *db.Queries) error {
		_, err := q.GetGroupID(t.Context(), "grp")
		require.ErrorIs(t, err, sql.ErrNoRows)
		_, err = q.GetUserID(t.Context(), "other")
		require.ErrorIs(t, err, sql.ErrNoRows)
		return nil
	})
	require.NoError(t, err)
}

func TestCreateUserSharesGroups(t *testing.T) {
	t.Parallel()
	users, store := newTestDirectory(t)

	_, err := users.CreateUser(t.Context(), "alice", "pw", "a@example.net", "testers")
	require.NoError(t, err)
	_, err = users.CreateUser(t.Context(), "bob", "pw", "b@example.net", "testers")
	require.NoError(t, err)

	// the second create reuses the existing group row instead of
	// violating the unique name index
	err = store.WithTx(t.Context(), func(q *db.Queries) (err error) {
		_, err = q.GetGroupID(t.Context(), "testers")
		return err
	})
	require.NoError(t, err)

	groups, err := users.Groups(t.Context(), "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"testers"}, groups)
}

func TestUpdateUserGroups(t *testing.T) {
	t.Parallel()
	users, _ := newTestDirectory(t)

	_, err := users.CreateUser(t.Context(), "pieter", "pw", "p@i.org", "testers", "happy")
	require.NoError(t, err)

	err = users.UpdateUser(t.Context(), "pieter", SetGroups("a", "b", "c"))
	require.NoError(t, err)

	groups, err := users.Groups(t.Context(), "pieter")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, groups)

	// overlap: keep b, drop a and c, add d
	err = users.UpdateUser(t.Context(), "pieter", SetGroups("b", "d"))
	require.NoError(t, err)

	groups, err = users.Groups(t.Context(), "pieter")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, groups)

	// clearing the set leaves no memberships
	err = users.UpdateUser(t.Context(), "pieter", SetGroups())
	require.NoError(t, err)

	groups, err = users.Groups(t.Context(), "pieter")
	require.NoError(t, err)
	assert.Empty(t, groups)

	err = users.UpdateUser(t.Context(), "nobody", SetGroups("a"))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateUserFields(t *testing.T) {
	t.Parallel()
	users, store := newTestDirectory(t)

	_, err := users.CreateUser(t.Context(), "pieter", "pw", "p@i.org")
	require.NoError(t, err)
	_, err = users.CreateUser(t.Context(), "ada", "pw", "ada@i.org")
	require.NoError(t, err)

	t.Run("email", func(t *testing.T) {
		require.NoError(t, users.UpdateUser(t.Context(), "pieter", SetEmail("new@i.org")))
		user, err := users.GetUser(t.Context(), "pieter")
		require.NoError(t, err)
		assert.Equal(t, "new@i.org", user.Email)

		err = users.UpdateUser(t.Context(), "pieter", SetEmail("ada@i.org"))
		require.ErrorIs(t, err, storage.ErrDuplicateUser)
	})

	t.Run("password", func(t *testing.T) {
		require.NoError(t, users.UpdateUser(t.Context(), "pieter", SetPassword("s3cret")))
		err := store.WithTx(t.Context(), func(q *db.Queries) error {
			row, err := q.GetUserByName(t.Context(), "pieter")
			require.NoError(t, err)
			assert.True(t, sec.ComparePassword("s3cret", row.Password))
			assert.False(t, sec.ComparePassword("pw", row.Password))
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("username", func(t *testing.T) {
		require.NoError(t, users.UpdateUser(t.Context(), "pieter", SetUsername("peter")))
		_, err := users.GetUser(t.Context(), "peter")
		require.NoError(t, err)
		_, err = users.GetUser(t.Context(), "pieter")
		require.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("unknown user", func(t *testing.T) {
		for _, update := range []Update{
			SetUsername("x"), SetEmail("x@i.org"), SetPassword("x"),
		} {
			err := users.UpdateUser(t.Context(), "nobody", update)
			require.ErrorIs(t, err, storage.ErrNotFound)
		}
	})
}

func TestRemoveUser(t *testing.T) {
	t.Parallel()
	users, store := newTestDirectory(t)

	_, err := users.CreateUser(t.Context(), "pieter", "pw", "p@i.org", "testers", "happy")
	require.NoError(t, err)
	_, err = users.CreateUser(t.Context(), "ada", "pw", "ada@i.org", "testers")
	require.NoError(t, err)

	require.NoError(t, users.RemoveUser(t.Context(), "pieter"))

	_, err = users.GetUser(t.Context(), "pieter")
	require.ErrorIs(t, err, storage.ErrNotFound)

	err = store.WithTx(t.Context(), func(q *db.Queries) error {
		// happy lost its last member and was pruned
		_, err := q.GetGroupID(t.Context(), "happy")
		require.ErrorIs(t, err, sql.ErrNoRows)
		// testers still has ada
		_, err = q.GetGroupID(t.Context(), "testers")
		require.NoError(t, err)
		// pieter's memberships cascaded away
		groups, err := q.GetUserGroups(t.Context(), "pieter")
		require.NoError(t, err)
		require.Empty(t, groups)
		return nil
	})
	require.NoError(t, err)

	// removing an unknown user is a no-op
	require.NoError(t, users.RemoveUser(t.Context(), "pieter"))
}

func TestRemoveUserGroupKeepsOrphans(t *testing.T) {
	t.Parallel()
	users, store := newTestDirectory(t)

	_, err := users.CreateUser(t.Context(), "pieter", "pw", "p@i.org", "solo")
	require.NoError(t, err)

	require.NoError(t, users.RemoveUserGroup(t.Context(), "pieter", "solo"))

	groups, err := users.Groups(t.Context(), "pieter")
	require.NoError(t, err)
	assert.Empty(t, groups)

	// the now-memberless group survives, unlike after RemoveUser
	err = store.WithTx(t.Context(), func(q *db.Queries) error {
		_, err := q.GetGroupID(t.Context(), "solo")
		return err
	})
	require.NoError(t, err)
}
