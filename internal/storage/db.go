package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"slices"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/stolasapp/yaap/internal/storage/db"
)

// DB is a [Store] backed by a SQLite database.
type DB struct {
	db *sql.DB
}

// NewDB opens (and migrates, if needed) the SQLite database at dbPath.
func NewDB(ctx context.Context, logger *slog.Logger, dbPath string) (*DB, error) {
	handle, err := db.Open(ctx, logger, dbPath)
	if err != nil {
		return nil, err
	}
	return &DB{db: handle}, nil
}

// Close satisfies the [Store] interface.
func (d *DB) Close() error {
	return d.db.Close()
}

// WithTx satisfies the [Store] interface.
func (d *DB) WithTx(ctx context.Context, fn func(q *db.Queries) error) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(db.New(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Settings satisfies the [Store] interface.
func (d *DB) Settings(ctx context.Context) (map[string]string, error) {
	settings := map[string]string{}
	err := d.WithTx(ctx, func(q *db.Queries) error {
		rows, err := q.ListSettings(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if row.Value.Valid {
				settings[row.Key] = row.Value.String
			}
		}
		return nil
	})
	return settings, err
}

// ConfigureSetting satisfies the [Store] interface.
func (d *DB) ConfigureSetting(ctx context.Context, key, value string) error {
	if !slices.Contains(SettingKeys, key) {
		return ErrInvalidSettingKey
	}
	return d.WithTx(ctx, func(q *db.Queries) error {
		return q.UpsertSetting(ctx, key, value)
	})
}

// IsConstraintErr reports whether err is a sqlite unique or primary key
// constraint violation.
func IsConstraintErr(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}

var _ Store = (*DB)(nil)
