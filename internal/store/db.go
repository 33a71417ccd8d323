package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrEpisodeNotFound = fmt.Errorf("episode %w", ErrNotFound)
)

// Per-connection pragmas. They go in the DSN so every pooled connection gets them.
var pragmas = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(30000)",
	"_pragma=journal_mode(WAL)",
	"_txlock=immediate",
}

type DB struct {
	*sqlx.DB
}

func NewSQLiteDB(path string) (*DB, error) {
	db, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	store := &DB{db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Wrap adapts an already open handle without touching the schema.
func Wrap(db *sqlx.DB) *DB {
	return &DB{db}
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(pragmas, "&")
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// withTx runs fn inside a single immediate transaction.
func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
