package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/adfreecast/internal/domain"
)

type migration struct {
	apply       func(ctx context.Context, tx *sqlx.Tx) error
	description string
	version     int
}

var migrations = []migration{
	{version: 1, description: "normalize episode publish dates to ISO 8601", apply: normalizePublishDates},
}

func (db *DB) migrate(ctx context.Context) error {
	for _, m := range migrations {
		var applied int
		if err := db.GetContext(ctx, &applied, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, m.version); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if applied > 0 {
			continue
		}

		err := db.withTx(ctx, func(tx *sqlx.Tx) error {
			if err := m.apply(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, description) VALUES (?, ?)`, m.version, m.description)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.version, m.description, err)
		}
	}
	return nil
}

// NormalizePublishDates rewrites every stored publish date that is not in
// canonical form. Unparseable values are left as they are. Returns the number
// of rows rewritten.
func (db *DB) NormalizePublishDates(ctx context.Context) (int, error) {
	var n int
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		n, err = rewritePublishDates(ctx, tx)
		return err
	})
	return n, err
}

func normalizePublishDates(ctx context.Context, tx *sqlx.Tx) error {
	_, err := rewritePublishDates(ctx, tx)
	return err
}

func rewritePublishDates(ctx context.Context, tx *sqlx.Tx) (int, error) {
	type row struct {
		ID          string `db:"id"`
		PublishDate string `db:"publish_date"`
	}

	var rows []row
	if err := tx.SelectContext(ctx, &rows, `SELECT id, publish_date FROM episodes`); err != nil {
		return 0, fmt.Errorf("list publish dates: %w", err)
	}

	rewritten := 0
	for _, r := range rows {
		if domain.IsCanonicalPublishDate(r.PublishDate) {
			continue
		}
		norm, ok := domain.NormalizePublishDate(r.PublishDate)
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `UPDATE episodes SET publish_date = ? WHERE id = ?`, norm, r.ID); err != nil {
			return rewritten, fmt.Errorf("rewrite publish date for %s: %w", r.ID, err)
		}
		rewritten++
	}
	return rewritten, nil
}
