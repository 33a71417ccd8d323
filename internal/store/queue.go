package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/adfreecast/internal/constants"
	"github.com/cesargomez89/adfreecast/internal/domain"
)

const queueSelect = `SELECT q.id, q.episode_id, q.priority, q.created_at,
		COALESCE(p.status, 'none') AS status,
		e.publish_date, e.title, s.title AS podcast_title
	FROM queue q
	JOIN episodes e ON e.id = q.episode_id
	JOIN subscriptions s ON s.id = e.podcast_id
	LEFT JOIN processing_records p ON p.episode_id = q.episode_id`

const queueOrder = ` ORDER BY q.priority DESC, e.publish_date ASC, q.id ASC`

// Enqueue puts an episode on the queue. With retry set, an errored record is
// reset first. Priority is merged with max semantics.
func (db *DB) Enqueue(ctx context.Context, episodeID string, priority int, retry bool) error {
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		return enqueueTx(ctx, tx, episodeID, priority, retry, time.Now().UTC())
	})
}

func enqueueTx(ctx context.Context, tx *sqlx.Tx, episodeID string, priority int, retry bool, now time.Time) error {
	if err := ensureEpisode(ctx, tx, episodeID); err != nil {
		return err
	}

	if retry {
		_, err := tx.ExecContext(ctx, `UPDATE processing_records
			SET status = 'queued', error = NULL, processed_path = NULL,
				started_at = NULL, completed_at = NULL, queued_at = ?
			WHERE episode_id = ? AND status = 'error'`, now, episodeID)
		if err != nil {
			return fmt.Errorf("reset errored record %s: %w", episodeID, err)
		}
	}

	// Never downgrade processing or ready.
	_, err := tx.ExecContext(ctx, `INSERT INTO processing_records (episode_id, status, queued_at)
		VALUES (?, 'queued', ?)
		ON CONFLICT(episode_id) DO UPDATE SET status = 'queued', queued_at = excluded.queued_at
		WHERE processing_records.status IN ('none', 'error')`, episodeID, now)
	if err != nil {
		return fmt.Errorf("mark %s queued: %w", episodeID, err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO queue (episode_id, priority, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(episode_id) DO UPDATE SET priority = MAX(queue.priority, excluded.priority)`,
		episodeID, priority, now)
	if err != nil {
		return fmt.Errorf("insert queue row for %s: %w", episodeID, err)
	}
	return nil
}

// EnqueueAllForPodcast enqueues every episode of a podcast that has not been
// processed and is not already in flight. Errored episodes are retried.
func (db *DB) EnqueueAllForPodcast(ctx context.Context, podcastID string, priority int) (int, error) {
	type candidate struct {
		ID     string                  `db:"id"`
		Status domain.ProcessingStatus `db:"status"`
	}

	count := 0
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM subscriptions WHERE id = ?`, podcastID); err != nil {
			return fmt.Errorf("check subscription %s: %w", podcastID, err)
		}
		if exists == 0 {
			return ErrNotFound
		}

		var candidates []candidate
		err := tx.SelectContext(ctx, &candidates, `SELECT e.id, COALESCE(p.status, 'none') AS status
			FROM episodes e
			LEFT JOIN processing_records p ON p.episode_id = e.id
			WHERE e.podcast_id = ?
			ORDER BY e.publish_date ASC`, podcastID)
		if err != nil {
			return fmt.Errorf("list candidates for %s: %w", podcastID, err)
		}

		now := time.Now().UTC()
		for _, c := range candidates {
			if !c.Status.Enqueueable() {
				continue
			}
			if err := enqueueTx(ctx, tx, c.ID, priority, c.Status == domain.StatusError, now); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DequeueBatch returns up to limit queue entries that are neither processing
// nor ready, highest priority first, then oldest publish date. Nothing is
// claimed; callers rely on the status filter.
func (db *DB) DequeueBatch(ctx context.Context, limit int) ([]domain.QueueEntry, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := queueSelect + `
		WHERE COALESCE(p.status, 'none') NOT IN ('processing', 'ready')` + queueOrder + `
		LIMIT ?`

	var entries []domain.QueueEntry
	if err := db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("dequeue batch: %w", err)
	}
	return entries, nil
}

// RemoveFromQueue deletes an episode's queue row. Missing rows are not an error.
func (db *DB) RemoveFromQueue(ctx context.Context, episodeID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM queue WHERE episode_id = ?`, episodeID)
	return err
}

// DropErroredFromQueue deletes an episode's queue row only while its record
// is still in error. Reports whether a row was removed.
func (db *DB) DropErroredFromQueue(ctx context.Context, episodeID string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM queue WHERE episode_id = ? AND EXISTS (
		SELECT 1 FROM processing_records p
		WHERE p.episode_id = queue.episode_id AND p.status = 'error')`, episodeID)
	if err != nil {
		return false, fmt.Errorf("drop errored queue row %s: %w", episodeID, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *DB) IsQueued(ctx context.Context, episodeID string) (bool, error) {
	var n int
	err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM queue WHERE episode_id = ?`, episodeID)
	return n > 0, err
}

// ClearQueue deletes every queue row. Processing records are untouched.
func (db *DB) ClearQueue(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM queue`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// QueueStatusSummary reports queue depth, in-flight count and the head of the queue.
func (db *DB) QueueStatusSummary(ctx context.Context) (*domain.QueueSummary, error) {
	summary := &domain.QueueSummary{}

	if err := db.GetContext(ctx, &summary.Depth, `SELECT COUNT(*) FROM queue`); err != nil {
		return nil, fmt.Errorf("queue depth: %w", err)
	}
	if err := db.GetContext(ctx, &summary.Processing, `SELECT COUNT(*) FROM processing_records WHERE status = 'processing'`); err != nil {
		return nil, fmt.Errorf("processing count: %w", err)
	}
	if err := db.SelectContext(ctx, &summary.Items, queueSelect+queueOrder+` LIMIT ?`, constants.QueueSummaryLimit); err != nil {
		return nil, fmt.Errorf("queue head: %w", err)
	}
	if summary.Items == nil {
		summary.Items = []domain.QueueEntry{}
	}
	return summary, nil
}
