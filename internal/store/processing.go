package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/adfreecast/internal/domain"
)

const processingColumns = `episode_id, processed_path, status, original_duration, processed_duration, ads_removed, error, queued_at, started_at, completed_at`

// GetProcessing returns the processing record of an episode or ErrNotFound.
func (db *DB) GetProcessing(ctx context.Context, episodeID string) (*domain.ProcessingRecord, error) {
	rec := &domain.ProcessingRecord{}
	err := db.GetContext(ctx, rec, `SELECT `+processingColumns+` FROM processing_records WHERE episode_id = ?`, episodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ProcessingStatusOf returns StatusNone for episodes without a record.
func (db *DB) ProcessingStatusOf(ctx context.Context, episodeID string) (domain.ProcessingStatus, error) {
	var status domain.ProcessingStatus
	err := db.GetContext(ctx, &status, `SELECT status FROM processing_records WHERE episode_id = ?`, episodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StatusNone, nil
	}
	return status, err
}

// SetStatus applies a status update to an episode's processing record,
// creating the record when it does not exist yet.
func (db *DB) SetStatus(ctx context.Context, episodeID string, update domain.StatusUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		return setStatusTx(ctx, tx, episodeID, update, time.Now().UTC())
	})
}

func setStatusTx(ctx context.Context, tx *sqlx.Tx, episodeID string, u domain.StatusUpdate, now time.Time) error {
	var current domain.ProcessingStatus
	err := tx.GetContext(ctx, &current, `SELECT status FROM processing_records WHERE episode_id = ?`, episodeID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := ensureEpisode(ctx, tx, episodeID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO processing_records (episode_id, status, queued_at) VALUES (?, 'none', ?)`, episodeID, now); err != nil {
			return fmt.Errorf("create processing record for %s: %w", episodeID, err)
		}
		current = domain.StatusNone
	case err != nil:
		return fmt.Errorf("read status for %s: %w", episodeID, err)
	}

	if !domain.CanTransition(current, u.Status) {
		return fmt.Errorf("%w: %s -> %s for %s", domain.ErrInvalidTransition, current, u.Status, episodeID)
	}

	switch u.Status {
	case domain.StatusProcessing:
		_, err = tx.ExecContext(ctx, `UPDATE processing_records SET status = ?, started_at = ? WHERE episode_id = ?`,
			u.Status, now, episodeID)
	case domain.StatusReady:
		_, err = tx.ExecContext(ctx, `UPDATE processing_records
			SET status = ?, completed_at = ?, processed_path = ?,
				original_duration = ?, processed_duration = ?, ads_removed = ?
			WHERE episode_id = ?`,
			u.Status, now, u.ProcessedPath,
			u.Durations.Original, u.Durations.Processed, u.Durations.AdsRemoved, episodeID)
	case domain.StatusError:
		_, err = tx.ExecContext(ctx, `UPDATE processing_records SET status = ?, completed_at = ?, error = ? WHERE episode_id = ?`,
			u.Status, now, u.Error, episodeID)
	default:
		_, err = tx.ExecContext(ctx, `UPDATE processing_records SET status = ? WHERE episode_id = ?`, u.Status, episodeID)
	}
	if err != nil {
		return fmt.Errorf("set status %s for %s: %w", u.Status, episodeID, err)
	}
	return nil
}

func ensureEpisode(ctx context.Context, tx *sqlx.Tx, episodeID string) error {
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM episodes WHERE id = ?`, episodeID); err != nil {
		return fmt.Errorf("check episode %s: %w", episodeID, err)
	}
	if n == 0 {
		return ErrEpisodeNotFound
	}
	return nil
}

const readyColumns = episodeColumns + `,
	p.processed_path, p.processed_duration, p.ads_removed,
	s.title AS podcast_title, s.artist AS podcast_artist, s.artwork_url AS podcast_artwork_url`

// ListReadyForPodcast returns processed episodes of one podcast, newest first.
func (db *DB) ListReadyForPodcast(ctx context.Context, podcastID string) ([]domain.ReadyEpisode, error) {
	query := `SELECT ` + readyColumns + `
		FROM processing_records p
		JOIN episodes e ON e.id = p.episode_id
		JOIN subscriptions s ON s.id = e.podcast_id
		WHERE p.status = 'ready' AND e.podcast_id = ?
		ORDER BY e.publish_date DESC`

	var eps []domain.ReadyEpisode
	err := db.SelectContext(ctx, &eps, query, podcastID)
	return eps, err
}

// ListAllReady returns every processed episode, newest first.
func (db *DB) ListAllReady(ctx context.Context) ([]domain.ReadyEpisode, error) {
	query := `SELECT ` + readyColumns + `
		FROM processing_records p
		JOIN episodes e ON e.id = p.episode_id
		JOIN subscriptions s ON s.id = e.podcast_id
		WHERE p.status = 'ready'
		ORDER BY e.publish_date DESC`

	var eps []domain.ReadyEpisode
	err := db.SelectContext(ctx, &eps, query)
	return eps, err
}

// ResetStuckProcessing moves every record left in processing back to queued.
func (db *DB) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx, `UPDATE processing_records SET status = 'queued', started_at = NULL WHERE status = 'processing'`)
	if err != nil {
		return 0, fmt.Errorf("reset stuck processing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stuck processing: %w", err)
	}
	return n, nil
}
