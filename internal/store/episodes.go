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

const episodeColumns = `e.id, e.podcast_id, e.title, e.description, e.publish_date, e.duration, e.audio_url, e.artwork_url, e.updated_at`

const upsertEpisodeQuery = `INSERT INTO episodes (id, podcast_id, title, description, publish_date, duration, audio_url, artwork_url, updated_at)
	VALUES (:id, :podcast_id, :title, :description, :publish_date, :duration, :audio_url, :artwork_url, :updated_at)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		publish_date = excluded.publish_date,
		duration = excluded.duration,
		audio_url = excluded.audio_url,
		artwork_url = excluded.artwork_url,
		updated_at = excluded.updated_at`

// UpsertEpisode stores an episode keyed by its id. Publish dates are
// normalized before writing.
func (db *DB) UpsertEpisode(ctx context.Context, ep *domain.Episode) error {
	prepareEpisode(ep, time.Now().UTC())
	if _, err := db.NamedExecContext(ctx, upsertEpisodeQuery, ep); err != nil {
		return fmt.Errorf("upsert episode %s: %w", ep.ID, err)
	}
	return nil
}

// UpsertEpisodes stores a batch of episodes in one transaction.
func (db *DB) UpsertEpisodes(ctx context.Context, eps []domain.Episode) error {
	now := time.Now().UTC()
	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		for i := range eps {
			prepareEpisode(&eps[i], now)
			if _, err := tx.NamedExecContext(ctx, upsertEpisodeQuery, &eps[i]); err != nil {
				return fmt.Errorf("upsert episode %s: %w", eps[i].ID, err)
			}
		}
		return nil
	})
}

func prepareEpisode(ep *domain.Episode, now time.Time) {
	if norm, ok := domain.NormalizePublishDate(ep.PublishDate); ok {
		ep.PublishDate = norm
	}
	ep.UpdatedAt = now
}

func (db *DB) GetEpisode(ctx context.Context, id string) (*domain.Episode, error) {
	ep := &domain.Episode{}
	err := db.GetContext(ctx, ep, `SELECT `+episodeColumns+` FROM episodes e WHERE e.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEpisodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return ep, nil
}

// ListEpisodesForPodcast returns a podcast's episodes, newest first, with
// their processing status and queue membership.
func (db *DB) ListEpisodesForPodcast(ctx context.Context, podcastID string) ([]domain.EpisodeWithStatus, error) {
	query := `SELECT ` + episodeColumns + `,
			COALESCE(p.status, 'none') AS status,
			(q.id IS NOT NULL) AS queued
		FROM episodes e
		LEFT JOIN processing_records p ON p.episode_id = e.id
		LEFT JOIN queue q ON q.episode_id = e.id
		WHERE e.podcast_id = ?
		ORDER BY e.publish_date DESC`

	var eps []domain.EpisodeWithStatus
	err := db.SelectContext(ctx, &eps, query, podcastID)
	return eps, err
}

// ProcessedPathsForPodcast lists stored output files of a podcast, used to
// clean up after unsubscribing.
func (db *DB) ProcessedPathsForPodcast(ctx context.Context, podcastID string) ([]string, error) {
	var paths []string
	err := db.SelectContext(ctx, &paths, `SELECT p.processed_path
		FROM processing_records p
		JOIN episodes e ON e.id = p.episode_id
		WHERE e.podcast_id = ? AND p.processed_path IS NOT NULL`, podcastID)
	return paths, err
}
