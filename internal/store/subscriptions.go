package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cesargomez89/adfreecast/internal/domain"
)

const subscriptionColumns = `id, title, feed_url, artist, artwork_url, description, genre, subscribed_at, last_refreshed_at`

// SaveSubscription inserts a subscription or refreshes its metadata.
// subscribed_at is kept from the first insert.
func (db *DB) SaveSubscription(ctx context.Context, sub *domain.Subscription) error {
	if sub.SubscribedAt.IsZero() {
		sub.SubscribedAt = time.Now().UTC()
	}

	query := `INSERT INTO subscriptions (id, title, feed_url, artist, artwork_url, description, genre, subscribed_at)
		VALUES (:id, :title, :feed_url, :artist, :artwork_url, :description, :genre, :subscribed_at)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			feed_url = excluded.feed_url,
			artist = excluded.artist,
			artwork_url = excluded.artwork_url,
			description = excluded.description,
			genre = excluded.genre`

	if _, err := db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("save subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (db *DB) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	sub := &domain.Subscription{}
	err := db.GetContext(ctx, sub, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (db *DB) ListSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := db.SelectContext(ctx, &subs, `SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY title COLLATE NOCASE`)
	return subs, err
}

// DeleteSubscription removes a subscription. Episodes, processing records and
// queue rows go with it through the foreign key cascade.
func (db *DB) DeleteSubscription(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subscription %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) TouchSubscriptionRefreshed(ctx context.Context, id string, at time.Time) error {
	_, err := db.ExecContext(ctx, `UPDATE subscriptions SET last_refreshed_at = ? WHERE id = ?`, at.UTC(), id)
	return err
}
