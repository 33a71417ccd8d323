package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type SettingsRepo struct {
	db *DB
}

func NewSettingsRepo(db *DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Get returns the stored value, or "" when the key is unset.
func (r *SettingsRepo) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// GetOr returns the stored value or fallback when unset or unreadable.
func (r *SettingsRepo) GetOr(ctx context.Context, key, fallback string) string {
	value, err := r.Get(ctx, key)
	if err != nil || value == "" {
		return fallback
	}
	return value
}

func (r *SettingsRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	return err
}

func (r *SettingsRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	return err
}

const (
	SettingFeedTitle       = "feed_title"
	SettingFeedAuthor      = "feed_author"
	SettingFeedDescription = "feed_description"
	SettingFeedImage       = "feed_image"
)

// KnownSetting reports whether key is one the application reads.
func KnownSetting(key string) bool {
	switch key {
	case SettingFeedTitle, SettingFeedAuthor, SettingFeedDescription, SettingFeedImage:
		return true
	}
	return false
}
