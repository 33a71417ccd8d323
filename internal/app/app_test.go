package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cesargomez89/adfreecast/internal/domain"
	"github.com/cesargomez89/adfreecast/internal/store"
)

func setupTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "test_app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedPodcast(t *testing.T, db *store.DB, podcastID string, episodeIDs ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.SaveSubscription(ctx, &domain.Subscription{
		ID:      podcastID,
		Title:   "Podcast " + podcastID,
		FeedURL: "https://example.com/" + podcastID + ".xml",
	}))
	for _, id := range episodeIDs {
		require.NoError(t, db.UpsertEpisode(ctx, &domain.Episode{
			ID:          id,
			PodcastID:   podcastID,
			Title:       "Episode " + id,
			PublishDate: "2024-01-01T00:00:00Z",
			AudioURL:    "https://cdn.example.com/" + id + ".mp3",
		}))
	}
}
