package domain

import (
	"time"
)

// Subscription is a podcast the library follows.
type Subscription struct {
	SubscribedAt    time.Time  `json:"subscribed_at" db:"subscribed_at"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty" db:"last_refreshed_at"`
	ID              string     `json:"id" db:"id"`
	Title           string     `json:"title" db:"title"`
	FeedURL         string     `json:"feed_url" db:"feed_url"`
	Artist          string     `json:"artist" db:"artist"`
	ArtworkURL      string     `json:"artwork_url" db:"artwork_url"`
	Description     string     `json:"description,omitempty" db:"description"`
	Genre           string     `json:"genre,omitempty" db:"genre"`
}

// Episode is a single feed item of a subscription. ID is the podcast-scoped GUID.
type Episode struct {
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	Duration    *int      `json:"duration,omitempty" db:"duration"`
	ID          string    `json:"id" db:"id"`
	PodcastID   string    `json:"podcast_id" db:"podcast_id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description,omitempty" db:"description"`
	PublishDate string    `json:"publish_date" db:"publish_date"`
	AudioURL    string    `json:"audio_url" db:"audio_url"`
	ArtworkURL  string    `json:"artwork_url,omitempty" db:"artwork_url"`
}

// ProcessingRecord is the ad-removal state of one episode.
type ProcessingRecord struct { //nolint:govet // grouped by lifecycle rather than alignment
	EpisodeID         string           `json:"episode_id" db:"episode_id"`
	Status            ProcessingStatus `json:"status" db:"status"`
	ProcessedPath     *string          `json:"processed_path,omitempty" db:"processed_path"`
	OriginalDuration  *float64         `json:"original_duration,omitempty" db:"original_duration"`
	ProcessedDuration *float64         `json:"processed_duration,omitempty" db:"processed_duration"`
	AdsRemoved        *float64         `json:"ads_removed,omitempty" db:"ads_removed"`
	Error             *string          `json:"error,omitempty" db:"error"`
	QueuedAt          *time.Time       `json:"queued_at,omitempty" db:"queued_at"`
	StartedAt         *time.Time       `json:"started_at,omitempty" db:"started_at"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
}

// QueueEntry is a pending unit of work plus the episode fields the queue joins in.
type QueueEntry struct {
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	ID           int64            `json:"id" db:"id"`
	EpisodeID    string           `json:"episode_id" db:"episode_id"`
	Status       ProcessingStatus `json:"status" db:"status"`
	PublishDate  string           `json:"publish_date" db:"publish_date"`
	Title        string           `json:"title" db:"title"`
	PodcastTitle string           `json:"podcast_title" db:"podcast_title"`
	Priority     int              `json:"priority" db:"priority"`
}

// QueueSummary is a point-in-time view of the queue.
type QueueSummary struct {
	Items      []QueueEntry `json:"items"`
	Depth      int          `json:"depth"`
	Processing int          `json:"processing"`
}

// EpisodeWithStatus pairs an episode with its processing state for listings.
type EpisodeWithStatus struct {
	Episode
	Status ProcessingStatus `json:"status" db:"status"`
	Queued bool             `json:"queued" db:"queued"`
}

// ReadyEpisode is a processed episode joined with its subscription, used to build feeds.
type ReadyEpisode struct {
	Episode
	ProcessedPath     string   `json:"processed_path" db:"processed_path"`
	ProcessedDuration *float64 `json:"processed_duration,omitempty" db:"processed_duration"`
	AdsRemoved        *float64 `json:"ads_removed,omitempty" db:"ads_removed"`
	PodcastTitle      string   `json:"podcast_title" db:"podcast_title"`
	PodcastArtist     string   `json:"podcast_artist" db:"podcast_artist"`
	PodcastArtworkURL string   `json:"podcast_artwork_url" db:"podcast_artwork_url"`
}
