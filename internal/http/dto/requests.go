package dto

type EnqueueRequest struct {
	EpisodeID string `json:"episode_id"`
	Priority  int    `json:"priority"`
	Retry     bool   `json:"retry"`
}

type EnqueuePodcastRequest struct {
	Priority int `json:"priority"`
}

type SubscribeRequest struct {
	FeedURL string `json:"feed_url"`
}

type SettingRequest struct {
	Value string `json:"value"`
}
