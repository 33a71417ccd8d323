// Package processing talks to the ad-removal backend that does the actual
// transcription and cutting.
package processing

import (
	"context"
	"errors"
	"io"
)

var ErrJobNotFound = errors.New("processing job not found")

// JobState is the coarse view of a backend job the coordinator acts on.
type JobState string

const (
	JobPending  JobState = "pending"
	JobComplete JobState = "complete"
	JobError    JobState = "error"
)

// SubmitRequest describes one episode to process.
type SubmitRequest struct {
	EpisodeID    string `json:"episode_id"`
	AudioURL     string `json:"audio_url"`
	Title        string `json:"title"`
	PodcastTitle string `json:"podcast_title"`
}

type JobStatus struct {
	JobID string
	State JobState
	// Backend is the raw status string (queued, downloading, cutting...).
	Backend           string
	Progress          int
	ProcessedAudioURL string
	AdsRemoved        *float64
	Duration          *float64
	Error             string
}

// Result is the processed audio. Callers must close Body.
type Result struct {
	Body        io.ReadCloser
	ContentType string
}

type Health struct {
	Status  string `json:"status"`
	Backend string `json:"dgx"`
	Jobs    int    `json:"jobs"`
}

type Client interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	PollStatus(ctx context.Context, jobID string) (*JobStatus, error)
	FetchResult(ctx context.Context, jobID string) (*Result, error)
	Health(ctx context.Context) (*Health, error)
}

// mapState folds the backend's intermediate states into pending.
func mapState(raw string) JobState {
	switch raw {
	case "complete":
		return JobComplete
	case "error":
		return JobError
	default:
		return JobPending
	}
}
