package dto

import (
	"time"

	"github.com/cesargomez89/adfreecast/internal/domain"
	"github.com/cesargomez89/adfreecast/internal/worker"
)

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type SubscribeResponse struct {
	Subscription *domain.Subscription `json:"subscription"`
	Episodes     int                  `json:"episodes"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}

type SettingResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type QueueItem struct {
	EpisodeID    string `json:"episode_id"`
	Title        string `json:"title"`
	PodcastTitle string `json:"podcast_title"`
	Status       string `json:"status"`
	PublishDate  string `json:"publish_date"`
	CreatedAt    string `json:"created_at"`
	JobID        string `json:"job_id,omitempty"`
	Priority     int    `json:"priority"`
	Active       bool   `json:"active"`
}

type QueueResponse struct {
	Items         []QueueItem `json:"items"`
	Depth         int         `json:"depth"`
	Processing    int         `json:"processing"`
	Active        int         `json:"active"`
	MaxConcurrent int         `json:"max_concurrent"`
	Running       bool        `json:"running"`
}

func NewQueueResponse(st *worker.Status) QueueResponse {
	resp := QueueResponse{
		Items:         []QueueItem{},
		Active:        st.Active,
		MaxConcurrent: st.MaxConcurrent,
		Running:       st.Running,
	}
	if st.Queue == nil {
		return resp
	}

	resp.Depth = st.Queue.Depth
	resp.Processing = st.Queue.Processing
	for _, e := range st.Queue.Items {
		jobID, active := st.ActiveJobs[e.EpisodeID]
		resp.Items = append(resp.Items, QueueItem{
			EpisodeID:    e.EpisodeID,
			Title:        e.Title,
			PodcastTitle: e.PodcastTitle,
			Status:       string(e.Status),
			PublishDate:  e.PublishDate,
			CreatedAt:    e.CreatedAt.Format(time.RFC3339),
			JobID:        jobID,
			Priority:     e.Priority,
			Active:       active,
		})
	}
	return resp
}

type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Processor string `json:"processor"`
	Backend   string `json:"backend,omitempty"`
	Jobs      int    `json:"backend_jobs,omitempty"`
}
