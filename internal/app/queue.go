package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cesargomez89/adfreecast/internal/domain"
	"github.com/cesargomez89/adfreecast/internal/logger"
	"github.com/cesargomez89/adfreecast/internal/store"
	"github.com/cesargomez89/adfreecast/internal/worker"
)

// ErrInvalidRequest marks caller mistakes such as an empty episode id.
var ErrInvalidRequest = errors.New("invalid request")

// ActiveJobs is the part of the coordinator the queue controls touch.
type ActiveJobs interface {
	ClearActiveJobs()
	Status(ctx context.Context) (*worker.Status, error)
}

type QueueService struct {
	Repo   *store.DB
	Coord  ActiveJobs
	Logger *logger.Logger
}

// NewQueueService builds the queue control surface. coord may be nil when no
// coordinator runs in this process, as with the CLI.
func NewQueueService(repo *store.DB, coord ActiveJobs, log *logger.Logger) *QueueService {
	return &QueueService{Repo: repo, Coord: coord, Logger: log.WithComponent("queue")}
}

func (s *QueueService) Enqueue(ctx context.Context, episodeID string, priority int, retry bool) error {
	episodeID = strings.TrimSpace(episodeID)
	if episodeID == "" {
		return fmt.Errorf("%w: episode id is required", ErrInvalidRequest)
	}

	if err := s.Repo.Enqueue(ctx, episodeID, priority, retry); err != nil {
		return err
	}
	s.Logger.Info("Episode enqueued", "episode_id", episodeID, "priority", priority, "retry", retry)
	return nil
}

func (s *QueueService) EnqueuePodcast(ctx context.Context, podcastID string, priority int) (int, error) {
	n, err := s.Repo.EnqueueAllForPodcast(ctx, podcastID, priority)
	if err != nil {
		return 0, err
	}
	s.Logger.Info("Podcast enqueued", "podcast_id", podcastID, "count", n, "priority", priority)
	return n, nil
}

// Status reports the coordinator view when one is attached, otherwise just
// the stored queue.
func (s *QueueService) Status(ctx context.Context) (*worker.Status, error) {
	if s.Coord != nil {
		return s.Coord.Status(ctx)
	}
	summary, err := s.Repo.QueueStatusSummary(ctx)
	if err != nil {
		return nil, err
	}
	return &worker.Status{ActiveJobs: map[string]string{}, Queue: summary}, nil
}

// Recover forgets in-memory claims and returns stuck processing records to
// the queue. It reports how many records were reset.
func (s *QueueService) Recover(ctx context.Context) (int64, error) {
	if s.Coord != nil {
		s.Coord.ClearActiveJobs()
	}
	n, err := s.Repo.ResetStuckProcessing(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset stuck processing: %w", err)
	}
	s.Logger.Info("Recovered stuck episodes", "count", n)
	return n, nil
}

func (s *QueueService) Remove(ctx context.Context, episodeID string) error {
	if strings.TrimSpace(episodeID) == "" {
		return fmt.Errorf("%w: episode id is required", ErrInvalidRequest)
	}
	if err := s.Repo.RemoveFromQueue(ctx, episodeID); err != nil {
		return err
	}
	s.Logger.Info("Episode removed from queue", "episode_id", episodeID)
	return nil
}

func (s *QueueService) Clear(ctx context.Context) (int64, error) {
	n, err := s.Repo.ClearQueue(ctx)
	if err != nil {
		return 0, err
	}
	s.Logger.Info("Queue cleared", "count", n)
	return n, nil
}

func (s *QueueService) Processing(ctx context.Context, episodeID string) (*domain.ProcessingRecord, error) {
	if strings.TrimSpace(episodeID) == "" {
		return nil, fmt.Errorf("%w: episode id is required", ErrInvalidRequest)
	}
	return s.Repo.GetProcessing(ctx, episodeID)
}
