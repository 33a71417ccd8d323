package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cesargomez89/adfreecast/internal/domain"
	"github.com/cesargomez89/adfreecast/internal/feed"
	"github.com/cesargomez89/adfreecast/internal/logger"
	"github.com/cesargomez89/adfreecast/internal/store"
)

type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL, podcastID string) (*feed.Parsed, error)
}

type FileRemover interface {
	Remove(path string) error
}

type SubscriptionService struct {
	Repo   *store.DB
	Feeds  FeedFetcher
	Files  FileRemover
	Logger *logger.Logger

	now func() time.Time
}

func NewSubscriptionService(repo *store.DB, feeds FeedFetcher, files FileRemover, log *logger.Logger) *SubscriptionService {
	return &SubscriptionService{
		Repo:   repo,
		Feeds:  feeds,
		Files:  files,
		Logger: log.WithComponent("subscriptions"),
		now:    time.Now,
	}
}

// Subscribe fetches a feed and stores it with its episodes. Subscribing to
// the same URL again refreshes it.
func (s *SubscriptionService) Subscribe(ctx context.Context, feedURL string) (*domain.Subscription, int, error) {
	feedURL = strings.TrimSpace(feedURL)
	u, err := url.Parse(feedURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, 0, fmt.Errorf("%w: feed url must be an absolute http(s) url", ErrInvalidRequest)
	}

	sub, n, err := s.sync(ctx, feedURL, feed.PodcastID(feedURL))
	if err != nil {
		return nil, 0, err
	}
	s.Logger.WithSubscription(sub.ID).Info("Subscribed", "feed_url", feedURL, "episodes", n)
	return sub, n, nil
}

// Unsubscribe deletes a subscription with everything that hangs off it,
// including processed audio on disk.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, podcastID string) error {
	paths, err := s.Repo.ProcessedPathsForPodcast(ctx, podcastID)
	if err != nil {
		return fmt.Errorf("list processed files: %w", err)
	}
	if err := s.Repo.DeleteSubscription(ctx, podcastID); err != nil {
		return err
	}

	log := s.Logger.WithSubscription(podcastID)
	for _, p := range paths {
		if s.Files == nil {
			break
		}
		if err := s.Files.Remove(p); err != nil {
			log.Warn("Failed to remove processed file", "path", p, "error", err)
		}
	}
	log.Info("Unsubscribed", "files", len(paths))
	return nil
}

// Refresh re-reads one subscription's feed. Returns how many episodes the
// feed currently lists.
func (s *SubscriptionService) Refresh(ctx context.Context, podcastID string) (int, error) {
	existing, err := s.Repo.GetSubscription(ctx, podcastID)
	if err != nil {
		return 0, err
	}
	sub, n, err := s.sync(ctx, existing.FeedURL, existing.ID)
	if err != nil {
		return 0, err
	}
	s.Logger.WithSubscription(sub.ID).Info("Refreshed", "episodes", n)
	return n, nil
}

// RefreshAll refreshes every subscription. A failing feed does not stop the
// others; all failures come back joined.
func (s *SubscriptionService) RefreshAll(ctx context.Context) (int, error) {
	subs, err := s.Repo.ListSubscriptions(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	var errs []error
	for _, sub := range subs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		n, err := s.Refresh(ctx, sub.ID)
		if err != nil {
			s.Logger.WithSubscription(sub.ID).Error("Refresh failed", "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sub.ID, err))
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

func (s *SubscriptionService) List(ctx context.Context) ([]domain.Subscription, error) {
	subs, err := s.Repo.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []domain.Subscription{}
	}
	return subs, nil
}

func (s *SubscriptionService) Episodes(ctx context.Context, podcastID string) ([]domain.EpisodeWithStatus, error) {
	if _, err := s.Repo.GetSubscription(ctx, podcastID); err != nil {
		return nil, err
	}
	eps, err := s.Repo.ListEpisodesForPodcast(ctx, podcastID)
	if err != nil {
		return nil, err
	}
	if eps == nil {
		eps = []domain.EpisodeWithStatus{}
	}
	return eps, nil
}

func (s *SubscriptionService) sync(ctx context.Context, feedURL, podcastID string) (*domain.Subscription, int, error) {
	parsed, err := s.Feeds.Fetch(ctx, feedURL, podcastID)
	if err != nil && !errors.Is(err, feed.ErrNoEpisodes) {
		return nil, 0, err
	}

	sub := parsed.Subscription
	if err := s.Repo.SaveSubscription(ctx, &sub); err != nil {
		return nil, 0, err
	}
	if len(parsed.Episodes) > 0 {
		if err := s.Repo.UpsertEpisodes(ctx, parsed.Episodes); err != nil {
			return nil, 0, err
		}
	}

	now := s.now().UTC()
	if err := s.Repo.TouchSubscriptionRefreshed(ctx, sub.ID, now); err != nil {
		return nil, 0, err
	}
	sub.LastRefreshedAt = &now
	return &sub, len(parsed.Episodes), nil
}
