package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/cesargomez89/adfreecast/internal/domain"
	"github.com/cesargomez89/adfreecast/internal/logger"
	"github.com/cesargomez89/adfreecast/internal/processing"
	"github.com/cesargomez89/adfreecast/internal/tagging"
)

// dispatch runs one claimed episode to completion. It always releases the
// claim and only removes the queue row when the episode ends up ready.
func (c *Coordinator) dispatch(ctx context.Context, entry domain.QueueEntry) {
	log := c.Logger.WithEpisode(entry.EpisodeID, entry.Title)
	succeeded := false

	defer c.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic in dispatch", "panic", r)
			c.markFailed(ctx, log, entry.EpisodeID, fmt.Errorf("panic: %v", r))
		}
		c.release(entry.EpisodeID)
		if succeeded {
			if err := c.store.RemoveFromQueue(ctx, entry.EpisodeID); err != nil {
				log.Error("Failed to remove episode from queue", "error", err)
			}
		}
	}()

	ep, err := c.store.GetEpisode(ctx, entry.EpisodeID)
	if err != nil {
		log.Error("Queued episode could not be loaded, releasing claim", "error", err)
		return
	}
	sub, err := c.store.GetSubscription(ctx, ep.PodcastID)
	if err != nil {
		log.Error("Episode subscription could not be loaded, releasing claim", "podcast_id", ep.PodcastID, "error", err)
		return
	}

	if err := c.store.SetStatus(ctx, ep.ID, domain.MarkProcessing()); err != nil {
		// Recording the error keeps the next tick from claiming it again.
		c.markFailed(ctx, log, ep.ID, fmt.Errorf("mark processing: %w", err))
		return
	}
	log.Info("Processing episode", "podcast", sub.Title)

	jobID, err := c.client.Submit(ctx, processing.SubmitRequest{
		EpisodeID:    ep.ID,
		AudioURL:     ep.AudioURL,
		Title:        ep.Title,
		PodcastTitle: sub.Title,
	})
	if err != nil {
		c.markFailed(ctx, log, ep.ID, err)
		return
	}
	c.setJob(ep.ID, jobID)
	log = &logger.Logger{Logger: log.With("job_id", jobID)}

	st, err := c.awaitJob(ctx, jobID)
	if err != nil {
		c.markFailed(ctx, log, ep.ID, err)
		return
	}
	if st.State == processing.JobError {
		msg := st.Error
		if msg == "" {
			msg = fmt.Sprintf("backend reported %s", st.Backend)
		}
		c.markFailed(ctx, log, ep.ID, errors.New(msg))
		return
	}

	path, err := c.fetchAudio(ctx, ep.ID, jobID)
	if err != nil {
		c.markFailed(ctx, log, ep.ID, err)
		return
	}

	c.postProcess(ctx, log, ep, sub, path)

	if err := c.store.SetStatus(ctx, ep.ID, domain.MarkReady(path, durations(st, ep))); err != nil {
		log.Error("Failed to mark episode ready", "error", err)
		c.markFailed(ctx, log, ep.ID, err)
		return
	}
	succeeded = true
	log.Info("Episode ready", "path", path)
}

// awaitJob polls the backend until the job settles or the check budget runs
// out. The first check happens immediately.
func (c *Coordinator) awaitJob(ctx context.Context, jobID string) (*processing.JobStatus, error) {
	for attempt := 0; attempt < c.opts.MaxStatusChecks; attempt++ {
		if attempt > 0 && !sleep(ctx, c.opts.StatusInterval) {
			return nil, ctx.Err()
		}

		st, err := c.client.PollStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		switch st.State {
		case processing.JobComplete, processing.JobError:
			return st, nil
		}
		c.Logger.Debug("Job pending", "job_id", jobID, "backend_status", st.Backend, "progress", st.Progress)
	}
	return nil, errTimedOut
}

func (c *Coordinator) fetchAudio(ctx context.Context, episodeID, jobID string) (string, error) {
	res, err := c.client.FetchResult(ctx, jobID)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	path, err := c.audio.Save(episodeID, res.ContentType, res.Body)
	if err != nil {
		return "", fmt.Errorf("save processed audio: %w", err)
	}
	return path, nil
}

// postProcess tags the saved file. Failures are logged and never fail the
// episode.
func (c *Coordinator) postProcess(ctx context.Context, log *logger.Logger, ep *domain.Episode, sub *domain.Subscription, path string) {
	if c.Tag == nil {
		return
	}

	var art []byte
	if c.Artwork != nil {
		artURL := ep.ArtworkURL
		if artURL == "" {
			artURL = sub.ArtworkURL
		}
		if artURL != "" {
			var err error
			art, err = c.Artwork.Fetch(ctx, artURL)
			if err != nil {
				log.Warn("Failed to fetch artwork for tagging", "url", artURL, "error", err)
			}
		}
	}

	md := tagging.Metadata{
		Title:       ep.Title,
		Podcast:     sub.Title,
		Artist:      sub.Artist,
		Description: ep.Description,
		PublishDate: ep.PublishDate,
		Genre:       "Podcast",
		URL:         ep.AudioURL,
	}
	if err := c.Tag(path, md, art); err != nil {
		if errors.Is(err, tagging.ErrUnsupportedFormat) {
			log.Debug("Skipping tags", "path", path, "error", err)
			return
		}
		log.Warn("Failed to tag processed file", "path", path, "error", err)
	}
}

func (c *Coordinator) markFailed(ctx context.Context, log *logger.Logger, episodeID string, cause error) {
	msg := failureMessage(cause)
	log.Error("Episode processing failed", "error", msg)
	if err := c.store.SetStatus(ctx, episodeID, domain.MarkFailed(msg)); err != nil {
		log.Error("Failed to record processing error", "error", err)
	}
}

// durations reports what the backend measured. The original length is only
// derived when both parts are known; otherwise the feed's duration is used.
func durations(st *processing.JobStatus, ep *domain.Episode) domain.Durations {
	d := domain.Durations{
		Processed:  st.Duration,
		AdsRemoved: st.AdsRemoved,
	}
	switch {
	case st.Duration != nil && st.AdsRemoved != nil:
		original := *st.Duration + *st.AdsRemoved
		d.Original = &original
	case ep.Duration != nil:
		original := float64(*ep.Duration)
		d.Original = &original
	}
	return d
}
