package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesargomez89/adfreecast/internal/domain"
	"github.com/cesargomez89/adfreecast/internal/logger"
	"github.com/cesargomez89/adfreecast/internal/processing"
	"github.com/cesargomez89/adfreecast/internal/storage"
	"github.com/cesargomez89/adfreecast/internal/store"
	"github.com/cesargomez89/adfreecast/internal/tagging"
)

type harness struct {
	db     *store.DB
	client *processing.MockClient
	audio  *storage.Store
	coord  *Coordinator
	tagged atomic.Int32
}

func testOptions() Options {
	return Options{
		MaxConcurrent:   2,
		PollInterval:    10 * time.Millisecond,
		StatusInterval:  time.Millisecond,
		MaxStatusChecks: 5,
		StartDelay:      0,
	}
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	dir := t.TempDir()

	db, err := store.NewSQLiteDB(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	audio, err := storage.New(filepath.Join(dir, "audio"))
	require.NoError(t, err)

	h := &harness{db: db, client: processing.NewMockClient(), audio: audio}
	h.coord = New(db, h.client, audio, opts, logger.Discard())
	h.coord.Tag = func(path string, md tagging.Metadata, art []byte) error {
		h.tagged.Add(1)
		return nil
	}

	require.NoError(t, db.SaveSubscription(context.Background(), &domain.Subscription{
		ID:         "pod",
		Title:      "The Show",
		FeedURL:    "https://example.com/feed.xml",
		Artist:     "Host",
		ArtworkURL: "https://example.com/cover.jpg",
	}))
	return h
}

func (h *harness) addEpisode(t *testing.T, id string, priority int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.db.UpsertEpisode(ctx, &domain.Episode{
		ID:          id,
		PodcastID:   "pod",
		Title:       "Episode " + id,
		PublishDate: "2024-01-01T00:00:00Z",
		AudioURL:    "https://cdn.example.com/" + id + ".mp3",
	}))
	require.NoError(t, h.db.Enqueue(ctx, id, priority, false))
}

func (h *harness) record(t *testing.T, id string) *domain.ProcessingRecord {
	t.Helper()
	rec, err := h.db.GetProcessing(context.Background(), id)
	require.NoError(t, err)
	return rec
}

func (h *harness) queued(t *testing.T, id string) bool {
	t.Helper()
	ok, err := h.db.IsQueued(context.Background(), id)
	require.NoError(t, err)
	return ok
}

func complete(duration, ads float64) processing.JobStatus {
	return processing.JobStatus{
		State:      processing.JobComplete,
		Backend:    "complete",
		Progress:   100,
		Duration:   &duration,
		AdsRemoved: &ads,
	}
}

func TestTick_ProcessesEpisodeToReady(t *testing.T) {
	h := newHarness(t, testOptions())
	h.addEpisode(t, "ep1", 0)
	h.client.Scripts["ep1"] = []processing.JobStatus{
		{State: processing.JobPending, Backend: "transcribing"},
		complete(3300, 300),
	}

	assert.Equal(t, 1, h.coord.Tick(context.Background()))
	h.coord.Wait()

	rec := h.record(t, "ep1")
	assert.Equal(t, domain.StatusReady, rec.Status)
	require.NotNil(t, rec.ProcessedPath)
	assert.FileExists(t, *rec.ProcessedPath)
	assert.Equal(t, storage.FileName("ep1", ".mp3"), filepath.Base(*rec.ProcessedPath))
	require.NotNil(t, rec.OriginalDuration)
	assert.Equal(t, 3600.0, *rec.OriginalDuration)
	assert.Equal(t, 300.0, *rec.AdsRemoved)
	assert.Nil(t, rec.Error)

	data, err := os.ReadFile(*rec.ProcessedPath)
	require.NoError(t, err)
	assert.Equal(t, h.client.Audio, data)

	assert.False(t, h.queued(t, "ep1"), "ready episode should leave the queue")
	assert.Equal(t, int32(1), h.tagged.Load())

	submitted := h.client.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, "ep1", submitted[0].EpisodeID)
	assert.Equal(t, "The Show", submitted[0].PodcastTitle)
	assert.Equal(t, "https://cdn.example.com/ep1.mp3", submitted[0].AudioURL)

	st, err := h.coord.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.Active)
	assert.Equal(t, 0, st.Queue.Depth)
}

func TestTick_RespectsConcurrencyCap(t *testing.T) {
	h := newHarness(t, testOptions())
	h.addEpisode(t, "a", 5)
	h.addEpisode(t, "b", 10)
	h.addEpisode(t, "c", 1)
	h.client.Gate = make(chan struct{})
	ctx := context.Background()

	assert.Equal(t, 2, h.coord.Tick(ctx))
	assert.Equal(t, 0, h.coord.Tick(ctx), "no free slots while two dispatches run")

	st, err := h.coord.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Active)
	assert.Contains(t, st.ActiveJobs, "a")
	assert.Contains(t, st.ActiveJobs, "b")
	assert.NotContains(t, st.ActiveJobs, "c")

	close(h.client.Gate)
	h.coord.Wait()

	assert.Equal(t, 1, h.coord.Tick(ctx))
	h.coord.Wait()

	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, domain.StatusReady, h.record(t, id).Status, id)
	}
}

func TestTick_BackendErrorMarksEpisodeFailed(t *testing.T) {
	h := newHarness(t, testOptions())
	h.addEpisode(t, "ep1", 0)
	h.client.Scripts["ep1"] = []processing.JobStatus{
		{State: processing.JobPending, Backend: "downloading"},
		{State: processing.JobError, Backend: "error", Error: "Transcription failed"},
	}
	ctx := context.Background()

	h.coord.Tick(ctx)
	h.coord.Wait()

	rec := h.record(t, "ep1")
	assert.Equal(t, domain.StatusError, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Equal(t, "Processing failed: Transcription failed", *rec.Error)
	assert.True(t, h.queued(t, "ep1"), "failed episode keeps its queue row until the next tick")

	// The stray errored row is dropped instead of dispatched again.
	assert.Equal(t, 0, h.coord.Tick(ctx))
	assert.False(t, h.queued(t, "ep1"))
	assert.Len(t, h.client.Submitted(), 1)

	// Retry puts it back.
	require.NoError(t, h.db.Enqueue(ctx, "ep1", 0, true))
	h.client.Scripts["ep1"] = nil
	assert.Equal(t, 1, h.coord.Tick(ctx))
	h.coord.Wait()
	assert.Equal(t, domain.StatusReady, h.record(t, "ep1").Status)
}

func TestTick_TimesOut(t *testing.T) {
	opts := testOptions()
	opts.MaxStatusChecks = 3
	h := newHarness(t, opts)
	h.addEpisode(t, "ep1", 0)
	h.client.Scripts["ep1"] = []processing.JobStatus{{State: processing.JobPending, Backend: "cutting"}}

	h.coord.Tick(context.Background())
	h.coord.Wait()

	rec := h.record(t, "ep1")
	assert.Equal(t, domain.StatusError, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Equal(t, "Processing timed out", *rec.Error)
}

func TestTick_SubmitFailure(t *testing.T) {
	h := newHarness(t, testOptions())
	h.addEpisode(t, "ep1", 0)
	h.client.SubmitErr = errors.New("backend request failed: 502 Bad Gateway")

	h.coord.Tick(context.Background())
	h.coord.Wait()

	rec := h.record(t, "ep1")
	assert.Equal(t, domain.StatusError, rec.Status)
	assert.Equal(t, "Processing failed: backend request failed: 502 Bad Gateway", *rec.Error)
}

func TestTick_FetchFailure(t *testing.T) {
	h := newHarness(t, testOptions())
	h.addEpisode(t, "ep1", 0)
	h.client.FetchErr = processing.ErrJobNotFound

	h.coord.Tick(context.Background())
	h.coord.Wait()

	rec := h.record(t, "ep1")
	assert.Equal(t, domain.StatusError, rec.Status)
	assert.Contains(t, *rec.Error, "not found")
	assert.Nil(t, rec.ProcessedPath)
}

func TestTick_PanicInPostProcessingFailsEpisode(t *testing.T) {
	h := newHarness(t, testOptions())
	h.addEpisode(t, "ep1", 0)
	h.coord.Tag = func(string, tagging.Metadata, []byte) error { panic("boom") }

	h.coord.Tick(context.Background())
	h.coord.Wait()

	rec := h.record(t, "ep1")
	assert.Equal(t, domain.StatusError, rec.Status)
	assert.Contains(t, *rec.Error, "panic: boom")

	st, _ := h.coord.Status(context.Background())
	assert.Equal(t, 0, st.Active, "claim must be released after a panic")
}

func TestTick_TagFailureIsOnlyAWarning(t *testing.T) {
	h := newHarness(t, testOptions())
	h.addEpisode(t, "ep1", 0)
	h.coord.Tag = func(string, tagging.Metadata, []byte) error { return errors.New("bad frame") }

	h.coord.Tick(context.Background())
	h.coord.Wait()

	assert.Equal(t, domain.StatusReady, h.record(t, "ep1").Status)
}

type missingSubscriptionStore struct {
	*store.DB
}

func (missingSubscriptionStore) GetSubscription(context.Context, string) (*domain.Subscription, error) {
	return nil, store.ErrNotFound
}

func TestTick_MissingSubscriptionReleasesClaimWithoutStateChange(t *testing.T) {
	h := newHarness(t, testOptions())
	h.addEpisode(t, "ep1", 0)
	coord := New(missingSubscriptionStore{h.db}, h.client, h.audio, testOptions(), logger.Discard())

	assert.Equal(t, 1, coord.Tick(context.Background()))
	coord.Wait()

	assert.Equal(t, domain.StatusQueued, h.record(t, "ep1").Status)
	assert.True(t, h.queued(t, "ep1"))
	assert.Empty(t, h.client.Submitted())

	st, _ := coord.Status(context.Background())
	assert.Equal(t, 0, st.Active)
}

// retryDuringDequeueStore retries an episode right after the batch is read,
// the way an operator request can land between the read and the drop.
type retryDuringDequeueStore struct {
	*store.DB
	episodeID string
	done      bool
}

func (s *retryDuringDequeueStore) DequeueBatch(ctx context.Context, limit int) ([]domain.QueueEntry, error) {
	entries, err := s.DB.DequeueBatch(ctx, limit)
	if err == nil && !s.done {
		s.done = true
		if err := s.DB.Enqueue(ctx, s.episodeID, 0, true); err != nil {
			return nil, err
		}
	}
	return entries, err
}

func TestTick_ConcurrentRetryKeepsQueueRow(t *testing.T) {
	h := newHarness(t, testOptions())
	ctx := context.Background()
	h.addEpisode(t, "ep1", 0)
	require.NoError(t, h.db.SetStatus(ctx, "ep1", domain.MarkProcessing()))
	require.NoError(t, h.db.SetStatus(ctx, "ep1", domain.MarkFailed("Processing failed: boom")))

	coord := New(&retryDuringDequeueStore{DB: h.db, episodeID: "ep1"}, h.client, h.audio, testOptions(), logger.Discard())
	assert.Equal(t, 0, coord.Tick(ctx))

	assert.Equal(t, domain.StatusQueued, h.record(t, "ep1").Status)
	assert.True(t, h.queued(t, "ep1"), "retried episode must keep its queue row")

	assert.Equal(t, 1, h.coord.Tick(ctx))
	h.coord.Wait()
	assert.Equal(t, domain.StatusReady, h.record(t, "ep1").Status)
}

type failingProcessingStore struct {
	*store.DB
}

func (s failingProcessingStore) SetStatus(ctx context.Context, episodeID string, update domain.StatusUpdate) error {
	if update.Status == domain.StatusProcessing {
		return errors.New("database is locked")
	}
	return s.DB.SetStatus(ctx, episodeID, update)
}

func TestTick_MarkProcessingFailureRecordsError(t *testing.T) {
	h := newHarness(t, testOptions())
	ctx := context.Background()
	h.addEpisode(t, "ep1", 0)
	coord := New(failingProcessingStore{h.db}, h.client, h.audio, testOptions(), logger.Discard())

	assert.Equal(t, 1, coord.Tick(ctx))
	coord.Wait()

	rec := h.record(t, "ep1")
	assert.Equal(t, domain.StatusError, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Contains(t, *rec.Error, "database is locked")
	assert.Empty(t, h.client.Submitted())

	// The errored row is dropped instead of being claimed again.
	assert.Equal(t, 0, coord.Tick(ctx))
	assert.False(t, h.queued(t, "ep1"))
}

func TestTick_DurationsFallBackToFeed(t *testing.T) {
	h := newHarness(t, testOptions())
	ctx := context.Background()
	feedDuration := 2700
	require.NoError(t, h.db.UpsertEpisode(ctx, &domain.Episode{
		ID: "ep1", PodcastID: "pod", Title: "Episode", PublishDate: "2024-01-01T00:00:00Z",
		AudioURL: "https://cdn.example.com/ep1.mp3", Duration: &feedDuration,
	}))
	require.NoError(t, h.db.Enqueue(ctx, "ep1", 0, false))

	h.coord.Tick(ctx)
	h.coord.Wait()

	rec := h.record(t, "ep1")
	require.NotNil(t, rec.OriginalDuration)
	assert.Equal(t, 2700.0, *rec.OriginalDuration)
	assert.Nil(t, rec.ProcessedDuration)
	assert.Nil(t, rec.AdsRemoved)
}

func TestClearActiveJobs(t *testing.T) {
	h := newHarness(t, testOptions())
	h.addEpisode(t, "ep1", 0)
	h.client.Gate = make(chan struct{})
	ctx := context.Background()

	h.coord.Tick(ctx)
	st, _ := h.coord.Status(ctx)
	assert.Equal(t, 1, st.Active)

	h.coord.ClearActiveJobs()
	st, _ = h.coord.Status(ctx)
	assert.Equal(t, 0, st.Active)

	close(h.client.Gate)
	h.coord.Wait()
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, testOptions())
	h.addEpisode(t, "ep1", 0)
	ctx := context.Background()

	h.coord.Start(ctx)
	h.coord.Start(ctx)

	require.Eventually(t, func() bool {
		return h.record(t, "ep1").Status == domain.StatusReady
	}, 5*time.Second, 10*time.Millisecond)

	st, err := h.coord.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Running)

	h.coord.Stop()
	h.coord.Stop()
	h.coord.Wait()

	st, _ = h.coord.Status(ctx)
	assert.False(t, st.Running)

	// Stopped coordinators do not pick up new work.
	h.addEpisode(t, "ep2", 0)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, domain.StatusQueued, h.record(t, "ep2").Status)
}

func TestStart_HonoursStartDelay(t *testing.T) {
	opts := testOptions()
	opts.StartDelay = time.Hour
	h := newHarness(t, opts)
	h.addEpisode(t, "ep1", 0)

	h.coord.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	h.coord.Stop()

	assert.Empty(t, h.client.Submitted())
}

func TestStart_CancelledContextStopsCoordinator(t *testing.T) {
	h := newHarness(t, testOptions())
	ctx, cancel := context.WithCancel(context.Background())

	h.coord.Start(ctx)
	cancel()

	require.Eventually(t, func() bool {
		st, err := h.coord.Status(context.Background())
		return err == nil && !st.Running
	}, 5*time.Second, 10*time.Millisecond)

	// A fresh Start after the cancelled one picks up work again.
	h.addEpisode(t, "ep1", 0)
	h.coord.Start(context.Background())
	require.Eventually(t, func() bool {
		return h.record(t, "ep1").Status == domain.StatusReady
	}, 5*time.Second, 10*time.Millisecond)
	h.coord.Stop()
	h.coord.Wait()
}

func TestDurations(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	n := func(v int) *int { return &v }

	tests := []struct {
		name     string
		status   processing.JobStatus
		feed     *int
		original *float64
	}{
		{"both parts", processing.JobStatus{Duration: f(100), AdsRemoved: f(20)}, n(999), f(120)},
		{"feed fallback", processing.JobStatus{Duration: f(100)}, n(130), f(130)},
		{"nothing known", processing.JobStatus{}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := durations(&tt.status, &domain.Episode{Duration: tt.feed})
			assert.Equal(t, tt.original, d.Original)
			assert.Equal(t, tt.status.Duration, d.Processed)
			assert.Equal(t, tt.status.AdsRemoved, d.AdsRemoved)
		})
	}
}
