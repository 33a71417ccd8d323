package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cesargomez89/adfreecast/internal/config"
	"github.com/cesargomez89/adfreecast/internal/constants"
	"github.com/cesargomez89/adfreecast/internal/domain"
	"github.com/cesargomez89/adfreecast/internal/logger"
	"github.com/cesargomez89/adfreecast/internal/processing"
	"github.com/cesargomez89/adfreecast/internal/tagging"
)

var errTimedOut = errors.New(constants.MsgProcessingTimedOut)

// Store is the persistence the coordinator works against.
type Store interface {
	DequeueBatch(ctx context.Context, limit int) ([]domain.QueueEntry, error)
	RemoveFromQueue(ctx context.Context, episodeID string) error
	DropErroredFromQueue(ctx context.Context, episodeID string) (bool, error)
	GetEpisode(ctx context.Context, id string) (*domain.Episode, error)
	GetSubscription(ctx context.Context, id string) (*domain.Subscription, error)
	SetStatus(ctx context.Context, episodeID string, update domain.StatusUpdate) error
	QueueStatusSummary(ctx context.Context) (*domain.QueueSummary, error)
}

// AudioStore persists processed audio and returns the final path.
type AudioStore interface {
	Save(episodeID, contentType string, r io.Reader) (string, error)
}

type ArtworkFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type TagFunc func(path string, md tagging.Metadata, art []byte) error

type Options struct {
	MaxConcurrent   int
	PollInterval    time.Duration
	StatusInterval  time.Duration
	MaxStatusChecks int
	StartDelay      time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxConcurrent:   constants.DefaultConcurrency,
		PollInterval:    constants.DefaultPollInterval,
		StatusInterval:  constants.DefaultStatusInterval,
		MaxStatusChecks: int(constants.DefaultProcessingTimeout / constants.DefaultStatusInterval),
		StartDelay:      constants.DefaultStartDelay,
	}
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxConcurrent:   cfg.MaxConcurrent,
		PollInterval:    cfg.PollInterval,
		StatusInterval:  cfg.StatusInterval,
		MaxStatusChecks: cfg.MaxStatusChecks(),
		StartDelay:      cfg.StartDelay,
	}
}

// Status is a point-in-time view of the coordinator.
type Status struct {
	Running       bool                 `json:"running"`
	Active        int                  `json:"active"`
	MaxConcurrent int                  `json:"max_concurrent"`
	ActiveJobs    map[string]string    `json:"active_jobs"`
	Queue         *domain.QueueSummary `json:"queue"`
}

// Coordinator pulls episodes off the queue and drives each one through the
// processing backend. The database is the source of truth; the active map
// only tracks what this process has claimed.
type Coordinator struct {
	store  Store
	client processing.Client
	audio  AudioStore
	opts   Options
	Logger *logger.Logger

	Artwork ArtworkFetcher
	Tag     TagFunc

	mu       sync.Mutex
	active   map[string]string // episode id -> backend job id, "" while submitting
	running  bool
	cancel   context.CancelFunc
	loopDone chan struct{}

	wg sync.WaitGroup
}

func New(store Store, client processing.Client, audio AudioStore, opts Options, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.Default()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = constants.DefaultConcurrency
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = constants.DefaultPollInterval
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = constants.DefaultStatusInterval
	}
	if opts.MaxStatusChecks <= 0 {
		opts.MaxStatusChecks = 1
	}

	return &Coordinator{
		store:  store,
		client: client,
		audio:  audio,
		opts:   opts,
		Logger: log.WithComponent("coordinator"),
		Tag:    tagging.TagFile,
		active: make(map[string]string),
	}
}

// Start launches the polling loop after the configured start delay.
// Calling Start on a running coordinator does nothing.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.running = true
	c.cancel = cancel
	c.loopDone = done
	c.mu.Unlock()

	c.Logger.Info("Starting coordinator",
		"max_concurrent", c.opts.MaxConcurrent,
		"poll_interval", c.opts.PollInterval,
		"start_delay", c.opts.StartDelay,
	)
	go c.loop(loopCtx, done)
}

// Stop halts polling. In-flight dispatches keep running; use Wait for them.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel, done := c.cancel, c.loopDone
	c.cancel, c.loopDone = nil, nil
	c.mu.Unlock()

	c.Logger.Info("Stopping coordinator")
	cancel()
	<-done
}

// Wait blocks until every dispatched episode has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// ClearActiveJobs forgets every claim. Used by crash recovery together with
// resetting stuck processing records.
func (c *Coordinator) ClearActiveJobs() {
	c.mu.Lock()
	n := len(c.active)
	c.active = make(map[string]string)
	c.mu.Unlock()
	c.Logger.Info("Cleared active jobs", "count", n)
}

func (c *Coordinator) Status(ctx context.Context) (*Status, error) {
	c.mu.Lock()
	st := &Status{
		Running:       c.running,
		Active:        len(c.active),
		MaxConcurrent: c.opts.MaxConcurrent,
		ActiveJobs:    make(map[string]string, len(c.active)),
	}
	for id, job := range c.active {
		st.ActiveJobs[id] = job
	}
	c.mu.Unlock()

	summary, err := c.store.QueueStatusSummary(ctx)
	if err != nil {
		return nil, err
	}
	st.Queue = summary
	return st, nil
}

func (c *Coordinator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.loopDone == done {
			c.cancel()
			c.running = false
			c.cancel, c.loopDone = nil, nil
		}
	}()

	if !sleep(ctx, c.opts.StartDelay) {
		return
	}
	for {
		c.Tick(ctx)
		if !sleep(ctx, c.opts.PollInterval) {
			return
		}
	}
}

// Tick claims as many queued episodes as there are free slots and dispatches
// each one on its own goroutine. Returns the number dispatched.
func (c *Coordinator) Tick(ctx context.Context) (dispatched int) {
	defer func() {
		if r := recover(); r != nil {
			c.Logger.Error("Panic in coordinator tick", "panic", r)
		}
	}()

	c.mu.Lock()
	available := c.opts.MaxConcurrent - len(c.active)
	c.mu.Unlock()
	if available <= 0 {
		c.Logger.Debug("All slots busy", "max_concurrent", c.opts.MaxConcurrent)
		return 0
	}

	entries, err := c.store.DequeueBatch(ctx, available)
	if err != nil {
		c.Logger.Error("Failed to dequeue", "error", err)
		return 0
	}

	for _, entry := range entries {
		if entry.Status == domain.StatusError {
			// Failed episodes leave the queue; a retry enqueue puts them back.
			// The delete re-checks the status so a concurrent retry keeps its row.
			dropped, err := c.store.DropErroredFromQueue(ctx, entry.EpisodeID)
			if err != nil {
				c.Logger.Error("Failed to drop errored episode", "episode_id", entry.EpisodeID, "error", err)
			} else if dropped {
				c.Logger.Warn("Dropped errored episode from queue", "episode_id", entry.EpisodeID)
			}
			continue
		}
		if !c.claim(entry.EpisodeID) {
			continue
		}

		dispatched++
		go c.dispatch(context.WithoutCancel(ctx), entry)
	}
	return dispatched
}

// claim reserves a slot for episodeID. It fails when the episode is already
// active or every slot is taken.
func (c *Coordinator) claim(episodeID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[episodeID]; ok {
		return false
	}
	if len(c.active) >= c.opts.MaxConcurrent {
		return false
	}
	c.active[episodeID] = ""
	c.wg.Add(1)
	return true
}

func (c *Coordinator) setJob(episodeID, jobID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[episodeID]; ok {
		c.active[episodeID] = jobID
	}
}

func (c *Coordinator) release(episodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, episodeID)
}

// sleep waits for d or until ctx ends. Returns false when ctx ended.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func failureMessage(err error) string {
	if errors.Is(err, errTimedOut) {
		return constants.MsgProcessingTimedOut
	}
	return fmt.Sprintf("%s: %v", constants.MsgProcessingFailed, err)
}
