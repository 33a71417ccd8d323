package app

import (
	"context"
	"sync"
	"time"

	"github.com/cesargomez89/adfreecast/internal/logger"
)

// refreshTimeout bounds one pass over every subscription.
const refreshTimeout = 10 * time.Minute

type FeedRefresher interface {
	RefreshAll(ctx context.Context) (int, error)
}

// Refresher re-reads every subscribed feed on a fixed interval.
type Refresher struct {
	subs     FeedRefresher
	interval time.Duration
	Logger   *logger.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewRefresher(subs FeedRefresher, interval time.Duration, log *logger.Logger) *Refresher {
	return &Refresher{
		subs:     subs,
		interval: interval,
		Logger:   log.WithComponent("refresher"),
		stopChan: make(chan struct{}),
	}
}

// Start begins the refresh loop. A non-positive interval disables it.
func (r *Refresher) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.Logger.Info("Feed refresh disabled")
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.stopChan:
				return
			case <-ctx.Done():
				return
			case <-time.After(r.interval):
			}
			r.refresh(ctx)
		}
	}()
}

func (r *Refresher) refresh(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	n, err := r.subs.RefreshAll(runCtx)
	if err != nil {
		r.Logger.Error("Feed refresh finished with errors", "episodes", n, "error", err)
		return
	}
	r.Logger.Info("Feeds refreshed", "episodes", n)
}

// Stop ends the loop and waits for a running pass to finish.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
}
