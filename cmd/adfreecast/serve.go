package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/adfreecast/internal/app"
	"github.com/cesargomez89/adfreecast/internal/feed"
	httpapp "github.com/cesargomez89/adfreecast/internal/http"
	"github.com/cesargomez89/adfreecast/internal/httpclient"
	"github.com/cesargomez89/adfreecast/internal/logger"
	"github.com/cesargomez89/adfreecast/internal/processing"
	"github.com/cesargomez89/adfreecast/internal/storage"
	"github.com/cesargomez89/adfreecast/internal/store"
	"github.com/cesargomez89/adfreecast/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the processing coordinator and the feed refresher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			log := logger.New(logger.Config{Output: os.Stdout, Level: cfg.LogLevel, Format: cfg.LogFormat})
			if cfg.Source != "" {
				log.Info("Loaded configuration", "path", cfg.Source)
			}

			lock, err := worker.AcquireLock(cfg.LockPath)
			if err != nil {
				return err
			}
			defer lock.Release()

			db, err := store.NewSQLiteDB(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			audio, err := storage.New(cfg.AudioDir)
			if err != nil {
				return fmt.Errorf("prepare audio dir: %w", err)
			}

			processor := processing.NewHTTPClient(cfg.ProcessorURL, httpclient.NewClient(nil, cfg.ProcessorRPS))

			coord := worker.New(db, processor, audio, worker.OptionsFromConfig(cfg), log)
			coord.Artwork = app.NewArtworkService(db, nil, log)

			queue := app.NewQueueService(db, coord, log)
			subs := app.NewSubscriptionService(db, feed.NewIngester(nil), audio, log)
			settings := store.NewSettingsRepo(db)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if cfg.RecoverOnStart {
				if _, err := queue.Recover(runCtx); err != nil {
					return err
				}
			}
			if n, err := db.PurgeExpiredCache(runCtx); err != nil {
				log.Warn("Failed to purge expired cache", "error", err)
			} else if n > 0 {
				log.Info("Purged expired cache entries", "count", n)
			}

			h := httpapp.NewHandler(queue, subs, settings, db, feed.NewPublisher(cfg.BaseURL, settings), audio, processor, log)
			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           httpapp.NewRouter(h),
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return runCtx },
			}

			refresher := app.NewRefresher(subs, cfg.FeedRefreshInterval, log)
			coord.Start(runCtx)
			refresher.Start(runCtx)

			serveErr := make(chan error, 1)
			go func() {
				log.Info("Server listening", "addr", srv.Addr, "base_url", cfg.BaseURL)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			var runErr error
			select {
			case <-runCtx.Done():
				log.Info("Shutting down")
			case runErr = <-serveErr:
				log.Error("Server error", "error", runErr)
			}

			coord.Stop()
			refresher.Stop()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("Server forced to shutdown", "error", err)
			}

			log.Info("Waiting for in-flight episodes")
			coord.Wait()
			log.Info("Server exiting")
			return runErr
		},
	}
}
