package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/adfreecast/internal/app"
	"github.com/cesargomez89/adfreecast/internal/config"
	"github.com/cesargomez89/adfreecast/internal/feed"
	"github.com/cesargomez89/adfreecast/internal/storage"
	"github.com/cesargomez89/adfreecast/internal/store"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var priority int
	var retry bool

	cmd := &cobra.Command{
		Use:   "enqueue <episode-id>",
		Short: "Queue one episode for ad removal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(_ *config.Config, svc *app.QueueService) error {
				if err := svc.Enqueue(cmd.Context(), args[0], priority, retry); err != nil {
					return err
				}
				rec, err := svc.Processing(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], rec.Status)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Queue priority, higher runs first")
	cmd.Flags().BoolVar(&retry, "retry", false, "Reset a failed episode before queueing")
	return cmd
}

func newEnqueuePodcastCommand(ctx *commandContext) *cobra.Command {
	var priority int

	cmd := &cobra.Command{
		Use:   "enqueue-podcast <podcast-id>",
		Short: "Queue every unprocessed episode of a podcast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(_ *config.Config, svc *app.QueueService) error {
				n, err := svc.EnqueuePodcast(cmd.Context(), args[0], priority)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d episode(s)\n", n)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&priority, "priority", "p", 0, "Queue priority, higher runs first")
	return cmd
}

func (c *commandContext) withSubscriptions(fn func(svc *app.SubscriptionService) error) error {
	return c.withStore(func(cfg *config.Config, db *store.DB) error {
		audio, err := storage.New(cfg.AudioDir)
		if err != nil {
			return err
		}
		return fn(app.NewSubscriptionService(db, feed.NewIngester(nil), audio, c.logger()))
	})
}

func newSubscribeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <feed-url>",
		Short: "Subscribe to a podcast feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSubscriptions(func(svc *app.SubscriptionService) error {
				sub, n, err := svc.Subscribe(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Subscribed to %s (%s), %d episode(s)\n", sub.Title, sub.ID, n)
				return nil
			})
		},
	}
}

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [podcast-id]",
		Short: "Re-read one subscription or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSubscriptions(func(svc *app.SubscriptionService) error {
				if len(args) == 1 {
					n, err := svc.Refresh(cmd.Context(), args[0])
					if err != nil {
						if errors.Is(err, store.ErrNotFound) {
							return fmt.Errorf("no subscription %s", args[0])
						}
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d episode(s)\n", args[0], n)
					return nil
				}

				n, err := svc.RefreshAll(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Refreshed, %d episode(s) listed\n", n)
				return err
			})
		},
	}
}

func newNormalizeDatesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize-dates",
		Short: "Rewrite stored publish dates into RFC 3339 UTC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, db *store.DB) error {
				n, err := db.NormalizePublishDates(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Normalized %d publish %s\n", n, plural(int64(n), "date", "dates"))
				return nil
			})
		},
	}
}
