package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cesargomez89/adfreecast/internal/app"
	"github.com/cesargomez89/adfreecast/internal/config"
	"github.com/cesargomez89/adfreecast/internal/domain"
	"github.com/cesargomez89/adfreecast/internal/store"
	"github.com/cesargomez89/adfreecast/internal/worker"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the processing queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueRecoverCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))

	return queueCmd
}

func (c *commandContext) withQueue(fn func(cfg *config.Config, svc *app.QueueService) error) error {
	return c.withStore(func(cfg *config.Config, db *store.DB) error {
		return fn(cfg, app.NewQueueService(db, nil, c.logger()))
	})
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue depth and the next episodes to process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(_ *config.Config, svc *app.QueueService) error {
				st, err := svc.Status(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued: %d  Processing: %d\n", st.Queue.Depth, st.Queue.Processing)
				if len(st.Queue.Items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"Priority", "Status", "Published", "Podcast", "Episode", "ID"},
					buildQueueRows(st.Queue.Items),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func buildQueueRows(items []domain.QueueEntry) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		published := item.PublishDate
		if len(published) > 10 {
			published = published[:10]
		}
		rows = append(rows, []string{
			strconv.Itoa(item.Priority),
			string(item.Status),
			published,
			truncate(item.PodcastTitle, 24),
			truncate(item.Title, 40),
			item.EpisodeID,
		})
	}
	return rows
}

func newQueueRecoverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Return episodes stuck in processing to the queue",
		Long: "Resets every processing record back to queued. Refuses to run while " +
			"a server holds the coordinator lock; use the API endpoint instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(cfg *config.Config, svc *app.QueueService) error {
				if err := worker.EnsureUnlocked(cfg.LockPath); err != nil {
					return err
				}
				n, err := svc.Recover(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d stuck episode(s)\n", n)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(_ *config.Config, svc *app.QueueService) error {
				n, err := svc.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d queue entr%s\n", n, plural(n, "y", "ies"))
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <episode-id>...",
		Short: "Remove episodes from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(func(_ *config.Config, svc *app.QueueService) error {
				ids := append([]string(nil), args...)
				sort.Strings(ids)
				for _, id := range ids {
					if err := svc.Remove(cmd.Context(), id); err != nil {
						return fmt.Errorf("remove %s: %w", id, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
				}
				return nil
			})
		},
	}
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
