package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_botgraph/internal/engine"
	"github.com/anatolykoptev/go_botgraph/internal/ident"
	"github.com/anatolykoptev/go_botgraph/internal/store"
	"github.com/anatolykoptev/go_botgraph/internal/ytapi"
)

var (
	rpLabel     bool
	rpCheckType string
)

var resolvePendingCmd = &cobra.Command{
	Use:   "resolve-pending",
	Short: "Resolve queued handles to canonical channel IDs via the Data API",
	Long: `Resolve-pending walks the pending-handle queue and resolves each handle
to its canonical UC channel ID. Resolved handles get a channel record and
leave the queue; handles that still fail resolution stay queued for the
next run.`,
	RunE: runResolvePending,
}

func init() {
	resolvePendingCmd.Flags().BoolVar(&rpLabel, "label", true, "stamp resolved channels with a provisional bot label")
	resolvePendingCmd.Flags().StringVar(&rpCheckType, "check-type", string(store.CheckPropagated), "check type stamped on resolved records")
	rootCmd.AddCommand(resolvePendingCmd)
}

func runResolvePending(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	checkType, err := store.ParseCheckType(rpCheckType)
	if err != nil {
		return fmt.Errorf("--check-type: %w", err)
	}

	docs, err := openDocs(ctx)
	if err != nil {
		return err
	}
	defer docs.Close()
	channels := store.NewChannelStore(docs)

	client := newAPIClient()
	resolver := ident.NewResolver(client)

	handles, err := channels.ListPendingHandles(ctx)
	if err != nil {
		return err
	}
	slog.Info("resolving pending handles", slog.Int("handles", len(handles)))

	var resolved, stillPending int
	var newIDs []string
	for _, handle := range handles {
		if err := ctx.Err(); err != nil {
			return err
		}
		channelID, err := resolver.ResolveHandle(ctx, handle)
		if err != nil {
			if errors.Is(err, engine.ErrQuotaExceeded) {
				slog.Warn("quota exhausted, stopping", slog.Int("resolved", resolved))
				return err
			}
			slog.Warn("handle still unresolved", slog.String("handle", handle), slog.Any("error", err))
			stillPending++
			continue
		}

		pending, _, err := channels.GetPending(ctx, handle)
		if err != nil {
			return err
		}
		rec := &store.ChannelRecord{
			ChannelID:    channelID,
			Handle:       handle,
			IsBot:        rpLabel,
			BotCheckType: checkType,
			Status:       store.StatusActive,
			DiscoveredAt: time.Now().UTC(),
		}
		if title, ok := pending["title"].(string); ok {
			rec.Title = title
		}
		created, err := channels.CreateIfAbsent(ctx, rec)
		if err != nil {
			return err
		}
		if created {
			newIDs = append(newIDs, channelID)
		} else {
			// Record already crawled under its canonical ID; just attach
			// the handle.
			if err := channels.Merge(ctx, channelID, map[string]any{"handle": handle}); err != nil {
				return err
			}
		}
		if err := channels.DeletePending(ctx, handle); err != nil {
			return err
		}
		resolved++
	}

	if len(newIDs) > 0 {
		if err := enrichResolved(ctx, channels, client, newIDs); err != nil {
			slog.Warn("metadata enrichment incomplete", slog.Any("error", err))
		}
	}

	fmt.Printf("resolved=%d still_pending=%d\n", resolved, stillPending)
	return nil
}

// enrichResolved backfills API metadata onto records created from bare
// handles, in one batched fetch.
func enrichResolved(ctx context.Context, channels *store.ChannelStore, client *ytapi.Client, ids []string) error {
	fetched, err := client.FetchChannelsByID(ctx, ids)
	if err != nil {
		return err
	}
	for _, ch := range fetched {
		fields := map[string]any{}
		if ch.Snippet.Title != "" {
			fields["title"] = ch.Snippet.Title
		}
		if url := ch.BestThumbnail(); url != "" {
			fields["avatar_url"] = url
		}
		if len(fields) == 0 {
			continue
		}
		if err := channels.Merge(ctx, ch.ID, fields); err != nil {
			return err
		}
	}
	return nil
}
