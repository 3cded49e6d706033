package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_botgraph/internal/blob"
	"github.com/anatolykoptev/go_botgraph/internal/engine"
	"github.com/anatolykoptev/go_botgraph/internal/ident"
	"github.com/anatolykoptev/go_botgraph/internal/scrape"
	"github.com/anatolykoptev/go_botgraph/internal/store"
)

var ssConcurrency int

var screenshotsCmd = &cobra.Command{
	Use:   "screenshots",
	Short: "Backfill full-page screenshots for channels missing one",
	Long: `Screenshots finds active channel records without a screenshot, captures a
full-page screenshot for each, and stores the blob reference on the record.
Channels that turn out removed are marked removed instead.`,
	RunE: runScreenshots,
}

func init() {
	screenshotsCmd.Flags().IntVar(&ssConcurrency, "concurrency", 0, "capture pool size (default from CONCURRENCY)")
	rootCmd.AddCommand(screenshotsCmd)
}

func runScreenshots(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	docs, err := openDocs(ctx)
	if err != nil {
		return err
	}
	defer docs.Close()
	channels := store.NewChannelStore(docs)

	blobs, err := openBlobs()
	if err != nil {
		return err
	}
	_, scraper, cleanup, err := newCollector(blobs)
	if err != nil {
		return err
	}
	defer cleanup()

	ids, err := channels.ListMissingScreenshots(ctx)
	if err != nil {
		return err
	}

	concurrency := ssConcurrency
	if concurrency <= 0 {
		concurrency = engine.Cfg.Concurrency
	}
	slog.Info("screenshot backfill starting",
		slog.Int("channels", len(ids)),
		slog.Int("concurrency", concurrency))

	var captured, removed, failed atomic.Int64
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, channelID := range ids {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			switch err := captureScreenshot(ctx, channels, blobs, scraper, channelID); {
			case err == nil:
				captured.Add(1)
			case errors.Is(err, engine.ErrChannelRemoved):
				removed.Add(1)
			default:
				slog.Warn("screenshot failed", slog.String("channel", channelID), slog.Any("error", err))
				failed.Add(1)
			}
		}()
	}
	wg.Wait()

	fmt.Printf("captured=%d removed=%d failed=%d\n", captured.Load(), removed.Load(), failed.Load())
	return ctx.Err()
}

func captureScreenshot(ctx context.Context, channels *store.ChannelStore, blobs blob.Store, scraper *scrape.Scraper, channelID string) error {
	id := ident.Canonical(channelID)

	state, _, err := scraper.CheckHome(ctx, id)
	if err != nil {
		return err
	}
	if state == scrape.HomeRemoved {
		if err := channels.Merge(ctx, channelID, map[string]any{"channel_status": string(store.StatusRemoved)}); err != nil {
			return err
		}
		return engine.ErrChannelRemoved
	}

	shot, err := scraper.Screenshot(ctx, id)
	if err != nil {
		return err
	}
	key := blob.ScreenshotKey(channelID)
	if err := blobs.Put(key, shot); err != nil {
		return err
	}
	return channels.Merge(ctx, channelID, map[string]any{"screenshot_ref": key})
}
