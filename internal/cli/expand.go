package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_botgraph/internal/engine"
	"github.com/anatolykoptev/go_botgraph/internal/graph"
	"github.com/anatolykoptev/go_botgraph/internal/ident"
	"github.com/anatolykoptev/go_botgraph/internal/store"
)

var (
	flagUseAPI    bool
	flagLabel     bool
	flagCheckType string
	flagMaxItems  int
)

var expandCmd = &cobra.Command{
	Use:   "expand [channel-id-or-handle...]",
	Short: "Breadth-first crawl from seed channels, recording evidence and edges",
	Long: `Expand crawls the channel graph breadth-first. Seeds may be canonical
channel IDs (UC...) or @handles. With no seeds, the run starts from every
confirmed bot in the store plus every handle still awaiting resolution.`,
	RunE: runExpand,
}

func init() {
	expandCmd.Flags().BoolVar(&flagUseAPI, "use-api", true, "use the YouTube Data API for metadata and handle resolution")
	expandCmd.Flags().BoolVar(&flagLabel, "label", true, "stamp newly discovered channels with a provisional bot label")
	expandCmd.Flags().StringVar(&flagCheckType, "check-type", string(store.CheckPropagated), "check type stamped on new records (propagated, pending_review)")
	expandCmd.Flags().IntVar(&flagMaxItems, "max-items", 0, "stop after processing this many channels (0 = drain the frontier)")
	rootCmd.AddCommand(expandCmd)
}

func runExpand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	checkType, err := store.ParseCheckType(flagCheckType)
	if err != nil {
		return fmt.Errorf("--check-type: %w", err)
	}

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
	col, _, cleanup, err := newCollector(blobs)
	if err != nil {
		return err
	}
	defer cleanup()

	var resolver graph.HandleResolver
	var api graph.ChannelAPI
	if flagUseAPI {
		if engine.Cfg.YouTubeAPIKey == "" {
			return fmt.Errorf("--use-api requires YOUTUBE_API_KEY (or pass --use-api=false for scrape-only mode)")
		}
		client := newAPIClient()
		resolver = ident.NewResolver(client)
		api = client
	}

	eng := graph.New(channels, col, resolver, api, graph.Options{
		UseAPI:    flagUseAPI,
		Label:     flagLabel,
		CheckType: checkType,
		MaxItems:  flagMaxItems,
		Blobs:     blobs,
	})

	var seeds []ident.ChannelIdentifier
	if len(args) > 0 {
		for _, arg := range args {
			seeds = append(seeds, ident.Classify(arg))
		}
	} else {
		seeds, err = eng.DefaultSeeds(ctx)
		if err != nil {
			return err
		}
		if len(seeds) == 0 {
			return fmt.Errorf("no seeds: store has no confirmed bots or pending handles")
		}
	}

	sum, err := eng.Run(ctx, seeds)
	if sum != nil {
		fmt.Printf("processed=%d failed=%d discovered=%d removed=%d\n",
			sum.Processed, sum.Failed, sum.Discovered, sum.Removed)
	}
	return err
}
