package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_botgraph/internal/engine"
	"github.com/anatolykoptev/go_botgraph/internal/manifest"
	"github.com/anatolykoptev/go_botgraph/internal/register"
	"github.com/anatolykoptev/go_botgraph/internal/store"
)

var (
	flagManifest      string
	flagConcurrency   int
	flagLikeThreshold int
)

var registerCmd = &cobra.Command{
	Use:   "register <export-dir>",
	Short: "Register commenter channels from comment-export files",
	Long: `Register reads every *.json comment export in the directory and registers
commenters whose comments cleared the like threshold as pending-review bot
candidates. Processed files are tracked in a manifest so the run can resume
after interruption.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&flagManifest, "manifest", "", "manifest path (default <export-dir>/manifest.json)")
	registerCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "registration pool size (default from CONCURRENCY)")
	registerCmd.Flags().IntVar(&flagLikeThreshold, "like-threshold", 0, "minimum comment likes to register an author (default from LIKE_THRESHOLD)")
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir := args[0]

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

	manifestPath := flagManifest
	if manifestPath == "" {
		manifestPath = filepath.Join(dir, "manifest.json")
	}
	tracker, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	likeThreshold := flagLikeThreshold
	if likeThreshold <= 0 {
		likeThreshold = engine.Cfg.LikeThreshold
	}
	concurrency := flagConcurrency
	if concurrency <= 0 {
		concurrency = engine.Cfg.Concurrency
	}

	reg := register.New(channels, blobs, col, tracker, nil, likeThreshold, concurrency)
	return reg.RunDir(ctx, dir)
}
