// Package cli wires the crawler's commands: graph expansion, commenter
// registration, screenshot backfill, pending-handle resolution and the
// review MCP server.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_botgraph/internal/blob"
	"github.com/anatolykoptev/go_botgraph/internal/browser"
	"github.com/anatolykoptev/go_botgraph/internal/engine"
	"github.com/anatolykoptev/go_botgraph/internal/evidence"
	"github.com/anatolykoptev/go_botgraph/internal/scrape"
	"github.com/anatolykoptev/go_botgraph/internal/store"
	"github.com/anatolykoptev/go_botgraph/internal/ytapi"
)

// Version is stamped by the build; surfaced by --version and the MCP
// server implementation info.
var Version = "dev"

var (
	flagDataDir string
	flagDB      string
)

var rootCmd = &cobra.Command{
	Use:   "botgraph",
	Short: "Bot-channel graph crawler and labeling pipeline",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagDataDir != "" {
			engine.Cfg.DataDir = flagDataDir
		}
		if flagDB != "" {
			engine.Cfg.DBPath = flagDB
		}
	},
}

// Execute runs the CLI.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "root directory for blobs and the default database (overrides DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "sqlite database path (overrides BOTGRAPH_DB)")
}

// openDocs opens the configured document store: postgres when DATABASE_URL
// is set, sqlite otherwise.
func openDocs(ctx context.Context) (store.DocumentStore, error) {
	if engine.Cfg.DatabaseURL != "" {
		return store.ConnectPostgres(ctx, engine.Cfg.DatabaseURL)
	}
	path := engine.Cfg.DBPath
	if path == "" {
		path = filepath.Join(engine.Cfg.DataDir, "botgraph.db")
	}
	return store.OpenSQLite(path)
}

func openBlobs() (blob.Store, error) {
	return blob.NewFSStore(engine.Cfg.DataDir)
}

// newCollector assembles the browser-backed evidence pipeline. The caller
// must invoke the returned cleanup.
func newCollector(blobs blob.Store) (*evidence.Collector, *scrape.Scraper, func(), error) {
	session, err := browser.NewSession(browser.Options{
		ChromePath: engine.Cfg.ChromePath,
		Headless:   engine.Cfg.Headless,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("start browser: %w", err)
	}
	scraper := scrape.New(session)
	col := evidence.NewCollector(scraper, blobs, engine.Cfg.BrowserClient)
	return col, scraper, session.Close, nil
}

func newAPIClient() *ytapi.Client {
	return ytapi.NewClient(
		engine.Cfg.YouTubeAPIKey,
		engine.Cfg.YouTubeAPIKeyFallback,
		engine.Cfg.APIQPS,
		engine.Cfg.HTTPClient,
	)
}
