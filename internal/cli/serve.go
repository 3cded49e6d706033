package cli

import (
	"time"

	"github.com/anatolykoptev/go-kit/env"
	mcpserver "github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_botgraph/internal/botserver"
	"github.com/anatolykoptev/go_botgraph/internal/engine"
	"github.com/anatolykoptev/go_botgraph/internal/store"
)

var flagPort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the label-review MCP server",
	Long: `Serve exposes the review surface over MCP: confirm or reject provisional
labels, look up channel records, list the pending-review queue, and read
crawl counters.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagPort, "port", env.Str("MCP_PORT", "8892"), "HTTP port for the MCP server")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	docs, err := openDocs(ctx)
	if err != nil {
		return err
	}
	defer docs.Close()
	channels := store.NewChannelStore(docs)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "botgraph",
		Version: Version,
	}, nil)
	botserver.RegisterTools(server, channels)

	return mcpserver.Run(server, mcpserver.Config{
		Name:         "botgraph",
		Version:      Version,
		Port:         flagPort,
		WriteTimeout: 120 * time.Second,
		Metrics:      engine.FormatMetrics,
	})
}
