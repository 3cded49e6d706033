// Package botserver exposes the channel store to the manual-review tooling
// over MCP: reviewers look up channels, list the review queue, and confirm
// or reject provisional bot labels.
package botserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_botgraph/internal/engine"
	"github.com/anatolykoptev/go_botgraph/internal/ident"
	"github.com/anatolykoptev/go_botgraph/internal/store"
)

// ConfirmLabelInput confirms or rejects a provisional label.
type ConfirmLabelInput struct {
	ChannelID string `json:"channel_id" jsonschema:"canonical channel ID (UC…)"`
	IsBot     bool   `json:"is_bot" jsonschema:"final verdict"`
	Bulk      bool   `json:"bulk,omitempty" jsonschema:"part of a bulk review session"`
}

// ConfirmLabelOutput reports the stored verdict.
type ConfirmLabelOutput struct {
	ChannelID string `json:"channel_id"`
	IsBot     bool   `json:"is_bot"`
	CheckType string `json:"check_type"`
}

// ChannelLookupInput asks for one channel record.
type ChannelLookupInput struct {
	Channel string `json:"channel" jsonschema:"canonical ID or @handle"`
}

// ChannelLookupOutput is the stored record.
type ChannelLookupOutput struct {
	Found  bool                 `json:"found"`
	Record *store.ChannelRecord `json:"record,omitempty"`
}

// PendingReviewInput filters the review queue.
type PendingReviewInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"max results, default 50"`
}

// PendingReviewOutput lists channels awaiting a human verdict.
type PendingReviewOutput struct {
	Channels []store.ChannelRecord `json:"channels"`
	Total    int                   `json:"total"`
}

// CrawlStatusInput has no parameters.
type CrawlStatusInput struct{}

// CrawlStatusOutput is a counter snapshot of the running process.
type CrawlStatusOutput struct {
	Counters map[string]int64 `json:"counters"`
}

// RegisterTools registers the review tools on the MCP server.
func RegisterTools(server *mcp.Server, channels *store.ChannelStore) {
	registerConfirmLabel(server, channels)
	registerChannelLookup(server, channels)
	registerListPendingReview(server, channels)
	registerCrawlStatus(server)
}

func registerConfirmLabel(server *mcp.Server, channels *store.ChannelStore) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "confirm_label",
		Description: "Record a human verdict on a provisionally labeled channel. Overrides the propagated label and removes the channel from the review queue.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input ConfirmLabelInput) (*mcp.CallToolResult, ConfirmLabelOutput, error) {
		if input.ChannelID == "" {
			return nil, ConfirmLabelOutput{}, fmt.Errorf("channel_id is required")
		}
		id := ident.Classify(input.ChannelID)
		if !id.IsCanonical() {
			return nil, ConfirmLabelOutput{}, fmt.Errorf("confirm requires a canonical ID, got handle %s", id.String())
		}
		if _, ok, err := channels.Get(ctx, id.Value); err != nil {
			return nil, ConfirmLabelOutput{}, err
		} else if !ok {
			return nil, ConfirmLabelOutput{}, fmt.Errorf("channel %s: %w", id.Value, engine.ErrNotFound)
		}

		checkType := store.CheckManual
		if input.Bulk {
			checkType = store.CheckManualBulk
		}
		if err := channels.ConfirmLabel(ctx, id.Value, input.IsBot, checkType); err != nil {
			return nil, ConfirmLabelOutput{}, err
		}
		return nil, ConfirmLabelOutput{
			ChannelID: id.Value,
			IsBot:     input.IsBot,
			CheckType: string(checkType),
		}, nil
	})
}

func registerChannelLookup(server *mcp.Server, channels *store.ChannelStore) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "channel_lookup",
		Description: "Fetch one stored channel record by canonical ID. Handles are not resolved here; unresolved handles live in the pending space.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input ChannelLookupInput) (*mcp.CallToolResult, ChannelLookupOutput, error) {
		if input.Channel == "" {
			return nil, ChannelLookupOutput{}, fmt.Errorf("channel is required")
		}
		id := ident.Classify(input.Channel)
		if !id.IsCanonical() {
			fields, ok, err := channels.GetPending(ctx, id.Value)
			if err != nil {
				return nil, ChannelLookupOutput{}, err
			}
			if !ok {
				return nil, ChannelLookupOutput{Found: false}, nil
			}
			// Pending docs are schemaless; surface what is known.
			rec := &store.ChannelRecord{Handle: id.Value}
			if title, ok := fields["title"].(string); ok {
				rec.Title = title
			}
			return nil, ChannelLookupOutput{Found: true, Record: rec}, nil
		}

		rec, ok, err := channels.Get(ctx, id.Value)
		if err != nil {
			return nil, ChannelLookupOutput{}, err
		}
		return nil, ChannelLookupOutput{Found: ok, Record: rec}, nil
	})
}

func registerListPendingReview(server *mcp.Server, channels *store.ChannelStore) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_pending_review",
		Description: "List channels whose bot label is provisional (pending_review) and awaiting a human verdict, oldest first.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input PendingReviewInput) (*mcp.CallToolResult, PendingReviewOutput, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 50
		}
		recs, err := channels.ListPendingReview(ctx)
		if err != nil {
			return nil, PendingReviewOutput{}, err
		}
		out := PendingReviewOutput{Total: len(recs)}
		if len(recs) > limit {
			recs = recs[:limit]
		}
		out.Channels = recs
		return nil, out, nil
	})
}

func registerCrawlStatus(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "crawl_status",
		Description: "Snapshot of the crawler's operational counters: processed, failed, discovered, scraped, API usage.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input CrawlStatusInput) (*mcp.CallToolResult, CrawlStatusOutput, error) {
		return nil, CrawlStatusOutput{Counters: engine.GetMetrics()}, nil
	})
}
