// Package graph implements breadth-first expansion over the channel graph.
// Starting from labeled seed channels it gathers evidence for each frontier
// item, records it with a provisional label, and enqueues every neighbor it
// discovers.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go_botgraph/internal/blob"
	"github.com/anatolykoptev/go_botgraph/internal/engine"
	"github.com/anatolykoptev/go_botgraph/internal/evidence"
	"github.com/anatolykoptev/go_botgraph/internal/ident"
	"github.com/anatolykoptev/go_botgraph/internal/store"
	"github.com/anatolykoptev/go_botgraph/internal/ytapi"
)

// itemState tracks where in its lifecycle a frontier item is, mostly for
// failure logs.
type itemState int

const (
	statePending itemState = iota
	stateResolving
	stateEvidenceGathering
	stateRecording
	stateExpanding
	stateDone
)

func (s itemState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateResolving:
		return "resolving"
	case stateEvidenceGathering:
		return "evidence_gathering"
	case stateRecording:
		return "recording"
	case stateExpanding:
		return "expanding"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// Collector gathers page evidence for one channel.
type Collector interface {
	Collect(ctx context.Context, id ident.ChannelIdentifier, apiRecord *ytapi.Channel) (*evidence.Evidence, error)
}

// HandleResolver maps handles to canonical IDs.
type HandleResolver interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
}

// ChannelAPI is the authoritative-metadata surface the engine needs.
type ChannelAPI interface {
	FetchChannel(ctx context.Context, channelID string) (*ytapi.Channel, error)
	FetchChannelSections(ctx context.Context, channelID string) ([]ytapi.Section, error)
}

// Options parameterizes a crawl run.
type Options struct {
	// UseAPI enables handle resolution and authoritative metadata. Off means
	// scrape-only mode: evidence comes purely from rendered pages and
	// handles are traversed without resolution.
	UseAPI bool

	// Label and CheckType are stamped on every record newly created during
	// this run. Existing records are never relabeled.
	Label     bool
	CheckType store.CheckType

	// MaxItems caps how many frontier items are processed. 0 means run
	// until the frontier drains.
	MaxItems int

	// Blobs, when set, receives raw channel-sections payloads for later
	// re-processing.
	Blobs blob.Store
}

// Summary is the final crawl report.
type Summary struct {
	Processed  int
	Failed     int
	Discovered int
	Removed    int
}

// Engine drives the expansion. The frontier loop is sequential: one item
// fully processed before the next is dequeued, because each item holds a
// browser tab and the memory that comes with it.
type Engine struct {
	channels  *store.ChannelStore
	collector Collector
	resolver  HandleResolver
	api       ChannelAPI
	opts      Options

	frontier *Frontier
}

// New builds an engine. resolver and api may be nil when opts.UseAPI is
// false.
func New(channels *store.ChannelStore, collector Collector, resolver HandleResolver, api ChannelAPI, opts Options) *Engine {
	if opts.CheckType == "" {
		opts.CheckType = store.CheckPropagated
	}
	return &Engine{
		channels:  channels,
		collector: collector,
		resolver:  resolver,
		api:       api,
		opts:      opts,
		frontier:  NewFrontier(),
	}
}

// DefaultSeeds returns the store-derived seed set: every confirmed bot plus
// every handle still awaiting resolution.
func (e *Engine) DefaultSeeds(ctx context.Context) ([]ident.ChannelIdentifier, error) {
	bots, err := e.channels.ListConfirmedBots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load seed bots: %w", err)
	}
	handles, err := e.channels.ListPendingHandles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending handles: %w", err)
	}
	seeds := make([]ident.ChannelIdentifier, 0, len(bots)+len(handles))
	for _, id := range bots {
		seeds = append(seeds, ident.Canonical(id))
	}
	for _, h := range handles {
		seeds = append(seeds, ident.Handle(h))
	}
	return seeds, nil
}

// Run crawls from the given seeds until the frontier drains, the item cap
// is reached, or ctx is cancelled. Per-item failures are logged and counted
// but never abort the run.
func (e *Engine) Run(ctx context.Context, seeds []ident.ChannelIdentifier) (*Summary, error) {
	sum := &Summary{}
	for _, seed := range seeds {
		e.frontier.Push(seed)
	}
	slog.Info("crawl starting",
		slog.Int("seeds", e.frontier.Len()),
		slog.Bool("use_api", e.opts.UseAPI),
		slog.String("check_type", string(e.opts.CheckType)))

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if e.opts.MaxItems > 0 && sum.Processed+sum.Failed >= e.opts.MaxItems {
			slog.Info("item cap reached", slog.Int("max_items", e.opts.MaxItems))
			break
		}
		id, ok := e.frontier.Pop()
		if !ok {
			break
		}

		skip, err := e.alreadyProcessed(ctx, id)
		if err != nil {
			slog.Error("skip check failed", slog.String("channel", id.String()), slog.Any("error", err))
			sum.Failed++
			engine.Count(engine.CountFailed)
			continue
		}
		if skip {
			continue
		}

		start := time.Now()
		if err := e.processItem(ctx, id, sum); err != nil {
			sum.Failed++
			engine.Count(engine.CountFailed)
			slog.Error("channel failed",
				slog.String("channel", id.String()),
				slog.Duration("took", time.Since(start)),
				slog.Any("error", err))
			continue
		}
		sum.Processed++
		engine.Count(engine.CountProcessed)
		slog.Info("channel processed",
			slog.String("channel", id.String()),
			slog.Duration("took", time.Since(start)),
			slog.Int("frontier", e.frontier.Len()))
	}

	slog.Info("crawl complete",
		slog.Int("processed", sum.Processed),
		slog.Int("failed", sum.Failed),
		slog.Int("discovered", sum.Discovered),
		slog.Int("removed", sum.Removed))
	return sum, nil
}

// alreadyProcessed reports whether a canonical identifier already has a
// fully processed record. Skeleton records created while expanding a
// neighbor have no check timestamp and still need their own pass.
func (e *Engine) alreadyProcessed(ctx context.Context, id ident.ChannelIdentifier) (bool, error) {
	if !id.IsCanonical() {
		return false, nil
	}
	rec, ok, err := e.channels.Get(ctx, id.Value)
	if err != nil {
		return false, err
	}
	return ok && rec.Processed(), nil
}

func (e *Engine) processItem(ctx context.Context, id ident.ChannelIdentifier, sum *Summary) error {
	state := stateResolving

	// Handle resolution. A handle that cannot be resolved is not dropped:
	// it gets a pending document and continues in scrape-only form so its
	// neighbors are still traversed.
	if !id.IsCanonical() && e.opts.UseAPI {
		canonicalID, err := e.resolver.ResolveHandle(ctx, id.Value)
		switch {
		case err == nil:
			resolved := ident.Canonical(canonicalID)
			skip, err := e.alreadyProcessed(ctx, resolved)
			if err != nil {
				return fmt.Errorf("%s: %w", state, err)
			}
			if skip {
				return nil
			}
			id = resolved
		case errors.Is(err, engine.ErrQuotaExceeded):
			return fmt.Errorf("%s: %w", state, err)
		default:
			slog.Warn("handle resolution failed, continuing scrape-only",
				slog.String("handle", id.String()),
				slog.Any("error", err))
			if serr := e.channels.UpsertPending(ctx, id.Value, map[string]any{
				"resolution_failed_at": time.Now().UTC().Format(time.RFC3339),
			}); serr != nil {
				return fmt.Errorf("%s: %w", state, serr)
			}
			engine.Count(engine.CountPending)
		}
	}

	// Authoritative metadata, canonical IDs only.
	state = stateEvidenceGathering
	var apiRecord *ytapi.Channel
	if e.opts.UseAPI && id.IsCanonical() {
		rec, err := e.api.FetchChannel(ctx, id.Value)
		switch {
		case err == nil:
			apiRecord = rec
		case errors.Is(err, engine.ErrNotFound):
			slog.Warn("no api record, page evidence only", slog.String("channel", id.Value))
		default:
			return fmt.Errorf("%s: %w", state, err)
		}
	}

	ev, err := e.collector.Collect(ctx, id, apiRecord)
	if err != nil {
		return fmt.Errorf("%s: %w", state, err)
	}

	state = stateRecording
	now := time.Now().UTC()

	// A removed channel gets a terminal minimal record and expands no
	// further.
	if ev.Removed {
		sum.Removed++
		engine.Count(engine.CountRemoved)
		if err := e.recordRemoved(ctx, id, now); err != nil {
			return fmt.Errorf("%s: %w", state, err)
		}
		slog.Info("channel removed", slog.String("channel", id.String()))
		return nil
	}

	batch := e.channels.NewBatch()
	if err := e.stageRecord(ctx, batch, id, apiRecord, ev, now); err != nil {
		return fmt.Errorf("%s: %w", state, err)
	}

	state = stateExpanding
	from := id.Value
	for _, link := range ev.AboutLinks {
		batch.AddDomainLink(store.DomainLink{
			FromChannelID:    from,
			URL:              link.URL,
			NormalizedDomain: ident.NormalizeDomain(link.URL),
			Source:           "about",
			DiscoveredAt:     now,
		})
	}

	neighbors := make([]neighborRef, 0, len(ev.Related))
	for _, n := range ev.Related {
		neighbors = append(neighbors, neighborRef{id: n, method: store.EdgeFeatured})
	}
	if e.opts.UseAPI && id.IsCanonical() && apiRecord != nil {
		neighbors = append(neighbors, e.sectionNeighbors(ctx, id.Value)...)
	}

	for _, n := range neighbors {
		// Provenance is never deduplicated: a second path to a known
		// channel still gets its edge.
		edge := store.DiscoveryEdge{FromChannelID: from, Method: n.method, DiscoveredAt: now}
		if n.id.IsCanonical() {
			edge.ToChannelID = n.id.Value
		} else {
			edge.ToHandle = n.id.Value
			edge.NeedsResolution = true
		}
		batch.AddEdge(edge)
		engine.Count(engine.CountEdges)

		if !e.frontier.Push(n.id) {
			continue
		}
		sum.Discovered++
		engine.Count(engine.CountDiscovered)
		if n.id.IsCanonical() {
			// Skeleton record carrying the propagated label. No check
			// timestamp, so the neighbor's own pass still enriches it.
			batch.CreateIfAbsent(&store.ChannelRecord{
				ChannelID:    n.id.Value,
				IsBot:        e.opts.Label,
				BotCheckType: e.opts.CheckType,
				Status:       store.StatusActive,
				DiscoveredAt: now,
			})
		}
	}

	created, err := batch.Commit(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", state, err)
	}
	for range created {
		engine.Count(engine.CountRecords)
	}
	return nil
}

// neighborRef pairs a discovered neighbor with how it was discovered.
type neighborRef struct {
	id     ident.ChannelIdentifier
	method store.EdgeMethod
}

// sectionNeighbors extracts neighbor channels from the API's shelf listing:
// featured-channel shelves and public subscriptions. Shelf fetch failures
// degrade the item to page evidence only.
func (e *Engine) sectionNeighbors(ctx context.Context, channelID string) []neighborRef {
	sections, err := e.api.FetchChannelSections(ctx, channelID)
	if err != nil {
		slog.Warn("channel sections unavailable",
			slog.String("channel", channelID), slog.Any("error", err))
		return nil
	}
	if e.opts.Blobs != nil && len(sections) > 0 {
		if err := e.opts.Blobs.PutJSON(blob.RawSectionsKey(channelID), sections); err != nil {
			slog.Warn("archive sections failed",
				slog.String("channel", channelID), slog.Any("error", err))
		}
	}
	var out []neighborRef
	for _, sec := range sections {
		var method store.EdgeMethod
		switch sec.Snippet.Type {
		case "multipleChannels":
			method = store.EdgeFeatured
		case "subscriptions":
			method = store.EdgeSubscription
		default:
			continue
		}
		for _, cid := range sec.ContentDetails.Channels {
			out = append(out, neighborRef{id: ident.Canonical(cid), method: method})
		}
	}
	return out
}

// stageRecord queues the item's own record writes. A canonical identifier
// gets a full record (or label-preserving enrichment of an existing
// skeleton); an unresolved handle gets its pending document updated.
func (e *Engine) stageRecord(ctx context.Context, batch *store.ChannelBatch, id ident.ChannelIdentifier, apiRecord *ytapi.Channel, ev *evidence.Evidence, now time.Time) error {
	missing := (e.opts.UseAPI && apiRecord == nil) || len(ev.PartialFailures) > 0

	if !id.IsCanonical() {
		batch.UpsertPending(id.Value, map[string]any{
			"title":                   ev.Title,
			"about_links_count":       len(ev.AboutLinks),
			"featured_channels_count": len(ev.Related),
			"screenshot_ref":          ev.ScreenshotRef,
			"last_checked_at":         now.Format(time.RFC3339),
		})
		engine.Count(engine.CountPending)
		return nil
	}

	// A failed read must fail the item: merging blind could mint a record
	// that carries no label and still counts as processed.
	_, exists, err := e.channels.Get(ctx, id.Value)
	if err != nil {
		return fmt.Errorf("check record %s: %w", id.Value, err)
	}
	if exists {
		// An existing record (typically a skeleton from a previous item) is
		// enriched in place. Label fields are deliberately absent from the
		// merge so a confirmed label can never be downgraded.
		fields := map[string]any{
			"channel_status":          string(store.StatusActive),
			"about_links_count":       len(ev.AboutLinks),
			"featured_channels_count": len(ev.Related),
			"is_metadata_missing":     missing,
			"last_checked_at":         now.Format(time.RFC3339),
		}
		for k, v := range map[string]string{
			"handle":         handleOf(apiRecord),
			"title":          ev.Title,
			"avatar_url":     ev.AvatarURL,
			"avatar_ref":     ev.AvatarRef,
			"banner_url":     ev.BannerURL,
			"banner_ref":     ev.BannerRef,
			"screenshot_ref": ev.ScreenshotRef,
		} {
			if v != "" {
				fields[k] = v
			}
		}
		batch.Merge(id.Value, fields)
		return nil
	}

	batch.CreateIfAbsent(&store.ChannelRecord{
		ChannelID:         id.Value,
		Handle:            handleOf(apiRecord),
		Title:             ev.Title,
		IsBot:             e.opts.Label,
		BotCheckType:      e.opts.CheckType,
		Status:            store.StatusActive,
		AvatarURL:         ev.AvatarURL,
		AvatarRef:         ev.AvatarRef,
		BannerURL:         ev.BannerURL,
		BannerRef:         ev.BannerRef,
		ScreenshotRef:     ev.ScreenshotRef,
		AboutLinksCount:   len(ev.AboutLinks),
		FeaturedCount:     len(ev.Related),
		IsMetadataMissing: missing,
		DiscoveredAt:      now,
		LastCheckedAt:     now,
	})
	return nil
}

func (e *Engine) recordRemoved(ctx context.Context, id ident.ChannelIdentifier, now time.Time) error {
	if !id.IsCanonical() {
		return e.channels.UpsertPending(ctx, id.Value, map[string]any{
			"channel_status":  string(store.StatusRemoved),
			"last_checked_at": now.Format(time.RFC3339),
		})
	}
	created, err := e.channels.CreateIfAbsent(ctx, &store.ChannelRecord{
		ChannelID:     id.Value,
		IsBot:         e.opts.Label,
		BotCheckType:  e.opts.CheckType,
		Status:        store.StatusRemoved,
		DiscoveredAt:  now,
		LastCheckedAt: now,
	})
	if err != nil {
		return err
	}
	if !created {
		return e.channels.Merge(ctx, id.Value, map[string]any{
			"channel_status":  string(store.StatusRemoved),
			"last_checked_at": now.Format(time.RFC3339),
		})
	}
	engine.Count(engine.CountRecords)
	return nil
}

func handleOf(apiRecord *ytapi.Channel) string {
	if apiRecord == nil {
		return ""
	}
	h := apiRecord.Snippet.CustomURL
	if len(h) > 0 && h[0] == '@' {
		h = h[1:]
	}
	return h
}
