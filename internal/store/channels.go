package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Collection names. channel holds resolved canonical records, channel_pending
// holds unresolved handles, channel_links and channel_domains are append-only
// provenance logs.
const (
	CollectionChannels = "channel"
	CollectionPending  = "channel_pending"
	CollectionEdges    = "channel_links"
	CollectionDomains  = "channel_domains"
)

// CheckType records how a channel's bot label was assigned.
type CheckType string

const (
	CheckPropagated    CheckType = "propagated"
	CheckPendingReview CheckType = "pending_review"
	CheckManual        CheckType = "manual"
	CheckManualBulk    CheckType = "manual_bulk"
)

// ParseCheckType validates a user-supplied check type. Anything outside the
// known set is rejected so flag typos never become new enum values on disk.
func ParseCheckType(s string) (CheckType, error) {
	switch ct := CheckType(s); ct {
	case CheckPropagated, CheckPendingReview, CheckManual, CheckManualBulk:
		return ct, nil
	default:
		return "", fmt.Errorf("unknown check type %q (want %s, %s, %s or %s)",
			s, CheckPropagated, CheckPendingReview, CheckManual, CheckManualBulk)
	}
}

// ChannelStatus marks whether the channel page still exists on the platform.
type ChannelStatus string

const (
	StatusActive  ChannelStatus = "active"
	StatusRemoved ChannelStatus = "removed"
)

// ChannelRecord is the persisted unit of work, keyed by canonical channel ID.
// Unresolved handles never get one of these; they live in the pending
// collection until resolution.
type ChannelRecord struct {
	ChannelID string `json:"channel_id"`
	Handle    string `json:"handle,omitempty"`
	Title     string `json:"title,omitempty"`

	IsBot        bool      `json:"is_bot"`
	IsBotChecked bool      `json:"is_bot_checked"`
	BotCheckType CheckType `json:"is_bot_check_type,omitempty"`

	Status ChannelStatus `json:"channel_status,omitempty"`

	AvatarURL     string `json:"avatar_url,omitempty"`
	AvatarRef     string `json:"avatar_ref,omitempty"`
	BannerURL     string `json:"banner_url,omitempty"`
	BannerRef     string `json:"banner_ref,omitempty"`
	ScreenshotRef string `json:"screenshot_ref,omitempty"`

	Metrics map[string]float64 `json:"avatar_metrics,omitempty"`

	AboutLinksCount int `json:"about_links_count,omitempty"`
	FeaturedCount   int `json:"featured_channels_count,omitempty"`

	IsMetadataMissing bool `json:"is_metadata_missing"`

	DiscoveredAt  time.Time `json:"discovered_at"`
	LastCheckedAt time.Time `json:"last_checked_at,omitzero"`
}

// Processed reports whether the record went through a full crawl pass, as
// opposed to a skeleton created while expanding a neighbor. Skeletons carry a
// discovery timestamp but no check timestamp.
func (r *ChannelRecord) Processed() bool { return !r.LastCheckedAt.IsZero() }

// EdgeMethod is the discovery path that produced an edge.
type EdgeMethod string

const (
	EdgeComment      EdgeMethod = "comment"
	EdgeFeatured     EdgeMethod = "featured"
	EdgeSubscription EdgeMethod = "subscription"
	EdgeSearch       EdgeMethod = "search"
	EdgeManual       EdgeMethod = "manual"
)

// DiscoveryEdge records provenance: which channel led the crawl to which
// other channel, and how. Audit-only; the crawl never reads these back.
type DiscoveryEdge struct {
	FromChannelID   string     `json:"from_channel_id"`
	ToChannelID     string     `json:"to_channel_id,omitempty"`
	ToHandle        string     `json:"to_channel_handle,omitempty"`
	Method          EdgeMethod `json:"source"`
	NeedsResolution bool       `json:"needs_resolution,omitempty"`
	DiscoveredAt    time.Time  `json:"discovered_at"`
}

// DomainLink records one outbound About-section URL.
type DomainLink struct {
	FromChannelID    string    `json:"from_channel_id"`
	URL              string    `json:"url"`
	NormalizedDomain string    `json:"normalized_domain,omitempty"`
	Source           string    `json:"source"`
	DiscoveredAt     time.Time `json:"discovered_at"`
}

// ChannelStore is the typed channel layer over the document store.
type ChannelStore struct {
	docs DocumentStore
}

// NewChannelStore wraps a document store.
func NewChannelStore(docs DocumentStore) *ChannelStore {
	return &ChannelStore{docs: docs}
}

// Docs exposes the underlying document store for batch construction.
func (s *ChannelStore) Docs() DocumentStore { return s.docs }

// Exists reports whether a canonical record exists.
func (s *ChannelStore) Exists(ctx context.Context, channelID string) (bool, error) {
	_, ok, err := s.docs.Get(ctx, CollectionChannels, channelID)
	return ok, err
}

// Get returns the decoded record. Legacy or partial documents decode with
// defaults: unknown fields are ignored and missing fields stay zero.
func (s *ChannelStore) Get(ctx context.Context, channelID string) (*ChannelRecord, bool, error) {
	fields, ok, err := s.docs.Get(ctx, CollectionChannels, channelID)
	if err != nil || !ok {
		return nil, ok, err
	}
	rec := decodeRecord(channelID, fields)
	return rec, true, nil
}

func decodeRecord(channelID string, fields map[string]any) *ChannelRecord {
	rec := &ChannelRecord{ChannelID: channelID}
	raw, err := json.Marshal(fields)
	if err != nil {
		return rec
	}
	// Ignore decode errors field-by-field semantics: a type mismatch on one
	// legacy field must not hide the rest of the document.
	_ = json.Unmarshal(raw, rec)
	if rec.ChannelID == "" {
		rec.ChannelID = channelID
	}
	return rec
}

func encodeRecord(rec *ChannelRecord) map[string]any {
	raw, _ := json.Marshal(rec)
	var fields map[string]any
	_ = json.Unmarshal(raw, &fields)
	return fields
}

// CreateIfAbsent writes the record only when no record exists for its ID.
// This is the sole duplicate-processing guard: a second discovery path
// reaching the same canonical ID is a no-op here.
func (s *ChannelStore) CreateIfAbsent(ctx context.Context, rec *ChannelRecord) (bool, error) {
	return s.docs.CreateIfAbsent(ctx, CollectionChannels, rec.ChannelID, encodeRecord(rec))
}

// Merge overlays partial fields onto an existing record, for incremental
// enrichment such as attaching metrics after the fact.
func (s *ChannelStore) Merge(ctx context.Context, channelID string, fields map[string]any) error {
	return s.docs.Merge(ctx, CollectionChannels, channelID, fields)
}

// UpsertPending merges observed fields into the pending document for an
// unresolved handle. Repeated observations accumulate fields.
func (s *ChannelStore) UpsertPending(ctx context.Context, handle string, fields map[string]any) error {
	base := map[string]any{"handle": handle}
	return s.docs.Merge(ctx, CollectionPending, handle, mergeFields(base, fields))
}

// GetPending returns the pending document fields for a handle.
func (s *ChannelStore) GetPending(ctx context.Context, handle string) (map[string]any, bool, error) {
	return s.docs.Get(ctx, CollectionPending, handle)
}

// DeletePending removes a pending handle document, typically after its
// canonical twin has been recorded.
func (s *ChannelStore) DeletePending(ctx context.Context, handle string) error {
	return s.docs.Delete(ctx, CollectionPending, handle)
}

// ListPendingHandles returns every handle in the pending collection.
func (s *ChannelStore) ListPendingHandles(ctx context.Context) ([]string, error) {
	docs, err := s.docs.List(ctx, CollectionPending)
	if err != nil {
		return nil, err
	}
	handles := make([]string, 0, len(docs))
	for _, d := range docs {
		handles = append(handles, d.Key)
	}
	return handles, nil
}

// AddEdge appends a discovery edge. Provenance is intentionally not
// deduplicated: two paths to the same channel yield two edges.
func (s *ChannelStore) AddEdge(ctx context.Context, e DiscoveryEdge) error {
	return s.docs.Append(ctx, CollectionEdges, encodeAny(e))
}

// AddDomainLink appends one outbound About-section link.
func (s *ChannelStore) AddDomainLink(ctx context.Context, l DomainLink) error {
	return s.docs.Append(ctx, CollectionDomains, encodeAny(l))
}

func encodeAny(v any) map[string]any {
	raw, _ := json.Marshal(v)
	var fields map[string]any
	_ = json.Unmarshal(raw, &fields)
	return fields
}

// ConfirmLabel is the review actor's entry point: a human overrides the
// provisional classification with a confirmed one.
func (s *ChannelStore) ConfirmLabel(ctx context.Context, channelID string, isBot bool, checkType CheckType) error {
	return s.Merge(ctx, channelID, map[string]any{
		"is_bot":            isBot,
		"is_bot_checked":    true,
		"is_bot_check_type": string(checkType),
		"last_checked_at":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ListConfirmedBots returns the IDs of all confirmed bot channels, the
// default seed set when a crawl starts without explicit seeds.
func (s *ChannelStore) ListConfirmedBots(ctx context.Context) ([]string, error) {
	docs, err := s.docs.List(ctx, CollectionChannels)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, d := range docs {
		rec := decodeRecord(d.Key, d.Fields)
		if rec.IsBot && rec.IsBotChecked {
			ids = append(ids, d.Key)
		}
	}
	return ids, nil
}

// ListPendingReview returns channels carrying a provisional pending_review
// label with no human verdict yet, oldest discovery first.
func (s *ChannelStore) ListPendingReview(ctx context.Context) ([]ChannelRecord, error) {
	docs, err := s.docs.List(ctx, CollectionChannels)
	if err != nil {
		return nil, err
	}
	var recs []ChannelRecord
	for _, d := range docs {
		rec := decodeRecord(d.Key, d.Fields)
		if !rec.IsBotChecked && rec.BotCheckType == CheckPendingReview {
			recs = append(recs, *rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].DiscoveredAt.Before(recs[j].DiscoveredAt)
	})
	return recs, nil
}

// ListMissingScreenshots returns processed records without a stored
// screenshot, for the screenshot backfill job.
func (s *ChannelStore) ListMissingScreenshots(ctx context.Context) ([]string, error) {
	docs, err := s.docs.List(ctx, CollectionChannels)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, d := range docs {
		rec := decodeRecord(d.Key, d.Fields)
		if rec.ScreenshotRef == "" && rec.Status != StatusRemoved {
			ids = append(ids, d.Key)
		}
	}
	return ids, nil
}

// ChannelBatch groups typed writes for one crawl item into an atomic commit.
type ChannelBatch struct {
	batch Batch
}

// NewBatch starts a typed batch.
func (s *ChannelStore) NewBatch() *ChannelBatch {
	return &ChannelBatch{batch: s.docs.Batch()}
}

func (b *ChannelBatch) CreateIfAbsent(rec *ChannelRecord) {
	b.batch.CreateIfAbsent(CollectionChannels, rec.ChannelID, encodeRecord(rec))
}

func (b *ChannelBatch) Merge(channelID string, fields map[string]any) {
	b.batch.Merge(CollectionChannels, channelID, fields)
}

func (b *ChannelBatch) UpsertPending(handle string, fields map[string]any) {
	base := map[string]any{"handle": handle}
	b.batch.Merge(CollectionPending, handle, mergeFields(base, fields))
}

func (b *ChannelBatch) AddEdge(e DiscoveryEdge) {
	b.batch.Append(CollectionEdges, encodeAny(e))
}

func (b *ChannelBatch) AddDomainLink(l DomainLink) {
	b.batch.Append(CollectionDomains, encodeAny(l))
}

// Commit applies the batch atomically, returning how many channel records
// were actually created.
func (b *ChannelBatch) Commit(ctx context.Context) (int, error) {
	return b.batch.Commit(ctx)
}
