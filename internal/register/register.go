// Package register ingests comment-export files and registers commenter
// channels as crawl candidates. Unlike the frontier crawl this path has no
// recursion, so the per-file channel set is enriched with a bounded pool of
// concurrent workers sharing the one browser.
package register

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anatolykoptev/go_botgraph/internal/blob"
	"github.com/anatolykoptev/go_botgraph/internal/engine"
	"github.com/anatolykoptev/go_botgraph/internal/evidence"
	"github.com/anatolykoptev/go_botgraph/internal/ident"
	"github.com/anatolykoptev/go_botgraph/internal/manifest"
	"github.com/anatolykoptev/go_botgraph/internal/store"
	"github.com/anatolykoptev/go_botgraph/internal/ytapi"
)

// Defaults for the registration pool.
const (
	DefaultLikeThreshold = 5
	DefaultConcurrency   = 8
)

// CommentExport is one exported comment file: all comments captured under
// one video.
type CommentExport struct {
	VideoID   string    `json:"video_id"`
	ChannelID string    `json:"channel_id"` // video owner
	Comments  []Comment `json:"comments"`
}

// Comment is a single captured comment.
type Comment struct {
	AuthorChannelID string `json:"author_channel_id"`
	Author          string `json:"author"`
	Text            string `json:"text"`
	LikeCount       int    `json:"like_count"`
}

// MetricsFunc computes image-derived features for an avatar. The actual
// feature extraction lives outside this repo; nil disables it.
type MetricsFunc func(ctx context.Context, imageData []byte) (map[string]float64, error)

// Collector gathers page evidence for one channel.
type Collector interface {
	Collect(ctx context.Context, id ident.ChannelIdentifier, apiRecord *ytapi.Channel) (*evidence.Evidence, error)
}

// Registrar drives the batch registration.
type Registrar struct {
	channels  *store.ChannelStore
	blobs     blob.Store
	collector Collector
	tracker   *manifest.Tracker
	metricsFn MetricsFunc

	likeThreshold int
	concurrency   int
}

// New builds a registrar. metricsFn may be nil.
func New(channels *store.ChannelStore, blobs blob.Store, collector Collector, tracker *manifest.Tracker, metricsFn MetricsFunc, likeThreshold, concurrency int) *Registrar {
	if likeThreshold <= 0 {
		likeThreshold = DefaultLikeThreshold
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Registrar{
		channels:      channels,
		blobs:         blobs,
		collector:     collector,
		tracker:       tracker,
		metricsFn:     metricsFn,
		likeThreshold: likeThreshold,
		concurrency:   concurrency,
	}
}

// RunDir processes every export file in a directory, resuming past the
// files the manifest already marks completed.
func (r *Registrar) RunDir(ctx context.Context, dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("list exports: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := filepath.Base(path)
		if r.tracker.IsCompleted(name) {
			slog.Debug("export already processed", slog.String("file", name))
			continue
		}
		if err := r.tracker.MarkInProgress(name); err != nil {
			return err
		}
		if err := r.ProcessFile(ctx, path); err != nil {
			slog.Error("export failed", slog.String("file", name), slog.Any("error", err))
			if cerr := r.tracker.ClearInProgress(); cerr != nil {
				return cerr
			}
			continue
		}
		if err := r.tracker.MarkCompleted(name); err != nil {
			return err
		}
		slog.Info("export processed", slog.String("file", name))
	}
	return nil
}

// ProcessFile registers the qualifying commenters from one export file.
func (r *Registrar) ProcessFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read export: %w", err)
	}
	var export CommentExport
	if err := json.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("parse export %s: %w", filepath.Base(path), err)
	}

	authors := CandidateAuthors(&export, r.likeThreshold)
	if len(authors) == 0 {
		return nil
	}
	slog.Info("registering commenters",
		slog.String("file", filepath.Base(path)),
		slog.Int("candidates", len(authors)))

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for _, author := range authors {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(channelID string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := r.registerChannel(ctx, channelID, export.ChannelID); err != nil {
				engine.Count(engine.CountFailed)
				slog.Warn("commenter registration failed",
					slog.String("channel", channelID),
					slog.Any("error", err))
			}
		}(author)
	}
	wg.Wait()
	return ctx.Err()
}

// CandidateAuthors returns the distinct commenter channel IDs whose comment
// cleared the like threshold, in first-seen order. Highly liked comments
// are where engagement botnets are visible.
func CandidateAuthors(export *CommentExport, likeThreshold int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range export.Comments {
		if c.LikeCount < likeThreshold {
			continue
		}
		id := strings.TrimSpace(c.AuthorChannelID)
		if !ident.Classify(id).IsCanonical() {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (r *Registrar) registerChannel(ctx context.Context, channelID, fromChannelID string) error {
	id := ident.Canonical(channelID)

	rec, exists, err := r.channels.Get(ctx, channelID)
	if err != nil {
		return err
	}
	if exists && rec.Processed() {
		return nil
	}

	ev, err := r.collector.Collect(ctx, id, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	if ev.Removed {
		engine.Count(engine.CountRemoved)
		_, err := r.channels.CreateIfAbsent(ctx, &store.ChannelRecord{
			ChannelID:     channelID,
			Status:        store.StatusRemoved,
			BotCheckType:  store.CheckPendingReview,
			DiscoveredAt:  now,
			LastCheckedAt: now,
		})
		return err
	}

	// A commenter with no outbound links and no featured channels shows
	// nothing reviewable; registering it would only dilute the review
	// queue.
	if len(ev.AboutLinks) == 0 && len(ev.Related) == 0 {
		slog.Debug("commenter skipped, no signals", slog.String("channel", channelID))
		return nil
	}

	metrics, err := r.avatarMetrics(ctx, ev)
	if err != nil {
		slog.Warn("avatar metrics failed", slog.String("channel", channelID), slog.Any("error", err))
	}

	batch := r.channels.NewBatch()
	batch.CreateIfAbsent(&store.ChannelRecord{
		ChannelID:         channelID,
		Title:             ev.Title,
		IsBot:             true,
		BotCheckType:      store.CheckPendingReview,
		Status:            store.StatusActive,
		AvatarURL:         ev.AvatarURL,
		AvatarRef:         ev.AvatarRef,
		BannerURL:         ev.BannerURL,
		BannerRef:         ev.BannerRef,
		ScreenshotRef:     ev.ScreenshotRef,
		Metrics:           metrics,
		AboutLinksCount:   len(ev.AboutLinks),
		FeaturedCount:     len(ev.Related),
		IsMetadataMissing: len(ev.PartialFailures) > 0,
		DiscoveredAt:      now,
		LastCheckedAt:     now,
	})
	batch.AddEdge(store.DiscoveryEdge{
		FromChannelID: fromChannelID,
		ToChannelID:   channelID,
		Method:        store.EdgeComment,
		DiscoveredAt:  now,
	})
	for _, link := range ev.AboutLinks {
		batch.AddDomainLink(store.DomainLink{
			FromChannelID:    channelID,
			URL:              link.URL,
			NormalizedDomain: ident.NormalizeDomain(link.URL),
			Source:           "about",
			DiscoveredAt:     now,
		})
	}

	created, err := batch.Commit(ctx)
	if err != nil {
		return err
	}
	for range created {
		engine.Count(engine.CountRecords)
	}
	engine.Count(engine.CountProcessed)
	return nil
}

func (r *Registrar) avatarMetrics(ctx context.Context, ev *evidence.Evidence) (map[string]float64, error) {
	if r.metricsFn == nil || ev.AvatarRef == "" {
		return nil, nil
	}
	data, err := r.blobs.Get(ev.AvatarRef)
	if err != nil {
		return nil, err
	}
	return r.metricsFn(ctx, data)
}
