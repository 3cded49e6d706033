// Package evidence gathers everything reviewable about one channel: page
// state, screenshot, outbound links, neighbor channels and profile images.
// Sub-fetches fail independently; a missing banner never costs the crawl an
// entire channel.
package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	stealth "github.com/anatolykoptev/go-stealth"

	"github.com/anatolykoptev/go_botgraph/internal/blob"
	"github.com/anatolykoptev/go_botgraph/internal/engine"
	"github.com/anatolykoptev/go_botgraph/internal/ident"
	"github.com/anatolykoptev/go_botgraph/internal/scrape"
	"github.com/anatolykoptev/go_botgraph/internal/ytapi"
)

// avatarSize is the rendition requested when downloading avatars. Page DOM
// serves small thumbnails; the review UI wants something legible.
const avatarSize = 800

// Evidence is the collected material for one channel.
type Evidence struct {
	Removed bool

	Title       string
	Description string

	AboutLinks []scrape.Link
	Related    []ident.ChannelIdentifier

	AvatarURL string
	BannerURL string

	AvatarRef     string
	BannerRef     string
	ScreenshotRef string

	// PartialFailures lists sub-fetches that failed, for the record's audit
	// trail. The crawl proceeds regardless.
	PartialFailures []string
}

// PageFetcher is the browser-facing surface the collector needs.
type PageFetcher interface {
	CheckHome(ctx context.Context, id ident.ChannelIdentifier) (scrape.HomeState, string, error)
	FetchAboutPage(ctx context.Context, id ident.ChannelIdentifier) (string, error)
	FetchChannelsPage(ctx context.Context, id ident.ChannelIdentifier) (string, error)
	Screenshot(ctx context.Context, id ident.ChannelIdentifier) ([]byte, error)
}

// Collector assembles evidence for canonical channels.
type Collector struct {
	pages  PageFetcher
	blobs  blob.Store
	images *stealth.BrowserClient // nil disables image downloads
}

// NewCollector builds a collector.
func NewCollector(pages PageFetcher, blobs blob.Store, images *stealth.BrowserClient) *Collector {
	return &Collector{pages: pages, blobs: blobs, images: images}
}

// Collect gathers evidence for one canonical channel. apiRecord carries the
// metadata already fetched from the Data API, nil in scrape-only mode. The
// removal check runs first and short-circuits everything else: a dead page
// has no evidence worth capturing.
func (c *Collector) Collect(ctx context.Context, id ident.ChannelIdentifier, apiRecord *ytapi.Channel) (*Evidence, error) {
	ev := &Evidence{}

	state, homeHTML, err := c.pages.CheckHome(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("home check %s: %w", id.String(), err)
	}
	if state == scrape.HomeRemoved {
		ev.Removed = true
		return ev, nil
	}

	if apiRecord != nil {
		ev.Title = apiRecord.Snippet.Title
		ev.Description = apiRecord.Snippet.Description
		ev.AvatarURL = apiRecord.BestThumbnail()
		ev.BannerURL = apiRecord.BannerURL()
		if err := c.blobs.PutJSON(blob.RawMetadataKey(id.Value), apiRecord); err != nil {
			c.noteFailure(ev, id, "raw_metadata", err)
		}
	}
	if ev.AvatarURL == "" || ev.BannerURL == "" {
		avatar, banner := scrape.ParseProfileImages(homeHTML)
		if ev.AvatarURL == "" {
			ev.AvatarURL = avatar
		}
		if ev.BannerURL == "" {
			ev.BannerURL = banner
		}
	}

	if shot, err := c.pages.Screenshot(ctx, id); err != nil {
		c.noteFailure(ev, id, "screenshot", err)
	} else {
		key := blob.ScreenshotKey(id.Value)
		if err := c.blobs.Put(key, shot); err != nil {
			c.noteFailure(ev, id, "screenshot", err)
		} else {
			ev.ScreenshotRef = key
		}
	}

	if aboutHTML, err := c.pages.FetchAboutPage(ctx, id); err != nil {
		c.noteFailure(ev, id, "about", err)
	} else {
		if links, err := scrape.ParseAboutLinks(aboutHTML); err != nil {
			c.noteFailure(ev, id, "about_links", err)
		} else {
			ev.AboutLinks = links
		}
		if ev.Description == "" {
			if md, err := scrape.DescriptionMarkdown(aboutHTML); err == nil {
				ev.Description = md
			}
		}
	}

	if chansHTML, err := c.pages.FetchChannelsPage(ctx, id); err != nil {
		c.noteFailure(ev, id, "channels", err)
	} else if related, err := scrape.ParseRelatedChannels(chansHTML); err != nil {
		c.noteFailure(ev, id, "channels", err)
	} else {
		ev.Related = related
	}

	if ev.AvatarURL != "" {
		url := ident.UpgradeAvatarURL(ev.AvatarURL, avatarSize)
		if ref, err := c.downloadImage(ctx, url, blob.AvatarKey(id.Value)); err != nil {
			c.noteFailure(ev, id, "avatar", err)
		} else {
			ev.AvatarRef = ref
		}
	}
	if ev.BannerURL != "" {
		if ref, err := c.downloadImage(ctx, ev.BannerURL, blob.BannerKey(id.Value)); err != nil {
			c.noteFailure(ev, id, "banner", err)
		} else {
			ev.BannerRef = ref
		}
	}

	return ev, nil
}

// downloadImage fetches an image through the stealth client, which carries
// its own per-request timeout, and stores it under key.
func (c *Collector) downloadImage(_ context.Context, imageURL, key string) (string, error) {
	if c.images == nil {
		return "", nil
	}
	data, _, status, err := c.images.Do("GET", imageURL, stealth.ChromeHeaders(), nil)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", imageURL, err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("download %s: status %d", imageURL, status)
	}
	if err := c.blobs.Put(key, data); err != nil {
		return "", err
	}
	engine.Count(engine.CountImages)
	return key, nil
}

func (c *Collector) noteFailure(ev *Evidence, id ident.ChannelIdentifier, stage string, err error) {
	engine.Count(engine.CountEvidenceFailures)
	ev.PartialFailures = append(ev.PartialFailures, stage)
	slog.Warn("evidence fetch failed",
		slog.String("channel", id.String()),
		slog.String("stage", stage),
		slog.Any("error", err))
}
