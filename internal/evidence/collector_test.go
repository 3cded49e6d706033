package evidence

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/anatolykoptev/go_botgraph/internal/blob"
	"github.com/anatolykoptev/go_botgraph/internal/ident"
	"github.com/anatolykoptev/go_botgraph/internal/scrape"
	"github.com/anatolykoptev/go_botgraph/internal/ytapi"
)

type fakePages struct {
	homeState scrape.HomeState
	homeHTML  string
	homeErr   error

	aboutHTML string
	aboutErr  error

	chansHTML string
	chansErr  error

	shot    []byte
	shotErr error

	screenshotCalls int
}

func (f *fakePages) CheckHome(_ context.Context, _ ident.ChannelIdentifier) (scrape.HomeState, string, error) {
	return f.homeState, f.homeHTML, f.homeErr
}

func (f *fakePages) FetchAboutPage(_ context.Context, _ ident.ChannelIdentifier) (string, error) {
	return f.aboutHTML, f.aboutErr
}

func (f *fakePages) FetchChannelsPage(_ context.Context, _ ident.ChannelIdentifier) (string, error) {
	return f.chansHTML, f.chansErr
}

func (f *fakePages) Screenshot(_ context.Context, _ ident.ChannelIdentifier) ([]byte, error) {
	f.screenshotCalls++
	return f.shot, f.shotErr
}

func newTestBlobs(t *testing.T) blob.Store {
	t.Helper()
	s, err := blob.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	return s
}

func TestCollectActiveChannel(t *testing.T) {
	pages := &fakePages{
		homeState: scrape.HomeActive,
		homeHTML:  `<html><body><img class="ytCoreImageHost" src="https://yt3/img=s176-c"></body></html>`,
		aboutHTML: `<html><body><div id="link-list-container"><a href="https://example.com">Site</a></div></body></html>`,
		chansHTML: `<html><body><ytd-grid-channel-renderer><a id="channel-info" href="/@friend"></a></ytd-grid-channel-renderer></body></html>`,
		shot:      []byte("png"),
	}
	blobs := newTestBlobs(t)
	c := NewCollector(pages, blobs, nil)

	ev, err := c.Collect(context.Background(), ident.Canonical("UCabc"), nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if ev.Removed {
		t.Fatal("active channel reported removed")
	}
	if len(ev.AboutLinks) != 1 || ev.AboutLinks[0].URL != "https://example.com" {
		t.Errorf("about links = %+v", ev.AboutLinks)
	}
	if len(ev.Related) != 1 || ev.Related[0].String() != "@friend" {
		t.Errorf("related = %+v", ev.Related)
	}
	if ev.AvatarURL != "https://yt3/img=s176-c" {
		t.Errorf("avatar url = %s", ev.AvatarURL)
	}
	if ev.ScreenshotRef != blob.ScreenshotKey("UCabc") {
		t.Errorf("screenshot ref = %s", ev.ScreenshotRef)
	}
	if !blobs.Exists(blob.ScreenshotKey("UCabc")) {
		t.Error("screenshot blob missing")
	}
	if len(ev.PartialFailures) != 0 {
		t.Errorf("partial failures = %v", ev.PartialFailures)
	}
}

func TestCollectRemovedShortCircuits(t *testing.T) {
	pages := &fakePages{homeState: scrape.HomeRemoved}
	c := NewCollector(pages, newTestBlobs(t), nil)

	ev, err := c.Collect(context.Background(), ident.Canonical("UCgone"), nil)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if !ev.Removed {
		t.Fatal("removed channel not flagged")
	}
	if pages.screenshotCalls != 0 {
		t.Error("screenshot taken for removed channel")
	}
}

func TestCollectHomeCheckFailureIsFatal(t *testing.T) {
	pages := &fakePages{homeErr: errors.New("browser gone")}
	c := NewCollector(pages, newTestBlobs(t), nil)

	if _, err := c.Collect(context.Background(), ident.Canonical("UCx"), nil); err == nil {
		t.Fatal("expected error when home check fails")
	}
}

func TestCollectPartialFailuresContained(t *testing.T) {
	pages := &fakePages{
		homeState: scrape.HomeActive,
		homeHTML:  "<html><body><div id='contents'></div></body></html>",
		aboutErr:  errors.New("nav timeout"),
		chansHTML: `<html><body><ytd-grid-channel-renderer><a id="channel-info" href="/channel/UCother"></a></ytd-grid-channel-renderer></body></html>`,
		shotErr:   errors.New("capture failed"),
	}
	c := NewCollector(pages, newTestBlobs(t), nil)

	ev, err := c.Collect(context.Background(), ident.Canonical("UCabc"), nil)
	if err != nil {
		t.Fatalf("Collect must contain sub-fetch failures: %v", err)
	}
	if len(ev.Related) != 1 {
		t.Errorf("related = %+v, surviving fetches must still land", ev.Related)
	}
	if !slices.Contains(ev.PartialFailures, "about") || !slices.Contains(ev.PartialFailures, "screenshot") {
		t.Errorf("partial failures = %v", ev.PartialFailures)
	}
}

func TestCollectUsesAPIRecord(t *testing.T) {
	pages := &fakePages{
		homeState: scrape.HomeActive,
		homeHTML:  "<html><body><div id='contents'></div></body></html>",
		shot:      []byte("png"),
	}
	blobs := newTestBlobs(t)
	c := NewCollector(pages, blobs, nil)

	rec := &ytapi.Channel{ID: "UCabc"}
	rec.Snippet.Title = "Bot Channel"
	rec.Snippet.Description = "beep"
	rec.Snippet.Thumbnails.High.URL = "https://yt3/api-avatar=s88-c"
	rec.BrandingSettings.Image.BannerExternalURL = "https://yt3/api-banner"

	ev, err := c.Collect(context.Background(), ident.Canonical("UCabc"), rec)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if ev.Title != "Bot Channel" || ev.Description != "beep" {
		t.Errorf("evidence = %+v", ev)
	}
	if ev.AvatarURL != "https://yt3/api-avatar=s88-c" {
		t.Errorf("avatar url = %s, api record must win over DOM", ev.AvatarURL)
	}
	if !blobs.Exists(blob.RawMetadataKey("UCabc")) {
		t.Error("raw api payload not archived")
	}
}
