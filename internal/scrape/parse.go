package scrape

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/anatolykoptev/go_botgraph/internal/engine"
	"github.com/anatolykoptev/go_botgraph/internal/ident"
)

// Page selectors. These track YouTube's desktop DOM and are the first thing
// to check when extraction silently returns nothing.
const (
	selAboutLinks      = "#link-list-container a"
	selRelatedChannels = "ytd-grid-channel-renderer a#channel-info, ytd-channel-renderer a.channel-link"
	selRemovedAlert    = "yt-alert-renderer"
	selPageContents    = "#contents"
	selAvatar          = "img.ytCoreImageHost"
	selBanner          = "yt-image-banner-view-model img"
	selDescription     = "#description-container"
)

// Link is one outbound link from a channel's About section.
type Link struct {
	URL   string
	Title string
}

// ParseAboutLinks extracts the external links from an About page. YouTube
// wraps outbound hrefs in a redirect URL carrying the target in q=; links
// are returned unwrapped.
func ParseAboutLinks(html string) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &engine.ScrapeError{URL: "about", Err: err}
	}

	var links []Link
	doc.Find(selAboutLinks).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		target := ident.UnwrapRedirect(href)
		if target == "" {
			return
		}
		links = append(links, Link{
			URL:   target,
			Title: strings.TrimSpace(sel.Text()),
		})
	})
	return links, nil
}

// ParseRelatedChannels extracts neighbor channels from the featured-channel
// shelves and the channels tab, capped at the page's tile limit. Hrefs come
// in two shapes, /@handle and /channel/UC….
func ParseRelatedChannels(html string) ([]ident.ChannelIdentifier, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &engine.ScrapeError{URL: "channels", Err: err}
	}

	var ids []ident.ChannelIdentifier
	doc.Find(selRelatedChannels).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		id, ok := ident.FromHref(href)
		if !ok {
			return true
		}
		ids = append(ids, id)
		return len(ids) < engine.RelatedLimit
	})
	return ids, nil
}

// HomeState classifies what a channel home page shows.
type HomeState int

const (
	// HomeUnknown means the page has neither the removal alert nor content,
	// usually because rendering has not finished.
	HomeUnknown HomeState = iota
	HomeActive
	HomeRemoved
)

// ParseHomeState decides whether a channel still exists. A removed channel
// renders an alert box and no content grid; a live one renders the grid.
// Both absent means the page is still loading and the caller should retry.
func ParseHomeState(html string) HomeState {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return HomeUnknown
	}
	hasAlert := doc.Find(selRemovedAlert).Length() > 0
	hasContents := doc.Find(selPageContents).Length() > 0
	switch {
	case hasAlert && !hasContents:
		return HomeRemoved
	case hasContents:
		return HomeActive
	default:
		return HomeUnknown
	}
}

// ParseProfileImages returns the avatar and banner URLs from a channel
// page, either possibly "".
func ParseProfileImages(html string) (avatarURL, bannerURL string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}
	avatarURL, _ = doc.Find(selAvatar).First().Attr("src")
	bannerURL, _ = doc.Find(selBanner).First().Attr("src")
	return avatarURL, bannerURL
}

// DescriptionMarkdown converts the About description block to markdown,
// which stores much smaller than raw DOM and diffs cleanly.
func DescriptionMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	block := doc.Find(selDescription).First()
	if block.Length() == 0 {
		return "", nil
	}
	inner, err := block.Html()
	if err != nil {
		return "", err
	}
	md, err := htmltomarkdown.ConvertString(inner)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}
