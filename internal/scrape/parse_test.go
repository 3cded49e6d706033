package scrape

import (
	"fmt"
	"strings"
	"testing"

	"github.com/anatolykoptev/go_botgraph/internal/ident"
)

const aboutHTML = `
<html><body>
<div id="link-list-container">
  <a href="https://www.youtube.com/redirect?event=channel_description&q=https%3A%2F%2Fexample.com%2Fshop">My Shop</a>
  <a href="https://twitter.com/somebot">Twitter</a>
  <a href="">empty</a>
</div>
<div id="description-container"><p>Hello <b>world</b></p></div>
</body></html>`

func TestParseAboutLinks(t *testing.T) {
	links, err := ParseAboutLinks(aboutHTML)
	if err != nil {
		t.Fatalf("ParseAboutLinks: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(links), links)
	}
	if links[0].URL != "https://example.com/shop" {
		t.Errorf("redirect not unwrapped: %s", links[0].URL)
	}
	if links[0].Title != "My Shop" {
		t.Errorf("title = %q", links[0].Title)
	}
	if links[1].URL != "https://twitter.com/somebot" {
		t.Errorf("plain link mangled: %s", links[1].URL)
	}
}

func TestParseAboutLinksEmptyPage(t *testing.T) {
	links, err := ParseAboutLinks("<html><body><p>nothing here</p></body></html>")
	if err != nil {
		t.Fatalf("ParseAboutLinks: %v", err)
	}
	if len(links) != 0 {
		t.Errorf("links = %+v, want none", links)
	}
}

func TestParseRelatedChannels(t *testing.T) {
	html := `
<html><body>
<ytd-grid-channel-renderer><a id="channel-info" href="/@friendbot"></a></ytd-grid-channel-renderer>
<ytd-grid-channel-renderer><a id="channel-info" href="/channel/UCdeadbeef"></a></ytd-grid-channel-renderer>
<ytd-channel-renderer><a class="channel-link" href="/@otherbot/videos"></a></ytd-channel-renderer>
<ytd-channel-renderer><a class="channel-link" href="/watch?v=zzz"></a></ytd-channel-renderer>
</body></html>`

	ids, err := ParseRelatedChannels(html)
	if err != nil {
		t.Fatalf("ParseRelatedChannels: %v", err)
	}
	want := []string{"@friendbot", "UCdeadbeef", "@otherbot"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i, w := range want {
		if ids[i].String() != w {
			t.Errorf("ids[%d] = %s, want %s", i, ids[i].String(), w)
		}
	}
	if !ids[1].IsCanonical() {
		t.Error("UC href must classify as canonical")
	}
	if ids[0] != ident.Handle("friendbot") {
		t.Errorf("ids[0] = %+v", ids[0])
	}
}

func TestParseRelatedChannelsLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := range 80 {
		fmt.Fprintf(&b, `<ytd-grid-channel-renderer><a id="channel-info" href="/channel/UC%03d"></a></ytd-grid-channel-renderer>`, i)
	}
	b.WriteString("</body></html>")

	ids, err := ParseRelatedChannels(b.String())
	if err != nil {
		t.Fatalf("ParseRelatedChannels: %v", err)
	}
	if len(ids) != 50 {
		t.Errorf("len = %d, want tile cap of 50", len(ids))
	}
}

func TestParseHomeState(t *testing.T) {
	cases := []struct {
		name string
		html string
		want HomeState
	}{
		{
			name: "removed",
			html: `<html><body><yt-alert-renderer>This channel does not exist.</yt-alert-renderer></body></html>`,
			want: HomeRemoved,
		},
		{
			name: "active",
			html: `<html><body><div id="contents"><ytd-rich-grid-row></ytd-rich-grid-row></div></body></html>`,
			want: HomeActive,
		},
		{
			name: "alert over content is still active",
			html: `<html><body><yt-alert-renderer>notice</yt-alert-renderer><div id="contents"></div></body></html>`,
			want: HomeActive,
		},
		{
			name: "still rendering",
			html: `<html><body><div id="spinner"></div></body></html>`,
			want: HomeUnknown,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ParseHomeState(tc.html); got != tc.want {
				t.Errorf("state = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestParseProfileImages(t *testing.T) {
	html := `
<html><body>
<img class="ytCoreImageHost" src="https://yt3.ggpht.com/abc=s176-c-k-c0x00ffffff-no-rj">
<yt-image-banner-view-model><img src="https://yt3.ggpht.com/banner123"></yt-image-banner-view-model>
</body></html>`

	avatar, banner := ParseProfileImages(html)
	if avatar != "https://yt3.ggpht.com/abc=s176-c-k-c0x00ffffff-no-rj" {
		t.Errorf("avatar = %s", avatar)
	}
	if banner != "https://yt3.ggpht.com/banner123" {
		t.Errorf("banner = %s", banner)
	}

	if got := ident.UpgradeAvatarURL(avatar, 800); !strings.Contains(got, "=s800-") {
		t.Errorf("upgraded avatar = %s", got)
	}
}

func TestDescriptionMarkdown(t *testing.T) {
	md, err := DescriptionMarkdown(aboutHTML)
	if err != nil {
		t.Fatalf("DescriptionMarkdown: %v", err)
	}
	if !strings.Contains(md, "Hello **world**") {
		t.Errorf("markdown = %q", md)
	}
}

func TestDescriptionMarkdownMissing(t *testing.T) {
	md, err := DescriptionMarkdown("<html><body></body></html>")
	if err != nil {
		t.Fatalf("DescriptionMarkdown: %v", err)
	}
	if md != "" {
		t.Errorf("markdown = %q, want empty", md)
	}
}
