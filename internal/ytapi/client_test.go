package ytapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anatolykoptev/go_botgraph/internal/engine"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("primary", "fallback", 0, srv.Client())
	c.BaseURL = srv.URL
	return c
}

const quotaBody = `{"error":{"code":403,"message":"quota","errors":[{"reason":"quotaExceeded"}]}}`

func TestFetchChannel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != "/channels" {
			t.Errorf("path = %s", got)
		}
		if got := r.URL.Query().Get("id"); got != "UCabc" {
			t.Errorf("id = %s", got)
		}
		if !strings.Contains(r.URL.Query().Get("part"), "brandingSettings") {
			t.Errorf("part = %s", r.URL.Query().Get("part"))
		}
		fmt.Fprint(w, `{"items":[{"id":"UCabc","snippet":{"title":"Bot","customUrl":"@bot","thumbnails":{"high":{"url":"https://yt3/img=s176-c"}}},"statistics":{"subscriberCount":"12"},"brandingSettings":{"image":{"bannerExternalUrl":"https://yt3/banner"}}}]}`)
	})

	ch, err := c.FetchChannel(context.Background(), "UCabc")
	if err != nil {
		t.Fatalf("FetchChannel: %v", err)
	}
	if ch.ID != "UCabc" || ch.Snippet.Title != "Bot" {
		t.Errorf("channel = %+v", ch)
	}
	if ch.BestThumbnail() != "https://yt3/img=s176-c" {
		t.Errorf("thumbnail = %s", ch.BestThumbnail())
	}
	if ch.BannerURL() != "https://yt3/banner" {
		t.Errorf("banner = %s", ch.BannerURL())
	}
}

func TestFetchChannelNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[]}`)
	})

	_, err := c.FetchChannel(context.Background(), "UCmissing")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFetchChannelByHandle(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("forHandle"); got != "@somebot" {
			t.Errorf("forHandle = %s", got)
		}
		fmt.Fprint(w, `{"items":[{"id":"UChandled"}]}`)
	})

	// Bare and @-prefixed handles are equivalent.
	id, err := c.ChannelIDByHandle(context.Background(), "somebot")
	if err != nil {
		t.Fatalf("ChannelIDByHandle: %v", err)
	}
	if id != "UChandled" {
		t.Errorf("id = %s", id)
	}
}

func TestQuotaFallbackKey(t *testing.T) {
	var keysSeen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		keysSeen = append(keysSeen, key)
		if key == "primary" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, quotaBody)
			return
		}
		fmt.Fprint(w, `{"items":[{"id":"UCabc"}]}`)
	})

	ch, err := c.FetchChannel(context.Background(), "UCabc")
	if err != nil {
		t.Fatalf("FetchChannel: %v", err)
	}
	if ch.ID != "UCabc" {
		t.Errorf("channel = %+v", ch)
	}
	if len(keysSeen) != 2 || keysSeen[0] != "primary" || keysSeen[1] != "fallback" {
		t.Errorf("keys seen = %v", keysSeen)
	}

	// Once switched, subsequent calls start on the fallback key.
	if _, err := c.FetchChannel(context.Background(), "UCabc"); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if keysSeen[len(keysSeen)-1] != "fallback" {
		t.Errorf("keys seen = %v, want fallback last", keysSeen)
	}
}

func TestQuotaExhaustedBothKeys(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, quotaBody)
	})

	_, err := c.FetchChannel(context.Background(), "UCabc")
	if !errors.Is(err, engine.ErrQuotaExceeded) {
		t.Errorf("err = %v, want ErrQuotaExceeded", err)
	}
}

func TestFetchChannelsByIDBatches(t *testing.T) {
	var batchSizes []int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("id"), ",")
		batchSizes = append(batchSizes, len(ids))
		var items []string
		for _, id := range ids {
			items = append(items, fmt.Sprintf(`{"id":%q}`, id))
		}
		fmt.Fprintf(w, `{"items":[%s]}`, strings.Join(items, ","))
	})

	ids := make([]string, 73)
	for i := range ids {
		ids[i] = fmt.Sprintf("UC%03d", i)
	}
	chans, err := c.FetchChannelsByID(context.Background(), ids)
	if err != nil {
		t.Fatalf("FetchChannelsByID: %v", err)
	}
	if len(chans) != 73 {
		t.Errorf("len = %d, want 73", len(chans))
	}
	if len(batchSizes) != 2 || batchSizes[0] != 50 || batchSizes[1] != 23 {
		t.Errorf("batch sizes = %v, want [50 23]", batchSizes)
	}
}

func TestFetchChannelSections(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != "/channelSections" {
			t.Errorf("path = %s", got)
		}
		fmt.Fprint(w, `{"items":[{"id":"s1","snippet":{"type":"multipleChannels","title":"Friends"},"contentDetails":{"channels":["UCx","UCy"]}}]}`)
	})

	sections, err := c.FetchChannelSections(context.Background(), "UCabc")
	if err != nil {
		t.Fatalf("FetchChannelSections: %v", err)
	}
	if len(sections) != 1 || len(sections[0].ContentDetails.Channels) != 2 {
		t.Errorf("sections = %+v", sections)
	}
}

func TestSearchChannelID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "channel" || q.Get("maxResults") != "1" {
			t.Errorf("query = %v", q)
		}
		fmt.Fprint(w, `{"items":[{"id":{"kind":"youtube#channel","channelId":"UCfound"}}]}`)
	})

	id, err := c.SearchChannelID(context.Background(), "somebot")
	if err != nil {
		t.Fatalf("SearchChannelID: %v", err)
	}
	if id != "UCfound" {
		t.Errorf("id = %s", id)
	}
}

func TestSearchChannelIDEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[]}`)
	})

	_, err := c.SearchChannelID(context.Background(), "nothing")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
