// Package ytapi is a minimal YouTube Data API v3 client covering the three
// endpoints the crawler uses: channels.list, channelSections.list and
// search.list.
package ytapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	stealth "github.com/anatolykoptev/go-stealth"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_botgraph/internal/engine"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

// channelParts is everything the crawler keeps from a channel record.
const channelParts = "id,snippet,statistics,brandingSettings,topicDetails,status,contentDetails"

// Client calls the YouTube Data API. All requests share one rate limiter so
// the daily quota drains predictably. When the primary key hits its quota
// the client switches to the fallback key for the rest of the run.
type Client struct {
	BaseURL string

	key         string
	fallbackKey string
	onFallback  bool

	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds a client. qps <= 0 disables rate limiting.
func NewClient(key, fallbackKey string, qps float64, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	limit := rate.Inf
	if qps > 0 {
		limit = rate.Limit(qps)
	}
	return &Client{
		BaseURL:     DefaultBaseURL,
		key:         key,
		fallbackKey: fallbackKey,
		http:        httpClient,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

func (c *Client) activeKey() string {
	if c.onFallback && c.fallbackKey != "" {
		return c.fallbackKey
	}
	return c.key
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, status, err := c.request(ctx, endpoint, params, c.activeKey())
	if err != nil {
		return err
	}
	if status == http.StatusForbidden && isQuotaError(body) {
		engine.Count(engine.CountQuotaErrors)
		if !c.onFallback && c.fallbackKey != "" {
			slog.Warn("api quota exhausted, switching to fallback key",
				slog.String("endpoint", endpoint))
			c.onFallback = true
			body, status, err = c.request(ctx, endpoint, params, c.activeKey())
			if err != nil {
				return err
			}
		}
		if status == http.StatusForbidden && isQuotaError(body) {
			return fmt.Errorf("%s: %w", endpoint, engine.ErrQuotaExceeded)
		}
	}
	if status != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", endpoint, status, apiMessage(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) request(ctx context.Context, endpoint string, params url.Values, key string) ([]byte, int, error) {
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("key", key)

	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/"+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := stealth.RetryHTTP(ctx, stealth.DefaultRetryConfig, func() (*http.Response, error) {
		return c.http.Do(req)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("%s: read response: %w", endpoint, err)
	}
	return body, resp.StatusCode, nil
}

func isQuotaError(body []byte) bool {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil {
		return false
	}
	for _, item := range e.Error.Errors {
		switch item.Reason {
		case "quotaExceeded", "dailyLimitExceeded", "rateLimitExceeded":
			return true
		}
	}
	return false
}

func apiMessage(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil || e.Error.Message == "" {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return msg
	}
	return e.Error.Message
}

// FetchChannel returns the full record for one canonical channel ID.
// Returns engine.ErrNotFound when the API knows no such channel.
func (c *Client) FetchChannel(ctx context.Context, channelID string) (*Channel, error) {
	engine.Count(engine.CountAPIChannels)
	var resp ChannelListResponse
	err := c.get(ctx, "channels", url.Values{
		"part": {channelParts},
		"id":   {channelID},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("channel %s: %w", channelID, engine.ErrNotFound)
	}
	return &resp.Items[0], nil
}

// FetchChannelByHandle returns the record for an @handle.
func (c *Client) FetchChannelByHandle(ctx context.Context, handle string) (*Channel, error) {
	engine.Count(engine.CountAPIChannels)
	var resp ChannelListResponse
	err := c.get(ctx, "channels", url.Values{
		"part":      {channelParts},
		"forHandle": {"@" + strings.TrimPrefix(handle, "@")},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("handle @%s: %w", handle, engine.ErrNotFound)
	}
	return &resp.Items[0], nil
}

// FetchChannelsByID fetches many channels, batching by the API's 50-ID
// limit. Missing IDs are silently absent from the result.
func (c *Client) FetchChannelsByID(ctx context.Context, ids []string) ([]Channel, error) {
	var all []Channel
	for start := 0; start < len(ids); start += engine.APIBatchSize {
		end := min(start+engine.APIBatchSize, len(ids))
		engine.Count(engine.CountAPIChannels)
		var resp ChannelListResponse
		err := c.get(ctx, "channels", url.Values{
			"part":       {channelParts},
			"id":         {strings.Join(ids[start:end], ",")},
			"maxResults": {"50"},
		}, &resp)
		if err != nil {
			return all, err
		}
		all = append(all, resp.Items...)
	}
	return all, nil
}

// FetchChannelSections returns the shelves of a channel page. Featured
// channels and subscriptions shelves carry neighbor channel IDs.
func (c *Client) FetchChannelSections(ctx context.Context, channelID string) ([]Section, error) {
	engine.Count(engine.CountAPISections)
	var resp SectionListResponse
	err := c.get(ctx, "channelSections", url.Values{
		"part":      {"snippet,contentDetails"},
		"channelId": {channelID},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// SearchChannelID returns the best-match channel ID for a query, the
// fallback path when forHandle resolution fails. Costs 100 quota units per
// call, so it runs last.
func (c *Client) SearchChannelID(ctx context.Context, query string) (string, error) {
	engine.Count(engine.CountAPISearches)
	var resp SearchListResponse
	err := c.get(ctx, "search", url.Values{
		"part":       {"id"},
		"type":       {"channel"},
		"maxResults": {"1"},
		"q":          {query},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Items) == 0 || resp.Items[0].ID.ChannelID == "" {
		return "", fmt.Errorf("search %q: %w", query, engine.ErrNotFound)
	}
	return resp.Items[0].ID.ChannelID, nil
}

// ChannelIDByHandle resolves an @handle to its canonical ID via the direct
// forHandle lookup.
func (c *Client) ChannelIDByHandle(ctx context.Context, handle string) (string, error) {
	ch, err := c.FetchChannelByHandle(ctx, handle)
	if err != nil {
		return "", err
	}
	return ch.ID, nil
}
