package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the crawler.
var metrics struct {
	ChannelsProcessed  atomic.Int64
	ChannelsFailed     atomic.Int64
	ChannelsDiscovered atomic.Int64
	ChannelsRemoved    atomic.Int64
	RecordsCreated     atomic.Int64
	PendingUpserts     atomic.Int64
	EdgesRecorded      atomic.Int64

	APIChannelRequests atomic.Int64
	APISectionRequests atomic.Int64
	APISearchRequests  atomic.Int64
	APIQuotaErrors     atomic.Int64
	HandlesResolved    atomic.Int64
	ResolutionFailures atomic.Int64

	PagesScraped      atomic.Int64
	ScrapeFailures    atomic.Int64
	Screenshots       atomic.Int64
	EvidenceFailures  atomic.Int64
	BrowserRelaunches atomic.Int64
	ImagesDownloaded  atomic.Int64
}

// Counter identifies one metrics counter for the Count helper.
type Counter int

const (
	CountProcessed Counter = iota
	CountFailed
	CountDiscovered
	CountRemoved
	CountRecords
	CountPending
	CountEdges
	CountAPIChannels
	CountAPISections
	CountAPISearches
	CountQuotaErrors
	CountResolved
	CountResolutionFailures
	CountPages
	CountScrapeFailures
	CountScreenshots
	CountEvidenceFailures
	CountBrowserRelaunches
	CountImages
)

// Count increments a metrics counter. Sub-packages use this instead of
// reaching into the struct so the counter set stays in one place.
func Count(c Counter) {
	switch c {
	case CountProcessed:
		metrics.ChannelsProcessed.Add(1)
	case CountFailed:
		metrics.ChannelsFailed.Add(1)
	case CountDiscovered:
		metrics.ChannelsDiscovered.Add(1)
	case CountRemoved:
		metrics.ChannelsRemoved.Add(1)
	case CountRecords:
		metrics.RecordsCreated.Add(1)
	case CountPending:
		metrics.PendingUpserts.Add(1)
	case CountEdges:
		metrics.EdgesRecorded.Add(1)
	case CountAPIChannels:
		metrics.APIChannelRequests.Add(1)
	case CountAPISections:
		metrics.APISectionRequests.Add(1)
	case CountAPISearches:
		metrics.APISearchRequests.Add(1)
	case CountQuotaErrors:
		metrics.APIQuotaErrors.Add(1)
	case CountResolved:
		metrics.HandlesResolved.Add(1)
	case CountResolutionFailures:
		metrics.ResolutionFailures.Add(1)
	case CountPages:
		metrics.PagesScraped.Add(1)
	case CountScrapeFailures:
		metrics.ScrapeFailures.Add(1)
	case CountScreenshots:
		metrics.Screenshots.Add(1)
	case CountEvidenceFailures:
		metrics.EvidenceFailures.Add(1)
	case CountBrowserRelaunches:
		metrics.BrowserRelaunches.Add(1)
	case CountImages:
		metrics.ImagesDownloaded.Add(1)
	}
}

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"channels_processed":   metrics.ChannelsProcessed.Load(),
		"channels_failed":      metrics.ChannelsFailed.Load(),
		"channels_discovered":  metrics.ChannelsDiscovered.Load(),
		"channels_removed":     metrics.ChannelsRemoved.Load(),
		"records_created":      metrics.RecordsCreated.Load(),
		"pending_upserts":      metrics.PendingUpserts.Load(),
		"edges_recorded":       metrics.EdgesRecorded.Load(),
		"api_channel_requests": metrics.APIChannelRequests.Load(),
		"api_section_requests": metrics.APISectionRequests.Load(),
		"api_search_requests":  metrics.APISearchRequests.Load(),
		"api_quota_errors":     metrics.APIQuotaErrors.Load(),
		"handles_resolved":     metrics.HandlesResolved.Load(),
		"resolution_failures":  metrics.ResolutionFailures.Load(),
		"pages_scraped":        metrics.PagesScraped.Load(),
		"scrape_failures":      metrics.ScrapeFailures.Load(),
		"screenshots":          metrics.Screenshots.Load(),
		"evidence_failures":    metrics.EvidenceFailures.Load(),
		"browser_relaunches":   metrics.BrowserRelaunches.Load(),
		"images_downloaded":    metrics.ImagesDownloaded.Load(),
	}
}

// FormatMetrics returns counters as a simple text format for the HTTP
// metrics endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "botgraph_%s %d\n", k, m[k])
	}
	return b.String()
}
