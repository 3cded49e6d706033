package ytapi

// YouTube Data API v3 response shapes, trimmed to the fields the crawler
// reads. Raw payloads are archived separately, so lossy decoding here is
// fine.

// ChannelListResponse is the envelope of channels.list.
type ChannelListResponse struct {
	Items    []Channel `json:"items"`
	PageInfo PageInfo  `json:"pageInfo"`
}

// PageInfo carries result counts.
type PageInfo struct {
	TotalResults   int `json:"totalResults"`
	ResultsPerPage int `json:"resultsPerPage"`
}

// Channel is a single channels.list item.
type Channel struct {
	ID               string            `json:"id"`
	Snippet          ChannelSnippet    `json:"snippet"`
	Statistics       ChannelStatistics `json:"statistics"`
	BrandingSettings BrandingSettings  `json:"brandingSettings"`
	TopicDetails     TopicDetails      `json:"topicDetails"`
	Status           ChannelAPIStatus  `json:"status"`
	ContentDetails   ContentDetails    `json:"contentDetails"`
}

// ChannelSnippet holds the channel's public profile.
type ChannelSnippet struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CustomURL   string     `json:"customUrl"`
	PublishedAt string     `json:"publishedAt"`
	Country     string     `json:"country"`
	Thumbnails  Thumbnails `json:"thumbnails"`
}

// Thumbnails lists the available avatar sizes.
type Thumbnails struct {
	Default Thumbnail `json:"default"`
	Medium  Thumbnail `json:"medium"`
	High    Thumbnail `json:"high"`
}

// Thumbnail is one avatar variant.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ChannelStatistics holds counters. The API serializes them as strings.
type ChannelStatistics struct {
	ViewCount             string `json:"viewCount"`
	SubscriberCount       string `json:"subscriberCount"`
	HiddenSubscriberCount bool   `json:"hiddenSubscriberCount"`
	VideoCount            string `json:"videoCount"`
}

// BrandingSettings holds channel branding, including the banner.
type BrandingSettings struct {
	Channel BrandingChannel `json:"channel"`
	Image   BrandingImage   `json:"image"`
}

// BrandingChannel duplicates some snippet fields plus keywords.
type BrandingChannel struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
}

// BrandingImage carries the banner URL.
type BrandingImage struct {
	BannerExternalURL string `json:"bannerExternalUrl"`
}

// TopicDetails lists Wikipedia topic categories.
type TopicDetails struct {
	TopicIDs        []string `json:"topicIds"`
	TopicCategories []string `json:"topicCategories"`
}

// ChannelAPIStatus holds moderation and privacy flags.
type ChannelAPIStatus struct {
	PrivacyStatus string `json:"privacyStatus"`
	IsLinked      bool   `json:"isLinked"`
	MadeForKids   bool   `json:"madeForKids"`
}

// ContentDetails exposes the channel's system playlists.
type ContentDetails struct {
	RelatedPlaylists RelatedPlaylists `json:"relatedPlaylists"`
}

// RelatedPlaylists names the uploads playlist.
type RelatedPlaylists struct {
	Uploads string `json:"uploads"`
}

// SectionListResponse is the envelope of channelSections.list.
type SectionListResponse struct {
	Items []Section `json:"items"`
}

// Section is one shelf on a channel page. Sections of type
// multipleChannels or subscriptions carry channel IDs in contentDetails.
type Section struct {
	ID             string                `json:"id"`
	Snippet        SectionSnippet        `json:"snippet"`
	ContentDetails SectionContentDetails `json:"contentDetails"`
}

// SectionSnippet describes the shelf.
type SectionSnippet struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// SectionContentDetails lists the channels a shelf features.
type SectionContentDetails struct {
	Channels []string `json:"channels"`
}

// SearchListResponse is the envelope of search.list.
type SearchListResponse struct {
	Items []SearchResult `json:"items"`
}

// SearchResult is one search hit.
type SearchResult struct {
	ID SearchResultID `json:"id"`
}

// SearchResultID carries the matched channel ID.
type SearchResultID struct {
	Kind      string `json:"kind"`
	ChannelID string `json:"channelId"`
}

// apiError is the Google API error envelope.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// BestThumbnail returns the largest available avatar URL.
func (c *Channel) BestThumbnail() string {
	t := c.Snippet.Thumbnails
	switch {
	case t.High.URL != "":
		return t.High.URL
	case t.Medium.URL != "":
		return t.Medium.URL
	default:
		return t.Default.URL
	}
}

// BannerURL returns the banner image URL, or "".
func (c *Channel) BannerURL() string {
	return c.BrandingSettings.Image.BannerExternalURL
}
