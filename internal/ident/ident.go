// Package ident classifies and normalizes channel references. A reference is
// either a canonical platform-assigned ID (immutable, globally unique) or a
// user-chosen handle that must be resolved before being treated as
// authoritative. Both forms can refer to the same channel; the crawler tracks
// that ambiguity explicitly rather than assuming one form.
package ident

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Kind distinguishes the two reference forms.
type Kind int

const (
	KindCanonical Kind = iota
	KindHandle
)

// canonicalPrefix is the fixed prefix of platform-assigned channel IDs.
const canonicalPrefix = "UC"

// ChannelIdentifier is a tagged channel reference.
type ChannelIdentifier struct {
	Kind  Kind
	Value string // canonical ID ("UC…") or bare handle (no "@")
}

// Classify maps any raw string to exactly one identifier form. Canonical IDs
// are recognized by their fixed prefix; everything else is a handle with any
// leading "@" stripped. Total and deterministic: classifying the string form
// of a canonical identifier always yields the same canonical identifier.
func Classify(raw string) ChannelIdentifier {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, canonicalPrefix) {
		return ChannelIdentifier{Kind: KindCanonical, Value: raw}
	}
	return ChannelIdentifier{Kind: KindHandle, Value: strings.TrimPrefix(raw, "@")}
}

// Canonical builds a canonical identifier without classification.
func Canonical(id string) ChannelIdentifier {
	return ChannelIdentifier{Kind: KindCanonical, Value: id}
}

// Handle builds a handle identifier, stripping any leading "@".
func Handle(h string) ChannelIdentifier {
	return ChannelIdentifier{Kind: KindHandle, Value: strings.TrimPrefix(h, "@")}
}

// IsCanonical reports whether the identifier is a canonical ID.
func (c ChannelIdentifier) IsCanonical() bool { return c.Kind == KindCanonical }

// String returns the raw display form: the ID itself for canonical
// identifiers, "@handle" otherwise. Used as the seen-set key.
func (c ChannelIdentifier) String() string {
	if c.Kind == KindCanonical {
		return c.Value
	}
	return "@" + c.Value
}

// URL returns the channel page URL, optionally with a tab path such as
// "/about".
func (c ChannelIdentifier) URL(tab string) string {
	if c.Kind == KindCanonical {
		return fmt.Sprintf("https://www.youtube.com/channel/%s%s", c.Value, tab)
	}
	return fmt.Sprintf("https://www.youtube.com/@%s%s", c.Value, tab)
}

var avatarSizeRE = regexp.MustCompile(`=s\d+-`)

// UpgradeAvatarURL rewrites the size component (=sNN-) of an avatar URL to
// request a larger rendition. Returns the input unchanged when no size
// component is present.
func UpgradeAvatarURL(rawURL string, size int) string {
	if rawURL == "" {
		return rawURL
	}
	return avatarSizeRE.ReplaceAllString(rawURL, fmt.Sprintf("=s%d-", size))
}

// UnwrapRedirect resolves the platform's outbound-link wrapper
// (youtube.com/redirect?q=<dest>) to its true destination. Non-wrapper URLs
// pass through unchanged.
func UnwrapRedirect(href string) string {
	if !strings.Contains(href, "youtube.com/redirect") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if dest := u.Query().Get("q"); dest != "" {
		return dest
	}
	return href
}

// FromHref converts a channel tile href ("/@handle" or "/channel/UC…") to an
// identifier. Returns false for hrefs that do not point at a channel.
func FromHref(href string) (ChannelIdentifier, bool) {
	switch {
	case strings.HasPrefix(href, "/@"):
		h, err := url.PathUnescape(href[2:])
		if err != nil {
			h = href[2:]
		}
		if i := strings.IndexByte(h, '/'); i >= 0 {
			h = h[:i]
		}
		if h == "" {
			return ChannelIdentifier{}, false
		}
		return Handle(h), true
	case strings.HasPrefix(href, "/channel/"):
		id := strings.TrimPrefix(href, "/channel/")
		if i := strings.IndexByte(id, '/'); i >= 0 {
			id = id[:i]
		}
		if id == "" {
			return ChannelIdentifier{}, false
		}
		return Canonical(id), true
	}
	return ChannelIdentifier{}, false
}

// NormalizeDomain extracts the lowercased hostname of a URL with any "www."
// prefix removed, for grouping outbound links by destination site.
func NormalizeDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(rawURL)
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
