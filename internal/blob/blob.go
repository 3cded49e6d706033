// Package blob stores crawl artifacts: avatar and banner images, page
// screenshots, and raw upstream payloads kept for re-processing.
package blob

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is a flat keyed byte store. Keys are slash-separated paths such as
// "channel_avatars/UCabc.png".
type Store interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, error)
	Exists(key string) bool
	PutJSON(key string, v any) error
}

// Well-known key prefixes.
const (
	PrefixAvatars     = "channel_avatars"
	PrefixBanners     = "channel_banners"
	PrefixScreenshots = "channel_screenshots"
	PrefixRawMetadata = "channel_raw_metadata"
	PrefixRawSections = "channel_raw_sections"
)

// AvatarKey returns the avatar blob key for a channel.
func AvatarKey(channelID string) string {
	return PrefixAvatars + "/" + channelID + ".png"
}

// BannerKey returns the banner blob key for a channel.
func BannerKey(channelID string) string {
	return PrefixBanners + "/" + channelID + ".jpg"
}

// ScreenshotKey returns the screenshot blob key for a channel.
func ScreenshotKey(channelID string) string {
	return PrefixScreenshots + "/" + channelID + ".png"
}

// RawMetadataKey returns the archived API payload key for a channel.
func RawMetadataKey(channelID string) string {
	return PrefixRawMetadata + "/" + channelID + ".json"
}

// RawSectionsKey returns the archived channel-sections payload key.
func RawSectionsKey(channelID string) string {
	return PrefixRawSections + "/" + channelID + ".json"
}

// FSStore keeps blobs as files under a root directory.
type FSStore struct {
	root string
}

// NewFSStore creates the root directory if needed.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes the blob, replacing any previous content.
func (s *FSStore) Put(key string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write blob %s: %w", key, err)
	}
	return nil
}

// Get reads a blob.
func (s *FSStore) Get(key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	return data, nil
}

// Exists reports whether a blob is present.
func (s *FSStore) Exists(key string) bool {
	p, err := s.path(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// PutJSON marshals v and stores it under key.
func (s *FSStore) PutJSON(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal blob %s: %w", key, err)
	}
	return s.Put(key, data)
}
