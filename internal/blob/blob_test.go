package blob

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}

	key := AvatarKey("UCabc")
	payload := []byte{0x89, 'P', 'N', 'G'}
	if err := s.Put(key, payload); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !s.Exists(key) {
		t.Fatal("blob not found after put")
	}
	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch: %v", got)
	}
}

func TestPutOverwrites(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	key := ScreenshotKey("UCx")
	if err := s.Put(key, []byte("old")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(key, []byte("new")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("got %q, want new", got)
	}
}

func TestGetMissing(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	if _, err := s.Get(BannerKey("UCnope")); err == nil {
		t.Fatal("expected error for missing blob")
	}
	if s.Exists(BannerKey("UCnope")) {
		t.Fatal("Exists true for missing blob")
	}
}

func TestPutJSON(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	key := RawMetadataKey("UCabc")
	if err := s.PutJSON(key, map[string]any{"id": "UCabc", "n": 1}); err != nil {
		t.Fatalf("put json: %v", err)
	}
	data, err := s.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v["id"] != "UCabc" {
		t.Errorf("id = %v", v["id"])
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	for _, key := range []string{"../outside", "/abs/path", "."} {
		if err := s.Put(key, []byte("x")); err == nil {
			t.Errorf("key %q accepted", key)
		}
	}
}
