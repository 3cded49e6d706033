package ident

import (
	"context"
	"errors"
	"testing"

	"github.com/anatolykoptev/go_botgraph/internal/engine"
)

type fakeLookup struct {
	direct map[string]string
	search map[string]string

	directCalls int
	searchCalls int
}

func (f *fakeLookup) ChannelIDByHandle(_ context.Context, handle string) (string, error) {
	f.directCalls++
	if id, ok := f.direct[handle]; ok {
		return id, nil
	}
	return "", engine.ErrNotFound
}

func (f *fakeLookup) SearchChannelID(_ context.Context, query string) (string, error) {
	f.searchCalls++
	if id, ok := f.search[query]; ok {
		return id, nil
	}
	return "", engine.ErrNotFound
}

func TestResolveDirect(t *testing.T) {
	api := &fakeLookup{direct: map[string]string{"somebot": "UCdirect"}}
	r := NewResolver(api)

	got, err := r.ResolveHandle(context.Background(), "@somebot")
	if err != nil {
		t.Fatalf("ResolveHandle: %v", err)
	}
	if got != "UCdirect" {
		t.Errorf("got %q, want UCdirect", got)
	}
	if api.searchCalls != 0 {
		t.Errorf("search called %d times on direct hit", api.searchCalls)
	}
}

func TestResolveSearchFallback(t *testing.T) {
	api := &fakeLookup{search: map[string]string{"somebot": "UCsearch"}}
	r := NewResolver(api)

	got, err := r.ResolveHandle(context.Background(), "somebot")
	if err != nil {
		t.Fatalf("ResolveHandle: %v", err)
	}
	if got != "UCsearch" {
		t.Errorf("got %q, want UCsearch", got)
	}
	if api.directCalls != 1 || api.searchCalls != 1 {
		t.Errorf("calls = direct %d search %d, want 1/1", api.directCalls, api.searchCalls)
	}
}

func TestResolveBothMiss(t *testing.T) {
	r := NewResolver(&fakeLookup{})

	_, err := r.ResolveHandle(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error")
	}
	var resErr *engine.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("error type %T, want *engine.ResolutionError", err)
	}
	if resErr.Handle != "ghost" {
		t.Errorf("Handle = %q", resErr.Handle)
	}
	if !errors.Is(err, engine.ErrNotFound) {
		t.Error("underlying cause not preserved")
	}
}

func TestResolveCached(t *testing.T) {
	api := &fakeLookup{direct: map[string]string{"somebot": "UCdirect"}}
	r := NewResolver(api)

	for range 3 {
		if _, err := r.ResolveHandle(context.Background(), "somebot"); err != nil {
			t.Fatalf("ResolveHandle: %v", err)
		}
	}
	if api.directCalls != 1 {
		t.Errorf("direct called %d times, want 1 (cache)", api.directCalls)
	}
}
