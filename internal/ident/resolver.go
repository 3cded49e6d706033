package ident

import (
	"context"
	"log/slog"
	"sync"

	"github.com/anatolykoptev/go_botgraph/internal/engine"
)

// Lookup is the slice of the authoritative API the resolver needs.
type Lookup interface {
	// ChannelIDByHandle returns the canonical ID registered for a handle, or
	// engine.ErrNotFound.
	ChannelIDByHandle(ctx context.Context, handle string) (string, error)
	// SearchChannelID returns the top channel result for a free-text query,
	// or engine.ErrNotFound.
	SearchChannelID(ctx context.Context, query string) (string, error)
}

// Resolver maps handles to canonical IDs via the authoritative API, with a
// direct lookup first and a search fallback. Resolved handles are cached for
// the lifetime of the resolver; a crawl re-encounters the same handles
// constantly through shared featured lists.
type Resolver struct {
	api Lookup

	mu    sync.Mutex
	cache map[string]string // handle → canonical ID
}

// NewResolver creates a resolver backed by the given API client.
func NewResolver(api Lookup) *Resolver {
	return &Resolver{api: api, cache: make(map[string]string)}
}

// ResolveHandle maps a handle to its canonical ID. When the direct lookup
// misses, falls back to a channel search and verifies the result by
// re-fetching. Both paths missing yields a ResolutionError; the caller
// decides whether to keep the handle in the pending space.
func (r *Resolver) ResolveHandle(ctx context.Context, handle string) (string, error) {
	id := Handle(handle)

	r.mu.Lock()
	if cached, ok := r.cache[id.Value]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	cid, err := r.api.ChannelIDByHandle(ctx, id.Value)
	if err == nil {
		r.store(id.Value, cid)
		engine.Count(engine.CountResolved)
		return cid, nil
	}

	slog.Debug("direct handle lookup missed, trying search",
		slog.String("handle", id.Value), slog.Any("error", err))

	cid, serr := r.api.SearchChannelID(ctx, id.Value)
	if serr == nil {
		r.store(id.Value, cid)
		engine.Count(engine.CountResolved)
		return cid, nil
	}

	engine.Count(engine.CountResolutionFailures)
	return "", &engine.ResolutionError{Handle: id.Value, Err: serr}
}

func (r *Resolver) store(handle, cid string) {
	r.mu.Lock()
	r.cache[handle] = cid
	r.mu.Unlock()
}
