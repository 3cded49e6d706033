package graph

import "github.com/anatolykoptev/go_botgraph/internal/ident"

// Frontier is the FIFO crawl queue with a built-in seen-set. Breadth-first
// order keeps hop distance from the seeds roughly monotonic, so item caps
// cut the crawl at a predictable depth.
//
// The seen-set keys on the raw string form, so a handle and the canonical
// ID it resolves to are distinct entries. That can enqueue one channel
// twice; record creation stays idempotent at the store layer.
type Frontier struct {
	queue []ident.ChannelIdentifier
	seen  map[string]struct{}
}

// NewFrontier builds an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{seen: make(map[string]struct{})}
}

// Push enqueues an identifier unless it was ever enqueued before. Returns
// whether the identifier was accepted.
func (f *Frontier) Push(id ident.ChannelIdentifier) bool {
	key := id.String()
	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	f.queue = append(f.queue, id)
	return true
}

// Pop dequeues the oldest identifier.
func (f *Frontier) Pop() (ident.ChannelIdentifier, bool) {
	if len(f.queue) == 0 {
		return ident.ChannelIdentifier{}, false
	}
	id := f.queue[0]
	f.queue = f.queue[1:]
	return id, true
}

// Seen reports whether an identifier was ever enqueued.
func (f *Frontier) Seen(id ident.ChannelIdentifier) bool {
	_, ok := f.seen[id.String()]
	return ok
}

// Len returns the number of queued (not yet popped) identifiers.
func (f *Frontier) Len() int { return len(f.queue) }
