package application

import (
	"context"
	"sync"
)

// IdentityBridge eliminates the race between "the remote comment was created"
// and "the realtime subscription has propagated the remote ID back onto the
// local comment record". Record is called in the same continuation as the
// remote create's success, so any resolve issued later in the session finds
// the remote ID even while the store write is still in flight.
//
// The bridge is a fast-path cache with a single fallback, not a second source
// of truth. Entries are write-once per local ID and live for the session;
// they are never individually removed.
type IdentityBridge struct {
	mu       sync.Mutex
	remote   map[string]int64
	claimed  map[int64]bool
	fallback func(ctx context.Context, localID string) int64
}

// NewIdentityBridge creates a bridge that consults fallback (typically a read
// of the stored comment's RemoteID) when the map has no entry.
func NewIdentityBridge(fallback func(ctx context.Context, localID string) int64) *IdentityBridge {
	return &IdentityBridge{
		remote:   make(map[string]int64),
		claimed:  make(map[int64]bool),
		fallback: fallback,
	}
}

// Record registers the local-to-remote mapping. A later write for the same
// local ID simply overwrites the entry.
func (b *IdentityBridge) Record(localID string, remoteID int64) {
	b.mu.Lock()
	b.remote[localID] = remoteID
	b.claimed[remoteID] = true
	b.mu.Unlock()
}

// RecordedRemote reports whether remoteID was produced by an outbound create
// in this session. Inbound reconciliation checks it so a local comment whose
// remote ID has not yet round-tripped into the store is not imported a second
// time.
func (b *IdentityBridge) RecordedRemote(remoteID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.claimed[remoteID]
}

// Resolve returns the remote ID for localID, checking the bridge map first
// and falling back to the eventually-consistent comment record. Returns 0
// when no remote counterpart is known.
func (b *IdentityBridge) Resolve(ctx context.Context, localID string) int64 {
	b.mu.Lock()
	id, ok := b.remote[localID]
	b.mu.Unlock()
	if ok && id != 0 {
		return id
	}

	if b.fallback == nil {
		return 0
	}
	return b.fallback(ctx, localID)
}
