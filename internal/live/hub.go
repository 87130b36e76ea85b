// Package live fans out full snapshots of the donation collection to
// subscribers.
//
// Every change produces a complete replacement snapshot; there are no deltas.
// Each subscriber channel buffers one snapshot, and a slow subscriber that
// has not consumed the previous one gets it replaced by the newest.
package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tbourn/go-donation-tracker/internal/domain"
)

// Snapshot is an immutable view of the whole collection, newest first.
// Receivers must not modify Donations.
type Snapshot struct {
	Version   uint64            `json:"version"`
	At        time.Time         `json:"at"`
	Donations []domain.Donation `json:"donations"`
}

// Loader reads the current collection from the store.
type Loader func(ctx context.Context) ([]domain.Donation, error)

// Hub owns the latest snapshot and the subscriber set.
type Hub struct {
	load Loader

	mu      sync.Mutex
	subs    map[chan Snapshot]struct{}
	latest  Snapshot
	loaded  bool
	version uint64
}

// NewHub returns a hub that reads the collection with load.
func NewHub(load Loader) *Hub {
	return &Hub{load: load, subs: map[chan Snapshot]struct{}{}}
}

// Subscribe returns a channel that receives the current snapshot at once and
// a replacement after every Publish. The channel is closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context) (<-chan Snapshot, error) {
	h.mu.Lock()
	if !h.loaded {
		if err := h.refreshLocked(ctx); err != nil {
			h.mu.Unlock()
			return nil, err
		}
	}
	ch := make(chan Snapshot, 1)
	ch <- h.latest
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		h.mu.Unlock()
	}()
	return ch, nil
}

// Publish reloads the collection and pushes the new snapshot to every
// subscriber. On a load error the previous snapshot stays current.
func (h *Hub) Publish(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.refreshLocked(ctx); err != nil {
		return err
	}
	for ch := range h.subs {
		offer(ch, h.latest)
	}
	return nil
}

// Latest returns the current snapshot, loading it on first use.
func (h *Hub) Latest(ctx context.Context) (Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		if err := h.refreshLocked(ctx); err != nil {
			return Snapshot{}, err
		}
	}
	return h.latest, nil
}

// Subscribers reports the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) refreshLocked(ctx context.Context) error {
	list, err := h.load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	h.version++
	h.latest = Snapshot{Version: h.version, At: time.Now().UTC(), Donations: list}
	h.loaded = true
	return nil
}

// offer replaces whatever is buffered in ch with s.
func offer(ch chan Snapshot, s Snapshot) {
	select {
	case ch <- s:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
