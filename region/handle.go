package region

import (
	"log/slog"
	"sync"

	"github.com/elcano/mapd/mbtiles"
)

// Handle is a reference-counted open store owned by the Manager's cache.
// Callers get one from SelectStore and must Release it; the store behind
// it stays open at least until the last Release.
type Handle struct {
	store *mbtiles.Store

	mu     sync.Mutex
	refs   int
	doomed bool
	closed bool
}

// Store returns the open store. Only valid between acquisition and Release.
func (h *Handle) Store() *mbtiles.Store { return h.store }

// Descriptor is a convenience for h.Store().Descriptor().
func (h *Handle) Descriptor() mbtiles.Descriptor { return h.store.Descriptor() }

func (h *Handle) acquire() {
	h.mu.Lock()
	h.refs++
	h.mu.Unlock()
}

// Release drops one reference. A handle evicted from the cache while in
// use is closed here, on the final release, never under a caller.
func (h *Handle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refs--
	if h.refs <= 0 && h.doomed && !h.closed {
		h.closed = true
		if err := h.store.Close(); err != nil {
			slog.Warn("Store close failed", "store", h.store.Descriptor().Name, "error", err)
		}
	}
}

// evict marks the handle doomed and closes it immediately when idle.
// Called from the cache's eviction hook.
func (h *Handle) evict(logger *slog.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.doomed = true
	if h.refs > 0 {
		logger.Debug("Evicted handle still referenced, deferring close",
			"store", h.store.Descriptor().Name, "refs", h.refs)
		return
	}
	if !h.closed {
		h.closed = true
		if err := h.store.Close(); err != nil {
			logger.Warn("Store close failed", "store", h.store.Descriptor().Name, "error", err)
		}
	}
}

// usable reports whether the handle can serve new acquisitions.
func (h *Handle) usable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.doomed && !h.closed
}
