// Package region owns the set of discoverable tile stores and a bounded
// cache of open handles, and selects the store covering a coordinate.
package region

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jellydator/ttlcache/v3"
	"github.com/paulmach/orb"

	"github.com/elcano/mapd/geo"
	"github.com/elcano/mapd/mbtiles"
	"github.com/elcano/mapd/params"
)

// ErrNoMapForCoordinate is matched with errors.Is against *NoMapError.
var ErrNoMapForCoordinate = errors.New("no map covers coordinate")

// NoMapError reports a point outside every known store, carrying the
// descriptor list for diagnostic display.
type NoMapError struct {
	Point orb.Point
	Known []mbtiles.Descriptor
}

func (e *NoMapError) Error() string {
	return fmt.Sprintf("%v: point (%.4f, %.4f), %d stores known",
		ErrNoMapForCoordinate, e.Point.Lat(), e.Point.Lon(), len(e.Known))
}

func (e *NoMapError) Unwrap() error { return ErrNoMapForCoordinate }

// Manager discovers stores in the assets folder and mediates all access
// to their open handles. Handles are opened lazily on first coordinate
// lookup and closed by LRU/idle eviction, never handed out by value.
type Manager struct {
	config *params.EngineConfig
	logger *slog.Logger

	mu          sync.Mutex
	descriptors []mbtiles.Descriptor
	handles     *ttlcache.Cache[string, *Handle]

	// active is the path of the store serving the previous selection.
	// Consecutive lookups are typically within one region, so its
	// bounds are tested before scanning the descriptor list.
	active string
}

// NewManager scans the configured assets folder and starts the idle
// reaper. Unopenable files are excluded and logged, not fatal.
func NewManager(config *params.EngineConfig) (*Manager, error) {
	if config == nil {
		config = params.DefaultEngineConfig()
	}
	ttl := config.CacheTimeout
	opts := []ttlcache.Option[string, *Handle]{
		ttlcache.WithCapacity[string, *Handle](uint64(config.MaxOpenStores)),
	}
	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[string, *Handle](ttl))
	} else {
		opts = append(opts, ttlcache.WithTTL[string, *Handle](ttlcache.NoTTL))
	}

	m := &Manager{
		config:  config,
		logger:  slog.With("d", "region"),
		handles: ttlcache.New[string, *Handle](opts...),
	}
	m.handles.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Handle]) {
		m.logger.Debug("Evicting store handle", "store", item.Key(), "reason", int(reason))
		item.Value().evict(m.logger)
	})
	go m.handles.Start()

	if err := m.rescanLocked(); err != nil {
		m.handles.Stop()
		return nil, err
	}
	m.logger.Info("Region manager ready",
		"assets", config.AssetsDir, "stores", len(m.descriptors))
	return m, nil
}

// rescanLocked rebuilds the descriptor list from the assets folder.
// Discovery order is the sorted filename order, which fixes the
// first-match-wins tiebreak for overlapping regions.
func (m *Manager) rescanLocked() error {
	matches, err := filepath.Glob(filepath.Join(m.config.AssetsDir, "*.mbtiles"))
	if err != nil {
		return err
	}
	sort.Strings(matches)

	descriptors := make([]mbtiles.Descriptor, 0, len(matches))
	for _, path := range matches {
		desc, err := mbtiles.ReadDescriptor(path)
		if err != nil {
			m.logger.Error("Skipping unopenable store", "path", path, "error", err)
			continue
		}
		m.logger.Info("Discovered store", "name", desc.Name,
			"zooms", fmt.Sprintf("%d-%d", desc.MinZoom, desc.MaxZoom),
			"format", desc.Format.String())
		descriptors = append(descriptors, desc)
	}
	m.descriptors = descriptors
	return nil
}

// Rescan re-reads the assets folder. The handle cache is flushed;
// handles still referenced are closed on their final release.
func (m *Manager) Rescan() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = ""
	m.handles.DeleteAll()
	return m.rescanLocked()
}

// Descriptors returns a copy of the known store descriptors
// in discovery order.
func (m *Manager) Descriptors() []mbtiles.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mbtiles.Descriptor, len(m.descriptors))
	copy(out, m.descriptors)
	return out
}

// SelectStore returns an acquired handle for the first store whose
// bounds contain the point, opening it if necessary. The caller must
// Release the handle. Returns *NoMapError when nothing covers the point.
func (m *Manager) SelectStore(pt orb.Point) (*Handle, error) {
	if err := geo.ValidatePoint(pt); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	// Fast path: the store that served the previous selection.
	if m.active != "" {
		for i := range m.descriptors {
			if m.descriptors[i].Path != m.active {
				continue
			}
			if geo.Contains(m.descriptors[i].Bound, pt) {
				return m.acquireLocked(m.descriptors[i])
			}
			break
		}
	}

	for i := range m.descriptors {
		if geo.Contains(m.descriptors[i].Bound, pt) {
			h, err := m.acquireLocked(m.descriptors[i])
			if err != nil {
				return nil, err
			}
			if m.active != m.descriptors[i].Path {
				m.logger.Info("Switched active store",
					"store", m.descriptors[i].Name,
					"point", fmt.Sprintf("%.4f,%.4f", pt.Lat(), pt.Lon()))
				m.active = m.descriptors[i].Path
			}
			return h, nil
		}
	}
	return nil, &NoMapError{Point: pt, Known: m.descriptorsCopyLocked()}
}

func (m *Manager) descriptorsCopyLocked() []mbtiles.Descriptor {
	out := make([]mbtiles.Descriptor, len(m.descriptors))
	copy(out, m.descriptors)
	return out
}

// acquireLocked fetches the cached handle (promoting it to
// most-recently-used) or opens the store. Capacity overflow evicts the
// least-recently-used idle handle via the cache's eviction hook.
func (m *Manager) acquireLocked(desc mbtiles.Descriptor) (*Handle, error) {
	if item := m.handles.Get(desc.Path); item != nil && item.Value().usable() {
		h := item.Value()
		h.acquire()
		return h, nil
	}

	store, err := mbtiles.Open(desc.Path)
	if err != nil {
		return nil, err
	}
	h := &Handle{store: store}
	h.acquire()
	m.handles.Set(desc.Path, h, ttlcache.DefaultTTL)
	return h, nil
}

// OpenHandles reports the number of handles currently held by the cache.
func (m *Manager) OpenHandles() int {
	return m.handles.Len()
}

// CheckLocation reports, for every zoom level of the covering store,
// the tile indices at the point that actually hold data.
func (m *Manager) CheckLocation(pt orb.Point) ([]geo.TileIndex, error) {
	h, err := m.SelectStore(pt)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	zooms, err := h.Store().Zooms()
	if err != nil {
		return nil, err
	}
	var found []geo.TileIndex
	for _, z := range zooms {
		idx, err := geo.ToTileIndex(pt, z)
		if err != nil {
			continue
		}
		ok, err := h.Store().TileExists(idx, "")
		if err != nil {
			return nil, err
		}
		if ok {
			found = append(found, idx)
		}
	}
	return found, nil
}

// Layers returns the union of declared layer names across all stores,
// sorted, preserving nothing of per-store order.
func (m *Manager) Layers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var layers []string
	for _, d := range m.descriptors {
		for _, l := range d.Layers {
			if !seen[l] {
				seen[l] = true
				layers = append(layers, l)
			}
		}
	}
	sort.Strings(layers)
	return layers
}

// Zooms returns the union of zoom levels that hold tiles across all
// stores, ascending. Stores are opened through the handle cache.
func (m *Manager) Zooms() ([]int, error) {
	m.mu.Lock()
	descriptors := m.descriptorsCopyLocked()
	m.mu.Unlock()

	seen := map[int]bool{}
	for _, d := range descriptors {
		m.mu.Lock()
		h, err := m.acquireLocked(d)
		m.mu.Unlock()
		if err != nil {
			m.logger.Warn("Skipping store for zoom listing", "store", d.Name, "error", err)
			continue
		}
		zs, err := h.Store().Zooms()
		h.Release()
		if err != nil {
			return nil, err
		}
		for _, z := range zs {
			seen[z] = true
		}
	}
	zooms := make([]int, 0, len(seen))
	for z := range seen {
		zooms = append(zooms, z)
	}
	sort.Ints(zooms)
	return zooms, nil
}

// Close stops the reaper and closes every cached handle. Handles still
// referenced are closed on their final release.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles.DeleteAll()
	m.handles.Stop()
	m.active = ""
	return nil
}
