// Package resolve answers "give me a raster tile for this index" by
// walking a fallback chain of layers and coarser zoom levels across the
// region manager's stores.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/elcano/mapd/geo"
	"github.com/elcano/mapd/mbtiles"
	"github.com/elcano/mapd/params"
	"github.com/elcano/mapd/region"
)

// Request names one tile and its substitution policy. The zero policy
// (no fallback layers, no fallback zooms) is an exact-only lookup.
type Request struct {
	Index geo.TileIndex
	Layer string

	// FallbackLayers are tried at each zoom after Layer, in order.
	FallbackLayers []string

	// FallbackZooms are alternative zoom levels tried in the given
	// order after the target zoom is exhausted. Zooms finer than the
	// target cannot substitute and are skipped.
	FallbackZooms []int
}

func (r Request) layers() []string {
	layers := make([]string, 0, 1+len(r.FallbackLayers))
	layer := r.Layer
	if layer == "" {
		layer = mbtiles.DefaultLayer
	}
	layers = append(layers, layer)
	for _, l := range r.FallbackLayers {
		if l != layer {
			layers = append(layers, l)
		}
	}
	return layers
}

func (r Request) cacheKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s", r.Index, r.Layer)
	if len(r.FallbackLayers) > 0 {
		fmt.Fprintf(&b, "|l:%s", strings.Join(r.FallbackLayers, ","))
	}
	for _, z := range r.FallbackZooms {
		fmt.Fprintf(&b, "|z:%d", z)
	}
	return b.String()
}

// ResolvedTile is a raster payload plus provenance: where in the chain
// it actually came from.
type ResolvedTile struct {
	// Data is a PNG-or-JPEG payload for exact hits, always PNG when
	// Scaled is set.
	Data []byte

	// Index is the index the payload was read at. Differs from the
	// requested index iff Scaled.
	Index geo.TileIndex

	// Layer is the layer that produced the hit.
	Layer string

	// Scaled marks a payload synthesized from a coarser zoom level.
	Scaled bool
}

// Resolver walks fallback chains against the region manager's stores
// and memoizes results in a bounded LRU.
type Resolver struct {
	config  *params.EngineConfig
	regions *region.Manager
	logger  *slog.Logger

	// cache is nil when TileCacheSize <= 0.
	cache *lru.Cache[string, *ResolvedTile]
}

func NewResolver(config *params.EngineConfig, regions *region.Manager) (*Resolver, error) {
	if config == nil {
		config = params.DefaultEngineConfig()
	}
	r := &Resolver{
		config:  config,
		regions: regions,
		logger:  slog.With("d", "resolve"),
	}
	if config.TileCacheSize > 0 {
		cache, err := lru.New[string, *ResolvedTile](config.TileCacheSize)
		if err != nil {
			return nil, err
		}
		r.cache = cache
	}
	return r, nil
}

// Resolve walks the request's candidate chain and returns the first hit.
// Absence after the whole chain is soft: (nil, nil). Hard errors are
// reserved for invalid input, vector-format stores, and store failures.
//
// The covering store is selected once from the target index's center.
// Every candidate in the chain addresses that same point (fallback
// layers share the index, ancestor tiles contain it), so selecting
// per candidate would pick the same store.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*ResolvedTile, error) {
	if !req.Index.Valid() {
		return nil, fmt.Errorf("%w: %s", geo.ErrInvalidCoordinate, req.Index)
	}

	key := req.cacheKey()
	if r.cache != nil {
		if rt, ok := r.cache.Get(key); ok {
			return rt, nil
		}
	}

	h, err := r.regions.SelectStore(req.Index.Center())
	if err != nil {
		return nil, err
	}
	defer h.Release()
	store := h.Store()

	if !store.Descriptor().Format.Raster() {
		return nil, fmt.Errorf("%w: store %s holds %s tiles",
			mbtiles.ErrUnsupportedFormat, store.Descriptor().Name, store.Descriptor().Format)
	}

	layers := req.layers()

	// Exact zoom first, across the layer chain.
	for _, layer := range layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := store.GetTile(req.Index, layer)
		if err != nil {
			return nil, err
		}
		if data != nil {
			rt := &ResolvedTile{Data: data, Index: req.Index, Layer: layer}
			r.remember(key, rt)
			return rt, nil
		}
	}

	// Fallback zooms in caller order. Only coarser levels can stand in
	// for the target; the ancestor quadrant is cropped and upscaled.
	for _, zoom := range req.FallbackZooms {
		if zoom >= req.Index.Zoom {
			continue
		}
		if zoom < geo.ZoomMin {
			continue
		}
		parent, offsetX, offsetY := req.Index.Ancestor(zoom)
		for _, layer := range layers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			data, err := store.GetTile(parent, layer)
			if err != nil {
				return nil, err
			}
			if data == nil {
				continue
			}
			scaled, err := scaleQuadrant(data, req.Index.Zoom-zoom, offsetX, offsetY, r.tileSize(store))
			if err != nil {
				return nil, fmt.Errorf("scale %s from %s: %w", req.Index, parent, err)
			}
			r.logger.Debug("Resolved by zoom fallback",
				"want", req.Index.String(), "got", parent.String(), "layer", layer)
			rt := &ResolvedTile{Data: scaled, Index: parent, Layer: layer, Scaled: true}
			r.remember(key, rt)
			return rt, nil
		}
	}

	return nil, nil
}

// Purge drops every memoized tile. Cache keys carry no store identity,
// so any change to the store set invalidates the whole cache.
func (r *Resolver) Purge() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

func (r *Resolver) remember(key string, rt *ResolvedTile) {
	if r.cache != nil {
		r.cache.Add(key, rt)
	}
}

func (r *Resolver) tileSize(store *mbtiles.Store) int {
	if ts := store.Descriptor().TileSize; ts > 0 {
		return ts
	}
	if r.config.TileSize > 0 {
		return r.config.TileSize
	}
	return geo.DefaultTileSize
}

// DefaultFallbackZooms builds a fallback-zoom list for callers that
// don't supply one: the available zooms coarser than the target,
// nearest first, capped at max.
func DefaultFallbackZooms(target int, available []int, max int) []int {
	coarser := make([]int, 0, len(available))
	for _, z := range available {
		if z < target {
			coarser = append(coarser, z)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(coarser)))
	if max > 0 && len(coarser) > max {
		coarser = coarser[:max]
	}
	return coarser
}
