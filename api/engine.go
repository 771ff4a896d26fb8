// Package api assembles the tile engine: region manager, resolver, and
// composer behind one facade. Daemons and commands talk to an Engine,
// never to the layers directly.
package api

import (
	"context"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/elcano/mapd/compose"
	"github.com/elcano/mapd/geo"
	"github.com/elcano/mapd/mbtiles"
	"github.com/elcano/mapd/params"
	"github.com/elcano/mapd/region"
	"github.com/elcano/mapd/resolve"
)

// Engine is the engine facade. Safe for concurrent use.
type Engine struct {
	Config *params.EngineConfig

	regions  *region.Manager
	resolver *resolve.Resolver
	composer *compose.Composer
	logger   *slog.Logger
}

// NewEngine discovers stores under the configured assets folder and
// wires the resolution pipeline.
func NewEngine(config *params.EngineConfig) (*Engine, error) {
	if config == nil {
		config = params.DefaultEngineConfig()
	}
	regions, err := region.NewManager(config)
	if err != nil {
		return nil, err
	}
	resolver, err := resolve.NewResolver(config, regions)
	if err != nil {
		regions.Close()
		return nil, err
	}
	return &Engine{
		Config:   config,
		regions:  regions,
		resolver: resolver,
		composer: compose.NewComposer(config, regions, resolver),
		logger:   slog.With("d", "api"),
	}, nil
}

// Stores lists the descriptors of every discovered store.
func (e *Engine) Stores() []mbtiles.Descriptor {
	return e.regions.Descriptors()
}

// Rescan re-reads the assets folder for added or removed stores and
// drops the resolved-tile cache, whose entries may describe the old
// store contents.
func (e *Engine) Rescan() error {
	if err := e.regions.Rescan(); err != nil {
		return err
	}
	e.resolver.Purge()
	return nil
}

// GetTile resolves one tile with no fallback: the exact index in the
// requested layer, or (nil, nil).
func (e *Engine) GetTile(ctx context.Context, idx geo.TileIndex, layer string) (*resolve.ResolvedTile, error) {
	return e.resolver.Resolve(ctx, resolve.Request{Index: idx, Layer: layer})
}

// GetTileWithFallback resolves one tile through the full substitution
// chain.
func (e *Engine) GetTileWithFallback(ctx context.Context, req resolve.Request) (*resolve.ResolvedTile, error) {
	return e.resolver.Resolve(ctx, req)
}

// CalculateGrid plans the tile grid for a viewport without rendering it.
func (e *Engine) CalculateGrid(pt orb.Point, zoom, width, height int) (compose.GridPlan, error) {
	tileSize := e.Config.TileSize
	if h, err := e.regions.SelectStore(pt); err == nil {
		if ts := h.Descriptor().TileSize; ts > 0 {
			tileSize = ts
		}
		h.Release()
	}
	return compose.PlanGrid(pt, zoom, width, height, tileSize)
}

// GenerateComposite renders a composite image for the request.
func (e *Engine) GenerateComposite(ctx context.Context, req compose.Request) (*compose.Result, error) {
	return e.composer.Compose(ctx, req)
}

// CheckLocation reports which zoom levels hold a tile at the point.
func (e *Engine) CheckLocation(pt orb.Point) ([]geo.TileIndex, error) {
	return e.regions.CheckLocation(pt)
}

// Layers returns the union of layer names across stores, sorted.
func (e *Engine) Layers() []string {
	return e.regions.Layers()
}

// Zooms returns the union of populated zoom levels across stores.
func (e *Engine) Zooms() ([]int, error) {
	return e.regions.Zooms()
}

// Close releases all open store handles.
func (e *Engine) Close() error {
	e.logger.Info("Engine closing")
	return e.regions.Close()
}
