package params

import (
	"fmt"
	"image/color"
	"time"
)

// EngineConfig configures the tile resolution engine: store discovery,
// the open-handle cache, and compositing defaults.
type EngineConfig struct {
	// AssetsDir is scanned (non-recursively) for *.mbtiles stores.
	AssetsDir string

	// MaxOpenStores bounds the number of simultaneously open
	// store handles. Least-recently-used handles are closed first.
	MaxOpenStores int

	// CacheTimeout closes handles idle longer than this, even when
	// the cache is under capacity. It is a reclamation policy,
	// not a request deadline.
	CacheTimeout time.Duration

	// TileSize is the assumed tile edge for stores whose tiles
	// cannot be measured, and the placeholder edge.
	TileSize int

	// PlaceholderColor fills grid cells that resolve to nothing,
	// as "#rrggbb".
	PlaceholderColor string

	// TileCacheSize is the capacity of the resolved-tile LRU.
	// Zero disables the cache.
	TileCacheSize int

	// MaxFallbackZooms caps the default fallback-zoom list built
	// for composite requests that don't supply one.
	MaxFallbackZooms int
}

func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		AssetsDir:        DefaultAssetsDir,
		MaxOpenStores:    4,
		CacheTimeout:     5 * time.Minute,
		TileSize:         256,
		PlaceholderColor: "#f0f0f0",
		TileCacheSize:    128,
		MaxFallbackZooms: 5,
	}
}

// Placeholder returns the parsed placeholder color,
// falling back to light gray on a malformed value.
func (c *EngineConfig) Placeholder() color.RGBA {
	rgba, err := ParseHexColor(c.PlaceholderColor)
	if err != nil {
		return color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	}
	return rgba
}

// ParseHexColor parses "#rrggbb".
func ParseHexColor(s string) (color.RGBA, error) {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("malformed color %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}
