// Package geo implements the spherical Web-Mercator slippy-tile scheme:
// conversions between geographic coordinates and integer tile indices.
//
// Points are orb.Points, so longitude first. Tile rows follow the display
// convention (row 0 northernmost); the MBTiles on-disk flip is the store's
// business, not ours.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

const (
	// DefaultTileSize is the edge length assumed for stores
	// whose tiles cannot be measured.
	DefaultTileSize = 256

	ZoomMin = 0
	ZoomMax = 22

	// MaxLatitude is the Web-Mercator projection limit.
	// Latitudes beyond it have no tile row.
	MaxLatitude = 85.0511
)

var (
	ErrInvalidZoom       = errors.New("invalid zoom level")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// TileIndex addresses one tile in a pyramid.
type TileIndex struct {
	Zoom   int `json:"zoom"`
	Column int `json:"column"`
	Row    int `json:"row"`
}

func (t TileIndex) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.Column, t.Row)
}

// Valid reports whether the index lies inside the pyramid for its zoom.
func (t TileIndex) Valid() bool {
	if t.Zoom < ZoomMin {
		return false
	}
	n := 1 << uint(t.Zoom)
	return t.Column >= 0 && t.Column < n && t.Row >= 0 && t.Row < n
}

// Ancestor returns the index of the tile containing t at the coarser zoom,
// along with t's quadrant offsets within that ancestor's
// 2^(t.Zoom-zoom)-wide subgrid. Zoom must not exceed t.Zoom.
func (t TileIndex) Ancestor(zoom int) (parent TileIndex, offsetX, offsetY int) {
	dz := uint(t.Zoom - zoom)
	scale := 1 << dz
	parent = TileIndex{Zoom: zoom, Column: t.Column >> dz, Row: t.Row >> dz}
	return parent, t.Column % scale, t.Row % scale
}

// GeoPoint returns the geographic coordinate of the tile's top-left corner.
// Callers wanting the tile center offset by half a tile (see Center).
func (t TileIndex) GeoPoint() orb.Point {
	n := math.Exp2(float64(t.Zoom))
	lon := float64(t.Column)/n*360.0 - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*float64(t.Row)/n)))
	return orb.Point{lon, latRad * 180.0 / math.Pi}
}

// Center returns the geographic coordinate of the tile's center.
func (t TileIndex) Center() orb.Point {
	n := math.Exp2(float64(t.Zoom))
	lon := (float64(t.Column)+0.5)/n*360.0 - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*(float64(t.Row)+0.5)/n)))
	return orb.Point{lon, latRad * 180.0 / math.Pi}
}

// ValidateZoom rejects zooms outside [ZoomMin, ZoomMax].
func ValidateZoom(zoom int) error {
	if zoom < ZoomMin || zoom > ZoomMax {
		return fmt.Errorf("%w: %d", ErrInvalidZoom, zoom)
	}
	return nil
}

// ValidatePoint rejects coordinates outside the Mercator domain:
// latitude in [-MaxLatitude, MaxLatitude], longitude in [-180, 180).
func ValidatePoint(pt orb.Point) error {
	if math.IsNaN(pt.Lon()) || math.IsNaN(pt.Lat()) {
		return fmt.Errorf("%w: NaN", ErrInvalidCoordinate)
	}
	if pt.Lat() < -MaxLatitude || pt.Lat() > MaxLatitude {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, pt.Lat())
	}
	if pt.Lon() < -180 || pt.Lon() >= 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, pt.Lon())
	}
	return nil
}

// ToTileIndex converts a geographic point to the tile index containing it.
// Outputs are clamped into [0, 2^zoom - 1] so a point on the Mercator edge
// still maps to a real tile.
func ToTileIndex(pt orb.Point, zoom int) (TileIndex, error) {
	if err := ValidateZoom(zoom); err != nil {
		return TileIndex{}, err
	}
	if err := ValidatePoint(pt); err != nil {
		return TileIndex{}, err
	}
	latRad := pt.Lat() * math.Pi / 180.0
	n := math.Exp2(float64(zoom))
	col := int(math.Floor((pt.Lon() + 180.0) / 360.0 * n))
	row := int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2.0 * n))
	max := int(n) - 1
	return TileIndex{
		Zoom:   zoom,
		Column: clampInt(col, 0, max),
		Row:    clampInt(row, 0, max),
	}, nil
}

// ParseBound parses an MBTiles metadata bounds string,
// "west,south,east,north" in decimal degrees.
func ParseBound(s string) (orb.Bound, error) {
	var w, so, e, n float64
	if _, err := fmt.Sscanf(s, "%f,%f,%f,%f", &w, &so, &e, &n); err != nil {
		return orb.Bound{}, fmt.Errorf("malformed bounds %q: %w", s, err)
	}
	if w > e || so > n {
		return orb.Bound{}, fmt.Errorf("inverted bounds %q", s)
	}
	return orb.Bound{Min: orb.Point{w, so}, Max: orb.Point{e, n}}, nil
}

// Contains is the inclusive point-in-bounds test used for store selection:
// west <= lon <= east && south <= lat <= north.
// orb.Bound.Contains is equivalent but spelled here for clarity at the edges.
func Contains(b orb.Bound, pt orb.Point) bool {
	return b.Min.Lon() <= pt.Lon() && pt.Lon() <= b.Max.Lon() &&
		b.Min.Lat() <= pt.Lat() && pt.Lat() <= b.Max.Lat()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
