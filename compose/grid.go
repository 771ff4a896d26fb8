// Package compose stitches resolved tiles into a single raster image
// centered on a coordinate, sized for a target viewport.
package compose

import (
	"image"
	"math"

	"github.com/paulmach/orb"

	"github.com/elcano/mapd/geo"
)

// GridPlan lays out the tile grid covering a viewport. The grid is
// always at least one tile wider and taller than the viewport strictly
// needs, so the crop never runs off the canvas.
type GridPlan struct {
	Zoom     int `json:"zoom"`
	TileSize int `json:"tileSize"`

	// TilesX and TilesY are the grid dimensions in cells.
	TilesX int `json:"tilesX"`
	TilesY int `json:"tilesY"`

	// OriginColumn and OriginRow address the top-left cell. OriginRow
	// may be negative near the poles; out-of-range rows are virtual
	// cells with no tile behind them. Columns wrap around the
	// antimeridian, so OriginColumn is reduced modulo 2^zoom per cell.
	OriginColumn int `json:"originColumn"`
	OriginRow    int `json:"originRow"`

	// PixelWidth and PixelHeight are the full canvas dimensions.
	PixelWidth  int `json:"pixelWidth"`
	PixelHeight int `json:"pixelHeight"`
}

// PlanGrid computes the grid for a viewport of width x height pixels
// centered on pt at the given zoom.
func PlanGrid(pt orb.Point, zoom, width, height, tileSize int) (GridPlan, error) {
	if tileSize <= 0 {
		tileSize = geo.DefaultTileSize
	}
	center, err := geo.ToTileIndex(pt, zoom)
	if err != nil {
		return GridPlan{}, err
	}

	tilesX := int(math.Ceil(float64(width)/float64(tileSize))) + 1
	tilesY := int(math.Ceil(float64(height)/float64(tileSize))) + 1

	plan := GridPlan{
		Zoom:         zoom,
		TileSize:     tileSize,
		TilesX:       tilesX,
		TilesY:       tilesY,
		OriginColumn: center.Column - tilesX/2,
		OriginRow:    center.Row - tilesY/2,
		PixelWidth:   tilesX * tileSize,
		PixelHeight:  tilesY * tileSize,
	}
	return plan, nil
}

// Cell returns the tile index for grid position (x, y) and whether it
// addresses a real tile. Columns wrap; rows outside the pyramid do not.
func (p GridPlan) Cell(x, y int) (geo.TileIndex, bool) {
	n := 1 << uint(p.Zoom)
	row := p.OriginRow + y
	if row < 0 || row >= n {
		return geo.TileIndex{}, false
	}
	col := (p.OriginColumn + x) % n
	if col < 0 {
		col += n
	}
	return geo.TileIndex{Zoom: p.Zoom, Column: col, Row: row}, true
}

// Bound returns the geographic extent of the full canvas. Rows beyond
// the Mercator limit clamp to the projection edge.
func (p GridPlan) Bound() orb.Bound {
	n := 1 << uint(p.Zoom)
	topRow := clampInt(p.OriginRow, 0, n)
	bottomRow := clampInt(p.OriginRow+p.TilesY, 0, n)
	nw := geo.TileIndex{Zoom: p.Zoom, Column: p.OriginColumn, Row: topRow}.GeoPoint()
	se := geo.TileIndex{Zoom: p.Zoom, Column: p.OriginColumn + p.TilesX, Row: bottomRow}.GeoPoint()
	return orb.Bound{
		Min: orb.Point{nw.Lon(), se.Lat()},
		Max: orb.Point{se.Lon(), nw.Lat()},
	}
}

// pixel returns pt's global pixel coordinates at the plan's zoom.
func (p GridPlan) pixel(pt orb.Point) (float64, float64) {
	world := float64(int(1)<<uint(p.Zoom)) * float64(p.TileSize)
	latRad := pt.Lat() * math.Pi / 180.0
	x := (pt.Lon() + 180.0) / 360.0 * world
	y := (1.0 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2.0 * world
	return x, y
}

// geoAt inverts pixel: global pixel coordinates back to geographic.
func (p GridPlan) geoAt(x, y float64) orb.Point {
	world := float64(int(1)<<uint(p.Zoom)) * float64(p.TileSize)
	lon := x/world*360.0 - 180.0
	latRad := math.Atan(math.Sinh(math.Pi * (1.0 - 2.0*y/world)))
	return orb.Point{lon, latRad * 180.0 / math.Pi}
}

// WindowBound returns the geographic extent of a canvas sub-rectangle,
// converting its corner pixel offsets back through the projection.
func (p GridPlan) WindowBound(r image.Rectangle) orb.Bound {
	ox := float64(p.OriginColumn * p.TileSize)
	oy := float64(p.OriginRow * p.TileSize)
	nw := p.geoAt(ox+float64(r.Min.X), oy+float64(r.Min.Y))
	se := p.geoAt(ox+float64(r.Max.X), oy+float64(r.Max.Y))
	return orb.Bound{
		Min: orb.Point{nw.Lon(), se.Lat()},
		Max: orb.Point{se.Lon(), nw.Lat()},
	}
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
