package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	xdraw "golang.org/x/image/draw"

	"github.com/elcano/mapd/geo"
	"github.com/elcano/mapd/params"
	"github.com/elcano/mapd/region"
	"github.com/elcano/mapd/resolve"
)

// Request describes one composite render.
type Request struct {
	// Center is the coordinate the viewport is centered on. It must
	// fall inside some store's bounds; edge cells outside every store
	// degrade to placeholders, but an uncovered center is an error.
	Center orb.Point
	Zoom   int

	// Width and Height are the viewport dimensions in pixels.
	Width  int
	Height int

	// Crop trims the stitched canvas down to exactly Width x Height,
	// centered on Center. Without it the full canvas is returned.
	Crop bool

	Layer          string
	FallbackLayers []string

	// FallbackZooms overrides the default chain (the store's coarser
	// zooms, nearest first). An empty non-nil slice disables fallback.
	FallbackZooms []int
}

// CellSource records where one grid cell's pixels came from.
type CellSource struct {
	X      int            `json:"x"`
	Y      int            `json:"y"`
	Index  *geo.TileIndex `json:"index,omitempty"`
	Layer  string         `json:"layer,omitempty"`
	Scaled bool           `json:"scaled,omitempty"`
}

// Result is a rendered composite plus its provenance.
type Result struct {
	// Image is the PNG payload.
	Image []byte `json:"-"`

	Width  int `json:"width"`
	Height int `json:"height"`

	Grid  GridPlan  `json:"grid"`
	Bound orb.Bound `json:"bounds"`

	TilesFound   int `json:"tilesFound"`
	TilesMissing int `json:"tilesMissing"`
	TilesScaled  int `json:"tilesScaled"`

	Cells []CellSource `json:"cells"`
}

// Composer renders composites through a resolver. Safe for concurrent
// use; each render owns its canvas.
type Composer struct {
	config   *params.EngineConfig
	regions  *region.Manager
	resolver *resolve.Resolver
	logger   *slog.Logger
}

func NewComposer(config *params.EngineConfig, regions *region.Manager, resolver *resolve.Resolver) *Composer {
	if config == nil {
		config = params.DefaultEngineConfig()
	}
	return &Composer{
		config:   config,
		regions:  regions,
		resolver: resolver,
		logger:   slog.With("d", "compose"),
	}
}

// Compose stitches the tile grid covering the request viewport.
// Identical requests against identical stores produce identical bytes:
// cells render in row-major order and every substitution is
// deterministic.
func (c *Composer) Compose(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if err := geo.ValidateZoom(req.Zoom); err != nil {
		return nil, err
	}
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("%w: viewport %dx%d", geo.ErrInvalidCoordinate, req.Width, req.Height)
	}

	// The center must be on some map. This is the one coverage check
	// that fails the whole render.
	h, err := c.regions.SelectStore(req.Center)
	if err != nil {
		return nil, err
	}
	desc := h.Descriptor()
	fallbackZooms := req.FallbackZooms
	if fallbackZooms == nil {
		zooms, zerr := h.Store().Zooms()
		if zerr != nil {
			h.Release()
			return nil, zerr
		}
		fallbackZooms = resolve.DefaultFallbackZooms(req.Zoom, zooms, c.config.MaxFallbackZooms)
	}
	h.Release()

	tileSize := desc.TileSize
	if tileSize <= 0 {
		tileSize = c.config.TileSize
	}
	plan, err := PlanGrid(req.Center, req.Zoom, req.Width, req.Height, tileSize)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, plan.PixelWidth, plan.PixelHeight))
	blank := placeholderTile(tileSize, c.config.Placeholder())
	res := &Result{Grid: plan, Bound: plan.Bound()}

	for y := 0; y < plan.TilesY; y++ {
		for x := 0; x < plan.TilesX; x++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			cellOrigin := image.Pt(x*tileSize, y*tileSize)
			cell := CellSource{X: x, Y: y}

			idx, real := plan.Cell(x, y)
			if !real {
				xdraw.Copy(canvas, cellOrigin, blank, blank.Bounds(), xdraw.Src, nil)
				res.TilesMissing++
				res.Cells = append(res.Cells, cell)
				continue
			}

			rt, err := c.resolver.Resolve(ctx, resolve.Request{
				Index:          idx,
				Layer:          req.Layer,
				FallbackLayers: req.FallbackLayers,
				FallbackZooms:  fallbackZooms,
			})
			if err != nil {
				// Grid edges may spill past every store's bounds.
				if errors.Is(err, region.ErrNoMapForCoordinate) {
					xdraw.Copy(canvas, cellOrigin, blank, blank.Bounds(), xdraw.Src, nil)
					res.TilesMissing++
					res.Cells = append(res.Cells, cell)
					continue
				}
				return nil, fmt.Errorf("cell %s: %w", idx, err)
			}
			if rt == nil {
				xdraw.Copy(canvas, cellOrigin, blank, blank.Bounds(), xdraw.Src, nil)
				res.TilesMissing++
				res.Cells = append(res.Cells, cell)
				continue
			}

			if err := drawCell(canvas, cellOrigin, tileSize, rt.Data); err != nil {
				return nil, fmt.Errorf("cell %s: %w", idx, err)
			}
			res.TilesFound++
			if rt.Scaled {
				res.TilesScaled++
			}
			src := rt.Index
			cell.Index, cell.Layer, cell.Scaled = &src, rt.Layer, rt.Scaled
			res.Cells = append(res.Cells, cell)
		}
	}

	out := image.Image(canvas)
	res.Width, res.Height = plan.PixelWidth, plan.PixelHeight
	if req.Crop && (req.Width < plan.PixelWidth || req.Height < plan.PixelHeight) {
		window := cropWindow(plan, req.Center, req.Width, req.Height)
		out = canvas.SubImage(window)
		res.Width, res.Height = req.Width, req.Height
		res.Bound = plan.WindowBound(window)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, err
	}
	res.Image = buf.Bytes()

	recordRender(c.logger, res, time.Since(start))
	return res, nil
}

// drawCell decodes one tile payload into the canvas cell, resampling
// when the payload edge differs from the grid tile size.
func drawCell(canvas *image.RGBA, origin image.Point, tileSize int, data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return err
	}
	b := img.Bounds()
	if b.Dx() == tileSize && b.Dy() == tileSize {
		xdraw.Copy(canvas, origin, img, b, xdraw.Src, nil)
		return nil
	}
	rect := image.Rect(origin.X, origin.Y, origin.X+tileSize, origin.Y+tileSize)
	xdraw.ApproxBiLinear.Scale(canvas, rect, img, b, xdraw.Src, nil)
	return nil
}

// cropWindow places a width x height window on the canvas, centered on
// the request coordinate's pixel, clamped to the canvas edges.
func cropWindow(plan GridPlan, center orb.Point, width, height int) image.Rectangle {
	px, py := plan.pixel(center)
	cx := int(px) - plan.OriginColumn*plan.TileSize
	cy := int(py) - plan.OriginRow*plan.TileSize

	x0 := clampInt(cx-width/2, 0, plan.PixelWidth-width)
	y0 := clampInt(cy-height/2, 0, plan.PixelHeight-height)
	return image.Rect(x0, y0, x0+width, y0+height)
}
