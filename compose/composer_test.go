package compose

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"

	"github.com/elcano/mapd/common"
	"github.com/elcano/mapd/params"
	"github.com/elcano/mapd/region"
	"github.com/elcano/mapd/resolve"
	mapdt "github.com/elcano/mapd/testing"

	_ "image/png"
)

func TestMain(m *testing.M) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	os.Exit(m.Run())
}

var sf = orb.Point{-122.4194, 37.7749}

// newTestComposer builds a westcoast store holding the given z12 tiles
// and wires a full pipeline over it.
func newTestComposer(t *testing.T, tiles []mapdt.TileSpec) *Composer {
	t.Helper()
	dir := t.TempDir()
	err := mapdt.BuildStore(filepath.Join(dir, "west.mbtiles"), mapdt.StoreSpec{
		Metadata: map[string]string{
			"name":   "westcoast",
			"bounds": "-125,32,-117,49",
			"format": "png",
		},
		Tiles: tiles,
	})
	if err != nil {
		t.Fatal(err)
	}

	config := params.DefaultEngineConfig()
	config.AssetsDir = dir
	regions, err := region.NewManager(config)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { regions.Close() })
	resolver, err := resolve.NewResolver(config, regions)
	if err != nil {
		t.Fatal(err)
	}
	return NewComposer(config, regions, resolver)
}

// sfGridTiles fills the 5x3 z12 grid around San Francisco
// (columns 653-657, rows 1582-1584), except the listed holes.
func sfGridTiles(holes ...[2]int) []mapdt.TileSpec {
	isHole := func(col, row int) bool {
		for _, h := range holes {
			if h[0] == col && h[1] == row {
				return true
			}
		}
		return false
	}
	var tiles []mapdt.TileSpec
	for row := 1582; row <= 1584; row++ {
		for col := 653; col <= 657; col++ {
			if isHole(col, row) {
				continue
			}
			tiles = append(tiles, mapdt.TileSpec{
				Zoom: 12, Column: col, Row: row,
				Data: mapdt.SolidTile(256, color.RGBA{R: 0xc8, G: 0x32, B: 0x32, A: 0xff}),
			})
		}
	}
	return tiles
}

func TestCompose_FullCanvas(t *testing.T) {
	c := newTestComposer(t, sfGridTiles())
	res, err := c.Compose(context.Background(), Request{
		Center: sf, Zoom: 12, Width: 800, Height: 480,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Width != 1280 || res.Height != 768 {
		t.Errorf("canvas = %dx%d, want 1280x768", res.Width, res.Height)
	}
	if res.TilesFound != 15 || res.TilesMissing != 0 {
		t.Errorf("found/missing = %d/%d", res.TilesFound, res.TilesMissing)
	}
	if len(res.Cells) != 15 {
		t.Errorf("cells = %d", len(res.Cells))
	}

	img, _, err := image.Decode(bytes.NewReader(res.Image))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 1280 || img.Bounds().Dy() != 768 {
		t.Errorf("decoded = %v", img.Bounds())
	}
	got := color.RGBAModel.Convert(img.At(10, 10)).(color.RGBA)
	if got != (color.RGBA{R: 0xc8, G: 0x32, B: 0x32, A: 0xff}) {
		t.Errorf("corner pixel = %v", got)
	}
}

func TestCompose_Cropped(t *testing.T) {
	c := newTestComposer(t, sfGridTiles())
	res, err := c.Compose(context.Background(), Request{
		Center: sf, Zoom: 12, Width: 800, Height: 480, Crop: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Width != 800 || res.Height != 480 {
		t.Errorf("cropped = %dx%d, want 800x480", res.Width, res.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(res.Image))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 800 || img.Bounds().Dy() != 480 {
		t.Errorf("decoded = %v", img.Bounds())
	}
}

func TestCompose_CroppedBoundShrinks(t *testing.T) {
	c := newTestComposer(t, sfGridTiles())
	full, err := c.Compose(context.Background(), Request{
		Center: sf, Zoom: 12, Width: 800, Height: 480,
	})
	if err != nil {
		t.Fatal(err)
	}
	cropped, err := c.Compose(context.Background(), Request{
		Center: sf, Zoom: 12, Width: 800, Height: 480, Crop: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	// The cropped window's bound is recomputed from its corner pixels:
	// strictly inside the full-canvas bound, still containing the center.
	fb, cb := full.Bound, cropped.Bound
	if cb.Min.Lon() <= fb.Min.Lon() || cb.Max.Lon() >= fb.Max.Lon() {
		t.Errorf("cropped lon span [%v, %v] not inside [%v, %v]",
			cb.Min.Lon(), cb.Max.Lon(), fb.Min.Lon(), fb.Max.Lon())
	}
	if cb.Min.Lat() <= fb.Min.Lat() || cb.Max.Lat() >= fb.Max.Lat() {
		t.Errorf("cropped lat span [%v, %v] not inside [%v, %v]",
			cb.Min.Lat(), cb.Max.Lat(), fb.Min.Lat(), fb.Max.Lat())
	}
	if !cb.Contains(sf) {
		t.Errorf("cropped bound %v does not contain the center", cb)
	}

	// Aspect sanity: 800/480 pixels of the same zoom cover a pixel
	// ratio of lon span proportional to the window width.
	fullLon := fb.Max.Lon() - fb.Min.Lon()
	cropLon := cb.Max.Lon() - cb.Min.Lon()
	wantLon := fullLon * 800.0 / 1280.0
	if diff := cropLon - wantLon; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cropped lon span = %v, want %v", cropLon, wantLon)
	}
}

func TestCompose_PlaceholderAccounting(t *testing.T) {
	c := newTestComposer(t, sfGridTiles([2]int{654, 1583}, [2]int{657, 1584}))
	res, err := c.Compose(context.Background(), Request{
		Center: sf, Zoom: 12, Width: 800, Height: 480,
		FallbackZooms: []int{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.TilesFound != 13 || res.TilesMissing != 2 {
		t.Errorf("found/missing = %d/%d, want 13/2", res.TilesFound, res.TilesMissing)
	}
	if res.TilesFound+res.TilesMissing != res.Grid.TilesX*res.Grid.TilesY {
		t.Error("every grid cell must be accounted found or missing")
	}

	// The hole at grid cell (1, 1) renders the placeholder fill.
	img, _, err := image.Decode(bytes.NewReader(res.Image))
	if err != nil {
		t.Fatal(err)
	}
	got := color.RGBAModel.Convert(img.At(1*256+10, 1*256+100)).(color.RGBA)
	if got != (color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}) {
		t.Errorf("placeholder pixel = %v", got)
	}
}

func TestCompose_Deterministic(t *testing.T) {
	c := newTestComposer(t, sfGridTiles([2]int{655, 1582}))
	req := Request{Center: sf, Zoom: 12, Width: 800, Height: 480, Crop: true}

	first, err := c.Compose(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Compose(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Image, second.Image) {
		t.Error("identical requests must produce identical bytes")
	}
}

func TestCompose_UncoveredCenterFails(t *testing.T) {
	c := newTestComposer(t, sfGridTiles())
	_, err := c.Compose(context.Background(), Request{
		Center: orb.Point{0, 0}, Zoom: 12, Width: 800, Height: 480,
	})
	if !errors.Is(err, region.ErrNoMapForCoordinate) {
		t.Errorf("err = %v, want ErrNoMapForCoordinate", err)
	}
}

func TestCompose_InvalidInput(t *testing.T) {
	c := newTestComposer(t, sfGridTiles())
	if _, err := c.Compose(context.Background(), Request{Center: sf, Zoom: 25, Width: 800, Height: 480}); err == nil {
		t.Error("want error for invalid zoom")
	}
	if _, err := c.Compose(context.Background(), Request{Center: sf, Zoom: 12, Width: 0, Height: 480}); err == nil {
		t.Error("want error for empty viewport")
	}
}

func TestCompose_Canceled(t *testing.T) {
	c := newTestComposer(t, sfGridTiles())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Compose(ctx, Request{Center: sf, Zoom: 12, Width: 800, Height: 480}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCompose_ZoomFallbackFillsHole(t *testing.T) {
	tiles := sfGridTiles([2]int{655, 1583})
	// The hole's z11 parent is present; fallback synthesizes the cell.
	tiles = append(tiles, mapdt.TileSpec{
		Zoom: 11, Column: 327, Row: 791,
		Data: mapdt.SolidTile(256, color.RGBA{G: 0x96, A: 0xff}),
	})
	c := newTestComposer(t, tiles)

	res, err := c.Compose(context.Background(), Request{
		Center: sf, Zoom: 12, Width: 800, Height: 480,
		FallbackZooms: []int{11},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.TilesMissing != 0 {
		t.Errorf("missing = %d, want 0", res.TilesMissing)
	}
	if res.TilesScaled != 1 {
		t.Errorf("scaled = %d, want 1", res.TilesScaled)
	}
}
