package api

import (
	"bytes"
	"context"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/elcano/mapd/common"
	"github.com/elcano/mapd/geo"
	"github.com/elcano/mapd/params"
	mapdt "github.com/elcano/mapd/testing"
)

func TestMain(m *testing.M) {
	defer common.SlogResetLevel(slog.Level(slog.LevelWarn + 1))()
	os.Exit(m.Run())
}

func writeWestStore(t *testing.T, path string, tileData []byte) {
	t.Helper()
	err := mapdt.BuildStore(path, mapdt.StoreSpec{
		Metadata: map[string]string{
			"name":   "westcoast",
			"bounds": "-125,32,-117,49",
			"format": "png",
		},
		Tiles: []mapdt.TileSpec{
			{Zoom: 12, Column: 655, Row: 1583, Data: tileData},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
}

// Replacing a store on disk and rescanning must serve the new payload,
// not a memoized tile from the old file.
func TestEngine_RescanDropsResolvedTiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "west.mbtiles")
	red := mapdt.SolidTile(256, color.RGBA{R: 0xff, A: 0xff})
	blue := mapdt.SolidTile(256, color.RGBA{B: 0xff, A: 0xff})
	writeWestStore(t, path, red)

	config := params.DefaultEngineConfig()
	config.AssetsDir = dir
	engine, err := NewEngine(config)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	idx := geo.TileIndex{Zoom: 12, Column: 655, Row: 1583}
	rt, err := engine.GetTile(context.Background(), idx, "")
	if err != nil {
		t.Fatal(err)
	}
	if rt == nil || !bytes.Equal(rt.Data, red) {
		t.Fatal("first resolve did not return the original payload")
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	writeWestStore(t, path, blue)

	if err := engine.Rescan(); err != nil {
		t.Fatal(err)
	}
	rt, err = engine.GetTile(context.Background(), idx, "")
	if err != nil {
		t.Fatal(err)
	}
	if rt == nil {
		t.Fatal("resolve after rescan returned nothing")
	}
	if !bytes.Equal(rt.Data, blue) {
		t.Error("resolve after rescan returned the replaced store's payload")
	}
}
