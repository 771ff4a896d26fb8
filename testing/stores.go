// Package testing builds throwaway MBTiles fixtures: real sqlite files
// with whatever metadata and tile payloads a test needs.
package testing

import (
	"bytes"
	"database/sql"
	"fmt"
	"image"
	"image/color"
	"image/png"

	_ "github.com/mattn/go-sqlite3"
)

// TileSpec places one payload in a fixture store. Row is in the display
// convention (row 0 northernmost); the builder flips it on insert the
// same way readers flip it back out.
type TileSpec struct {
	Zoom   int
	Column int
	Row    int

	// Layer routes the payload to a tiles_<layer> side table.
	// Empty means the main tiles table.
	Layer string

	Data []byte
}

// StoreSpec describes one fixture store.
type StoreSpec struct {
	// Metadata rows. Typical keys: name, bounds, minzoom, maxzoom, format.
	Metadata map[string]string

	// Layers to create side tables for, even if no tile lands there.
	Layers []string

	Tiles []TileSpec
}

// BuildStore writes a complete MBTiles file at path.
func BuildStore(path string, spec StoreSpec) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE metadata (name TEXT, value TEXT)`,
		`CREATE TABLE tiles (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB)`,
		`CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row)`,
	}
	for _, layer := range spec.Layers {
		stmts = append(stmts, fmt.Sprintf(
			`CREATE TABLE tiles_%s (zoom_level INTEGER, tile_column INTEGER, tile_row INTEGER, tile_data BLOB)`, layer))
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	for name, value := range spec.Metadata {
		if _, err := db.Exec(`INSERT INTO metadata (name, value) VALUES (?, ?)`, name, value); err != nil {
			return err
		}
	}

	for _, t := range spec.Tiles {
		table := "tiles"
		if t.Layer != "" {
			table = "tiles_" + t.Layer
		}
		flipped := (1 << uint(t.Zoom)) - 1 - t.Row
		if _, err := db.Exec(
			fmt.Sprintf(`INSERT INTO %s (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)`, table),
			t.Zoom, t.Column, flipped, t.Data,
		); err != nil {
			return err
		}
	}
	return nil
}

// SolidTile returns a PNG of one flat color.
func SolidTile(size int, c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Quadrant colors of QuadrantTile, clockwise from top-left.
var (
	QuadNW = color.RGBA{R: 0xff, A: 0xff}
	QuadNE = color.RGBA{G: 0xff, A: 0xff}
	QuadSW = color.RGBA{B: 0xff, A: 0xff}
	QuadSE = color.RGBA{R: 0xff, G: 0xff, A: 0xff}
)

// QuadrantTile returns a PNG split into four flat-colored quadrants,
// for asserting which sub-rectangle a scaler picked.
func QuadrantTile(size int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	half := size / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			switch {
			case x < half && y < half:
				img.SetRGBA(x, y, QuadNW)
			case x >= half && y < half:
				img.SetRGBA(x, y, QuadNE)
			case x < half:
				img.SetRGBA(x, y, QuadSW)
			default:
				img.SetRGBA(x, y, QuadSE)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
