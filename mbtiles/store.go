// Package mbtiles reads tile-pyramid databases in the MBTiles layout:
// a sqlite file with a `tiles` table keyed by zoom/column/flipped-row
// and a `metadata` key-value table.
package mbtiles

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/tidwall/gjson"

	"github.com/elcano/mapd/geo"

	_ "github.com/mattn/go-sqlite3"
	_ "image/jpeg"
)

// DefaultLayer is the implicit layer of a store that declares none.
const DefaultLayer = "default"

var (
	// ErrNotOpenable marks a file that is absent, not sqlite,
	// or missing its tiles table. Fatal for that store.
	ErrNotOpenable = errors.New("mbtiles: file not openable")

	// ErrUnsupportedFormat marks a raster request against a vector
	// (or undecodable) payload. Never silently rasterized.
	ErrUnsupportedFormat = errors.New("mbtiles: unsupported tile format")
)

// Descriptor summarizes one store for coordinate-based selection.
// Immutable once computed from the file.
type Descriptor struct {
	Path     string     `json:"path"`
	Name     string     `json:"name"`
	Bound    orb.Bound  `json:"bounds"`
	MinZoom  int        `json:"minzoom"`
	MaxZoom  int        `json:"maxzoom"`
	Format   TileFormat `json:"-"`
	TileSize int        `json:"tileSize"`
	Layers   []string   `json:"layers"`
}

// Center returns the midpoint of the descriptor bounds.
func (d Descriptor) Center() orb.Point {
	return d.Bound.Center()
}

// Store is an open connection to one MBTiles file.
type Store struct {
	db   *sql.DB
	desc Descriptor
	meta map[string]string
}

// Open opens the MBTiles file read-only and derives its descriptor:
// metadata, layer set, payload format (metadata first, byte sniff second)
// and tile size measured from a sample tile.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotOpenable, path, err)
	}
	s := &Store{db: db, desc: Descriptor{
		Path:     path,
		Name:     filepath.Base(path),
		MinZoom:  geo.ZoomMin,
		MaxZoom:  18,
		TileSize: geo.DefaultTileSize,
	}}

	// sql.Open is lazy; the core-table check is the real open.
	var n int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table','view') AND name='tiles'`,
	).Scan(&n); err != nil || n == 0 {
		db.Close()
		return nil, fmt.Errorf("%w: %s: no tiles table", ErrNotOpenable, path)
	}

	if err := s.readMetadata(); err != nil {
		db.Close()
		return nil, err
	}
	s.desc.Layers = s.detectLayers()
	s.measureSample()
	return s, nil
}

// ReadDescriptor opens the file just long enough to compute its descriptor.
func ReadDescriptor(path string) (Descriptor, error) {
	s, err := Open(path)
	if err != nil {
		return Descriptor{}, err
	}
	defer s.Close()
	return s.Descriptor(), nil
}

func (s *Store) readMetadata() error {
	s.meta = map[string]string{}
	rows, err := s.db.Query(`SELECT name, value FROM metadata`)
	if err != nil {
		// A missing metadata table leaves defaults in place.
		return nil
	}
	defer rows.Close()
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrNotOpenable, s.desc.Path, err)
		}
		s.meta[name] = value
	}

	if v, ok := s.meta["name"]; ok && v != "" {
		s.desc.Name = v
	}
	if v, ok := s.meta["bounds"]; ok {
		if b, err := geo.ParseBound(v); err == nil {
			s.desc.Bound = b
		}
	}
	if v, ok := s.meta["minzoom"]; ok {
		if z, err := strconv.Atoi(v); err == nil {
			s.desc.MinZoom = z
		}
	}
	if v, ok := s.meta["maxzoom"]; ok {
		if z, err := strconv.Atoi(v); err == nil {
			s.desc.MaxZoom = z
		}
	}
	s.desc.Format = ParseFormat(s.meta["format"])
	return nil
}

// detectLayers enumerates logical layers: vector_layers ids from the
// metadata `json` value, else tiles_<name> side tables, else the
// implicit default layer.
func (s *Store) detectLayers() []string {
	if j, ok := s.meta["json"]; ok {
		var layers []string
		gjson.Get(j, "vector_layers.#.id").ForEach(func(_, v gjson.Result) bool {
			layers = append(layers, v.String())
			return true
		})
		if len(layers) > 0 {
			return layers
		}
	}

	rows, err := s.db.Query(
		`SELECT name FROM sqlite_master WHERE type='table' AND name LIKE 'tiles_%'`)
	if err == nil {
		defer rows.Close()
		var layers []string
		for rows.Next() {
			var name string
			if rows.Scan(&name) == nil {
				layers = append(layers, name[len("tiles_"):])
			}
		}
		if len(layers) > 0 {
			return layers
		}
	}
	return []string{DefaultLayer}
}

// measureSample settles format and tile size from one sample payload.
func (s *Store) measureSample() {
	var data []byte
	if err := s.db.QueryRow(`SELECT tile_data FROM tiles LIMIT 1`).Scan(&data); err != nil {
		return
	}
	if s.desc.Format == FormatUnknown {
		s.desc.Format = SniffFormat(data)
	}
	if s.desc.Format.Raster() {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil && cfg.Width > 0 {
			s.desc.TileSize = cfg.Width
		}
	}
}

// Descriptor returns the store's immutable summary.
func (s *Store) Descriptor() Descriptor { return s.desc }

// Metadata returns the raw metadata key-value pairs.
func (s *Store) Metadata() map[string]string { return s.meta }

var layerTableRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// GetTile returns the raw payload for an exact index, or (nil, nil)
// when absent. The stored row is flipped from the display convention
// (storedRow = 2^zoom - 1 - row) on every read.
func (s *Store) GetTile(idx geo.TileIndex, layer string) ([]byte, error) {
	if !idx.Valid() {
		return nil, fmt.Errorf("%w: %s", geo.ErrInvalidCoordinate, idx)
	}
	flipped := (1 << uint(idx.Zoom)) - 1 - idx.Row

	var data []byte
	err := s.db.QueryRow(
		`SELECT tile_data FROM tiles WHERE zoom_level=? AND tile_column=? AND tile_row=?`,
		idx.Zoom, idx.Column, flipped,
	).Scan(&data)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("mbtiles: %s: read %s: %w", s.desc.Path, idx, err)
	}

	// Some regional stores keep per-layer side tables.
	if layer != "" && layer != DefaultLayer && layerTableRe.MatchString(layer) {
		err = s.db.QueryRow(
			`SELECT tile_data FROM tiles_`+layer+` WHERE zoom_level=? AND tile_column=? AND tile_row=?`,
			idx.Zoom, idx.Column, flipped,
		).Scan(&data)
		if err == nil {
			return data, nil
		}
	}
	return nil, nil
}

// GetTileAsRaster returns the tile re-encoded as PNG. Vector stores fail
// with ErrUnsupportedFormat rather than attempting a conversion.
func (s *Store) GetTileAsRaster(idx geo.TileIndex, layer string) ([]byte, error) {
	if !s.desc.Format.Raster() {
		return nil, fmt.Errorf("%w: store %s is %s", ErrUnsupportedFormat, s.desc.Name, s.desc.Format)
	}
	data, err := s.GetTile(idx, layer)
	if err != nil || data == nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnsupportedFormat, s.desc.Name, idx, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TileExists reports whether a payload exists at the index without
// fetching it.
func (s *Store) TileExists(idx geo.TileIndex, layer string) (bool, error) {
	if !idx.Valid() {
		return false, nil
	}
	flipped := (1 << uint(idx.Zoom)) - 1 - idx.Row
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM tiles WHERE zoom_level=? AND tile_column=? AND tile_row=?`,
		idx.Zoom, idx.Column, flipped,
	).Scan(&n)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if layer != "" && layer != DefaultLayer && layerTableRe.MatchString(layer) {
		if err := s.db.QueryRow(
			`SELECT COUNT(*) FROM tiles_`+layer+` WHERE zoom_level=? AND tile_column=? AND tile_row=?`,
			idx.Zoom, idx.Column, flipped,
		).Scan(&n); err == nil && n > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Zooms returns the distinct zoom levels present, ascending.
func (s *Store) Zooms() ([]int, error) {
	rows, err := s.db.Query(`SELECT DISTINCT zoom_level FROM tiles ORDER BY zoom_level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var zooms []int
	for rows.Next() {
		var z int
		if err := rows.Scan(&z); err != nil {
			return nil, err
		}
		zooms = append(zooms, z)
	}
	return zooms, rows.Err()
}

// CountTiles returns the tile count at one zoom level.
func (s *Store) CountTiles(zoom int) (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tiles WHERE zoom_level=?`, zoom).Scan(&n)
	return n, err
}

// ClosestZoom returns the available zoom nearest the target.
// On a tie the lower zoom wins, matching ascending scan order.
func (s *Store) ClosestZoom(target int) (int, error) {
	zooms, err := s.Zooms()
	if err != nil {
		return 0, err
	}
	if len(zooms) == 0 {
		return 0, fmt.Errorf("mbtiles: %s has no tiles", s.desc.Name)
	}
	best := zooms[0]
	for _, z := range zooms[1:] {
		if abs(z-target) < abs(best-target) {
			best = z
		}
	}
	return best, nil
}

// Layers returns the declared layer names.
func (s *Store) Layers() []string { return s.desc.Layers }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
