package geo

import (
	"fmt"
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestToTileIndex(t *testing.T) {
	cases := []struct {
		lat, lon float64
		zoom     int
		col, row int
	}{
		// San Francisco.
		{37.7749, -122.4194, 12, 655, 1583},
		// Null island lands in the southeast quadrant tile.
		{0, 0, 1, 1, 1},
		{0, 0, 0, 0, 0},
		// Greenwich, northern hemisphere.
		{51.4779, 0, 10, 512, 340},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%v,%v@z%d", c.lat, c.lon, c.zoom), func(t *testing.T) {
			idx, err := ToTileIndex(orb.Point{c.lon, c.lat}, c.zoom)
			if err != nil {
				t.Fatal(err)
			}
			if idx.Column != c.col || idx.Row != c.row {
				t.Errorf("got %s, want %d/%d/%d", idx, c.zoom, c.col, c.row)
			}
		})
	}
}

func TestToTileIndex_RoundTrip(t *testing.T) {
	pts := []orb.Point{
		{-122.4194, 37.7749},
		{13.4050, 52.5200},
		{174.7633, -36.8485},
		{-0.1276, 51.5074},
	}
	const zoom = 14
	for _, pt := range pts {
		idx, err := ToTileIndex(pt, zoom)
		if err != nil {
			t.Fatal(err)
		}
		// The point must fall inside its tile's geographic footprint.
		nw := idx.GeoPoint()
		se := TileIndex{Zoom: zoom, Column: idx.Column + 1, Row: idx.Row + 1}.GeoPoint()
		if pt.Lon() < nw.Lon() || pt.Lon() >= se.Lon() {
			t.Errorf("%v: lon outside tile [%v, %v)", pt, nw.Lon(), se.Lon())
		}
		if pt.Lat() > nw.Lat() || pt.Lat() <= se.Lat() {
			t.Errorf("%v: lat outside tile (%v, %v]", pt, se.Lat(), nw.Lat())
		}
	}
}

func TestToTileIndex_EdgeClamp(t *testing.T) {
	// The Mercator extremes must still land inside the pyramid.
	for _, pt := range []orb.Point{
		{-180, MaxLatitude},
		{-180, -MaxLatitude},
		{179.9999, MaxLatitude},
	} {
		idx, err := ToTileIndex(pt, 10)
		if err != nil {
			t.Fatalf("%v: %v", pt, err)
		}
		if !idx.Valid() {
			t.Errorf("%v: clamped index invalid: %s", pt, idx)
		}
	}
}

func TestToTileIndex_Invalid(t *testing.T) {
	if _, err := ToTileIndex(orb.Point{0, 89}, 10); err == nil {
		t.Error("want error beyond Mercator latitude limit")
	}
	if _, err := ToTileIndex(orb.Point{180, 0}, 10); err == nil {
		t.Error("want error at lon=180 (domain is [-180, 180))")
	}
	if _, err := ToTileIndex(orb.Point{0, 0}, 23); err == nil {
		t.Error("want error beyond max zoom")
	}
	if _, err := ToTileIndex(orb.Point{math.NaN(), 0}, 10); err == nil {
		t.Error("want error for NaN")
	}
}

func TestTileIndex_Ancestor(t *testing.T) {
	idx := TileIndex{Zoom: 14, Column: 2622, Row: 6331}
	parent, ox, oy := idx.Ancestor(13)
	if parent.Zoom != 13 || parent.Column != 1311 || parent.Row != 3165 {
		t.Errorf("parent = %s", parent)
	}
	if ox != 0 || oy != 1 {
		t.Errorf("offsets = %d,%d, want 0,1", ox, oy)
	}

	parent, ox, oy = idx.Ancestor(12)
	if parent.Column != 655 || parent.Row != 1582 {
		t.Errorf("grandparent = %s", parent)
	}
	if ox != 2 || oy != 3 {
		t.Errorf("offsets = %d,%d, want 2,3", ox, oy)
	}
}

func TestParseBound(t *testing.T) {
	b, err := ParseBound("-123.5,36.5,-121.2,38.9")
	if err != nil {
		t.Fatal(err)
	}
	if !Contains(b, orb.Point{-122.4194, 37.7749}) {
		t.Error("point inside bounds not contained")
	}
	// Edges are inclusive.
	if !Contains(b, orb.Point{-123.5, 36.5}) || !Contains(b, orb.Point{-121.2, 38.9}) {
		t.Error("bound corners not contained")
	}
	if Contains(b, orb.Point{-120, 37}) {
		t.Error("point east of bounds contained")
	}

	if _, err := ParseBound("10,20,5,30"); err == nil {
		t.Error("want error for inverted bounds")
	}
	if _, err := ParseBound("garbage"); err == nil {
		t.Error("want error for malformed bounds")
	}
}

func TestTileIndex_Valid(t *testing.T) {
	if (TileIndex{Zoom: 2, Column: 4, Row: 0}).Valid() {
		t.Error("column 4 at zoom 2 should be invalid")
	}
	if (TileIndex{Zoom: 2, Column: -1, Row: 0}).Valid() {
		t.Error("negative column should be invalid")
	}
	if !(TileIndex{Zoom: 0, Column: 0, Row: 0}).Valid() {
		t.Error("the world tile should be valid")
	}
}
