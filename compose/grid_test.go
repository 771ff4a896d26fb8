package compose

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestPlanGrid_ViewportSizing(t *testing.T) {
	sf := orb.Point{-122.4194, 37.7749}

	plan, err := PlanGrid(sf, 12, 800, 480, 256)
	if err != nil {
		t.Fatal(err)
	}
	if plan.TilesX != 5 || plan.TilesY != 3 {
		t.Errorf("grid = %dx%d, want 5x3", plan.TilesX, plan.TilesY)
	}
	if plan.PixelWidth != 1280 || plan.PixelHeight != 768 {
		t.Errorf("canvas = %dx%d, want 1280x768", plan.PixelWidth, plan.PixelHeight)
	}
	// Center tile (655, 1583) sits in the middle cell.
	if plan.OriginColumn != 653 || plan.OriginRow != 1582 {
		t.Errorf("origin = %d,%d", plan.OriginColumn, plan.OriginRow)
	}

	// A viewport exactly matching the tile grid still gets the extra
	// tile of slack in each dimension.
	plan, err = PlanGrid(sf, 12, 1280, 768, 256)
	if err != nil {
		t.Fatal(err)
	}
	if plan.TilesX != 6 || plan.TilesY != 4 {
		t.Errorf("grid = %dx%d, want 6x4", plan.TilesX, plan.TilesY)
	}
}

func TestPlanGrid_PolarRowsAreVirtual(t *testing.T) {
	// Near the Mercator ceiling the grid's top row underflows the
	// pyramid; those cells are virtual, not wrapped.
	plan, err := PlanGrid(orb.Point{0, 84}, 2, 480, 480, 256)
	if err != nil {
		t.Fatal(err)
	}
	if plan.OriginRow >= 0 {
		t.Fatalf("origin row = %d, expected underflow", plan.OriginRow)
	}
	if _, ok := plan.Cell(0, 0); ok {
		t.Error("row above the pyramid must be virtual")
	}
	idx, ok := plan.Cell(0, -plan.OriginRow)
	if !ok {
		t.Fatal("row 0 of the pyramid should be real")
	}
	if idx.Row != 0 {
		t.Errorf("row = %d", idx.Row)
	}
}

func TestPlanGrid_AntimeridianColumnsWrap(t *testing.T) {
	plan, err := PlanGrid(orb.Point{179.9, 0}, 4, 800, 480, 256)
	if err != nil {
		t.Fatal(err)
	}
	// Center column 15 of 16; the grid spills past the date line.
	idx, ok := plan.Cell(plan.TilesX-1, plan.TilesY/2)
	if !ok {
		t.Fatal("wrapped cell should be real")
	}
	if idx.Column >= 16 || idx.Column < 0 {
		t.Errorf("column %d not wrapped into [0,16)", idx.Column)
	}

	// And from the west side, negative columns wrap too.
	plan, err = PlanGrid(orb.Point{-179.9, 0}, 4, 800, 480, 256)
	if err != nil {
		t.Fatal(err)
	}
	idx, ok = plan.Cell(0, plan.TilesY/2)
	if !ok {
		t.Fatal("wrapped cell should be real")
	}
	if idx.Column >= 16 || idx.Column < 0 {
		t.Errorf("column %d not wrapped into [0,16)", idx.Column)
	}
}

func TestGridPlan_Bound(t *testing.T) {
	plan, err := PlanGrid(orb.Point{-122.4194, 37.7749}, 12, 800, 480, 256)
	if err != nil {
		t.Fatal(err)
	}
	b := plan.Bound()
	if !b.Contains(orb.Point{-122.4194, 37.7749}) {
		t.Errorf("canvas bound %v does not contain the center", b)
	}
	if b.Min.Lat() >= b.Max.Lat() || b.Min.Lon() >= b.Max.Lon() {
		t.Errorf("degenerate bound %v", b)
	}
}
