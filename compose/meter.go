package compose

import (
	"log/slog"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	compositeMeter  metrics.Meter
	renderTimer     metrics.Timer
	tileFoundMeter  metrics.Meter
	tileMissMeter   metrics.Meter
	tileScaledMeter metrics.Meter
)

func init() {
	// Won't work without this global setting.
	metrics.Enabled = true

	compositeMeter = metrics.GetOrRegisterMeter("compose/composites", nil)
	renderTimer = metrics.GetOrRegisterTimer("compose/render", nil)
	tileFoundMeter = metrics.GetOrRegisterMeter("compose/tiles/found", nil)
	tileMissMeter = metrics.GetOrRegisterMeter("compose/tiles/missing", nil)
	tileScaledMeter = metrics.GetOrRegisterMeter("compose/tiles/scaled", nil)
}

// recordRender feeds the meters and drops one stats line per composite.
func recordRender(logger *slog.Logger, res *Result, elapsed time.Duration) {
	compositeMeter.Mark(1)
	renderTimer.Update(elapsed)
	tileFoundMeter.Mark(int64(res.TilesFound))
	tileMissMeter.Mark(int64(res.TilesMissing))
	tileScaledMeter.Mark(int64(res.TilesScaled))

	logger.Info("Composite rendered",
		"size", res.Width, "x", res.Height,
		"found", res.TilesFound, "missing", res.TilesMissing, "scaled", res.TilesScaled,
		"bytes", humanize.Bytes(uint64(len(res.Image))),
		"elapsed", elapsed.Round(time.Millisecond),
		"total", humanize.Comma(compositeMeter.Snapshot().Count()))
}
