package webd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/paulmach/orb"

	"github.com/elcano/mapd/common"
	"github.com/elcano/mapd/compose"
	"github.com/elcano/mapd/geo"
	"github.com/elcano/mapd/mbtiles"
	"github.com/elcano/mapd/params"
	"github.com/elcano/mapd/region"
	"github.com/elcano/mapd/resolve"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt time.Time               `json:"started_at"`
	Uptime    string                  `json:"uptime"`
	Config    *params.WebDaemonConfig `json:"config"`
	Stores    int                     `json:"stores"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	st := webDaemonStatus{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Config:    s.Config,
		Stores:    len(s.engine.Stores()),
	}
	j, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal status", "error", err)
		http.Error(w, "Failed to marshal status", http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(j); err != nil {
		s.logger.Error("Failed to write response", "error", err)
	}
}

func (s *WebDaemon) handleListStores(w http.ResponseWriter, r *http.Request) {
	if err := json.NewEncoder(w).Encode(s.engine.Stores()); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *WebDaemon) handleListLayers(w http.ResponseWriter, r *http.Request) {
	if err := json.NewEncoder(w).Encode(s.engine.Layers()); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *WebDaemon) handleListZooms(w http.ResponseWriter, r *http.Request) {
	zooms, err := s.engine.Zooms()
	if err != nil {
		s.logger.Warn("Failed to list zooms", "error", err)
		http.Error(w, "Failed to list zooms", http.StatusInternalServerError)
		return
	}
	if err := json.NewEncoder(w).Encode(zooms); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *WebDaemon) handleRescan(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Rescan(); err != nil {
		s.logger.Error("Rescan failed", "error", err)
		http.Error(w, "Rescan failed", http.StatusInternalServerError)
		return
	}
	if err := json.NewEncoder(w).Encode(s.engine.Stores()); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

// getRequestPoint reads ?lat=&lon= from the query. Both are required.
func getRequestPoint(r *http.Request) (orb.Point, error) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		return orb.Point{}, errors.New("missing or malformed lat")
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		return orb.Point{}, errors.New("missing or malformed lon")
	}
	return orb.Point{lon, lat}, nil
}

func getCSVInts(r *http.Request, key string) ([]int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, errors.New("malformed " + key)
		}
		out = append(out, v)
	}
	return out, nil
}

func getCSVStrings(r *http.Request, key string) []string {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// noMapReport is the 404 body when no store covers the request point.
// It names the known stores so the caller can see what is loadable.
type noMapReport struct {
	Error  string               `json:"error"`
	Lat    float64              `json:"lat"`
	Lon    float64              `json:"lon"`
	Stores []mbtiles.Descriptor `json:"stores"`
}

// writeEngineError maps engine errors onto HTTP statuses: bad input is
// 400, an uncovered coordinate is a 404 with store diagnostics.
func (s *WebDaemon) writeEngineError(w http.ResponseWriter, err error) {
	var noMap *region.NoMapError
	if errors.As(err, &noMap) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(noMapReport{
			Error:  "no map covers coordinate",
			Lat:    common.DecimalToFixed(noMap.Point.Lat(), 6),
			Lon:    common.DecimalToFixed(noMap.Point.Lon(), 6),
			Stores: noMap.Known,
		})
		return
	}
	if errors.Is(err, geo.ErrInvalidZoom) || errors.Is(err, geo.ErrInvalidCoordinate) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if errors.Is(err, mbtiles.ErrUnsupportedFormat) {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.logger.Error("Request failed", "error", err)
	http.Error(w, "Internal error", http.StatusInternalServerError)
}

func (s *WebDaemon) handleGetTile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	z, errZ := strconv.Atoi(vars["z"])
	x, errX := strconv.Atoi(vars["x"])
	y, errY := strconv.Atoi(vars["y"])
	if errZ != nil || errX != nil || errY != nil {
		http.Error(w, "Malformed tile address", http.StatusBadRequest)
		return
	}
	fallbackZooms, err := getCSVInts(r, "fallback_zooms")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rt, err := s.engine.GetTileWithFallback(r.Context(), resolve.Request{
		Index:          geo.TileIndex{Zoom: z, Column: x, Row: y},
		Layer:          r.URL.Query().Get("layer"),
		FallbackLayers: getCSVStrings(r, "fallback_layers"),
		FallbackZooms:  fallbackZooms,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if rt == nil {
		http.Error(w, "Tile not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", mbtiles.SniffFormat(rt.Data).ContentType())
	w.Header().Set("X-Tile-Source", rt.Index.String())
	w.Header().Set("X-Tile-Layer", rt.Layer)
	w.Header().Set("X-Tile-Scaled", strconv.FormatBool(rt.Scaled))
	_, _ = w.Write(rt.Data)
}

func (s *WebDaemon) handleComposite(w http.ResponseWriter, r *http.Request) {
	pt, err := getRequestPoint(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	zoom, err := strconv.Atoi(q.Get("zoom"))
	if err != nil {
		http.Error(w, "missing or malformed zoom", http.StatusBadRequest)
		return
	}
	width, err := strconv.Atoi(q.Get("width"))
	if err != nil {
		http.Error(w, "missing or malformed width", http.StatusBadRequest)
		return
	}
	height, err := strconv.Atoi(q.Get("height"))
	if err != nil {
		http.Error(w, "missing or malformed height", http.StatusBadRequest)
		return
	}
	crop := true
	if v := q.Get("crop"); v != "" {
		crop, err = strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "malformed crop", http.StatusBadRequest)
			return
		}
	}
	fallbackZooms, err := getCSVInts(r, "fallback_zooms")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.engine.GenerateComposite(r.Context(), compose.Request{
		Center:         pt,
		Zoom:           zoom,
		Width:          width,
		Height:         height,
		Crop:           crop,
		Layer:          q.Get("layer"),
		FallbackLayers: getCSVStrings(r, "fallback_layers"),
		FallbackZooms:  fallbackZooms,
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Tiles-Found", strconv.Itoa(res.TilesFound))
	w.Header().Set("X-Tiles-Missing", strconv.Itoa(res.TilesMissing))
	w.Header().Set("X-Tiles-Scaled", strconv.Itoa(res.TilesScaled))
	_, _ = w.Write(res.Image)
}

func (s *WebDaemon) handleGrid(w http.ResponseWriter, r *http.Request) {
	pt, err := getRequestPoint(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	zoom, err := strconv.Atoi(q.Get("zoom"))
	if err != nil {
		http.Error(w, "missing or malformed zoom", http.StatusBadRequest)
		return
	}
	width, err := strconv.Atoi(q.Get("width"))
	if err != nil {
		http.Error(w, "missing or malformed width", http.StatusBadRequest)
		return
	}
	height, err := strconv.Atoi(q.Get("height"))
	if err != nil {
		http.Error(w, "missing or malformed height", http.StatusBadRequest)
		return
	}
	plan, err := s.engine.CalculateGrid(pt, zoom, width, height)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if err := json.NewEncoder(w).Encode(plan); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *WebDaemon) handleCheckLocation(w http.ResponseWriter, r *http.Request) {
	pt, err := getRequestPoint(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tiles, err := s.engine.CheckLocation(pt)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	report := struct {
		Lat   float64         `json:"lat"`
		Lon   float64         `json:"lon"`
		Tiles []geo.TileIndex `json:"tiles"`
	}{
		Lat:   common.DecimalToFixed(pt.Lat(), 6),
		Lon:   common.DecimalToFixed(pt.Lon(), 6),
		Tiles: tiles,
	}
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}
