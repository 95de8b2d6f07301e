package raster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zumagro/soil-nutrient-service/internal/domain"
	"github.com/zumagro/soil-nutrient-service/internal/resilience"
)

// Tolerance applied to intersection checks and degenerate-window expansion,
// in native CRS units.
const (
	projectedToleranceM    = 1000.0
	geographicToleranceDeg = 0.01
)

// Fetcher implements domain.BandFetcher against a raster window backend that
// exposes per-asset metadata and clip endpoints.
type Fetcher struct {
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
	duration   prometheus.Histogram
}

func NewFetcher(timeout time.Duration, executor *resilience.Executor, logger *slog.Logger, duration prometheus.Histogram) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
		logger:     logger,
		duration:   duration,
	}
}

// FetchBand clips one band asset to the requested geographic box. Returns a
// nil grid with a nil error when the asset does not usably intersect the box;
// only transport and backend failures surface as errors.
func (f *Fetcher) FetchBand(ctx context.Context, assetURI string, bbox domain.BoundingBox) (domain.BandGrid, error) {
	var grid domain.BandGrid
	err := f.executor.Execute(ctx, "band_fetch", func(ctx context.Context) error {
		start := time.Now()
		g, err := f.fetch(ctx, assetURI, bbox)
		f.duration.Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		grid = g
		return nil
	}, resilience.TransportClassifier)
	if err != nil {
		return nil, err
	}
	return grid, nil
}

func (f *Fetcher) fetch(ctx context.Context, assetURI string, bbox domain.BoundingBox) (domain.BandGrid, error) {
	meta, err := f.metadata(ctx, assetURI)
	if err != nil {
		return nil, err
	}

	win, err := projectBBox(bbox, meta.EPSG)
	if err != nil {
		return nil, err
	}

	tol := projectedToleranceM
	if meta.EPSG == 4326 {
		tol = geographicToleranceDeg
	}

	bounds := nativeWindow{
		MinX: meta.Bounds[0], MinY: meta.Bounds[1],
		MaxX: meta.Bounds[2], MaxY: meta.Bounds[3],
	}
	if !win.intersects(bounds, tol) {
		f.logger.Warn("band does not intersect request area",
			"asset", assetURI, "epsg", meta.EPSG)
		return nil, nil
	}

	clip := win.clampTo(bounds)
	grid, err := f.clip(ctx, assetURI, clip, meta.NoData)
	if err == nil && grid.Empty() {
		// Slivers at scene edges can clamp to a degenerate window. One
		// expansion by the tolerance recovers those.
		expanded := win.expand(tol).clampTo(bounds)
		grid, err = f.clip(ctx, assetURI, expanded, meta.NoData)
	}
	if err != nil {
		return nil, err
	}
	if grid.Empty() {
		f.logger.Warn("clip produced no pixels", "asset", assetURI)
		return nil, nil
	}
	return grid, nil
}

func (f *Fetcher) metadata(ctx context.Context, assetURI string) (*assetMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURI+"/metadata", nil)
	if err != nil {
		return nil, fmt.Errorf("create metadata request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("band metadata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("raster API error: status %d: %s", resp.StatusCode, payload)
	}

	var meta assetMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode band metadata: %w", err)
	}
	if len(meta.Bounds) != 4 {
		return nil, fmt.Errorf("band metadata has %d bounds values, want 4", len(meta.Bounds))
	}
	return &meta, nil
}

func (f *Fetcher) clip(ctx context.Context, assetURI string, win nativeWindow, noData *float64) (domain.BandGrid, error) {
	params := url.Values{
		"minx": {formatCoord(win.MinX)},
		"miny": {formatCoord(win.MinY)},
		"maxx": {formatCoord(win.MaxX)},
		"maxy": {formatCoord(win.MaxY)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURI+"/clip?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create clip request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("band clip request: %w", err)
	}
	defer resp.Body.Close()

	// The backend reports an empty window as 422; that is a recoverable
	// outcome handled by the caller, not a transport failure.
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("raster API error: status %d: %s", resp.StatusCode, payload)
	}

	var cr clipResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode clip response: %w", err)
	}
	return toGrid(cr, noData)
}

func toGrid(cr clipResponse, noData *float64) (domain.BandGrid, error) {
	if cr.Width <= 0 || cr.Height <= 0 {
		return nil, nil
	}
	if len(cr.Values) != cr.Width*cr.Height {
		return nil, fmt.Errorf("clip returned %d values for %dx%d window", len(cr.Values), cr.Width, cr.Height)
	}

	grid := make(domain.BandGrid, cr.Height)
	for r := 0; r < cr.Height; r++ {
		row := make([]float64, cr.Width)
		copy(row, cr.Values[r*cr.Width:(r+1)*cr.Width])
		if noData != nil {
			for i, v := range row {
				if v == *noData {
					row[i] = math.NaN()
				}
			}
		}
		grid[r] = row
	}
	return grid, nil
}

// projectBBox projects all four corners and takes the native-axis envelope,
// which absorbs the curvature of the box edges under projection.
func projectBBox(bbox domain.BoundingBox, epsg int) (nativeWindow, error) {
	_, centerLon := bbox.Center()
	if err := checkZoneCoverage(epsg, centerLon); err != nil {
		return nativeWindow{}, err
	}

	corners := [4][2]float64{
		{bbox.MinLat, bbox.MinLon},
		{bbox.MinLat, bbox.MaxLon},
		{bbox.MaxLat, bbox.MinLon},
		{bbox.MaxLat, bbox.MaxLon},
	}

	win := nativeWindow{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
	for _, c := range corners {
		x, y, err := projectPoint(c[0], c[1], epsg)
		if err != nil {
			return nativeWindow{}, err
		}
		win.MinX = math.Min(win.MinX, x)
		win.MinY = math.Min(win.MinY, y)
		win.MaxX = math.Max(win.MaxX, x)
		win.MaxY = math.Max(win.MaxY, y)
	}
	return win, nil
}

type nativeWindow struct {
	MinX, MinY, MaxX, MaxY float64
}

func (w nativeWindow) intersects(other nativeWindow, tol float64) bool {
	return w.MinX <= other.MaxX+tol && w.MaxX >= other.MinX-tol &&
		w.MinY <= other.MaxY+tol && w.MaxY >= other.MinY-tol
}

func (w nativeWindow) clampTo(other nativeWindow) nativeWindow {
	return nativeWindow{
		MinX: math.Max(w.MinX, other.MinX),
		MinY: math.Max(w.MinY, other.MinY),
		MaxX: math.Min(w.MaxX, other.MaxX),
		MaxY: math.Min(w.MaxY, other.MaxY),
	}
}

func (w nativeWindow) expand(delta float64) nativeWindow {
	return nativeWindow{
		MinX: w.MinX - delta,
		MinY: w.MinY - delta,
		MaxX: w.MaxX + delta,
		MaxY: w.MaxY + delta,
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Raster backend wire types.

type assetMetadata struct {
	EPSG   int       `json:"epsg"`
	Bounds []float64 `json:"bounds"` // [minx, miny, maxx, maxy]
	NoData *float64  `json:"nodata,omitempty"`
}

type clipResponse struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Values []float64 `json:"values"` // row-major
}
