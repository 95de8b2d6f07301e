package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zumagro/soil-nutrient-service/internal/domain"
	"github.com/zumagro/soil-nutrient-service/internal/resilience"
)

const defaultLimit = 50

// Client implements domain.CatalogSearcher against a STAC-compatible imagery
// catalog's POST /search endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
	duration   prometheus.Histogram
}

// NewClient creates a catalog search client. The executor wraps every search
// with transport-level retries and a circuit breaker.
func NewClient(baseURL string, timeout time.Duration, executor *resilience.Executor, logger *slog.Logger, duration prometheus.Histogram) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
		logger:     logger,
		duration:   duration,
	}
}

// Search finds scenes for the query. An empty slice with a nil error means no
// scene matched; callers treat that as an expected fallback condition.
func (c *Client) Search(ctx context.Context, q domain.CatalogQuery) ([]domain.SatelliteItem, error) {
	var items []domain.SatelliteItem
	err := c.executor.Execute(ctx, "catalog_search", func(ctx context.Context) error {
		start := time.Now()
		found, err := c.search(ctx, q)
		c.duration.Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		items = found
		return nil
	}, resilience.TransportClassifier)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) search(ctx context.Context, q domain.CatalogQuery) ([]domain.SatelliteItem, error) {
	body, err := json.Marshal(buildSearchRequest(q))
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("catalog API error: status %d: %s", resp.StatusCode, payload)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]domain.SatelliteItem, 0, len(sr.Features))
	for _, f := range sr.Features {
		item, ok := toItem(q.Collection, f)
		if !ok {
			c.logger.Debug("skipping malformed catalog feature", "id", f.ID, "collection", q.Collection)
			continue
		}
		items = append(items, item)
	}

	c.logger.Debug("catalog search complete",
		"collection", q.Collection,
		"items", len(items),
		"start", q.Start.Format(time.RFC3339),
		"end", q.End.Format(time.RFC3339),
	)
	return items, nil
}

func buildSearchRequest(q domain.CatalogQuery) searchRequest {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	sr := searchRequest{
		Collections: []string{q.Collection},
		// STAC bbox order is [minLon, minLat, maxLon, maxLat].
		BBox:     []float64{q.BBox.MinLon, q.BBox.MinLat, q.BBox.MaxLon, q.BBox.MaxLat},
		Datetime: q.Start.UTC().Format(time.RFC3339) + "/" + q.End.UTC().Format(time.RFC3339),
		Limit:    limit,
	}
	if q.MaxCloudCover > 0 {
		sr.Query = map[string]map[string]float64{
			"eo:cloud_cover": {"lt": q.MaxCloudCover},
		}
	}
	return sr
}

func toItem(collection string, f searchFeature) (domain.SatelliteItem, bool) {
	if f.ID == "" || len(f.Assets) == 0 {
		return domain.SatelliteItem{}, false
	}
	acquired, err := time.Parse(time.RFC3339, f.Properties.Datetime)
	if err != nil {
		return domain.SatelliteItem{}, false
	}

	assets := make(map[string]string, len(f.Assets))
	for name, a := range f.Assets {
		if a.Href != "" {
			assets[name] = a.Href
		}
	}

	cloud := -1.0
	if f.Properties.CloudCover != nil {
		cloud = *f.Properties.CloudCover
	}

	return domain.SatelliteItem{
		ID:         f.ID,
		Collection: collection,
		Acquired:   acquired,
		CloudCover: cloud,
		Assets:     assets,
	}, true
}

// STAC API wire types.

type searchRequest struct {
	Collections []string                      `json:"collections"`
	BBox        []float64                     `json:"bbox"`
	Datetime    string                        `json:"datetime"`
	Limit       int                           `json:"limit"`
	Query       map[string]map[string]float64 `json:"query,omitempty"`
}

type searchResponse struct {
	Features []searchFeature `json:"features"`
}

type searchFeature struct {
	ID         string `json:"id"`
	Properties struct {
		Datetime   string   `json:"datetime"`
		CloudCover *float64 `json:"eo:cloud_cover"`
	} `json:"properties"`
	Assets map[string]searchAsset `json:"assets"`
}

type searchAsset struct {
	Href string `json:"href"`
}
