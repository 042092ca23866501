package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"aqicast/internal/httputil"
	"aqicast/internal/metrics"
	"aqicast/internal/models"
)

const (
	cpcbBaseURL = "https://api.data.gov.in/resource/3b01bcb8-0b14-4abf-b6f2-c1bfd384ba69"
	cpcbTimeout = 8 * time.Second
)

// CPCBClient reads the live national air quality feed published on
// data.gov.in (Central Pollution Control Board station data).
type CPCBClient struct {
	apiKey  string
	baseURL string
	base    *httputil.BaseClient
}

func NewCPCBClient(apiKey string) *CPCBClient {
	return &CPCBClient{
		apiKey:  apiKey,
		baseURL: cpcbBaseURL,
		base:    httputil.NewBaseClient("cpcb", cpcbTimeout),
	}
}

type feedResponse struct {
	Records []models.PollutantReading `json:"records"`
}

// FetchCity returns the live pollutant rows for one city. Duplicate rows per
// pollutant (one per station) and missing pollutants are both normal;
// aggregation is the caller's job.
func (c *CPCBClient) FetchCity(ctx context.Context, city string, limit int) ([]models.PollutantReading, error) {
	params := url.Values{}
	params.Set("filters[city]", city)
	return c.fetch(ctx, params, limit, city)
}

// FetchAll returns an unfiltered page of the feed, used to enumerate which
// cities currently report data.
func (c *CPCBClient) FetchAll(ctx context.Context, limit int) ([]models.PollutantReading, error) {
	return c.fetch(ctx, url.Values{}, limit, "all")
}

func (c *CPCBClient) fetch(ctx context.Context, params url.Values, limit int, label string) ([]models.PollutantReading, error) {
	params.Set("api-key", c.apiKey)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))

	start := time.Now()
	body, err := c.base.Get(ctx, c.baseURL+"?"+params.Encode())
	metrics.CPCBAPILatency.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CPCBAPICalls.WithLabelValues(label, "error").Inc()
		return nil, fmt.Errorf("fetch pollutants: %w", err)
	}
	metrics.CPCBAPICalls.WithLabelValues(label, "ok").Inc()

	var data feedResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal pollutants: %w", err)
	}
	return data.Records, nil
}

// Cities extracts the sorted distinct city names from feed rows.
func Cities(records []models.PollutantReading) []string {
	seen := make(map[string]bool)
	var cities []string
	for _, r := range records {
		if r.City == "" || seen[r.City] {
			continue
		}
		seen[r.City] = true
		cities = append(cities, r.City)
	}
	sort.Strings(cities)
	return cities
}
