package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aqicast/internal/aqi"
	"aqicast/internal/metrics"
	"aqicast/internal/models"
)

// Bridge talks to the sidecar hosting the trained models: the 7-feature
// regression for current AQI and the sequence model for next-period AQI.
// Both models are opaque to this service; the bridge only enforces their
// input/output contracts.
type Bridge struct {
	baseURL string
	client  *http.Client
}

func NewBridge(baseURL string) *Bridge {
	return &Bridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type currentRequest struct {
	Features []float64 `json:"features"`
}

type sequenceRequest struct {
	Sequence [][]float64 `json:"sequence"`
	Shape    [3]int      `json:"shape"`
}

type predictionResponse struct {
	PredictedAQI float64 `json:"predicted_aqi"`
}

// PredictCurrent runs one feature vector through the regression model and
// returns the scalar AQI estimate.
func (b *Bridge) PredictCurrent(ctx context.Context, fv models.FeatureVector) (float64, error) {
	vals := fv.Values()
	return b.post(ctx, "/predict", currentRequest{Features: vals[:]})
}

// PredictNext runs a sequence window through the forecast model. The output
// may still be in scaled units; inverse scaling belongs to the caller.
func (b *Bridge) PredictNext(ctx context.Context, w *aqi.SequenceWindow) (float64, error) {
	batch, steps, features := w.Shape()
	return b.post(ctx, "/predict/sequence", sequenceRequest{
		Sequence: w.Steps,
		Shape:    [3]int{batch, steps, features},
	})
}

// Health checks sidecar liveness.
func (b *Bridge) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("model health request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("model health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model health check: status %d", resp.StatusCode)
	}
	return nil
}

func (b *Bridge) post(ctx context.Context, path string, payload interface{}) (float64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := b.client.Do(req)
	metrics.ModelLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("model request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("model request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode model response: %w", err)
	}
	return out.PredictedAQI, nil
}
