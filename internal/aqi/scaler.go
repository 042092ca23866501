package aqi

import (
	"encoding/json"
	"fmt"
	"os"
)

// MinMaxScaler replays the feature scaling fitted during training. State is
// loaded once at startup and never refit at request time.
type MinMaxScaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// LoadScaler reads a scaler artifact exported from training, a JSON object
// with parallel "min" and "max" arrays in per-step feature order (AQI first).
func LoadScaler(path string) (*MinMaxScaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}
	var s MinMaxScaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scaler: %w", err)
	}
	if len(s.Min) == 0 || len(s.Min) != len(s.Max) {
		return nil, fmt.Errorf("scaler: min/max length mismatch (%d vs %d)", len(s.Min), len(s.Max))
	}
	return &s, nil
}

// Features returns the per-step feature count the scaler was fitted on.
func (s *MinMaxScaler) Features() int { return len(s.Min) }

// Transform scales one timestep into [0, 1]. A degenerate feature (min==max
// in the training data) maps to 0.
func (s *MinMaxScaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		span := s.Max[i] - s.Min[i]
		if span == 0 {
			out[i] = 0
			continue
		}
		out[i] = (v - s.Min[i]) / span
	}
	return out
}

// InverseTarget maps the forecast model's scaled output back to AQI units.
// The target shares feature 0 (AQI) with the inputs.
func (s *MinMaxScaler) InverseTarget(v float64) float64 {
	return v*(s.Max[0]-s.Min[0]) + s.Min[0]
}
