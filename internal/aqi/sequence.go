package aqi

import (
	"errors"
	"fmt"

	"aqicast/internal/models"
)

// ErrInsufficientHistory means fewer records are stored than the forecast
// window needs. The sequence model's internal state assumes a fixed temporal
// span, so partial windows are never padded and never fed to it.
var ErrInsufficientHistory = errors.New("insufficient history for forecast window")

// WindowReader is the slice of the history store the assembler needs.
type WindowReader interface {
	Window(city string, limit int) ([]models.HistoryRecord, error)
}

// Defaults for weather columns on rows persisted before the weather context
// existed. Matches the triple the orchestrator persists when a live fetch
// fails.
const (
	fallbackTemperature = 25.0
	fallbackHumidity    = 50.0
	fallbackWindSpeed   = 5.0
)

// Assembler builds model-ready sequence windows from stored history.
type Assembler struct {
	length      int
	withWeather bool
	scaler      *MinMaxScaler
}

// NewAssembler configures the window shape: length timesteps, 1 feature per
// step (AQI) or 4 (AQI + temperature + humidity + wind). A scaler fitted on
// a different feature count would silently corrupt forecasts, so the
// mismatch is rejected here.
func NewAssembler(length int, withWeather bool, scaler *MinMaxScaler) (*Assembler, error) {
	if length < 1 {
		return nil, fmt.Errorf("assembler: window length %d, want >= 1", length)
	}
	features := 1
	if withWeather {
		features = 4
	}
	if scaler != nil && scaler.Features() != features {
		return nil, fmt.Errorf("assembler: scaler fitted on %d features, window has %d", scaler.Features(), features)
	}
	return &Assembler{length: length, withWeather: withWeather, scaler: scaler}, nil
}

// SequenceWindow is one forecast-model input: Steps holds exactly the
// configured length, oldest-first, each step in per-step feature order.
// Windows are ephemeral; they are built per request and never persisted.
type SequenceWindow struct {
	City  string
	Steps [][]float64
}

// Shape returns (batch, timesteps, features) as the forecast model expects.
func (w *SequenceWindow) Shape() (int, int, int) {
	if len(w.Steps) == 0 {
		return 1, 0, 0
	}
	return 1, len(w.Steps), len(w.Steps[0])
}

// Assemble reads the most recent records for city and builds a window, or
// fails with ErrInsufficientHistory when the store holds fewer than the
// configured length.
func (a *Assembler) Assemble(city string, store WindowReader) (*SequenceWindow, error) {
	recent, err := store.Window(city, a.length)
	if err != nil {
		return nil, fmt.Errorf("window %s: %w", city, err)
	}
	if len(recent) < a.length {
		return nil, fmt.Errorf("%w: have %d of %d records for %s",
			ErrInsufficientHistory, len(recent), a.length, city)
	}

	// The store returns newest-first; the model consumes chronological order.
	steps := make([][]float64, a.length)
	for i, rec := range recent {
		row := a.row(rec)
		if a.scaler != nil {
			row = a.scaler.Transform(row)
		}
		steps[a.length-1-i] = row
	}
	return &SequenceWindow{City: city, Steps: steps}, nil
}

func (a *Assembler) row(rec models.HistoryRecord) []float64 {
	if !a.withWeather {
		return []float64{rec.PredictedAQI}
	}
	row := []float64{rec.PredictedAQI, fallbackTemperature, fallbackHumidity, fallbackWindSpeed}
	if rec.Temperature.Valid {
		row[1] = rec.Temperature.Float64
	}
	if rec.Humidity.Valid {
		row[2] = rec.Humidity.Float64
	}
	if rec.WindSpeed.Valid {
		row[3] = rec.WindSpeed.Float64
	}
	return row
}

// InverseScale returns a forecast-model output to native AQI units. A nil
// scaler means the model already produces native units.
func (a *Assembler) InverseScale(v float64) float64 {
	if a.scaler == nil {
		return v
	}
	return a.scaler.InverseTarget(v)
}

// Length returns the configured window length.
func (a *Assembler) Length() int { return a.length }
