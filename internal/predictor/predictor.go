package predictor

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"math"
	"time"

	"aqicast/internal/aqi"
	"aqicast/internal/metrics"
	"aqicast/internal/models"
	"aqicast/internal/store"
)

// PollutantSource fetches live pollutant rows for one city.
type PollutantSource interface {
	FetchCity(ctx context.Context, city string, limit int) ([]models.PollutantReading, error)
}

// WeatherSource fetches current conditions at a coordinate pair.
type WeatherSource interface {
	FetchCurrent(ctx context.Context, lat, lon float64) (models.WeatherSample, error)
}

// ModelClient runs the opaque trained models.
type ModelClient interface {
	PredictCurrent(ctx context.Context, fv models.FeatureVector) (float64, error)
	PredictNext(ctx context.Context, w *aqi.SequenceWindow) (float64, error)
}

// Coordinates used when a city is not in the configured set, so weather
// context is still attached to its predictions (Delhi, matching the feed's
// densest coverage).
const (
	defaultLatitude  = 28.61
	defaultLongitude = 77.20
)

const fetchLimit = 100

// Predictor coordinates the full cycle: fetch pollutants, normalize, predict
// current AQI, attach best-effort weather, persist, and separately assemble
// stored history into next-period forecasts. All model and lookup state is
// constructed once at startup and passed in; there are no ambient globals.
type Predictor struct {
	store      *store.Store
	pollutants PollutantSource
	weather    WeatherSource
	model      ModelClient
	imputation aqi.ImputationTable
	assembler  *aqi.Assembler
	cities     map[string]models.City
}

func New(st *store.Store, pollutants PollutantSource, weather WeatherSource, model ModelClient,
	imputation aqi.ImputationTable, assembler *aqi.Assembler, cities []models.City) *Predictor {
	byName := make(map[string]models.City, len(cities))
	for _, c := range cities {
		byName[c.Name] = c
	}
	return &Predictor{
		store:      st,
		pollutants: pollutants,
		weather:    weather,
		model:      model,
		imputation: imputation,
		assembler:  assembler,
		cities:     byName,
	}
}

// CurrentPrediction is the response for one current-AQI request.
type CurrentPrediction struct {
	City            string    `json:"city"`
	PredictedAQI    float64   `json:"predicted_aqi"`
	Temperature     float64   `json:"temperature"`
	Humidity        float64   `json:"humidity"`
	WindSpeed       float64   `json:"wind_speed"`
	WeatherFallback bool      `json:"weather_fallback,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Forecast is the response for one next-period request.
type Forecast struct {
	City         string  `json:"city"`
	NextAQI      float64 `json:"next_aqi"`
	WindowLength int     `json:"window_length"`
}

// PredictCurrent runs the full current-AQI cycle for one city. Exactly one
// history record is appended per successful prediction; nothing is persisted
// on any failure path.
func (p *Predictor) PredictCurrent(ctx context.Context, city string) (*CurrentPrediction, error) {
	records, err := p.pollutants.FetchCity(ctx, city, fetchLimit)
	if err != nil {
		return nil, &Error{Kind: KindUpstream, City: city, Err: err}
	}

	fv, err := aqi.Normalize(records, p.imputation)
	if err != nil {
		// Only empty input escapes Normalize; an empty feed page means the
		// city has no usable signal right now.
		return nil, &Error{Kind: KindNoData, City: city, Err: err}
	}

	predicted, err := p.model.PredictCurrent(ctx, fv)
	if err != nil {
		return nil, &Error{Kind: KindModel, City: city, Err: err}
	}
	predicted = round2(predicted)

	weather := p.fetchWeather(ctx, city)
	now := time.Now().UTC()

	rec := models.HistoryRecord{
		City:         city,
		PredictedAQI: predicted,
		Temperature:  sql.NullFloat64{Float64: weather.Temperature, Valid: true},
		Humidity:     sql.NullFloat64{Float64: weather.Humidity, Valid: true},
		WindSpeed:    sql.NullFloat64{Float64: weather.WindSpeed, Valid: true},
		Timestamp:    now,
	}
	if err := p.store.Append(rec); err != nil {
		return nil, &Error{Kind: KindStorage, City: city, Err: err}
	}
	metrics.PredictionsStored.WithLabelValues(city).Inc()

	return &CurrentPrediction{
		City:            city,
		PredictedAQI:    predicted,
		Temperature:     weather.Temperature,
		Humidity:        weather.Humidity,
		WindSpeed:       weather.WindSpeed,
		WeatherFallback: weather.Fallback,
		Timestamp:       now,
	}, nil
}

// PredictNext forecasts next-period AQI from stored history.
func (p *Predictor) PredictNext(ctx context.Context, city string) (*Forecast, error) {
	window, err := p.assembler.Assemble(city, p.store)
	if err != nil {
		if errors.Is(err, aqi.ErrInsufficientHistory) {
			return nil, &Error{Kind: KindInsufficientHistory, City: city, Err: err}
		}
		return nil, &Error{Kind: KindStorage, City: city, Err: err}
	}

	out, err := p.model.PredictNext(ctx, window)
	if err != nil {
		return nil, &Error{Kind: KindModel, City: city, Err: err}
	}

	return &Forecast{
		City:         city,
		NextAQI:      round2(p.assembler.InverseScale(out)),
		WindowLength: p.assembler.Length(),
	}, nil
}

// fetchWeather is best-effort: any failure falls back to the default triple
// so the prediction is still produced and persisted. This is the one failure
// category that is fully absorbed and never surfaced to the caller.
func (p *Predictor) fetchWeather(ctx context.Context, city string) models.WeatherSample {
	lat, lon := defaultLatitude, defaultLongitude
	if c, ok := p.cities[city]; ok {
		lat, lon = c.Latitude, c.Longitude
	}

	sample, err := p.weather.FetchCurrent(ctx, lat, lon)
	if err != nil {
		log.Printf("predictor: weather for %s unavailable, using defaults: %v", city, err)
		metrics.WeatherFallbacks.Inc()
		return models.WeatherSample{Temperature: 25.0, Humidity: 50.0, WindSpeed: 5.0, Fallback: true}
	}
	return sample
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
