package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"aqicast/internal/httputil"
	"aqicast/internal/models"
)

const (
	openMeteoBaseURL = "https://api.open-meteo.com/v1/forecast"
	weatherTimeout   = 5 * time.Second
)

// WeatherClient reads current conditions from Open-Meteo. Weather is
// best-effort context for predictions; callers absorb failures.
type WeatherClient struct {
	baseURL string
	base    *httputil.BaseClient
}

func NewWeatherClient() *WeatherClient {
	return &WeatherClient{
		baseURL: openMeteoBaseURL,
		base:    httputil.NewBaseClient("open-meteo", weatherTimeout),
	}
}

// FetchCurrent returns the current temperature, relative humidity and wind
// speed at a coordinate pair.
func (w *WeatherClient) FetchCurrent(ctx context.Context, lat, lon float64) (models.WeatherSample, error) {
	u := fmt.Sprintf("%s?latitude=%.2f&longitude=%.2f&current=temperature_2m,relative_humidity_2m,wind_speed_10m",
		w.baseURL, lat, lon)

	body, err := w.base.Get(ctx, u)
	if err != nil {
		return models.WeatherSample{}, fmt.Errorf("fetch weather: %w", err)
	}

	current := gjson.GetBytes(body, "current")
	if !current.Exists() {
		return models.WeatherSample{}, fmt.Errorf("weather response missing current block")
	}

	return models.WeatherSample{
		Temperature: current.Get("temperature_2m").Float(),
		Humidity:    current.Get("relative_humidity_2m").Float(),
		WindSpeed:   current.Get("wind_speed_10m").Float(),
	}, nil
}
