package models

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

type City struct {
	Name      string  `json:"name"`
	State     string  `json:"state"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Active    bool    `json:"active"`
}

// PollutantReading is one row of the CPCB live feed. The same pollutant can
// appear multiple times per city (one row per monitoring station), and
// avg_value arrives as a string, a number, or null depending on the station.
type PollutantReading struct {
	PollutantID string    `json:"pollutant_id"`
	AvgValue    FlexValue `json:"avg_value"`
	State       string    `json:"state"`
	City        string    `json:"city"`
	Station     string    `json:"station"`
	LastUpdate  string    `json:"last_update"`
}

// FlexValue decodes a JSON field that may be a string, a number, or null
// into its raw textual form. Parsing to float happens later so that "NA" and
// friends can be treated as absent rather than failing the whole decode.
type FlexValue string

func (f *FlexValue) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = FlexValue(v)
		return nil
	}
	*f = FlexValue(s)
	return nil
}

func (f FlexValue) String() string { return string(f) }

// FeatureNames is the canonical model input order. The trained model indexes
// features positionally, so this order is a contract, not a convention.
var FeatureNames = [7]string{"PM2.5", "PM10", "NO2", "SO2", "CO", "O3", "NH3"}

// FeatureVector is the fixed-shape input of the current-AQI model. Every
// field is always set; missing upstream readings are imputed before a vector
// is constructed.
type FeatureVector struct {
	PM25 float64
	PM10 float64
	NO2  float64
	SO2  float64
	CO   float64 // mg/m³ (the feed reports µg/m³, converted during normalization)
	O3   float64
	NH3  float64
}

// Values returns the fields in canonical order.
func (v FeatureVector) Values() [7]float64 {
	return [7]float64{v.PM25, v.PM10, v.NO2, v.SO2, v.CO, v.O3, v.NH3}
}

// FeatureVectorFromValues builds a vector from canonical-order values.
func FeatureVectorFromValues(vals [7]float64) FeatureVector {
	return FeatureVector{
		PM25: vals[0], PM10: vals[1], NO2: vals[2], SO2: vals[3],
		CO: vals[4], O3: vals[5], NH3: vals[6],
	}
}

// HistoryRecord is one persisted prediction with its weather context.
// Rows are append-only; nothing in the system mutates or deletes them.
type HistoryRecord struct {
	ID           int64
	City         string
	PredictedAQI float64
	Temperature  sql.NullFloat64
	Humidity     sql.NullFloat64
	WindSpeed    sql.NullFloat64
	Timestamp    time.Time
}

// WeatherSample is a current-instant weather observation.
type WeatherSample struct {
	Temperature float64
	Humidity    float64
	WindSpeed   float64
	Fallback    bool // defaults substituted after a failed fetch
}
