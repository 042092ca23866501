package aqi

import (
	"encoding/json"
	"fmt"
	"os"

	"aqicast/internal/models"
)

// ImputationTable holds the per-feature fallback medians observed in the
// training corpus. Loaded once at startup and read-only afterwards. Values
// are in model units, so the CO entry is mg/m³ and is never run through the
// unit conversion.
type ImputationTable struct {
	vals [numFeatures]float64
}

func (t ImputationTable) value(i int) float64 { return t.vals[i] }

// DefaultImputation returns the medians baked in from the training export.
func DefaultImputation() ImputationTable {
	return ImputationTable{vals: [numFeatures]float64{46.0, 92.0, 22.4, 10.8, 0.6, 28.6, 4.7}}
}

// NewImputationTable builds a table from a map keyed by canonical feature
// name. All seven fields must be present.
func NewImputationTable(byName map[string]float64) (ImputationTable, error) {
	var t ImputationTable
	for i, name := range models.FeatureNames {
		v, ok := byName[name]
		if !ok {
			return ImputationTable{}, fmt.Errorf("imputation table missing %s", name)
		}
		t.vals[i] = v
	}
	return t, nil
}

// LoadImputationTable reads a JSON object keyed by canonical feature name,
// e.g. {"PM2.5": 46.0, "PM10": 92.0, ...}.
func LoadImputationTable(path string) (ImputationTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImputationTable{}, fmt.Errorf("read imputation table: %w", err)
	}
	var byName map[string]float64
	if err := json.Unmarshal(data, &byName); err != nil {
		return ImputationTable{}, fmt.Errorf("parse imputation table: %w", err)
	}
	return NewImputationTable(byName)
}
