package aqi

import (
	"errors"
	"strconv"
	"strings"

	"aqicast/internal/models"
)

// ErrEmptyInput means the feed returned no pollutant records at all for the
// requested city. Callers surface this as a no-data condition; it is never
// silently defaulted because it means no usable signal exists.
var ErrEmptyInput = errors.New("no pollutant records")

// Canonical feature positions. These match models.FeatureNames.
const (
	idxPM25 = iota
	idxPM10
	idxNO2
	idxSO2
	idxCO
	idxO3
	idxNH3
	numFeatures
)

// canonicalIndex maps cleaned pollutant ids to feature positions. Ids not in
// this set are dropped silently; the feed carries pollutants the model was
// never trained on.
var canonicalIndex = map[string]int{
	"pm25":  idxPM25,
	"pm10":  idxPM10,
	"no2":   idxNO2,
	"so2":   idxSO2,
	"co":    idxCO,
	"ozone": idxO3,
	"nh3":   idxNH3,
}

// cleanID lowercases and strips dots so "PM2.5", "pm2.5" and "pm25" all match.
func cleanID(id string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(id)), ".", "")
}

// Normalize turns raw feed rows into the fixed 7-feature vector the model
// expects: aggregate duplicate readings by mean, convert CO to mg/m³, then
// impute whatever is still missing. The stage order is load-bearing: the
// unit conversion applies only to observed values, never to imputed ones,
// which are already stored in model units.
func Normalize(records []models.PollutantReading, imp ImputationTable) (models.FeatureVector, error) {
	vals, present, err := aggregate(records)
	if err != nil {
		return models.FeatureVector{}, err
	}
	convertUnits(&vals, present)
	impute(&vals, present, imp)
	return models.FeatureVectorFromValues(vals), nil
}

// aggregate reduces duplicate per-pollutant readings to a mean. Mean rather
// than first-seen: the feed returns one row per monitoring station and a
// single outlier station should not dominate. Values that fail numeric
// parsing ("NA", empty, null) count as absent, not zero.
func aggregate(records []models.PollutantReading) ([numFeatures]float64, [numFeatures]bool, error) {
	var sums [numFeatures]float64
	var counts [numFeatures]int

	if len(records) == 0 {
		return sums, [numFeatures]bool{}, ErrEmptyInput
	}

	for _, r := range records {
		idx, ok := canonicalIndex[cleanID(r.PollutantID)]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(r.AvgValue.String()), 64)
		if err != nil {
			continue
		}
		sums[idx] += v
		counts[idx]++
	}

	var present [numFeatures]bool
	for i := range sums {
		if counts[i] > 0 {
			sums[i] /= float64(counts[i])
			present[i] = true
		}
	}
	return sums, present, nil
}

// convertUnits divides CO by 1000: the feed reports µg/m³ but the model was
// trained on mg/m³. Runs exactly once, between aggregation and imputation.
func convertUnits(vals *[numFeatures]float64, present [numFeatures]bool) {
	if present[idxCO] {
		vals[idxCO] /= 1000
	}
}

// impute fills absent fields from the table. Each field is checked
// independently; partial presence is the normal case, not an error.
func impute(vals *[numFeatures]float64, present [numFeatures]bool, imp ImputationTable) {
	for i := range vals {
		if !present[i] {
			vals[i] = imp.value(i)
		}
	}
}
