package predictor

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"aqicast/internal/aqi"
	"aqicast/internal/models"
	"aqicast/internal/store"
)

type fakePollutants struct {
	records []models.PollutantReading
	err     error
}

func (f *fakePollutants) FetchCity(ctx context.Context, city string, limit int) ([]models.PollutantReading, error) {
	return f.records, f.err
}

type fakeWeather struct {
	sample models.WeatherSample
	err    error
}

func (f *fakeWeather) FetchCurrent(ctx context.Context, lat, lon float64) (models.WeatherSample, error) {
	if f.err != nil {
		return models.WeatherSample{}, f.err
	}
	return f.sample, nil
}

type fakeModel struct {
	current    float64
	currentErr error
	next       float64
	nextErr    error
	lastWindow *aqi.SequenceWindow
}

func (f *fakeModel) PredictCurrent(ctx context.Context, fv models.FeatureVector) (float64, error) {
	return f.current, f.currentErr
}

func (f *fakeModel) PredictNext(ctx context.Context, w *aqi.SequenceWindow) (float64, error) {
	f.lastWindow = w
	return f.next, f.nextErr
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func feedRecords() []models.PollutantReading {
	return []models.PollutantReading{
		{PollutantID: "PM2.5", AvgValue: "120", City: "Delhi"},
		{PollutantID: "PM10", AvgValue: "200", City: "Delhi"},
	}
}

func testCities() []models.City {
	return []models.City{{Name: "Delhi", Latitude: 28.61, Longitude: 77.20, Active: true}}
}

func newTestPredictor(t *testing.T, st *store.Store, pollutants PollutantSource, weather WeatherSource, model ModelClient, seqLen int) *Predictor {
	t.Helper()
	assembler, err := aqi.NewAssembler(seqLen, false, nil)
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	return New(st, pollutants, weather, model, aqi.DefaultImputation(), assembler, testCities())
}

func TestPredictCurrent_Success(t *testing.T) {
	st := newTestStore(t)
	weather := &fakeWeather{sample: models.WeatherSample{Temperature: 32, Humidity: 48, WindSpeed: 11}}
	p := newTestPredictor(t, st, &fakePollutants{records: feedRecords()}, weather, &fakeModel{current: 231.456}, 5)

	pred, err := p.PredictCurrent(context.Background(), "Delhi")
	if err != nil {
		t.Fatalf("PredictCurrent: %v", err)
	}
	if pred.PredictedAQI != 231.46 {
		t.Errorf("PredictedAQI = %v, want 231.46 (rounded to 2 decimals)", pred.PredictedAQI)
	}
	if pred.Temperature != 32 || pred.Humidity != 48 || pred.WindSpeed != 11 {
		t.Errorf("weather = (%v, %v, %v), want (32, 48, 11)", pred.Temperature, pred.Humidity, pred.WindSpeed)
	}
	if pred.WeatherFallback {
		t.Error("WeatherFallback = true, want false")
	}

	count, err := st.CountHistory("Delhi")
	if err != nil {
		t.Fatalf("CountHistory: %v", err)
	}
	if count != 1 {
		t.Errorf("stored records = %d, want exactly 1", count)
	}
}

func TestPredictCurrent_WeatherFailureIsAbsorbed(t *testing.T) {
	st := newTestStore(t)
	weather := &fakeWeather{err: errors.New("open-meteo down")}
	p := newTestPredictor(t, st, &fakePollutants{records: feedRecords()}, weather, &fakeModel{current: 180}, 5)

	pred, err := p.PredictCurrent(context.Background(), "Delhi")
	if err != nil {
		t.Fatalf("PredictCurrent with weather failure: %v", err)
	}
	if !pred.WeatherFallback {
		t.Error("WeatherFallback = false, want true")
	}
	if pred.Temperature != 25 || pred.Humidity != 50 || pred.WindSpeed != 5 {
		t.Errorf("fallback weather = (%v, %v, %v), want (25, 50, 5)", pred.Temperature, pred.Humidity, pred.WindSpeed)
	}

	records, err := st.Window("Delhi", 1)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("stored records = %d, want 1", len(records))
	}
	if !records[0].Temperature.Valid || records[0].Temperature.Float64 != 25 {
		t.Errorf("persisted Temperature = %+v, want valid 25", records[0].Temperature)
	}
}

func TestPredictCurrent_UpstreamFailure(t *testing.T) {
	st := newTestStore(t)
	p := newTestPredictor(t, st, &fakePollutants{err: errors.New("timeout")}, &fakeWeather{}, &fakeModel{}, 5)

	_, err := p.PredictCurrent(context.Background(), "Delhi")
	assertKind(t, err, KindUpstream)
	assertNothingStored(t, st)
}

func TestPredictCurrent_NoData(t *testing.T) {
	st := newTestStore(t)
	p := newTestPredictor(t, st, &fakePollutants{records: nil}, &fakeWeather{}, &fakeModel{}, 5)

	_, err := p.PredictCurrent(context.Background(), "Delhi")
	assertKind(t, err, KindNoData)
	assertNothingStored(t, st)
}

func TestPredictCurrent_ModelFailure(t *testing.T) {
	st := newTestStore(t)
	model := &fakeModel{currentErr: errors.New("sidecar 500")}
	p := newTestPredictor(t, st, &fakePollutants{records: feedRecords()}, &fakeWeather{}, model, 5)

	_, err := p.PredictCurrent(context.Background(), "Delhi")
	assertKind(t, err, KindModel)
	assertNothingStored(t, st)
}

func TestPredictNext_InsufficientHistory(t *testing.T) {
	st := newTestStore(t)
	p := newTestPredictor(t, st, &fakePollutants{}, &fakeWeather{}, &fakeModel{}, 5)

	seedHistory(t, st, 150, 160, 170)

	_, err := p.PredictNext(context.Background(), "Delhi")
	assertKind(t, err, KindInsufficientHistory)
}

func TestPredictNext_Success(t *testing.T) {
	st := newTestStore(t)
	model := &fakeModel{next: 188.888}
	p := newTestPredictor(t, st, &fakePollutants{}, &fakeWeather{}, model, 3)

	seedHistory(t, st, 150, 160, 170)

	fc, err := p.PredictNext(context.Background(), "Delhi")
	if err != nil {
		t.Fatalf("PredictNext: %v", err)
	}
	if fc.NextAQI != 188.89 {
		t.Errorf("NextAQI = %v, want 188.89", fc.NextAQI)
	}
	if fc.WindowLength != 3 {
		t.Errorf("WindowLength = %d, want 3", fc.WindowLength)
	}

	if model.lastWindow == nil {
		t.Fatal("model never received a window")
	}
	// Oldest record first in the window the model sees.
	if model.lastWindow.Steps[0][0] != 150 {
		t.Errorf("window starts at %v, want 150", model.lastWindow.Steps[0][0])
	}
}

func TestPredictNext_InverseScaling(t *testing.T) {
	st := newTestStore(t)
	scaler := &aqi.MinMaxScaler{Min: []float64{0}, Max: []float64{500}}
	assembler, err := aqi.NewAssembler(2, false, scaler)
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	model := &fakeModel{next: 0.5}
	p := New(st, &fakePollutants{}, &fakeWeather{}, model, aqi.DefaultImputation(), assembler, testCities())

	seedHistory(t, st, 100, 200)

	fc, err := p.PredictNext(context.Background(), "Delhi")
	if err != nil {
		t.Fatalf("PredictNext: %v", err)
	}
	if fc.NextAQI != 250 {
		t.Errorf("NextAQI = %v, want 250 (0.5 inverse-scaled over [0, 500])", fc.NextAQI)
	}
}

func seedHistory(t *testing.T, st *store.Store, aqis ...float64) {
	t.Helper()
	for _, v := range aqis {
		if err := st.Append(models.HistoryRecord{City: "Delhi", PredictedAQI: v}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *predictor.Error", err)
	}
	if perr.Kind != want {
		t.Errorf("Kind = %v, want %v", perr.Kind, want)
	}
}

func assertNothingStored(t *testing.T, st *store.Store) {
	t.Helper()
	count, err := st.CountHistory("Delhi")
	if err != nil {
		t.Fatalf("CountHistory: %v", err)
	}
	if count != 0 {
		t.Errorf("stored records = %d, want 0 on failure", count)
	}
}
