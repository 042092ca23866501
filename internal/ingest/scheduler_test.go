package ingest

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"aqicast/internal/models"
	"aqicast/internal/predictor"
	"aqicast/internal/store"
)

type countingPredictor struct {
	calls  []string
	failOn string
}

func (c *countingPredictor) PredictCurrent(ctx context.Context, city string) (*predictor.CurrentPrediction, error) {
	c.calls = append(c.calls, city)
	if city == c.failOn {
		return nil, errors.New("feed down")
	}
	return &predictor.CurrentPrediction{City: city}, nil
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

func TestIngestOnce_CoversActiveCities(t *testing.T) {
	st := newTestStore(t)
	for _, name := range []string{"Delhi", "Pune"} {
		if err := st.UpsertCity(models.City{Name: name, Active: true}); err != nil {
			t.Fatalf("UpsertCity: %v", err)
		}
	}
	if err := st.UpsertCity(models.City{Name: "Shutdownpur", Active: false}); err != nil {
		t.Fatalf("UpsertCity: %v", err)
	}

	pred := &countingPredictor{}
	NewScheduler(st, pred, time.Hour).IngestOnce(context.Background())

	if len(pred.calls) != 2 {
		t.Fatalf("calls = %v, want 2 active cities", pred.calls)
	}
	if pred.calls[0] != "Delhi" || pred.calls[1] != "Pune" {
		t.Errorf("calls = %v, want [Delhi Pune]", pred.calls)
	}
}

func TestIngestOnce_FailureDoesNotBlockOtherCities(t *testing.T) {
	st := newTestStore(t)
	for _, name := range []string{"Delhi", "Pune"} {
		if err := st.UpsertCity(models.City{Name: name, Active: true}); err != nil {
			t.Fatalf("UpsertCity: %v", err)
		}
	}

	pred := &countingPredictor{failOn: "Delhi"}
	NewScheduler(st, pred, time.Hour).IngestOnce(context.Background())

	if len(pred.calls) != 2 {
		t.Errorf("calls = %v, want both cities attempted", pred.calls)
	}
}

type fakeLister struct {
	records  []models.PollutantReading
	failures int
	calls    int
}

func (f *fakeLister) FetchAll(ctx context.Context, limit int) ([]models.PollutantReading, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient error")
	}
	return f.records, nil
}

func TestSeeder_RetriesCityList(t *testing.T) {
	lister := &fakeLister{
		failures: 2,
		records:  []models.PollutantReading{{City: "Delhi"}},
	}
	pred := &countingPredictor{}

	seeder := NewSeeder(lister, pred)
	seeder.attempts = 2
	seeder.delay = time.Millisecond

	if err := seeder.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if lister.calls != 3 {
		t.Errorf("FetchAll calls = %d, want 3 (two transient failures)", lister.calls)
	}
	if len(pred.calls) != 2 {
		t.Errorf("prediction calls = %v, want 2 attempts for Delhi", pred.calls)
	}
}

func TestSeeder_SkipsFailingCity(t *testing.T) {
	lister := &fakeLister{records: []models.PollutantReading{{City: "Delhi"}, {City: "Pune"}}}
	pred := &countingPredictor{failOn: "Delhi"}

	seeder := NewSeeder(lister, pred)
	seeder.attempts = 1
	seeder.delay = time.Millisecond

	if err := seeder.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(pred.calls) != 2 {
		t.Errorf("calls = %v, want both cities attempted", pred.calls)
	}
}
