package ingest

import (
	"context"
	"log"
	"time"

	"aqicast/internal/predictor"
	"aqicast/internal/store"
)

// CityPredictor is the slice of the orchestrator the ingest jobs drive.
type CityPredictor interface {
	PredictCurrent(ctx context.Context, city string) (*predictor.CurrentPrediction, error)
}

// Scheduler periodically runs the fetch-predict-persist cycle for every
// active city so forecast windows fill up without user traffic.
type Scheduler struct {
	store    *store.Store
	pred     CityPredictor
	interval time.Duration
}

func NewScheduler(st *store.Store, pred CityPredictor, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{store: st, pred: pred, interval: interval}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.IngestOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ticker.C:
			s.IngestOnce(ctx)
		}
	}
}

// IngestOnce runs one prediction cycle per active city. Failures are logged
// and skipped so one dark city never blocks the rest.
func (s *Scheduler) IngestOnce(ctx context.Context) {
	cities, err := s.store.ActiveCities()
	if err != nil {
		log.Printf("scheduler: list cities: %v", err)
		return
	}

	for _, c := range cities {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.pred.PredictCurrent(ctx, c.Name); err != nil {
			log.Printf("scheduler: %s: %v", c.Name, err)
			continue
		}
		log.Printf("scheduler: stored prediction for %s", c.Name)
	}
}
