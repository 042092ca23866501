package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"aqicast/internal/models"
)

// CityLister enumerates cities via an unfiltered feed page.
type CityLister interface {
	FetchAll(ctx context.Context, limit int) ([]models.PollutantReading, error)
}

const (
	seedListLimit   = 1000
	seedAttempts    = 3
	seedGentleDelay = time.Second
)

// Seeder bulk-populates history: it discovers every city currently on the
// feed, then runs a bounded number of prediction cycles per city. Per-cycle
// failures are logged and skipped; only failing to get the city list at all
// is fatal.
type Seeder struct {
	cpcb     CityLister
	pred     CityPredictor
	attempts int
	delay    time.Duration
}

func NewSeeder(cpcb CityLister, pred CityPredictor) *Seeder {
	return &Seeder{cpcb: cpcb, pred: pred, attempts: seedAttempts, delay: seedGentleDelay}
}

func (s *Seeder) Run(ctx context.Context) error {
	var records []models.PollutantReading
	operation := func() error {
		var err error
		records, err = s.cpcb.FetchAll(ctx, seedListLimit)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("fetch city list: %w", err)
	}

	cities := Cities(records)
	log.Printf("seeder: found %d cities", len(cities))

	for _, city := range cities {
		for attempt := 1; attempt <= s.attempts; attempt++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if _, err := s.pred.PredictCurrent(ctx, city); err != nil {
				log.Printf("seeder: %s attempt %d/%d: %v", city, attempt, s.attempts, err)
				continue
			}
			log.Printf("seeder: %s attempt %d/%d stored", city, attempt, s.attempts)

			// Gentle delay to stay under the feed's rate limits.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.delay):
			}
		}
	}

	log.Println("seeder: completed")
	return nil
}
