package store

import (
	"database/sql"
	"fmt"
	"time"

	"aqicast/internal/models"
)

// timeLayout keeps timestamps lexically sortable in SQLite.
const timeLayout = "2006-01-02 15:04:05"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) UpsertCity(c models.City) error {
	_, err := s.db.Exec(`
		INSERT INTO cities (name, state, latitude, longitude, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			state = excluded.state,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			active = excluded.active
	`, c.Name, c.State, c.Latitude, c.Longitude, c.Active)
	return err
}

func (s *Store) ActiveCities() ([]models.City, error) {
	rows, err := s.db.Query(`SELECT name, state, latitude, longitude, active FROM cities WHERE active = TRUE ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cities []models.City
	for rows.Next() {
		var c models.City
		if err := rows.Scan(&c.Name, &c.State, &c.Latitude, &c.Longitude, &c.Active); err != nil {
			return nil, err
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

func (s *Store) GetCity(name string) (*models.City, error) {
	row := s.db.QueryRow(`SELECT name, state, latitude, longitude, active FROM cities WHERE name = ?`, name)
	var c models.City
	err := row.Scan(&c.Name, &c.State, &c.Latitude, &c.Longitude, &c.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Append inserts one history row. A single INSERT statement, so a concurrent
// Window read never observes a half-written record. Append is the only
// mutation on aqi_history.
func (s *Store) Append(rec models.HistoryRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO aqi_history (city, predicted_aqi, temperature, humidity, wind_speed, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.City, rec.PredictedAQI, rec.Temperature, rec.Humidity, rec.WindSpeed, ts.UTC().Format(timeLayout))
	return err
}

// Window returns up to limit most-recent records for city, newest-first by
// insertion order. Fewer rows than limit is a valid state, not an error;
// callers building forecast windows must check the length. A read racing an
// in-flight Append may or may not see the newest row.
func (s *Store) Window(city string, limit int) ([]models.HistoryRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, city, predicted_aqi, temperature, humidity, wind_speed, timestamp
		FROM aqi_history
		WHERE city = ?
		ORDER BY id DESC
		LIMIT ?
	`, city, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.HistoryRecord
	for rows.Next() {
		var rec models.HistoryRecord
		var ts string
		if err := rows.Scan(&rec.ID, &rec.City, &rec.PredictedAQI, &rec.Temperature, &rec.Humidity, &rec.WindSpeed, &ts); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parse history timestamp %q: %w", ts, err)
		}
		rec.Timestamp = t
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountHistory returns the stored record count for one city.
func (s *Store) CountHistory(city string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM aqi_history WHERE city = ?`, city).Scan(&count)
	return count, err
}
