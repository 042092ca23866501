package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aqicast/internal/predictor"
	"aqicast/internal/store"
)

// ModelHealth is the liveness slice of the model sidecar client.
type ModelHealth interface {
	Health(ctx context.Context) error
}

type Server struct {
	store *store.Store
	pred  *predictor.Predictor
	model ModelHealth
	port  string
}

func NewServer(st *store.Store, pred *predictor.Predictor, model ModelHealth, port string) *Server {
	return &Server{store: st, pred: pred, model: model, port: port}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/predict", s.handlePredict)
	mux.HandleFunc("/api/forecast", s.handleForecast)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/cities", s.handleCities)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeError maps the orchestrator's failure taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var perr *predictor.Error
	if !errors.As(err, &perr) {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch perr.Kind {
	case predictor.KindNoData:
		status = http.StatusNotFound
	case predictor.KindUpstream:
		status = http.StatusBadGateway
	case predictor.KindInsufficientHistory:
		status = http.StatusConflict
	}
	writeJSON(w, status, errorResponse{Error: perr.Reason(), Detail: perr.Kind.String()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

func cityParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	city := r.URL.Query().Get("city")
	if city == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "city parameter is required"})
		return "", false
	}
	return city, true
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	city, ok := cityParam(w, r)
	if !ok {
		return
	}

	pred, err := s.pred.PredictCurrent(r.Context(), city)
	if err != nil {
		log.Printf("api: predict %s: %v", city, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	city, ok := cityParam(w, r)
	if !ok {
		return
	}

	fc, err := s.pred.PredictNext(r.Context(), city)
	if err != nil {
		log.Printf("api: forecast %s: %v", city, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

type historyEntry struct {
	ID           int64    `json:"id"`
	City         string   `json:"city"`
	PredictedAQI float64  `json:"predicted_aqi"`
	Temperature  *float64 `json:"temperature"`
	Humidity     *float64 `json:"humidity"`
	WindSpeed    *float64 `json:"wind_speed"`
	Timestamp    string   `json:"timestamp"`
}

const defaultHistoryLimit = 15

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	city, ok := cityParam(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := s.store.Window(city, limit)
	if err != nil {
		log.Printf("api: history %s: %v", city, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "history store error"})
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		e := historyEntry{
			ID:           rec.ID,
			City:         rec.City,
			PredictedAQI: rec.PredictedAQI,
			Timestamp:    rec.Timestamp.UTC().Format(time.RFC3339),
		}
		if rec.Temperature.Valid {
			v := rec.Temperature.Float64
			e.Temperature = &v
		}
		if rec.Humidity.Valid {
			v := rec.Humidity.Float64
			e.Humidity = &v
		}
		if rec.WindSpeed.Valid {
			v := rec.WindSpeed.Float64
			e.WindSpeed = &v
		}
		entries = append(entries, e)
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCities(w http.ResponseWriter, r *http.Request) {
	cities, err := s.store.ActiveCities()
	if err != nil {
		log.Printf("api: cities: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "history store error"})
		return
	}
	writeJSON(w, http.StatusOK, cities)
}

type healthStatus struct {
	Status string   `json:"status"`
	Errors []string `json:"errors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := healthStatus{Status: "ok"}

	if err := s.store.Ping(); err != nil {
		health.Status = "error"
		health.Errors = append(health.Errors, "db: "+err.Error())
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.model.Health(ctx); err != nil {
		if health.Status == "ok" {
			health.Status = "degraded"
		}
		health.Errors = append(health.Errors, "model: "+err.Error())
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}
