package predictor

import "fmt"

// Kind categorizes orchestrator failures so the API layer can branch on the
// taxonomy instead of matching message text.
type Kind int

const (
	// KindNoData: the feed answered but carried no pollutant rows for the city.
	KindNoData Kind = iota
	// KindUpstream: the pollutant API failed (network, timeout, bad status).
	KindUpstream
	// KindInsufficientHistory: fewer stored records than the forecast window needs.
	KindInsufficientHistory
	// KindModel: the model sidecar rejected or failed an inference call.
	KindModel
	// KindStorage: the history store failed to read or append.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNoData:
		return "no_data"
	case KindUpstream:
		return "upstream_error"
	case KindInsufficientHistory:
		return "insufficient_history"
	case KindModel:
		return "model_error"
	case KindStorage:
		return "storage_error"
	}
	return "unknown"
}

// Error wraps a failure with its category and the city it concerns.
type Error struct {
	Kind Kind
	City string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.City, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Reason is the human-readable message returned to API callers.
func (e *Error) Reason() string {
	switch e.Kind {
	case KindNoData:
		return "no pollutant data available for this city"
	case KindUpstream:
		return "air quality API is unavailable"
	case KindInsufficientHistory:
		return "not enough stored history to forecast"
	case KindModel:
		return "model inference failed"
	case KindStorage:
		return "history store error"
	}
	return "internal error"
}
