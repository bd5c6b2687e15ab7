package predict

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/inferq/fingerprint"
)

// Sentinel errors for prediction operations.
var (
	// ErrPredictionFailed matches every error returned by Service.Predict.
	ErrPredictionFailed = errors.New("predict: prediction failed")

	// ErrInference indicates the model ran and failed, produced output that
	// cannot be stored, or outlived Config.MaxInFlight (then the error also
	// matches coalesce.ErrStaleInFlight).
	ErrInference = errors.New("predict: inference failed")
)

// PredictionError is returned by Service.Predict. Cause is one of
// registry.ErrModelUnavailable, fingerprint.ErrInvalidInput, ErrInference
// (possibly wrapping coalesce.ErrStaleInFlight) or a context error.
type PredictionError struct {
	Model       string
	Version     string
	Fingerprint fingerprint.Fingerprint
	Cause       error
}

func (e *PredictionError) Error() string {
	ref := e.Model
	if e.Version != "" {
		ref += "@" + e.Version
	}
	return fmt.Sprintf("predict: %s: %v", ref, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *PredictionError) Unwrap() error { return e.Cause }

// Is reports ErrPredictionFailed for every PredictionError.
func (e *PredictionError) Is(target error) bool { return target == ErrPredictionFailed }
