package domain

import (
	"errors"
	"fmt"
)

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeInvalidModel   = "INVALID_MODEL_CHOICE"
	ErrCodeArtifactLoad   = "ARTIFACT_LOAD_ERROR"
	ErrCodePrediction     = "PREDICTION_ERROR"
	ErrCodeEmptyCohort    = "EMPTY_COHORT"
	ErrCodeTrialStore     = "TRIAL_STORE_ERROR"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// ErrEmptyCohort is returned when cohort processing receives zero rows.
// Aggregates over an empty cohort are undefined, so the request is
// rejected rather than tolerated.
var ErrEmptyCohort = errors.New("cohort contains no rows")

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// PredictionError wraps any internal failure of the prediction pipeline
// with its stage and original cause. No partial results accompany it;
// prediction is all-or-nothing per request.
type PredictionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *PredictionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the original cause for errors.Is / errors.As.
func (e *PredictionError) Unwrap() error {
	return e.Cause
}

// NewPredictionError wraps a pipeline failure with its stage description.
func NewPredictionError(message string, cause error) *PredictionError {
	return &PredictionError{
		Code:    ErrCodePrediction,
		Message: message,
		Cause:   cause,
	}
}

// ArtifactError reports a fatal startup problem with a preprocessing or
// model artifact: a missing file, a corrupt payload, or a dimension
// mismatch between fitted transforms and a network.
type ArtifactError struct {
	Artifact string
	Message  string
	Cause    error
}

// Error implements the error interface
func (e *ArtifactError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("artifact %s: %s: %v", e.Artifact, e.Message, e.Cause)
	}
	return fmt.Sprintf("artifact %s: %s", e.Artifact, e.Message)
}

// Unwrap exposes the original cause for errors.Is / errors.As.
func (e *ArtifactError) Unwrap() error {
	return e.Cause
}

// NewArtifactError creates a new ArtifactError.
func NewArtifactError(artifact, message string, cause error) *ArtifactError {
	return &ArtifactError{Artifact: artifact, Message: message, Cause: cause}
}
