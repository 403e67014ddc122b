package data

import "errors"

// Error variables for consistent error handling across the core. Every
// failing precondition maps to exactly one sentinel so callers and tests can
// discriminate the cause with errors.Is.
var (
	// Input validation
	ErrInvalidHash       = errors.New("invalid submission hash")
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrInvalidDeviceID   = errors.New("invalid device identifier")
	ErrInvalidSteps      = errors.New("step count out of range")
	ErrInvalidHeartRate  = errors.New("heart rate out of range")
	ErrInvalidCalories   = errors.New("calories out of range")
	ErrInvalidDistance   = errors.New("distance out of range")
	ErrInvalidGPS        = errors.New("gps payload too large")
	ErrMetadataTooLarge  = errors.New("metadata too large")
	ErrInvalidNonce      = errors.New("invalid session nonce")
	ErrInvalidConfidence = errors.New("invalid confidence value")
	ErrInvalidStatus     = errors.New("invalid submission status")

	// State conflict
	ErrSubmissionExists         = errors.New("submission already exists")
	ErrSubmissionNotFound       = errors.New("submission not found")
	ErrInvalidSubmissionID      = errors.New("submission already under validation")
	ErrOracleAlreadyExists      = errors.New("oracle already registered for owner")
	ErrOracleNotFound           = errors.New("oracle not found")
	ErrOracleInactive           = errors.New("oracle is not active")
	ErrInvalidResponse          = errors.New("request is not accepting responses")
	ErrResponseAlreadyProcessed = errors.New("response already submitted for request")

	// Authorization
	ErrUnauthorized = errors.New("caller is not authorized")

	// Temporal
	ErrResponseTimeout = errors.New("response deadline exceeded")
	ErrQuorumNotMet    = errors.New("request is not ready to finalize")

	// Economic
	ErrInsufficientStake = errors.New("stake below minimum")
	ErrInsufficientFunds = errors.New("insufficient funds for transfer")

	// Fraud detection
	ErrFraudDetected         = errors.New("fraud detected for submission")
	ErrUserBanned            = errors.New("user is banned")
	ErrInsufficientData      = errors.New("no responses received before deadline")
	ErrInvalidFraudThreshold = errors.New("fraud threshold out of range")
	ErrInvalidAnomalyFactor  = errors.New("anomaly factor must be positive")

	// Persistence
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)
