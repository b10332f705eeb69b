package model

import "errors"

var (
	// ErrConfig marks missing or invalid required configuration.
	ErrConfig = errors.New("invalid configuration")
	// ErrFetch marks an empty or malformed candidate list from the directory provider.
	ErrFetch = errors.New("endpoint fetch failed")
	// ErrMeasurement marks a missing or non-numeric speed measurement.
	ErrMeasurement = errors.New("speed measurement failed")
	// ErrFailoverExhausted is returned when no candidate passed the connectivity check.
	ErrFailoverExhausted = errors.New("failover exhausted")
	// ErrCalibration is returned when no candidate produced a tunneled measurement.
	ErrCalibration = errors.New("calibration failed")
	// ErrInstanceDisabled is returned when the tunnel instance is disabled or not configured.
	ErrInstanceDisabled = errors.New("tunnel instance disabled")
	// ErrLocked is returned when another run holds the instance lock.
	ErrLocked = errors.New("instance locked by another run")
)
