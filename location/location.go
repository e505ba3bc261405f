package location

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Options mirror the browser geolocation request options.
type Options struct {
	HighAccuracy bool          `json:"high_accuracy"`
	Timeout      time.Duration `json:"timeout"`
	MaxCachedAge time.Duration `json:"max_cached_age"`
}

// DefaultOptions asks for a high accuracy fix no older than a minute within 15s.
func DefaultOptions() Options {
	return Options{
		HighAccuracy: true,
		Timeout:      15 * time.Second,
		MaxCachedAge: 60 * time.Second,
	}
}

// Position is a raw fix from a provider.
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorCode follows the W3C geolocation error codes.
type ErrorCode int

const (
	CodeUnknown             ErrorCode = 0
	CodePermissionDenied    ErrorCode = 1
	CodePositionUnavailable ErrorCode = 2
	CodeTimeout             ErrorCode = 3
)

// PositionError is a provider failure with its reason code.
type PositionError struct {
	Code ErrorCode
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("position error (code %d)", e.Code)
}

// ErrNotSupported means the device has no location capability at all.
var ErrNotSupported = errors.New("geolocation not supported")

// Provider is the device location service.
type Provider interface {
	CurrentPosition(ctx context.Context, opts Options) (Position, error)
}

// User-facing messages.
const (
	MessageSuccess             = "Location retrieved successfully!"
	MessageLoading             = "Retrieving location..."
	MessageNotSupported        = "GPS not available on this device"
	MessagePermissionDenied    = "Location access denied. Allow GPS in your settings."
	MessagePositionUnavailable = "Location unavailable. Check your GPS."
	MessageTimeout             = "Location request timed out. Please try again."
	MessageUnknown             = "Location could not be retrieved"
)

// Message maps a provider error to what the user sees.
func Message(err error) string {
	if errors.Is(err, ErrNotSupported) {
		return MessageNotSupported
	}
	var perr *PositionError
	if errors.As(err, &perr) {
		switch perr.Code {
		case CodePermissionDenied:
			return MessagePermissionDenied
		case CodePositionUnavailable:
			return MessagePositionUnavailable
		case CodeTimeout:
			return MessageTimeout
		}
	}
	return MessageUnknown
}
