package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthExpired signals an expired session or token. The adapter is
	// expected to re-authenticate exactly once and retry the call once; a
	// second failure surfaces as ErrAuthFailed.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrAuthFailed is a non-recoverable authentication failure.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrAdapterNotFound means no adapter is registered for the
	// (tenant, platform) pair.
	ErrAdapterNotFound = errors.New("adapter not found")

	// ErrRelayWriteFailed wraps a vendor write-back that failed after the
	// retry budget was exhausted.
	ErrRelayWriteFailed = errors.New("relay write failed")
)

// APIError is a non-2xx vendor response. Auth-expired classification is
// vendor-specific and done by the adapter before the error escapes it.
type APIError struct {
	Platform   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API returned status %d: %s", e.Platform, e.StatusCode, e.Body)
}

// Transient reports whether the error is worth retrying: network failures
// and 5xx responses are, other 4xx responses are not.
func Transient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	if errors.Is(err, ErrAuthExpired) || errors.Is(err, ErrAuthFailed) {
		return false
	}
	// Anything that is not a structured API response is treated as a
	// network-level failure.
	return err != nil
}
