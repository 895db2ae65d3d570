package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrCapacity         = errors.New("batch capacity exceeded")
	ErrAuthentication   = errors.New("authentication required")
	ErrAuthorization    = errors.New("permission denied")
	ErrBadRequest       = errors.New("bad request")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrServer           = errors.New("server failure")
	ErrNetwork          = errors.New("network failure")
	ErrAllocation       = errors.New("code allocation failed")
	ErrResourceNotFound = errors.New("resource not found")
	ErrBusy             = errors.New("upload already in progress")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// Retryable reports whether a user-initiated retry of the failed operation
// could plausibly succeed. Auth and validation failures never qualify.
func Retryable(err error) bool {
	return errors.Is(err, ErrServer) || errors.Is(err, ErrNetwork)
}

// ErrorKind names the taxonomy bucket of err for per-item error records.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrBadRequest):
		return "bad_request"
	case errors.Is(err, ErrPayloadTooLarge):
		return "payload_too_large"
	case errors.Is(err, ErrAllocation):
		return "allocation"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrServer):
		return "server"
	default:
		return "unknown"
	}
}
