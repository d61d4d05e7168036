package remotestore

import (
	"context"
	"errors"
	"net"
	"net/http"

	"aquere/libros-iva/internal/ledgererror"

	"google.golang.org/api/googleapi"
)

// classify wraps err as a RemoteStoreError, or an AuthenticationError for rejected
// credentials. Rate limiting, server errors and network timeouts are transient.
func classify(op, target string, err error) error {
	if err == nil {
		return nil
	}
	var authErr *ledgererror.AuthenticationError
	var remote *ledgererror.RemoteStoreError
	if errors.As(err, &authErr) || errors.As(err, &remote) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized:
			return &ledgererror.AuthenticationError{Reason: "the document store rejected the credentials", Err: err}
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return &ledgererror.RemoteStoreError{Op: op, Target: target, Transient: true, Err: err}
		case apiErr.Code == http.StatusForbidden && isRateLimit(apiErr):
			return &ledgererror.RemoteStoreError{Op: op, Target: target, Transient: true, Err: err}
		}
		return &ledgererror.RemoteStoreError{Op: op, Target: target, Err: err}
	}

	if errors.Is(err, context.Canceled) {
		return &ledgererror.RemoteStoreError{Op: op, Target: target, Err: err}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &ledgererror.RemoteStoreError{Op: op, Target: target, Transient: true, Err: err}
	}
	return &ledgererror.RemoteStoreError{Op: op, Target: target, Err: err}
}

func isRateLimit(e *googleapi.Error) bool {
	for _, item := range e.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded":
			return true
		}
	}
	return false
}
