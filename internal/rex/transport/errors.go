package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport covers failures before a response status is known:
	// encoding, network, open breaker, cancelled rate-limit wait, bad JSON.
	ErrTransport = errors.New("transport error")

	// ErrServer is returned for non-200 responses other than a token expiry.
	ErrServer = errors.New("server error")

	// ErrUnauthorized is returned for a 401 on any path except the login path.
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError carries the status and a body excerpt of a failed response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("server error: status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrServer
}
