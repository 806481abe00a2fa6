package ports

import (
	"errors"
	"fmt"
	"net/http"
)

// GatewayError is returned by the remote services when a call does not get a
// successful answer. StatusCode is zero when the service could not be reached.
type GatewayError struct {
	Service    string
	StatusCode int
	Text       string
	Reason     string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s unreachable: %v", e.Service, e.Err)
	}
	if len(e.Reason) > 0 {
		return fmt.Sprintf("%s responded %d %s: %s", e.Service, e.StatusCode, e.Reason, e.Text)
	}
	return fmt.Sprintf("%s responded %d: %s", e.Service, e.StatusCode, e.Text)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsTransient tells whether retrying the same call may succeed.
func (e *GatewayError) IsTransient() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// IsTransient reports whether err is a GatewayError worth retrying.
func IsTransient(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.IsTransient()
	}
	return false
}
