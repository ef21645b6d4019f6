package scoring

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrServiceUnreachable indicates no HTTP response was received from the scoring service.
	ErrServiceUnreachable = errors.New("scoring service unreachable")
	// ErrInvalidSession indicates the service does not recognize the session id.
	ErrInvalidSession = errors.New("scoring service rejected the session id")
)

// ServiceError is a failure reported by (or decoded from) a scoring service response.
type ServiceError struct {
	Operation string
	Status    int
	Body      string
	// Detail is the FastAPI-style `detail` field when the body carries one.
	Detail string
	// Reason is set when the status was successful but the payload was unusable.
	Reason string
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: scoring service", e.Operation)
	if e.Status != 0 {
		fmt.Fprintf(&b, " returned HTTP %d", e.Status)
	}
	switch {
	case e.Reason != "":
		b.WriteString(": " + e.Reason)
	case e.Detail != "":
		b.WriteString(": " + e.Detail)
	case strings.TrimSpace(e.Body) != "":
		b.WriteString(": " + strings.TrimSpace(e.Body))
	}
	return b.String()
}

// IsServiceError reports whether err carries a *ServiceError and returns it.
func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}
