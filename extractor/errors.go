package extractor

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a probe failure for retry and alerting decisions.
type ErrorKind string

const (
	// KindTimeout is a deadline hit on the network exchange.
	KindTimeout ErrorKind = "timeout"

	// KindStructure means the page loaded but did not have the expected
	// shape. Retried like any probe failure; it usually means the site's
	// markup changed.
	KindStructure ErrorKind = "structure"

	// KindTransport covers connection and protocol failures.
	KindTransport ErrorKind = "transport"

	// KindBlocked means the site answered with a bot-rejection status.
	KindBlocked ErrorKind = "blocked"
)

// ProbeError is a typed probe failure.
type ProbeError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// KindOf extracts the error kind, defaulting to transport for untyped errors.
func KindOf(err error) ErrorKind {
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransport
}

func structureErr(url, reason string) *ProbeError {
	return &ProbeError{Kind: KindStructure, URL: url, Err: errors.New(reason)}
}

// classifyFetchErr types an HTTP client error.
func classifyFetchErr(url string, err error) *ProbeError {
	kind := KindTransport
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	}
	return &ProbeError{Kind: kind, URL: url, Err: err}
}

func classifyStatus(url string, statusCode int) *ProbeError {
	kind := KindTransport
	switch statusCode {
	case 403, 429, 503:
		kind = KindBlocked
	}
	return &ProbeError{Kind: kind, URL: url, Err: fmt.Errorf("HTTP %d", statusCode)}
}
