package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// TransientError wraps an error that is safe to retry: rate limiting, server
// errors, timeouts, dropped connections.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient with an optional HTTP status.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// PermanentError marks a failure that no retry can fix and that applies to
// every remaining item of a stage, such as rejected credentials.
type PermanentError struct {
	Err        error
	StatusCode int
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// NewPermanentError wraps err as permanent with an optional HTTP status.
func NewPermanentError(err error, statusCode int) *PermanentError {
	return &PermanentError{Err: err, StatusCode: statusCode}
}

// IsPermanent reports whether err or anything it wraps is a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
	"net::err_",
}

// IsTransient reports whether err is worth retrying. Explicit TransientError
// values, network timeouts and dropped connections qualify. Permanent errors
// never do.
func IsTransient(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// CheckStatus classifies a non-2xx HTTP response. 401 and 403 become
// permanent, retryable statuses become transient and anything else is a
// plain error. 2xx returns nil.
func CheckStatus(service string, statusCode int) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	err := eris.Errorf("%s: unexpected status %d", service, statusCode)
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return NewPermanentError(err, statusCode)
	case IsTransientHTTPStatus(statusCode):
		return NewTransientError(err, statusCode)
	default:
		return err
	}
}
