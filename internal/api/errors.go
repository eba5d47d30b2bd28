package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind categorizes an API failure for upstream handling.
type ErrorKind int

const (
	// ErrorKindUnknown indicates an unclassified failure.
	ErrorKindUnknown ErrorKind = iota
	// ErrorKindAuth indicates the session is invalid or forbidden (401/403).
	ErrorKindAuth
	// ErrorKindNotFound indicates the resource does not exist (404).
	ErrorKindNotFound
	// ErrorKindRateLimit indicates the client is being throttled (429).
	ErrorKindRateLimit
	// ErrorKindServer indicates a server-side failure (5xx).
	ErrorKindServer
	// ErrorKindNetwork indicates no HTTP response was received at all.
	ErrorKindNetwork
)

// String returns a human-readable name for the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindAuth:
		return "authentication error"
	case ErrorKindNotFound:
		return "not found"
	case ErrorKindRateLimit:
		return "rate limited"
	case ErrorKindServer:
		return "server error"
	case ErrorKindNetwork:
		return "network error"
	default:
		return "unknown error"
	}
}

// Error is a typed API failure carrying the original HTTP status.
// A StatusCode of 0 means no response was received (network failure).
type Error struct {
	// StatusCode is the HTTP status of the failed response, or 0.
	StatusCode int
	// Kind categorizes the failure.
	Kind ErrorKind
	// Message is the server-provided error message when available.
	Message string
	// Endpoint is the URL the request targeted.
	Endpoint string
	// Reason is the underlying transport error for network failures.
	Reason error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	if e.Reason != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s (status %d)", e.Kind, e.StatusCode)
}

// Unwrap exposes the underlying transport error for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Reason
}

// KindForStatus maps an HTTP status code to an ErrorKind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrorKindAuth
	case status == http.StatusNotFound:
		return ErrorKindNotFound
	case status == http.StatusTooManyRequests:
		return ErrorKindRateLimit
	case status >= 500:
		return ErrorKindServer
	default:
		return ErrorKindUnknown
	}
}

// errorBody is the wire shape of a non-2xx response body. The server
// emits either a structured {"error": {"message": ...}} envelope or a
// bare {"detail": ...} field.
type errorBody struct {
	Err struct {
		Message string `json:"message"`
	} `json:"error"`
	Detail string `json:"detail"`
}

// MessageFromBody extracts the most specific error message from a
// non-2xx response body: error.message first, then detail, then the
// status line. Unparseable bodies fall through to the status line.
func MessageFromBody(body []byte, status int) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Err.Message != "" {
			return parsed.Err.Message
		}
		if parsed.Detail != "" {
			return parsed.Detail
		}
	}
	return http.StatusText(status)
}

// NewStatusError builds a typed error from a definitive HTTP response.
func NewStatusError(status int, body []byte, endpoint string) *Error {
	return &Error{
		StatusCode: status,
		Kind:       KindForStatus(status),
		Message:    MessageFromBody(body, status),
		Endpoint:   endpoint,
	}
}

// NewNetworkError builds a typed error for a request that never reached
// the server. StatusCode is 0 by construction.
func NewNetworkError(err error, endpoint string) *Error {
	return &Error{
		Kind:     ErrorKindNetwork,
		Endpoint: endpoint,
		Reason:   err,
	}
}

// IsAuthError reports whether err is an API authentication failure.
func IsAuthError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == ErrorKindAuth
}

// IsNetworkError reports whether err is a transport-level failure with
// no HTTP response.
func IsNetworkError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == ErrorKindNetwork
}

// UserMessage maps an error to the message shown to the user.
// hadSession distinguishes an expired session from bad credentials on
// authentication failures.
func UserMessage(err error, hadSession bool) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	switch apiErr.Kind {
	case ErrorKindAuth:
		if hadSession {
			return "Your session has expired. Please sign in again."
		}
		return "Invalid credentials."
	case ErrorKindNetwork:
		return "Can't reach the server. Check your connection and try again."
	default:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return apiErr.Error()
	}
}
