package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInitialization = "INITIALIZATION_FAILED"
	ErrCodeBrowserCreate  = "BROWSER_CREATE_FAILED"
	ErrCodePageCreate     = "PAGE_CREATE_FAILED"
	ErrCodeTimeout        = "OPERATION_TIMEOUT"
	ErrCodeNavigation     = "NAVIGATION_FAILED"
	ErrCodeResourceLimit  = "RESOURCE_LIMIT"
	ErrCodeDisconnected   = "BROWSER_DISCONNECTED"
	ErrCodeSecurity       = "SECURITY_VIOLATION"
	ErrCodePoolClosed     = "POOL_CLOSED"
	ErrCodeActionFailed   = "ACTION_FAILED"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// Severity buckets for logging and alert prioritization. Never used for
// control flow.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Detail carries the structured payload of an Error. Only the fields
// relevant to the error's code are set.
type Detail struct {
	Timeout   time.Duration `json:"timeout,omitempty"`
	URL       string        `json:"url,omitempty"`
	Resource  string        `json:"resource,omitempty"`
	Limit     int           `json:"limit,omitempty"`
	Current   int           `json:"current,omitempty"`
	BrowserID string        `json:"browser_id,omitempty"`
	Violation string        `json:"violation,omitempty"`
}

// Error is the internal error type carrying a machine-checkable code and a
// structured detail payload. It implements the error interface and supports
// error wrapping via Unwrap.
type Error struct {
	Code    string
	Message string
	Detail  Detail
	Err     error // wrapped original error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *Error) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// New creates an Error with an arbitrary code.
func New(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// NewInitializationError wraps a fatal startup failure (executable not
// found, first launch impossible).
func NewInitializationError(message string, err error) *Error {
	return &Error{Code: ErrCodeInitialization, Message: message, Err: err}
}

// NewBrowserCreateError wraps a driver launch failure.
func NewBrowserCreateError(err error) *Error {
	return &Error{Code: ErrCodeBrowserCreate, Message: "failed to launch browser", Err: err}
}

// NewPageCreateError wraps a driver page-creation failure.
func NewPageCreateError(browserID string, err error) *Error {
	return &Error{
		Code:    ErrCodePageCreate,
		Message: "failed to create page",
		Detail:  Detail{BrowserID: browserID},
		Err:     err,
	}
}

// NewTimeoutError reports an elapsed operation or acquire deadline.
func NewTimeoutError(timeout time.Duration, err error) *Error {
	return &Error{
		Code:    ErrCodeTimeout,
		Message: fmt.Sprintf("operation exceeded %s deadline", timeout),
		Detail:  Detail{Timeout: timeout},
		Err:     err,
	}
}

// NewNavigationError wraps a failed page navigation.
func NewNavigationError(url string, err error) *Error {
	return &Error{
		Code:    ErrCodeNavigation,
		Message: "navigation to target URL failed",
		Detail:  Detail{URL: url},
		Err:     err,
	}
}

// NewResourceLimitError reports pool saturation after the acquire deadline.
func NewResourceLimitError(resource string, limit, current int) *Error {
	return &Error{
		Code:    ErrCodeResourceLimit,
		Message: fmt.Sprintf("%s pool saturated (%d/%d)", resource, current, limit),
		Detail:  Detail{Resource: resource, Limit: limit, Current: current},
	}
}

// NewDisconnectedError reports loss of the control connection to a browser.
func NewDisconnectedError(browserID string, err error) *Error {
	return &Error{
		Code:    ErrCodeDisconnected,
		Message: "browser disconnected",
		Detail:  Detail{BrowserID: browserID},
		Err:     err,
	}
}

// NewSecurityError reports a domain-policy violation.
func NewSecurityError(violation string) *Error {
	return &Error{
		Code:    ErrCodeSecurity,
		Message: "request blocked by security policy",
		Detail:  Detail{Violation: violation},
	}
}

// AsError extracts an *Error from an error chain, wrapping unknown errors
// under ErrCodeInternal so callers never see an untyped failure.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: ErrCodeInternal, Message: err.Error(), Err: err}
}

// Retryable reports whether an error is a transient network-class failure
// (connection reset, DNS failure, timeout, connectivity loss). The engine
// never retries on its own; this is advisory for callers.
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		switch e.Code {
		case ErrCodeTimeout, ErrCodeDisconnected:
			return true
		case ErrCodeNavigation:
			return isNetworkError(e.Err)
		default:
			return false
		}
	}
	return isNetworkError(err)
}

// SeverityOf classifies an error for logging and alerting. Initialization
// and creation failures are critical, resource-limit and security are high,
// timeouts and navigation are medium, everything else low.
func SeverityOf(err error) Severity {
	var e *Error
	if !errors.As(err, &e) {
		return SeverityLow
	}
	switch e.Code {
	case ErrCodeInitialization, ErrCodeBrowserCreate, ErrCodePageCreate:
		return SeverityCritical
	case ErrCodeResourceLimit, ErrCodeSecurity:
		return SeverityHigh
	case ErrCodeTimeout, ErrCodeNavigation:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// disconnectMarkers are substrings of driver errors that mean the CDP
// connection or the render target is gone and the page cannot be reused.
var disconnectMarkers = []string{
	"use of closed network connection",
	"connection reset",
	"websocket: close",
	"target closed",
	"session closed",
	"browser has been closed",
	"page has been closed",
	"cdp connection",
}

// IsDisconnect reports whether a raw driver error indicates the browser or
// page backing an operation is unusable (crashed render process, closed
// control connection). The executor discards pages on such failures.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) && e.Code == ErrCodeDisconnected {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range disconnectMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "network is unreachable")
}
