package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"
)

func TestErrorFormatting(t *testing.T) {
	e := NewNavigationError("https://example.com", errors.New("net::ERR_NAME_NOT_RESOLVED"))
	if e.Code != ErrCodeNavigation {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeNavigation)
	}
	if e.Detail.URL != "https://example.com" {
		t.Errorf("detail URL = %q", e.Detail.URL)
	}
	msg := e.Error()
	if msg == "" || msg[:len(ErrCodeNavigation)] != ErrCodeNavigation {
		t.Errorf("error string should start with the code, got %q", msg)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := NewBrowserCreateError(cause)
	if !errors.Is(e, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}

	var typed *Error
	wrapped := fmt.Errorf("outer: %w", e)
	if !errors.As(wrapped, &typed) {
		t.Fatal("errors.As failed to find *Error in chain")
	}
	if typed.Code != ErrCodeBrowserCreate {
		t.Errorf("code = %q", typed.Code)
	}
}

func TestResourceLimitDetail(t *testing.T) {
	e := NewResourceLimitError("page", 10, 10)
	if e.Detail.Resource != "page" || e.Detail.Limit != 10 || e.Detail.Current != 10 {
		t.Errorf("unexpected detail: %+v", e.Detail)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout", NewTimeoutError(time.Second, nil), true},
		{"disconnected", NewDisconnectedError("b1", nil), true},
		{"navigation with dns cause", NewNavigationError("http://x", &fakeDNSError{}), true},
		{"navigation with plain cause", NewNavigationError("http://x", errors.New("404")), false},
		{"resource limit", NewResourceLimitError("page", 1, 1), false},
		{"security", NewSecurityError("denied"), false},
		{"init", NewInitializationError("no browser", nil), false},
		{"raw deadline", context.DeadlineExceeded, true},
		{"raw connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"raw unrelated", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// fakeDNSError stands in for a resolver failure without a live lookup.
type fakeDNSError struct{}

func (*fakeDNSError) Error() string { return "lookup example.invalid: no such host" }

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		err  error
		want Severity
	}{
		{NewInitializationError("x", nil), SeverityCritical},
		{NewBrowserCreateError(nil), SeverityCritical},
		{NewPageCreateError("b1", nil), SeverityCritical},
		{NewResourceLimitError("page", 1, 1), SeverityHigh},
		{NewSecurityError("denied"), SeverityHigh},
		{NewTimeoutError(time.Second, nil), SeverityMedium},
		{NewNavigationError("http://x", nil), SeverityMedium},
		{NewDisconnectedError("b1", nil), SeverityLow},
		{errors.New("untyped"), SeverityLow},
	}
	for _, tt := range tests {
		if got := SeverityOf(tt.err); got != tt.want {
			t.Errorf("SeverityOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestAsError(t *testing.T) {
	typed := NewSecurityError("denied")
	if AsError(typed) != typed {
		t.Error("AsError should return the typed error unchanged")
	}

	raw := errors.New("boom")
	wrapped := AsError(raw)
	if wrapped.Code != ErrCodeInternal {
		t.Errorf("untyped errors should map to %s, got %s", ErrCodeInternal, wrapped.Code)
	}
	if !errors.Is(wrapped, raw) {
		t.Error("AsError should keep the cause in the chain")
	}
}

func TestIsDisconnect(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"typed disconnect", NewDisconnectedError("b1", nil), true},
		{"eof", io.EOF, true},
		{"closed connection", errors.New("write: use of closed network connection"), true},
		{"target closed", errors.New("rod: target closed"), true},
		{"page closed", errors.New("page has been closed"), true},
		{"plain error", errors.New("element not found"), false},
		{"canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDisconnect(tt.err); got != tt.want {
				t.Errorf("IsDisconnect(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
