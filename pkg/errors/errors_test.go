package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidOptions, "px_per_ms must be positive, got %v", -1)

	if err.Code != ErrCodeInvalidOptions {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidOptions)
	}
	expected := "INVALID_OPTIONS: px_per_ms must be positive, got -1"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := Wrap(ErrCodeInvalidGraph, cause, "read graph %s", "g.json")

	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if err.Error() != "INVALID_GRAPH: read graph g.json: unexpected EOF" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{"matching code", New(ErrCodeInvalidInput, "test"), ErrCodeInvalidInput, true},
		{"non-matching code", New(ErrCodeInvalidInput, "test"), ErrCodeTimeout, false},
		{"outer code", Wrap(ErrCodeInternal, New(ErrCodeMissingDependency, "inner"), "outer"), ErrCodeInternal, true},
		{"inner code", Wrap(ErrCodeInternal, New(ErrCodeMissingDependency, "inner"), "outer"), ErrCodeMissingDependency, true},
		{"behind fmt wrap", fmt.Errorf("refresh: %w", New(ErrCodeMissingDependency, "x")), ErrCodeMissingDependency, true},
		{"non-Error type", errors.New("plain error"), ErrCodeInvalidInput, false},
		{"nil error", nil, ErrCodeInvalidInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Code
	}{
		{"Error type", New(ErrCodeSessionNotFound, "test"), ErrCodeSessionNotFound},
		{"plain error", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.expected {
				t.Errorf("GetCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"Error type", New(ErrCodeInvalidInput, "friendly message"), "friendly message"},
		{"plain error", errors.New("plain error"), "plain error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.expected {
				t.Errorf("UserMessage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsUserError(t *testing.T) {
	if !IsUserError(New(ErrCodeInvalidGraph, "x")) {
		t.Error("INVALID_GRAPH should be a user error")
	}
	if IsUserError(New(ErrCodeCacheUnavailable, "x")) {
		t.Error("CACHE_UNAVAILABLE should not be a user error")
	}
	if IsUserError(errors.New("plain")) {
		t.Error("plain errors are not user errors")
	}
}
