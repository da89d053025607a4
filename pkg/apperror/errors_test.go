// Package apperror provides tests for the custom error types and utility functions.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndError(t *testing.T) {
	err := New(CodeServiceNotFound, "no service matched")
	require.Error(t, err)
	assert.Equal(t, "[SERVICE_NOT_FOUND] no service matched", err.Error())
	assert.Equal(t, SeverityError, err.Severity)
}

func TestNewWithField(t *testing.T) {
	err := NewWithField(CodeInvalidPath, "outside output root", "file_path")
	assert.Equal(t, "[INVALID_PATH] outside output root (field: file_path)", err.Error())
	assert.Equal(t, "file_path", err.Field)
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(cause, CodeScannerFailed, "scanner exited")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, err.Unwrap())
}

func TestWithDetails(t *testing.T) {
	err := New(CodeTimeout, "deadline exceeded").
		WithDetails("elapsed_ms", 200).
		WithDetails("service", "checkout")
	assert.Equal(t, 200, err.Details["elapsed_ms"])
	assert.Equal(t, "checkout", err.Details["service"])
}

func TestWithField(t *testing.T) {
	err := New(CodeInvalidArgument, "bad window").WithField("window")
	assert.Equal(t, "window", err.Field)
}

func TestWithSeverity(t *testing.T) {
	err := New(CodeInternal, "boom").WithSeverity(SeverityCritical)
	assert.Equal(t, SeverityCritical, err.Severity)
}

func TestIs(t *testing.T) {
	err := New(CodeFileTooLarge, "too big")
	assert.True(t, Is(err, CodeFileTooLarge))
	assert.False(t, Is(err, CodeNotFound))
	assert.False(t, Is(errors.New("plain"), CodeFileTooLarge))
}

func TestCode(t *testing.T) {
	err := New(CodeNotFound, "spill file missing")
	assert.Equal(t, CodeNotFound, Code(err))

	plain := fmt.Errorf("unwrapped")
	assert.Equal(t, CodeInternal, Code(plain))
}

func TestKind(t *testing.T) {
	err := New(CodeDiscoveryFailed, "glob failed")
	assert.Equal(t, "DISCOVERY_FAILED", Kind(err))
	assert.Equal(t, "INTERNAL", Kind(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		CodeServiceNotFound: http.StatusNotFound,
		CodeNotFound:        http.StatusNotFound,
		CodeInvalidPath:     http.StatusBadRequest,
		CodePrefixMismatch:  http.StatusBadRequest,
		CodeInvalidArgument: http.StatusBadRequest,
		CodeDecodeError:     http.StatusBadRequest,
		CodeFileTooLarge:    http.StatusRequestEntityTooLarge,
		CodeTimeout:         http.StatusGatewayTimeout,
		CodeInternal:        http.StatusInternalServerError,
		CodeScannerFailed:   http.StatusInternalServerError,
		CodeSpillFailed:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		got := New(code, "x").HTTPStatus()
		assert.Equalf(t, want, got, "code=%s", code)
	}
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "error", SeverityError.String())
	assert.Equal(t, "critical", SeverityCritical.String())
	assert.Equal(t, "unknown", Severity(99).String())
}
