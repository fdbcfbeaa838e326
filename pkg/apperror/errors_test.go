package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("INVALID_INPUT", "bad request", http.StatusBadRequest),
			expected: "[INVALID_INPUT] bad request",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("INTERNAL", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[INTERNAL] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("INTERNAL", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("INVALID_INPUT", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestTaxonomyErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		kind       string
		httpStatus int
	}{
		{"InvalidInput", ErrInvalidInput("bad sku"), "INVALID_INPUT", 400},
		{"NotFound", ErrNotFound("session"), "NOT_FOUND", 404},
		{"InvalidState", ErrInvalidState("terminal"), "INVALID_STATE", 409},
		{"MandateSessionMismatch", ErrMandateSessionMismatch("total mismatch"), "MANDATE_SESSION_MISMATCH", 422},
		{"InvalidAuthorization", ErrInvalidAuthorization(), "INVALID_AUTHORIZATION", 401},
		{"MalformedMandate", ErrMalformedMandate("bad token"), "MALFORMED_MANDATE", 400},
		{"ChallengeExpired", ErrChallengeExpired(), "CHALLENGE_EXPIRED", 410},
		{"ChallengeExhausted", ErrChallengeExhausted(), "CHALLENGE_EXHAUSTED", 403},
		{"InvalidOTP", ErrInvalidOTP(), "INVALID_OTP", 401},
		{"SessionExpired", ErrSessionExpired(), "SESSION_EXPIRED", 410},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestUpstreamAndInternalErrors(t *testing.T) {
	inner := fmt.Errorf("dial tcp: timeout")

	upstream := ErrUpstreamUnavailable(inner)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", upstream.Kind)
	assert.Equal(t, 502, upstream.HTTPStatus)
	assert.True(t, errors.Is(upstream, inner))

	internal := InternalError(inner)
	assert.Equal(t, "INTERNAL", internal.Kind)
	assert.Equal(t, 500, internal.HTTPStatus)
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("mandate")
	assert.Contains(t, err.Message, "mandate")
	assert.Equal(t, "NOT_FOUND", err.Kind)
}
