package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAPIError_Classification(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		status    int
		code      ErrorCode
		retryable bool
	}{
		{0, ErrCodeTransientAPI, true},
		{401, ErrCodeAuthentication, false},
		{403, ErrCodeAuthentication, false},
		{404, ErrCodeNotFound, false},
		{408, ErrCodeTransientAPI, true},
		{429, ErrCodeTransientAPI, true},
		{500, ErrCodeTransientAPI, true},
		{503, ErrCodeTransientAPI, true},
		{400, ErrCodeRemoteAPI, false},
	}

	for _, tt := range tests {
		err := NewAPIError("lemmy", "create comment", tt.status, cause)
		assert.Equal(t, tt.code, err.Code, "status %d", tt.status)
		assert.Equal(t, tt.retryable, err.Retryable, "status %d", tt.status)
		assert.Equal(t, tt.status, err.Context["status_code"])
		assert.Equal(t, "create comment", err.Context["operation"])
		assert.True(t, errors.Is(err, cause))
	}
}

func TestNewStoreError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStoreError("insert comment mapping", cause)

	assert.Equal(t, ErrCodeDatabaseQuery, err.Code)
	assert.Equal(t, "insert comment mapping", err.Context["operation"])
	assert.Contains(t, err.Error(), "disk full")
}

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("lemmy.base_url", "missing Lemmy base URL")
	assert.Equal(t, ErrCodeInvalidConfig, err.Code)
	assert.Equal(t, "lemmy.base_url", err.Context["config_key"])
}
