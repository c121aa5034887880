package errors

import (
	"fmt"
	"net/http"
)

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key)
}

// NewStoreError creates a mapping store error with operation context
func NewStoreError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("store %s failed", operation)).
		WithContext("operation", operation)
}

// NewAuthError creates an authentication error for a platform
func NewAuthError(platform string, err error) *AppError {
	return Wrap(err, ErrCodeAuthentication, fmt.Sprintf("%s authentication failed", platform)).
		WithContext("platform", platform)
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(platform, resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s %s not found", platform, resource)).
		WithContext("platform", platform).
		WithContext("resource", resource).
		WithContext("identifier", identifier)
}

// NewTransientAPIError creates a retryable error for network failures and throttling
func NewTransientAPIError(platform, operation string, err error) *AppError {
	return WrapRetryable(err, ErrCodeTransientAPI, fmt.Sprintf("%s %s failed", platform, operation)).
		WithContext("platform", platform).
		WithContext("operation", operation)
}

// NewAPIError classifies a failed platform call by HTTP status code.
// A statusCode of 0 means the request never got a response.
func NewAPIError(platform, operation string, statusCode int, err error) *AppError {
	var appErr *AppError

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		appErr = NewAuthError(platform, err)
	case statusCode == http.StatusNotFound:
		appErr = Wrap(err, ErrCodeNotFound, fmt.Sprintf("%s %s: not found", platform, operation)).
			WithContext("platform", platform)
	case statusCode == 0 || statusCode >= 500 || statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout:
		appErr = NewTransientAPIError(platform, operation, err)
	default:
		appErr = Wrap(err, ErrCodeRemoteAPI, fmt.Sprintf("%s %s failed", platform, operation)).
			WithContext("platform", platform)
	}

	return appErr.
		WithContext("operation", operation).
		WithContext("status_code", statusCode)
}
