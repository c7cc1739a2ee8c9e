package models

import (
	"errors"
	"net/http"
)

var (
	ErrEntityNotFound   = errors.New("entity not found")
	ErrMissingSignature = errors.New("signature is required")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Issue is a single schema violation reported by a ValidationFailed error.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is the one error shape shared by the gateway and the transport layer.
type APIError struct {
	Message    string
	StatusCode int
	Details    interface{}
}

func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse is the JSON body returned for every failed request.
type ErrorResponse struct {
	Status  int         `json:"status"`
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// ToResponse converts the error into its JSON body.
func (e *APIError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Status:  e.StatusCode,
		Success: false,
		Error:   e.Message,
		Details: e.Details,
	}
}

func NewBadRequest(message string) *APIError {
	return &APIError{Message: message, StatusCode: http.StatusBadRequest}
}

func NewUnauthorized(message string) *APIError {
	return &APIError{Message: message, StatusCode: http.StatusUnauthorized}
}

func NewForbidden(message string) *APIError {
	return &APIError{Message: message, StatusCode: http.StatusForbidden}
}

func NewTooManyRequests(message string) *APIError {
	return &APIError{Message: message, StatusCode: http.StatusTooManyRequests}
}

func NewNotFound(message string) *APIError {
	return &APIError{Message: message, StatusCode: http.StatusNotFound}
}

// NewValidationFailed carries the structured issue list in Details.
func NewValidationFailed(message string, issues []Issue) *APIError {
	return &APIError{Message: message, StatusCode: http.StatusBadRequest, Details: issues}
}

func NewInternalError(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return &APIError{Message: message, StatusCode: http.StatusInternalServerError}
}

// AsAPIError unwraps err into an *APIError. Errors without status metadata
// become a generic internal error so no internal detail leaks to callers.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, ErrEntityNotFound) {
		return NewNotFound(ErrEntityNotFound.Error())
	}
	return NewInternalError("")
}
