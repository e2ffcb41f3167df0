// Package http provides the JSON HTTP boundary of the ledger.
//
// This file implements the Builder Pattern for constructing responses.
// Every handler goes through ResponseBuilder so that content types, error
// bodies and status codes stay consistent.

package http

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"budgeting/internal/core"
	"budgeting/internal/ledger"
)

// ResponseBuilder provides a fluent API for building responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       []byte
	value      any
	hasValue   bool
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets a value to be encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.headers["Content-Type"] = "application/json; charset=utf-8"
	b.value = v
	b.hasValue = true
	return b
}

// Body sets a pre-encoded response body with its content type.
func (b *ResponseBuilder) Body(contentType string, content []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.body = content
	b.hasValue = false
	return b
}

// Attachment marks the body as a download with the given file name.
func (b *ResponseBuilder) Attachment(filename string) *ResponseBuilder {
	return b.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	body := b.body
	if b.hasValue {
		encoded, err := json.Marshal(b.value)
		if err != nil {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"failed to encode response"}`))
			return
		}
		body = append(encoded, '\n')
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().
		Status(statusCode).
		JSON(ErrorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(field, message string) *ResponseBuilder {
	return NewResponse().
		Status(http.StatusUnprocessableEntity).
		JSON(ErrorBody{Error: message, Field: field})
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ServiceUnavailableError creates a 503 Service Unavailable error response.
func ServiceUnavailableError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

// TooManyRequestsError creates a 429 response with a Retry-After header.
func TooManyRequestsError(retryAfterSeconds string) *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").
		Header("Retry-After", retryAfterSeconds)
}

// ErrorFor maps a ledger or validation error to its response. Internal
// errors are not echoed to the client.
func ErrorFor(err error) *ResponseBuilder {
	var ve *core.ValidationError
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		return BadRequestError(bad.Error())
	case errors.As(err, &ve):
		return UnprocessableEntityError(ve.Field, ve.Error())
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, ledger.ErrIndexOutOfRange):
		return NotFoundError(err.Error())
	case errors.Is(err, ledger.ErrClosed):
		return ServiceUnavailableError("ledger is closed")
	default:
		return InternalServerError("internal error")
	}
}
