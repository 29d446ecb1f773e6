// Package http provides the JSON API server and its handlers.
//
// This file implements the Builder Pattern for JSON responses and the single
// place where service errors become HTTP status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"patrimonio/internal/core"
	"patrimonio/internal/ports"
	"patrimonio/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes no content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"response encoding failed"}` + "\n"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(payload, '\n'))
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	// Field names the offending input field when one is known.
	Field string `json:"field,omitempty"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// ServiceError maps an error returned by the services to a response.
// Unexpected errors never leak their text to the client.
func ServiceError(err error) *JSONResponseBuilder {
	var cfgErr *core.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		return NewJSONResponse().
			Status(http.StatusBadRequest).
			Body(ErrorBody{Error: err.Error(), Field: cfgErr.Field})
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrInvalidConfiguration),
		errors.Is(err, core.ErrInvalidLifeEvent),
		errors.Is(err, core.ErrInvalidPlan):
		return BadRequestError(err.Error())
	case errors.Is(err, ports.ErrNotFound):
		return NotFoundError("not found")
	case errors.Is(err, services.ErrLimitExceeded):
		return UnprocessableEntityError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusGatewayTimeout, "simulation timed out")
	default:
		return InternalServerError("internal error")
	}
}
