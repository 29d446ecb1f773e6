package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patrimonio/internal/core"
	"patrimonio/internal/ports"
	"patrimonio/internal/services"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Body(map[string]int{"id": 7}).
		Write(w)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "value", w.Header().Get("X-Custom"))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":7}`, w.Body.String())
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Empty(t, w.Header().Get("Content-Type"))
}

func TestJSONResponseBuilder_EncodingFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(map[string]any{"bad": make(chan int)}).Write(w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "response encoding failed")
}

func TestServiceError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantField string
		hidden    bool
	}{
		{
			name:      "configuration error",
			err:       fmt.Errorf("resolve: %w", &core.ConfigurationError{Field: "horizon_years", Reason: "must be at least 1"}),
			wantCode:  http.StatusBadRequest,
			wantField: "horizon_years",
		},
		{"invalid life event", fmt.Errorf("%w: empty name", core.ErrInvalidLifeEvent), http.StatusBadRequest, "", false},
		{"invalid plan", fmt.Errorf("%w: empty name", core.ErrInvalidPlan), http.StatusBadRequest, "", false},
		{"bad request", fmt.Errorf("%w: empty body", errBadRequest), http.StatusBadRequest, "", false},
		{"not found", fmt.Errorf("run x: %w", ports.ErrNotFound), http.StatusNotFound, "", false},
		{"limit", fmt.Errorf("%w: too many", services.ErrLimitExceeded), http.StatusUnprocessableEntity, "", false},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "", false},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ServiceError(tt.err).Write(w)

			require.Equal(t, tt.wantCode, w.Code)
			var body ErrorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantField, body.Field)
			assert.NotEmpty(t, body.Error)
			if tt.hidden {
				assert.NotContains(t, body.Error, "disk on fire")
			}
		})
	}
}
