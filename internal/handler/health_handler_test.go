package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck(ctx context.Context) error {
	return s.err
}

func setupHealthRouter(h *HealthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	return router
}

func TestHealthHandler_Health(t *testing.T) {
	router := setupHealthRouter(NewHealthHandler(nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name           string
		checks         map[string]HealthChecker
		expectedStatus int
		expectedState  string
		components     map[string]string
	}{
		{
			name:           "all healthy",
			checks:         map[string]HealthChecker{"postgres": stubChecker{}, "redis": stubChecker{}},
			expectedStatus: http.StatusOK,
			expectedState:  "ready",
			components:     map[string]string{"postgres": "healthy", "redis": "healthy"},
		},
		{
			name:           "optional component not configured",
			checks:         map[string]HealthChecker{"postgres": stubChecker{}, "redis": nil},
			expectedStatus: http.StatusOK,
			expectedState:  "ready",
			components:     map[string]string{"postgres": "healthy", "redis": "not configured"},
		},
		{
			name:           "storage down",
			checks:         map[string]HealthChecker{"postgres": stubChecker{err: errors.New("refused")}},
			expectedStatus: http.StatusServiceUnavailable,
			expectedState:  "not ready",
			components:     map[string]string{"postgres": "unhealthy: refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupHealthRouter(NewHealthHandler(tt.checks))

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			var resp ReadyResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedState, resp.Status)
			assert.Equal(t, tt.components, resp.Components)
		})
	}
}
