package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRouter(t *testing.T) {
	router := newTestServices().router()

	t.Run("health is outside the api group", func(t *testing.T) {
		w := do(t, router, testRequest{method: http.MethodGet, path: "/health"})
		assert.Equal(t, http.StatusOK, w.Code)

		w = do(t, router, testRequest{method: http.MethodGet, path: "/ready"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown route uses the error envelope", func(t *testing.T) {
		w := do(t, router, testRequest{method: http.MethodGet, path: "/api/v1/nope"})
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", decode(t, w).Error.Code)
	})

	t.Run("login is not behind admin auth", func(t *testing.T) {
		w := do(t, router, testRequest{method: http.MethodPost, path: "/api/v1/admin/login", body: map[string]string{"secret": "nope"}})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "UNAUTHORIZED", decode(t, w).Error.Code)
	})
}
