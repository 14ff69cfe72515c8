package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prohmpiriya/turf-booking/pkg/response"
)

// AdminSecretHeader carries the shared admin secret
const AdminSecretHeader = "X-Admin-Secret"

// ContextKeyAdmin is set to true for requests that passed AdminAuth
const ContextKeyAdmin = "is_admin"

// CheckAdminSecret compares a presented secret with the configured one in
// constant time. Empty values never match.
func CheckAdminSecret(presented, secret string) bool {
	if presented == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) == 1
}

// AdminAuth rejects requests whose X-Admin-Secret does not equal secret
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CheckAdminSecret(c.GetHeader(AdminSecretHeader), secret) {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
			return
		}
		c.Set(ContextKeyAdmin, true)
		c.Next()
	}
}
