// README: Firebase ID-token auth middleware. Sessions belong to the caller uid.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"compass/internal/infra"
)

const (
	ctxCallerUID = "caller_uid"
	// DevUserHeader names the caller when no verifier is configured.
	DevUserHeader = "X-Compass-User"
	devUID        = "dev"
)

// Auth verifies the bearer token and stores the caller uid on the context.
// With a nil verifier it runs in dev mode: the uid comes from DevUserHeader,
// or a fixed development uid.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	if verifier == nil {
		return func(c *gin.Context) {
			uid := strings.TrimSpace(c.GetHeader(DevUserHeader))
			if uid == "" {
				uid = devUID
			}
			c.Set(ctxCallerUID, uid)
			c.Next()
		}
	}
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok {
			// Browsers cannot set headers on a WebSocket upgrade.
			raw = c.Query("access_token")
		}
		if strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil || token == nil || token.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxCallerUID, token.UID)
		c.Next()
	}
}

// CallerUID returns the authenticated uid, or "" outside Auth.
func CallerUID(c *gin.Context) string {
	return c.GetString(ctxCallerUID)
}
