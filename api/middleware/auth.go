package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/inf-mc/NoteBot-sub001/models"
)

// Auth returns API-key authentication middleware.
//
// Supports two header styles:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// Keys are compared in constant time. If apiKeys is empty, the middleware
// is a no-op (open access).
func Auth(apiKeys []string) gin.HandlerFunc {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if len(keys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			reject(c, http.StatusUnauthorized, models.New(models.ErrCodeUnauthorized,
				"missing API key: provide X-API-Key header or Authorization: Bearer <key>", nil))
			return
		}

		if !validKey(keys, key) {
			reject(c, http.StatusUnauthorized, models.New(models.ErrCodeUnauthorized, "invalid API key", nil))
			return
		}

		c.Set("api_key", key)
		c.Next()
	}
}

// validKey checks the presented key against every configured key, without
// short-circuiting, so response timing does not reveal near-matches.
func validKey(keys [][]byte, presented string) bool {
	p := []byte(presented)
	ok := false
	for _, k := range keys {
		if subtle.ConstantTimeCompare(k, p) == 1 {
			ok = true
		}
	}
	return ok
}

// extractAPIKey tries X-API-Key first, then Authorization: Bearer.
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// reject aborts the request with a typed engine error body.
func reject(c *gin.Context, status int, err *models.Error) {
	c.AbortWithStatusJSON(status, models.ScrapeResponse{
		Success: false,
		Error:   err.ToDetail(),
	})
}
