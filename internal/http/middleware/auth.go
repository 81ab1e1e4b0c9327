package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HeaderAPIKey carries the operator key.
const HeaderAPIKey = "X-API-Key"

const operatorKey = "operator"

// APIKey admits requests whose X-API-Key equals key. An empty key disables
// the check. Authenticated requests get an operator id (a short digest of the
// key) usable for rate-limit buckets and logs.
func APIKey(key string) gin.HandlerFunc {
	if key == "" {
		return func(c *gin.Context) { c.Next() }
	}
	want := []byte(key)
	sum := sha256.Sum256(want)
	id := hex.EncodeToString(sum[:4])

	return func(c *gin.Context) {
		got := c.GetHeader(HeaderAPIKey)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "missing or invalid API key")
			return
		}
		c.Set(operatorKey, id)
		c.Next()
	}
}

// OperatorFrom returns the operator id set by APIKey, or "".
func OperatorFrom(c *gin.Context) string {
	v, _ := c.Get(operatorKey)
	return asString(v)
}
