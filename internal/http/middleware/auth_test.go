package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAPIKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKey("s3cret"))
	r.GET("/x", func(c *gin.Context) {
		if OperatorFrom(c) == "" {
			t.Fatalf("operator id not set")
		}
		c.Status(http.StatusOK)
	})

	cases := []struct {
		key  string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"wrong", http.StatusUnauthorized},
		{"s3cret", http.StatusOK},
	}
	for _, tc := range cases {
		hdr := map[string]string{}
		if tc.key != "" {
			hdr[HeaderAPIKey] = tc.key
		}
		if w := do(r, http.MethodGet, "/x", hdr); w.Code != tc.want {
			t.Fatalf("key %q: status %d; want %d", tc.key, w.Code, tc.want)
		}
	}
}

func TestAPIKey_DisabledWhenEmpty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKey(""))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := do(r, http.MethodGet, "/x", nil); w.Code != http.StatusOK {
		t.Fatalf("status %d; want 200", w.Code)
	}
}
