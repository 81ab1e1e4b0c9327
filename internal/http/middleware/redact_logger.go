package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are replaced entirely, in addition to Authorization,
	// Cookie and Set-Cookie. Matching is case-insensitive.
	MaskHeaders []string
}

var (
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// Customer phones: +375 / 80 prefixed numbers, spaces or dashes allowed,
	// plus generic 10+ digit runs.
	phoneRE = regexp.MustCompile(`\+?\d[\d \-]{8,}\d`)
)

// redact scrubs emails and phone numbers from s. Order ids and prices are
// short digit runs and stay readable.
func redact(s string) string {
	if s == "" {
		return s
	}
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// RedactingLogger emits one access log line per request with PII removed from
// the query and headers. It also installs the request-scoped logger returned
// by LoggerFrom. Install after RequestID.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = "[REDACTED]"
				continue
			}
			headers[k] = redact(strings.Join(vv, ", "))
		}

		reqLog := log.With().
			Str("request_id", RequestIDFrom(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(loggerKey, &reqLog)

		c.Next()

		status := c.Writer.Status()
		ev := reqLog.Info()
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = reqLog.Error()
			if len(c.Errors) > 0 {
				ev = ev.Str("errors", c.Errors.String())
			}
		case status >= 400:
			ev = reqLog.Warn()
		}
		ev.
			Str("query", truncate(redact(c.Request.URL.RawQuery), maxQueryLogLength)).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
