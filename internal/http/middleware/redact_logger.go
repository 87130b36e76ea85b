// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger. Donor names and
// contact details must not reach the logs, so the search text (q) is always
// masked, credential and identity headers are replaced outright, and e-mail
// addresses, phone numbers and record IDs are pattern-scrubbed from what is
// left. Bodies are never logged.
package middleware

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	redacted          = "[REDACTED]"
	maxQueryLogLength = 2048
)

// Query parameters whose values are masked whole.
var maskedParams = []string{"q"}

// Headers masked regardless of RedactOptions.
var maskedHeaders = []string{"Authorization", "Cookie", "Set-Cookie", "X-User-Name"}

// UUIDs are scrubbed before phone numbers; the phone pattern would otherwise
// match their digit groups.
var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// RedactOptions adds headers to the built-in mask list (case-insensitive).
type RedactOptions struct {
	MaskHeaders []string
}

func scrub(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// scrubQuery masks maskedParams and pattern-scrubs the remaining values. An
// unparseable query is scrubbed as a plain string.
func scrubQuery(raw string) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return scrub(truncate(raw, maxQueryLogLength))
	}
	for _, p := range maskedParams {
		if _, ok := vals[p]; ok {
			vals[p] = []string{redacted}
		}
	}
	parts := make([]string, 0, len(vals))
	for k, vv := range vals {
		for _, v := range vv {
			if v != redacted {
				v = scrub(v)
			}
			parts = append(parts, k+"="+v)
		}
	}
	sort.Strings(parts)
	return truncate(strings.Join(parts, "&"), maxQueryLogLength)
}

// RedactingLogger attaches a request-scoped logger (see LoggerFrom) and
// writes one access line per request: info, warn for 4xx, error for 5xx or
// when handlers recorded gin errors.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := make(map[string]struct{}, len(maskedHeaders)+len(opts.MaskHeaders))
	for _, h := range append(append([]string{}, maskedHeaders...), opts.MaskHeaders...) {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		rid := c.Writer.Header().Get(requestIDHeader)
		if rid == "" {
			rid = c.GetHeader(requestIDHeader)
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		lg := log.With().
			Str("request_id", rid).
			Str("method", c.Request.Method).
			Str("path", path).
			Logger()
		c.Set(ctxKeyLogger, &lg)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := masked[strings.ToLower(k)]; ok {
				headers[k] = redacted
				continue
			}
			headers[k] = scrub(strings.Join(vv, ", "))
		}
		query := scrubQuery(c.Request.URL.RawQuery)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= 500:
			ev = lg.Error()
		case len(c.Errors) > 0:
			ev = lg.Error().Str("errors", c.Errors.String())
		case status >= 400:
			ev = lg.Warn()
		default:
			ev = lg.Info()
		}
		if a, ok := ActorFrom(c); ok {
			ev = ev.Str("actor", a.ID)
		}
		if _, ok := c.Get(ctxKeyLocale); ok {
			ev = ev.Str("locale", string(LocaleFrom(c)))
		}
		ev.Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}
