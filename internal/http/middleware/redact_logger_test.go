package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/i18n"
)

// lastLine decodes the final JSON log line in out.
func lastLine(t *testing.T, out string) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("bad log line %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestScrubQuery(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"q=Omar%20Haddad&sort=amount", "q=[REDACTED]&sort=amount"},
		{"dir=desc&q=", "dir=desc&q=[REDACTED]"},
		{"contact=a.b%2Btag%40example.com", "contact=[REDACTED:email]"},
		{"id=123e4567-e89b-12d3-a456-426614174000&page=2", "id=[REDACTED:id]&page=2"},
		{"phone=555-123-4567", "phone=[REDACTED:phone]"},
	}
	for _, tc := range cases {
		if got := scrubQuery(tc.in); got != tc.want {
			t.Errorf("scrubQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := scrubQuery("bad=%zz a@b.com"); !strings.Contains(got, "[REDACTED:email]") {
		t.Errorf("unparseable query not scrubbed: %q", got)
	}
}

func TestRedactingLogger_MasksDonorDataAndIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header(requestIDHeader, "rid-resp"); c.Next() })
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-User-ID"}}))
	r.Use(func(c *gin.Context) {
		setActor(c, domain.Actor{ID: "u1", Name: "Admin"})
		c.Set(ctxKeyLocale, i18n.Arabic)
		c.Next()
	})
	r.GET("/donations", func(c *gin.Context) { c.String(http.StatusOK, "[]") })

	req := httptest.NewRequest(http.MethodGet, "/donations?q=Omar&sort=date", nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("X-User-Name", "Omar Haddad")
	req.Header.Set("X-User-ID", "omar@example.com")
	req.Header.Set("X-Note", "call 555-123-4567")
	req.Header.Set(requestIDHeader, "rid-req")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, "Omar") || strings.Contains(out, "secret") || strings.Contains(out, "555-123") {
		t.Fatalf("sensitive data leaked: %s", out)
	}
	m := lastLine(t, out)
	if m["level"] != "info" || m["message"] != "http_request" {
		t.Fatalf("unexpected line: %v", m)
	}
	if m["request_id"] != "rid-resp" || m["path"] != "/donations" {
		t.Fatalf("request fields: %v", m)
	}
	if m["actor"] != "u1" || m["locale"] != "ar" {
		t.Fatalf("actor/locale: %v", m)
	}
	if m["query"] != "q=[REDACTED]&sort=date" {
		t.Fatalf("query = %v", m["query"])
	}
	h, _ := m["headers"].(map[string]any)
	for _, k := range []string{"Authorization", "X-User-Name", "X-User-Id"} {
		if h[k] != redacted {
			t.Errorf("header %s = %v", k, h[k])
		}
	}
	if h["X-Note"] != "call [REDACTED:phone]" {
		t.Errorf("X-Note = %v", h["X-Note"])
	}
}

func TestRedactingLogger_Levels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/warn", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/error", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/gin-error", func(c *gin.Context) {
		_ = c.Error(errBoom{})
		c.Status(http.StatusBadRequest)
	})

	serve := func(path, rid string) map[string]any {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(requestIDHeader, rid)
		r.ServeHTTP(httptest.NewRecorder(), req)
		return lastLine(t, buf.String())
	}

	if m := serve("/warn", "rid-warn"); m["level"] != "warn" || m["request_id"] != "rid-warn" {
		t.Fatalf("warn line: %v", m)
	}
	if m := serve("/error", "rid-err"); m["level"] != "error" {
		t.Fatalf("error line: %v", m)
	}
	if m := serve("/gin-error", "rid-g"); m["level"] != "error" || m["errors"] == nil {
		t.Fatalf("gin error line: %v", m)
	}
	if m := serve("/missing", "rid-404"); m["path"] != "/missing" || m["actor"] != nil {
		t.Fatalf("fallback path line: %v", m)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
