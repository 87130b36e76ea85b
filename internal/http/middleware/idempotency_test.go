package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-donation-tracker/internal/domain"
)

var fixedNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.FixedZone("AST", 3*3600))

type lookupCall struct {
	actorID, scope, key string
	now                 time.Time
}

// idemEngine signs in as actorID (when non-empty) ahead of the validator.
func idemEngine(actorID string, opts IdempotencyOptions, lookup IdempotencyLookup, h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if actorID != "" {
			setActor(c, domain.Actor{ID: actorID, Name: actorID})
		}
		c.Next()
	})
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	r.Use(IdempotencyValidator(opts, lookup))
	r.Any("/donations", h)
	return r
}

func send(r http.Handler, method, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/donations", nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyAccessors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("key present by default")
	}
	if IsReplay(c) {
		t.Fatalf("replay by default")
	}
	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key should read as absent")
	}
	c.Set(ctxKeyIdemReplay, true)
	if !IsReplay(c) {
		t.Fatalf("replay not read")
	}
}

func TestIdempotencyValidator_SkipsWithoutKeyOrOnSafeMethods(t *testing.T) {
	calls := 0
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		calls++
		return true, nil
	}
	var stashed bool
	r := idemEngine("u1", IdempotencyOptions{}, lookup, func(c *gin.Context) {
		_, stashed = GetIdempotencyKey(c)
		c.Status(http.StatusNoContent)
	})

	if w := send(r, http.MethodPost, ""); w.Code != http.StatusNoContent || stashed {
		t.Fatalf("no key: code=%d stashed=%v", w.Code, stashed)
	}
	// A malformed key on GET is ignored rather than rejected.
	if w := send(r, http.MethodGet, "bad key!"); w.Code != http.StatusNoContent || stashed {
		t.Fatalf("GET: code=%d stashed=%v", w.Code, stashed)
	}
	if calls != 0 {
		t.Fatalf("lookup called %d times", calls)
	}
}

func TestIdempotencyValidator_RejectsMalformedKeys(t *testing.T) {
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	r := idemEngine("u1", IdempotencyOptions{MaxLen: 5}, nil, ok)
	w := send(r, http.MethodPost, "abcdef")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("too long: %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["code"] != "bad_idempotency_key" {
		t.Fatalf("body = %v (%v)", body, err)
	}

	r = idemEngine("u1", IdempotencyOptions{}, nil, ok)
	if w := send(r, http.MethodPut, "has space"); w.Code != http.StatusBadRequest {
		t.Fatalf("default pattern: %d", w.Code)
	}
	if w := send(r, http.MethodPost, strings.Repeat("k", defaultIdemMaxLen+1)); w.Code != http.StatusBadRequest {
		t.Fatalf("default max length: %d", w.Code)
	}

	r = idemEngine("u1", IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, nil, ok)
	if w := send(r, http.MethodPost, "abc123"); w.Code != http.StatusBadRequest {
		t.Fatalf("custom pattern: %d", w.Code)
	}
}

func TestIdempotencyValidator_HitMarksReplayAndBypass(t *testing.T) {
	var got lookupCall
	lookup := func(_ context.Context, actorID, scope, key string, now time.Time) (bool, error) {
		got = lookupCall{actorID, scope, key, now}
		return true, nil
	}
	var replay, bypass bool
	r := idemEngine("u9", IdempotencyOptions{Scope: "donations"}, lookup, func(c *gin.Context) {
		replay, bypass = IsReplay(c), IsRateBypass(c)
		c.Status(http.StatusOK)
	})

	if w := send(r, http.MethodPost, "k-9"); w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	want := lookupCall{"u9", "donations", "k-9", fixedNow.UTC()}
	if got != want {
		t.Fatalf("lookup args = %+v, want %+v", got, want)
	}
	if got.now.Location() != time.UTC {
		t.Fatalf("lookup time not UTC: %v", got.now)
	}
	if !replay || !bypass {
		t.Fatalf("replay=%v bypass=%v", replay, bypass)
	}
}

func TestIdempotencyValidator_MissUsesRouteScope(t *testing.T) {
	var scope string
	lookup := func(_ context.Context, _, s, _ string, _ time.Time) (bool, error) {
		scope = s
		return false, nil
	}
	var replay bool
	var key string
	r := idemEngine("u1", IdempotencyOptions{}, lookup, func(c *gin.Context) {
		replay = IsReplay(c)
		key, _ = GetIdempotencyKey(c)
		c.Status(http.StatusCreated)
	})

	if w := send(r, http.MethodPost, "abc-123"); w.Code != http.StatusCreated {
		t.Fatalf("status %d", w.Code)
	}
	if scope != "/donations" || replay || key != "abc-123" {
		t.Fatalf("scope=%q replay=%v key=%q", scope, replay, key)
	}
}

func TestIdempotencyValidator_AnonymousIsNotLookedUp(t *testing.T) {
	calls := 0
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		calls++
		return true, nil
	}
	var key string
	r := idemEngine("", IdempotencyOptions{}, lookup, func(c *gin.Context) {
		key, _ = GetIdempotencyKey(c)
		c.Status(http.StatusUnauthorized)
	})
	send(r, http.MethodPost, "k-anon")
	if calls != 0 || key != "k-anon" {
		t.Fatalf("calls=%d key=%q", calls, key)
	}
}

func TestIdempotencyValidator_LookupErrorIsAMiss(t *testing.T) {
	buf := captureLogger(t)
	lookup := func(context.Context, string, string, string, time.Time) (bool, error) {
		return false, errors.New("db closed")
	}
	var replay bool
	r := idemEngine("u1", IdempotencyOptions{Scope: "donations"}, lookup, func(c *gin.Context) {
		replay = IsReplay(c)
		c.Status(http.StatusCreated)
	})

	if w := send(r, http.MethodPost, "k-err"); w.Code != http.StatusCreated || replay {
		t.Fatalf("code=%d replay=%v", w.Code, replay)
	}
	if !strings.Contains(buf.String(), "idempotency lookup failed") {
		t.Fatalf("lookup error not logged: %s", buf.String())
	}
}
