// Donation HTTP handlers.
//
// This file exposes REST endpoints for donation records:
//   - POST   /donations        (create, Idempotency-Key aware)
//   - GET    /donations        (sorted, filtered, paginated list; ETag support)
//   - GET    /donations/{id}   (read)
//   - PUT    /donations/{id}   (update business fields)
//   - DELETE /donations/{id}   (hard delete)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/export"
	"github.com/tbourn/go-donation-tracker/internal/form"
	"github.com/tbourn/go-donation-tracker/internal/http/middleware"
	"github.com/tbourn/go-donation-tracker/internal/i18n"
	"github.com/tbourn/go-donation-tracker/internal/listing"
	"github.com/tbourn/go-donation-tracker/internal/live"
	"github.com/tbourn/go-donation-tracker/internal/receipt"
	"github.com/tbourn/go-donation-tracker/internal/shell"
	"github.com/tbourn/go-donation-tracker/internal/utils"
)

//
// Service contracts (context-aware)
//

// DonationService defines donation lifecycle operations consumed by HTTP
// handlers. Implementations must honor the provided context.
type DonationService interface {
	// CreateIdempotent inserts a donation; a reused key replays the earlier one.
	CreateIdempotent(ctx context.Context, actor domain.Actor, key string, f domain.Fields) (*domain.Donation, bool, error)
	Get(ctx context.Context, id string) (*domain.Donation, error)
	List(ctx context.Context) ([]domain.Donation, error)
	Update(ctx context.Context, id string, f domain.Fields) (*domain.Donation, error)
	Delete(ctx context.Context, id string) error
	// Stats returns the row count and latest update time (ETag input).
	Stats(ctx context.Context) (int64, *time.Time, error)
}

// ReceiptExporter turns a rendered receipt into a PDF file.
type ReceiptExporter interface {
	Export(ctx context.Context, doc *receipt.Document) (export.File, error)
}

// SnapshotSource streams full collection snapshots.
type SnapshotSource interface {
	Subscribe(ctx context.Context) (<-chan live.Snapshot, error)
}

// SessionStore hands out the per-user view shell session.
type SessionStore interface {
	Get(key string) *shell.Session
}

// AuthSettings configures demo token issuing.
type AuthSettings struct {
	Secret   []byte
	TokenTTL time.Duration
}

//
// Handler wiring
//

// Deps groups everything the handlers need.
type Deps struct {
	Donations DonationService
	Exporter  ReceiptExporter
	Snapshots SnapshotSource
	Sessions  SessionStore
	Catalog   *i18n.Catalog
	Auth      AuthSettings
	// Now defaults to time.Now; tests pin it.
	Now func() time.Time
	// Heartbeat is the idle interval between stream keep-alive comments.
	// Zero means DefaultHeartbeat.
	Heartbeat time.Duration
}

// DefaultHeartbeat is the keep-alive interval used when Deps.Heartbeat is unset.
const DefaultHeartbeat = 15 * time.Second

// Handlers groups HTTP endpoints for donations, receipts, exports, the live
// stream, translations and view-shell sessions.
type Handlers struct {
	svc       DonationService
	exporter  ReceiptExporter
	snapshots SnapshotSource
	sessions  SessionStore
	catalog   *i18n.Catalog
	auth      AuthSettings
	now       func() time.Time
	heartbeat time.Duration
}

// New constructs and returns a Handlers instance bound to deps.
func New(deps Deps) *Handlers {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	heartbeat := deps.Heartbeat
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &Handlers{
		svc:       deps.Donations,
		exporter:  deps.Exporter,
		snapshots: deps.Snapshots,
		sessions:  deps.Sessions,
		catalog:   deps.Catalog,
		auth:      deps.Auth,
		now:       now,
		heartbeat: heartbeat,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

// session returns the caller's view shell session with the identity synced.
func (h *Handlers) session(c *gin.Context) *shell.Session {
	s := h.sessions.Get(userID(c))
	actor, signed := middleware.ActorFrom(c)
	s.Apply(func(st shell.State) shell.State {
		if !signed {
			return st.SignIn(nil)
		}
		return st.SignIn(&actor)
	})
	return s
}

//
// DTOs
//

// DonationRequest is the JSON payload for creating or updating a donation.
// Amount and date are strings so malformed input is reported per field.
type DonationRequest struct {
	DonorName     string `json:"donor_name" example:"Ali"`
	Amount        string `json:"amount" example:"50.00"`
	PaymentMethod string `json:"payment_method" example:"cash" enums:"cash,card,online-transfer"`
	Date          string `json:"date" example:"2024-01-02"`
	Notes         string `json:"notes" example:"Ramadan campaign"`
}

func (r DonationRequest) draft() form.Draft {
	return form.Draft{
		DonorName:     r.DonorName,
		Amount:        r.Amount,
		PaymentMethod: r.PaymentMethod,
		Date:          r.Date,
		Notes:         r.Notes,
	}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListDonationsResponse wraps a page of the derived list.
type ListDonationsResponse struct {
	Donations  []domain.Donation  `json:"donations"`
	Sort       listing.SortConfig `json:"sort"`
	Query      string             `json:"query"`
	Pagination Pagination         `json:"pagination"`
}

//
// Helpers
//

// listPageBounds bounds page_size on GET /donations.
var listPageBounds = utils.PageBounds{DefaultSize: 50, MaxSize: 500}

// clampPagination reads page and page_size, clamped to listPageBounds.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"), listPageBounds)
}

// listParams reads sort, dir and q, defaulting each to the session's current
// list controls.
func listParams(c *gin.Context, st shell.State) (listing.SortConfig, string) {
	cfg := st.Sort
	if k := strings.TrimSpace(c.Query("sort")); k != "" {
		cfg = listing.SortConfig{Key: listing.Key(k), Direction: listing.Asc}
	}
	if d := c.Query("dir"); d != "" {
		cfg.Direction = listing.ParseDirection(d)
	}
	q, ok := c.GetQuery("q")
	if !ok {
		q = st.Query
	}
	return cfg, q
}

// bindDonation decodes and validates the request body. It writes the error
// response itself and reports whether the caller may continue.
func bindDonation(c *gin.Context) (domain.Fields, bool) {
	var req DonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return domain.Fields{}, false
	}
	f, err := req.draft().Parse()
	if err != nil {
		var ve *form.ValidationError
		if errors.As(err, &ve) {
			failValidation(c, "invalid donation", ve.Fields)
			return domain.Fields{}, false
		}
		fail(c, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return domain.Fields{}, false
	}
	return f, true
}

// donationID validates the :id path parameter.
func donationID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "donation id must be a UUID")
		return "", false
	}
	return id, true
}

//
// Handlers
//

// CreateDonation godoc
// @ID          createDonation
// @Summary     Create a donation
// @Description Records a donation attributed to the signed-in user.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Donations
// @Accept      json
// @Produce     json
//
// @Param       Authorization    header  string  false "Bearer token"
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.DonationRequest  true  "Donation payload"
//
// @Success     201  {object}  domain.Donation
// @Success     200  {object}  domain.Donation        "Replayed earlier result"
// @Failure     400  {object}  handlers.ErrorResponse "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse "Not signed in"
// @Failure     500  {object}  handlers.ErrorResponse "Store failed"
// @Router      /donations [post]
func (h *Handlers) CreateDonation(c *gin.Context) {
	actor, signed := middleware.ActorFrom(c)
	if !signed {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "sign in required")
		return
	}
	f, valid := bindDonation(c)
	if !valid {
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	d, replayed, err := h.svc.CreateIdempotent(c.Request.Context(), actor, key, f)
	if err != nil {
		failService(c, err)
		return
	}
	if replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
		ok(c, http.StatusOK, d)
		return
	}
	ok(c, http.StatusCreated, d)
}

// ListDonations godoc
// @ID          listDonations
// @Summary     List donations (sorted, filtered, paginated)
// @Description Returns the derived list: sort then case-insensitive substring filter over donor name,
// @Description payment method and amount. Missing params default to the caller's session controls.
// @Tags        Donations
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       sort           query   string  false "Sort key"        Enums(date, donorName, amount, paymentMethod)
// @Param       dir            query   string  false "Sort direction"  Enums(asc, desc)
// @Param       q              query   string  false "Search text"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(500) default(50)
//
// @Success     200  {object} handlers.ListDonationsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Store failed"
// @Router      /donations [get]
func (h *Handlers) ListDonations(c *gin.Context) {
	ctx := c.Request.Context()
	cfg, q := listParams(c, h.session(c).State())
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.svc.Stats(ctx); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"donations:%d:%d:%s:%s:%s:%d:%d"`, count, ts, cfg.Key, cfg.Direction, url.QueryEscape(q), page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	all, err := h.svc.List(ctx)
	if err != nil {
		failService(c, err)
		return
	}
	rows := listing.Derive(all, cfg, q)

	total := int64(len(rows))
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(rows) {
		start = len(rows)
	}
	if end > len(rows) {
		end = len(rows)
	}

	ok(c, http.StatusOK, ListDonationsResponse{
		Donations: rows[start:end],
		Sort:      cfg,
		Query:     q,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetDonation godoc
// @ID          getDonation
// @Summary     Get a donation
// @Tags        Donations
// @Produce     json
// @Param       id   path  string  true  "Donation ID (UUID)"  format(uuid)
// @Success     200  {object} domain.Donation
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Donation not found"
// @Failure     500  {object} handlers.ErrorResponse "Store failed"
// @Router      /donations/{id} [get]
func (h *Handlers) GetDonation(c *gin.Context) {
	id, valid := donationID(c)
	if !valid {
		return
	}
	d, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// UpdateDonation godoc
// @ID          updateDonation
// @Summary     Update a donation
// @Description Overwrites the business fields. The identifier and creation metadata never change.
// @Tags        Donations
// @Accept      json
// @Produce     json
// @Param       id    path  string                    true  "Donation ID (UUID)"  format(uuid)
// @Param       body  body  handlers.DonationRequest  true  "Donation payload"
// @Success     200  {object} domain.Donation
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     404  {object} handlers.ErrorResponse "Donation not found"
// @Failure     500  {object} handlers.ErrorResponse "Store failed"
// @Router      /donations/{id} [put]
func (h *Handlers) UpdateDonation(c *gin.Context) {
	id, valid := donationID(c)
	if !valid {
		return
	}
	f, valid := bindDonation(c)
	if !valid {
		return
	}
	d, err := h.svc.Update(c.Request.Context(), id, f)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// DeleteDonation godoc
// @ID          deleteDonation
// @Summary     Delete a donation
// @Description Permanently removes the record. There is no undo.
// @Tags        Donations
// @Param       id   path  string  true  "Donation ID (UUID)"  format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Donation not found"
// @Failure     500  {object} handlers.ErrorResponse "Store failed"
// @Router      /donations/{id} [delete]
func (h *Handlers) DeleteDonation(c *gin.Context) {
	id, valid := donationID(c)
	if !valid {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
