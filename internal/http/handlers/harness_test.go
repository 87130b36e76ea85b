package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/export"
	"github.com/tbourn/go-donation-tracker/internal/http/middleware"
	"github.com/tbourn/go-donation-tracker/internal/i18n"
	"github.com/tbourn/go-donation-tracker/internal/live"
	"github.com/tbourn/go-donation-tracker/internal/receipt"
	"github.com/tbourn/go-donation-tracker/internal/repo"
	"github.com/tbourn/go-donation-tracker/internal/services"
	"github.com/tbourn/go-donation-tracker/internal/shell"
)

var (
	testSecret = []byte("handlers-test-secret")
	testNow    = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
)

// ---------- SQL-backed repo shim (like router.go) ----------

type testDonationRepo struct{}

func (testDonationRepo) CreateDonation(ctx context.Context, db *gorm.DB, a domain.Actor, f domain.Fields) (*domain.Donation, error) {
	return repo.CreateDonation(ctx, db, a, f)
}
func (testDonationRepo) GetDonation(ctx context.Context, db *gorm.DB, id string) (*domain.Donation, error) {
	return repo.GetDonation(ctx, db, id)
}
func (testDonationRepo) ListDonations(ctx context.Context, db *gorm.DB) ([]domain.Donation, error) {
	return repo.ListDonations(ctx, db)
}
func (testDonationRepo) UpdateDonation(ctx context.Context, db *gorm.DB, id string, f domain.Fields) (*domain.Donation, error) {
	return repo.UpdateDonation(ctx, db, id, f)
}
func (testDonationRepo) DeleteDonation(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteDonation(ctx, db, id)
}
func (testDonationRepo) DonationsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return repo.DonationsStats(ctx, db)
}
func (testDonationRepo) GetIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, at time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, userID, scope, key, at)
}
func (testDonationRepo) CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, donationID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return repo.CreateIdempotency(ctx, db, userID, scope, key, donationID, status, ttl)
}

// ---------- fake exporter ----------

type fakeExporter struct {
	mu    sync.Mutex
	err   error
	calls int
	docs  []*receipt.Document
}

func (f *fakeExporter) Export(_ context.Context, doc *receipt.Document) (export.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.docs = append(f.docs, doc)
	if f.err != nil {
		return export.File{}, f.err
	}
	return export.File{
		Name:        export.Filename(doc.RecordID),
		ContentType: export.ContentTypePDF,
		Data:        []byte("%PDF-1.3 fake"),
		Pages:       1,
	}, nil
}

// ---------- test env ----------

type testEnv struct {
	r   *gin.Engine
	db  *gorm.DB
	svc *services.DonationService
	hub *live.Hub
	reg *shell.Registry
	exp *fakeExporter
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newTestDB(t)
	hub := live.NewHub(func(ctx context.Context) ([]domain.Donation, error) {
		return repo.ListDonations(ctx, db)
	})
	svc := services.NewDonationService(db, testDonationRepo{}, hub)
	reg := shell.NewRegistry(hub, shell.NewState(i18n.English), time.Minute)
	t.Cleanup(reg.Close)
	exp := &fakeExporter{}

	h := New(Deps{
		Donations: svc,
		Exporter:  exp,
		Snapshots: hub,
		Sessions:  reg,
		Catalog:   i18n.NewCatalog(nil),
		Auth:      AuthSettings{Secret: testSecret, TokenTTL: time.Hour},
		Now:       func() time.Time { return testNow },
	})

	r := gin.New()
	r.Use(middleware.Authenticate(middleware.AuthOptions{Secret: testSecret, AllowHeaderIdentity: true}))
	r.Use(middleware.Locale(i18n.English))
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{Scope: services.IdempotencyScope},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			return err == nil && rec != nil, nil
		},
	))

	r.POST("/auth/token", h.IssueToken)
	r.GET("/i18n/:locale", h.GetTranslations)

	r.POST("/donations", h.CreateDonation)
	r.GET("/donations", h.ListDonations)
	r.GET("/donations/stream", h.StreamDonations)
	r.GET("/donations/export.tsv", h.ExportTSV)
	r.GET("/donations/export.xlsx", h.ExportXLSX)
	r.GET("/donations/:id", h.GetDonation)
	r.PUT("/donations/:id", h.UpdateDonation)
	r.DELETE("/donations/:id", h.DeleteDonation)
	r.GET("/donations/:id/receipt", h.GetReceipt)
	r.GET("/donations/:id/receipt.pdf", h.ReceiptPDF)
	r.GET("/receipt", h.GetBlankReceipt)
	r.GET("/receipt.pdf", h.BlankReceiptPDF)

	r.GET("/session", h.GetSession)
	r.PUT("/session/view", h.ChangeView)
	r.PUT("/session/locale", h.SetLocale)
	r.PUT("/session/sort", h.SetSort)
	r.PUT("/session/query", h.SetQuery)
	r.POST("/session/modals", h.OpenModal)
	r.DELETE("/session/modals", h.CloseModal)
	r.PUT("/session/draft", h.SetDraft)
	r.POST("/session/draft/submit", h.SubmitDraft)

	return &testEnv{r: r, db: db, svc: svc, hub: hub, reg: reg, exp: exp}
}

// do performs a request. headers alternate name, value.
func (e *testEnv) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = bytes.NewBufferString(b)
		default:
			buf, _ := json.Marshal(b)
			rdr = bytes.NewReader(buf)
		}
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

// as returns identity headers for a signed-in user.
func as(id string) []string { return []string{"X-User-ID", id, "X-User-Name", "User " + id} }

func with(h []string, more ...string) []string { return append(append([]string{}, h...), more...) }

func (e *testEnv) seed(t *testing.T, name, amount, method, date string) domain.Donation {
	t.Helper()
	w := e.do(http.MethodPost, "/donations", DonationRequest{
		DonorName: name, Amount: amount, PaymentMethod: method, Date: date,
	}, as("u1")...)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var d domain.Donation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	return d
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
