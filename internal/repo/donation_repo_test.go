package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-donation-tracker/internal/domain"
)

func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// stepClock makes the store clock advance one second per call.
func stepClock(t *testing.T, start time.Time) {
	t.Helper()
	orig := now
	cur := start
	now = func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
	t.Cleanup(func() { now = orig })
}

func fields(name, amount, date string, m domain.PaymentMethod) domain.Fields {
	return domain.Fields{
		DonorName:     name,
		Amount:        decimal.RequireFromString(amount),
		PaymentMethod: m,
		Date:          domain.MustDate(date),
	}
}

func TestCreateDonation_Error_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	d, err := CreateDonation(context.Background(), db, domain.Actor{ID: "u1"}, fields("Ali", "50", "2024-01-02", domain.PaymentCash))
	if err == nil || d != nil {
		t.Fatalf("expected error creating without table, got d=%v err=%v", d, err)
	}
}

func TestCreateThenGet_AmountLimitsRoundTrip(t *testing.T) {
	db := newTestDB(t, &domain.Donation{})
	ctx := context.Background()

	for _, amt := range []string{"999999999999.99", "0.01", "12.34"} {
		created, err := CreateDonation(ctx, db, domain.Actor{ID: "u1"}, fields("Ali", amt, "2024-01-02", domain.PaymentCash))
		if err != nil {
			t.Fatalf("create %s: %v", amt, err)
		}
		got, err := GetDonation(ctx, db, created.ID)
		if err != nil {
			t.Fatalf("get %s: %v", amt, err)
		}
		if !got.Amount.Equal(decimal.RequireFromString(amt)) {
			t.Fatalf("amount %s came back as %s", amt, got.Amount)
		}
	}
}

func TestCreateThenGet_RoundTrip(t *testing.T) {
	db := newTestDB(t, &domain.Donation{})
	ctx := context.Background()

	in := fields("Ali", "50.75", "2024-01-02", domain.PaymentOnlineTransfer)
	in.Notes = "monthly"
	created, err := CreateDonation(ctx, db, domain.Actor{ID: "u1", Name: "Admin"}, in)
	if err != nil {
		t.Fatalf("CreateDonation: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("store must assign id and created_at: %+v", created)
	}

	got, err := GetDonation(ctx, db, created.ID)
	if err != nil {
		t.Fatalf("GetDonation: %v", err)
	}
	if got.DonorName != in.DonorName || !got.Amount.Equal(in.Amount) || got.PaymentMethod != in.PaymentMethod ||
		got.Date != in.Date || got.Notes != in.Notes {
		t.Fatalf("round-trip mismatch: in=%+v got=%+v", in, got)
	}
	if got.CreatedBy != "u1" || got.CreatedByName != "Admin" {
		t.Fatalf("creator snapshot lost: %+v", got)
	}

	if _, err := GetDonation(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListDonations_NewestFirst(t *testing.T) {
	db := newTestDB(t, &domain.Donation{})
	ctx := context.Background()
	stepClock(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))

	var ids []string
	for _, n := range []string{"a", "b", "c"} {
		d, err := CreateDonation(ctx, db, domain.Actor{ID: "u1"}, fields(n, "1", "2024-01-01", domain.PaymentCash))
		if err != nil {
			t.Fatalf("seed %s: %v", n, err)
		}
		ids = append(ids, d.ID)
	}

	list, err := ListDonations(ctx, db)
	if err != nil {
		t.Fatalf("ListDonations: %v", err)
	}
	if len(list) != 3 || list[0].ID != ids[2] || list[1].ID != ids[1] || list[2].ID != ids[0] {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestListDonations_EmptyIsNonNil(t *testing.T) {
	db := newTestDB(t, &domain.Donation{})
	out, err := ListDonations(context.Background(), db)
	if err != nil || out == nil || len(out) != 0 {
		t.Fatalf("expected non-nil empty slice, got %v (%v)", out, err)
	}
}

func TestUpdateDonation_KeepsCreationMetadata(t *testing.T) {
	db := newTestDB(t, &domain.Donation{})
	ctx := context.Background()
	stepClock(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))

	created, err := CreateDonation(ctx, db, domain.Actor{ID: "u1", Name: "Admin"}, fields("Ali", "50", "2024-01-02", domain.PaymentCash))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	upd, err := UpdateDonation(ctx, db, created.ID, fields("Sara", "120", "2024-01-01", domain.PaymentCard))
	if err != nil {
		t.Fatalf("UpdateDonation: %v", err)
	}
	if upd.DonorName != "Sara" || upd.PaymentMethod != domain.PaymentCard || !upd.Amount.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("fields not updated: %+v", upd)
	}
	if upd.ID != created.ID || upd.CreatedBy != "u1" || !upd.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("creation metadata changed: before=%+v after=%+v", created, upd)
	}
	if !upd.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updated_at not advanced: %v <= %v", upd.UpdatedAt, created.UpdatedAt)
	}

	if _, err := UpdateDonation(ctx, db, "missing", fields("x", "1", "2024-01-01", domain.PaymentCash)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDonation_HardDelete(t *testing.T) {
	db := newTestDB(t, &domain.Donation{})
	ctx := context.Background()

	d, err := CreateDonation(ctx, db, domain.Actor{ID: "u1"}, fields("Ali", "50", "2024-01-02", domain.PaymentCash))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := DeleteDonation(ctx, db, d.ID); err != nil {
		t.Fatalf("DeleteDonation: %v", err)
	}
	var n int64
	db.Raw("SELECT COUNT(*) FROM donations WHERE id = ?", d.ID).Scan(&n)
	if n != 0 {
		t.Fatalf("row should be gone, found %d", n)
	}
	if err := DeleteDonation(ctx, db, d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}
