// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Donation
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a donation is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateDonation(ctx, db, actor, fields) -> *domain.Donation, error
//     Inserts a new row with a UUID primary key and UTC timestamps.
//
//   - GetDonation(ctx, db, id) -> *domain.Donation, error
//     Fetches a single donation, or ErrNotFound if missing.
//
//   - ListDonations(ctx, db) -> []domain.Donation, error
//     Returns every donation ordered by creation time descending.
//
//   - UpdateDonation(ctx, db, id, fields) -> *domain.Donation, error
//     Overwrites the business fields and bumps updated_at. Creation metadata
//     is never written.
//
//   - DeleteDonation(ctx, db, id) -> error
//     Hard-deletes the row. Returns ErrNotFound if nothing was removed.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-donation-tracker/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// now is the store clock; tests may replace it to get deterministic ordering.
var now = func() time.Time { return time.Now().UTC() }

// CreateDonation inserts a new donation on behalf of actor. The store assigns
// the ID and both timestamps.
func CreateDonation(ctx context.Context, db *gorm.DB, actor domain.Actor, f domain.Fields) (*domain.Donation, error) {
	ts := now()
	d := &domain.Donation{
		ID:            uuid.NewString(),
		CreatedBy:     actor.ID,
		CreatedByName: actor.Name,
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	d.Apply(f)
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// GetDonation fetches a single donation by ID.
func GetDonation(ctx context.Context, db *gorm.DB, id string) (*domain.Donation, error) {
	var d domain.Donation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDonations returns all donations, most recent first. Ties on created_at
// are broken by id so the order is deterministic.
func ListDonations(ctx context.Context, db *gorm.DB) ([]domain.Donation, error) {
	out := []domain.Donation{}
	err := db.WithContext(ctx).
		Order("created_at desc, id desc").
		Find(&out).Error
	return out, err
}

// UpdateDonation writes the business fields of id and returns the fresh row.
// Only the listed columns are touched, so created_at/created_by survive.
func UpdateDonation(ctx context.Context, db *gorm.DB, id string, f domain.Fields) (*domain.Donation, error) {
	res := db.WithContext(ctx).
		Model(&domain.Donation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"donor_name":     strings.TrimSpace(f.DonorName),
			"amount":         f.Amount,
			"payment_method": f.PaymentMethod,
			"date":           f.Date,
			"notes":          f.Notes,
			"updated_at":     now(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return GetDonation(ctx, db, id)
}

// DeleteDonation removes the row permanently.
func DeleteDonation(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Donation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
