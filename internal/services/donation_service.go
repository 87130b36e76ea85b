// Package services – DonationService
//
// This file implements the DonationService, which manages the lifecycle of
// donation records. Every mutation is a single store request with no retry,
// followed by a snapshot publish so live subscribers see the new collection.
//
// Service-level errors (ErrDonationNotFound, ErrInvalidDonation, ErrStore) are
// returned for predictable cases so handlers can map them to HTTP results
// consistently.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/observability"
)

// IdempotencyScope is the idempotency ledger scope used for donation creates.
const IdempotencyScope = "donations"

// DonationRepo defines the repository contract required by DonationService.
type DonationRepo interface {
	CreateDonation(ctx context.Context, db *gorm.DB, actor domain.Actor, f domain.Fields) (*domain.Donation, error)
	GetDonation(ctx context.Context, db *gorm.DB, id string) (*domain.Donation, error)
	ListDonations(ctx context.Context, db *gorm.DB) ([]domain.Donation, error)
	UpdateDonation(ctx context.Context, db *gorm.DB, id string, f domain.Fields) (*domain.Donation, error)
	DeleteDonation(ctx context.Context, db *gorm.DB, id string) error
	DonationsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error)

	GetIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key string, at time.Time) (*domain.Idempotency, error)
	CreateIdempotency(ctx context.Context, db *gorm.DB, userID, scope, key, donationID string, status int, ttl time.Duration) (*domain.Idempotency, error)
}

// Publisher pushes a fresh collection snapshot to live subscribers.
type Publisher interface {
	Publish(ctx context.Context) error
}

// DonationService provides create, read, update and delete over donations.
type DonationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the donation repository used by this service.
	Repo DonationRepo
	// Hub receives a publish after every successful mutation. Optional.
	Hub Publisher
	// IdempotencyTTL is how long a create's idempotency record is honored.
	IdempotencyTTL time.Duration
}

// NewDonationService constructs a DonationService with a 24h idempotency window.
func NewDonationService(db *gorm.DB, r DonationRepo, hub Publisher) *DonationService {
	return &DonationService{DB: db, Repo: r, Hub: hub, IdempotencyTTL: 24 * time.Hour}
}

func tracer() trace.Tracer { return observability.Tracer("services/DonationService") }

// Create validates f and inserts a donation attributed to actor.
func (s *DonationService) Create(ctx context.Context, actor domain.Actor, f domain.Fields) (*domain.Donation, error) {
	d, _, err := s.CreateIdempotent(ctx, actor, "", f)
	return d, err
}

// CreateIdempotent is Create with an optional idempotency key. When key was
// already used by actor within the TTL, the earlier donation is returned with
// replayed=true and nothing is written.
func (s *DonationService) CreateIdempotent(ctx context.Context, actor domain.Actor, key string, f domain.Fields) (d *domain.Donation, replayed bool, err error) {
	ctx, span := tracer().Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", actor.ID)))
	defer span.End()

	if strings.TrimSpace(actor.ID) == "" {
		return nil, false, ErrNotSignedIn
	}
	if err := f.Validate(); err != nil {
		return nil, false, errors.Join(ErrInvalidDonation, err)
	}

	if key != "" {
		if rec, err := s.Repo.GetIdempotency(ctx, s.DB, actor.ID, IdempotencyScope, key, time.Now().UTC()); err == nil && rec != nil {
			if prev, err := s.Repo.GetDonation(ctx, s.DB, rec.DonationID); err == nil {
				return prev, true, nil
			}
		}
	}

	d, err = s.Repo.CreateDonation(ctx, s.DB, actor, f)
	if err != nil {
		return nil, false, fmt.Errorf("%w: create: %w", ErrStore, err)
	}
	span.SetAttributes(attribute.String("donation.id", d.ID))

	if key != "" {
		// Best effort: a failed ledger write only loses replay protection.
		if _, err := s.Repo.CreateIdempotency(ctx, s.DB, actor.ID, IdempotencyScope, key, d.ID, 201, s.IdempotencyTTL); err != nil {
			log.Warn().Err(err).Str("donation_id", d.ID).Msg("idempotency record not stored")
		}
	}
	s.publish(ctx)
	return d, false, nil
}

// Get returns a donation by ID.
func (s *DonationService) Get(ctx context.Context, id string) (*domain.Donation, error) {
	d, err := s.Repo.GetDonation(ctx, s.DB, id)
	if err != nil {
		return nil, s.mapErr("get", err)
	}
	return d, nil
}

// List returns every donation, newest first.
func (s *DonationService) List(ctx context.Context) ([]domain.Donation, error) {
	items, err := s.Repo.ListDonations(ctx, s.DB)
	if err != nil {
		return nil, s.mapErr("list", err)
	}
	return items, nil
}

// Update overwrites the business fields of id. Identity and creation
// metadata are never changed.
func (s *DonationService) Update(ctx context.Context, id string, f domain.Fields) (*domain.Donation, error) {
	ctx, span := tracer().Start(ctx, "Update",
		trace.WithAttributes(attribute.String("donation.id", id)))
	defer span.End()

	if err := f.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidDonation, err)
	}
	d, err := s.Repo.UpdateDonation(ctx, s.DB, id, f)
	if err != nil {
		return nil, s.mapErr("update", err)
	}
	s.publish(ctx)
	return d, nil
}

// Delete removes a donation permanently.
func (s *DonationService) Delete(ctx context.Context, id string) error {
	ctx, span := tracer().Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("donation.id", id)))
	defer span.End()

	if err := s.Repo.DeleteDonation(ctx, s.DB, id); err != nil {
		return s.mapErr("delete", err)
	}
	s.publish(ctx)
	return nil
}

// Stats returns the row count and latest update time, for ETags.
func (s *DonationService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return s.Repo.DonationsStats(ctx, s.DB)
}

func (s *DonationService) mapErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrDonationNotFound
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// publish notifies live subscribers. Failures are listener errors: logged,
// and subscribers keep the last snapshot.
func (s *DonationService) publish(ctx context.Context) {
	if s.Hub == nil {
		return
	}
	if err := s.Hub.Publish(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("snapshot publish failed")
	}
}
