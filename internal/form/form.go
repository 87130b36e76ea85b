// Package form implements the add/edit donation form: a string-typed draft,
// validation that blocks submission locally, and a single in-flight save.
package form

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbourn/go-donation-tracker/internal/domain"
)

// ErrSubmitInProgress is returned when Submit is called while a previous save
// on the same controller has not finished.
var ErrSubmitInProgress = errors.New("submit already in progress")

// Draft is the raw form input. All fields are strings so that invalid input
// can be held and shown back to the user.
type Draft struct {
	DonorName     string `json:"donor_name"`
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Date          string `json:"date"`
	Notes         string `json:"notes"`
}

// NewDraft returns the add-mode defaults: today's date, cash, everything
// else empty.
func NewDraft(today time.Time) Draft {
	return Draft{
		PaymentMethod: string(domain.PaymentCash),
		Date:          domain.DateOf(today).String(),
	}
}

// DraftFrom pre-populates a draft from an existing record for edit mode.
func DraftFrom(d *domain.Donation) Draft {
	if d == nil {
		return Draft{}
	}
	return Draft{
		DonorName:     d.DonorName,
		Amount:        d.AmountString(),
		PaymentMethod: string(d.PaymentMethod),
		Date:          d.Date.String(),
		Notes:         d.Notes,
	}
}

// ValidationError lists the offending fields keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid donation: " + strings.Join(parts, "; ")
}

// Parse validates the draft and converts it to domain fields. Missing or
// unparsable amounts are errors, never zero.
func (d Draft) Parse() (domain.Fields, error) {
	bad := map[string]string{}
	var f domain.Fields

	f.DonorName = strings.TrimSpace(d.DonorName)
	if f.DonorName == "" {
		bad["donor_name"] = domain.ErrEmptyDonorName.Error()
	}

	if s := strings.TrimSpace(d.Amount); s == "" {
		bad["amount"] = "amount is required"
	} else if amt, err := decimal.NewFromString(s); err != nil {
		bad["amount"] = "amount must be a decimal number"
	} else if err := domain.CheckAmount(amt); err != nil {
		bad["amount"] = err.Error()
	} else {
		f.Amount = amt
	}

	if m, err := domain.ParsePaymentMethod(d.PaymentMethod); err != nil {
		bad["payment_method"] = err.Error()
	} else {
		f.PaymentMethod = m
	}

	if dt, err := domain.ParseDate(d.Date); err != nil {
		bad["date"] = err.Error()
	} else {
		f.Date = dt
	}

	f.Notes = strings.TrimSpace(d.Notes)

	if len(bad) > 0 {
		return domain.Fields{}, &ValidationError{Fields: bad}
	}
	return f, nil
}

// SaveFunc persists validated fields. The controller does not know whether it
// creates or updates.
type SaveFunc func(ctx context.Context, f domain.Fields) error

// Controller drives one form instance.
type Controller struct {
	save SaveFunc

	mu       sync.Mutex
	draft    Draft
	inFlight bool
	done     bool
}

// NewController returns a controller seeded with draft.
func NewController(draft Draft, save SaveFunc) *Controller {
	return &Controller{draft: draft, save: save}
}

// Draft returns the current draft.
func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// SetDraft replaces the draft. It is ignored while a save is in flight.
func (c *Controller) SetDraft(d Draft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inFlight {
		c.draft = d
	}
}

// Done reports whether a submit has succeeded and the form can be dismissed.
func (c *Controller) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Submit validates the draft and calls the save function. Validation failures
// return a *ValidationError without calling save. Save failures are returned
// as-is and leave the draft untouched.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return ErrSubmitInProgress
	}
	draft := c.draft
	f, err := draft.Parse()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.inFlight = true
	c.mu.Unlock()

	err = c.save(ctx, f)

	c.mu.Lock()
	c.inFlight = false
	if err == nil {
		c.done = true
	}
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save donation: %w", err)
	}
	return nil
}
