// Package listing derives the sorted, filtered view of the donation mirror.
//
// Everything here is a pure function of its inputs. Callers re-derive from
// scratch whenever the backing collection changes; no derived state is kept.
package listing

import (
	"sort"
	"strings"

	"github.com/tbourn/go-donation-tracker/internal/domain"
)

// Key names a sortable column.
type Key string

const (
	KeyDate          Key = "date"
	KeyDonorName     Key = "donorName"
	KeyAmount        Key = "amount"
	KeyPaymentMethod Key = "paymentMethod"
)

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc"/"desc" (any case); anything else is Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Desc)) {
		return Desc
	}
	return Asc
}

// SortConfig is the active sort key and direction.
type SortConfig struct {
	Key       Key       `json:"key"`
	Direction Direction `json:"direction"`
}

// DefaultSort orders by date, newest first.
var DefaultSort = SortConfig{Key: KeyDate, Direction: Desc}

// Toggle returns the config after the user picks key: the active key flips
// direction, any other key starts ascending.
func (c SortConfig) Toggle(key Key) SortConfig {
	if c.Key == key {
		if c.Direction == Desc {
			return SortConfig{Key: key, Direction: Asc}
		}
		return SortConfig{Key: key, Direction: Desc}
	}
	return SortConfig{Key: key, Direction: Asc}
}

// compare returns <0, 0, >0 for a against b under key, and false when the key
// is unknown.
func compare(key Key, a, b *domain.Donation) (int, bool) {
	switch key {
	case KeyAmount:
		return a.Amount.Cmp(b.Amount), true
	case KeyDate:
		ao, bo := a.Date.Ordinal(), b.Date.Ordinal()
		switch {
		case ao < bo:
			return -1, true
		case ao > bo:
			return 1, true
		}
		return 0, true
	case KeyDonorName:
		return strings.Compare(a.DonorName, b.DonorName), true
	case KeyPaymentMethod:
		return strings.Compare(string(a.PaymentMethod), string(b.PaymentMethod)), true
	default:
		return 0, false
	}
}

// Sort returns a new slice ordered by cfg. Equal keys keep their encounter
// order in both directions, and an unknown key returns the input order.
func Sort(records []domain.Donation, cfg SortConfig) []domain.Donation {
	out := make([]domain.Donation, len(records))
	copy(out, records)
	if _, ok := compare(cfg.Key, &domain.Donation{}, &domain.Donation{}); !ok {
		return out
	}
	desc := cfg.Direction == Desc
	sort.SliceStable(out, func(i, j int) bool {
		c, _ := compare(cfg.Key, &out[i], &out[j])
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// Matches reports whether query (case-insensitive) is a substring of the
// donor name, the payment-method value or the amount's decimal string.
func Matches(d *domain.Donation, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(d.DonorName), q) ||
		strings.Contains(strings.ToLower(string(d.PaymentMethod)), q) ||
		strings.Contains(strings.ToLower(d.AmountString()), q)
}

// Filter keeps the records matching query, preserving their order. An empty
// query returns the input unchanged.
func Filter(sorted []domain.Donation, query string) []domain.Donation {
	if query == "" {
		out := make([]domain.Donation, len(sorted))
		copy(out, sorted)
		return out
	}
	out := make([]domain.Donation, 0, len(sorted))
	for i := range sorted {
		if Matches(&sorted[i], query) {
			out = append(out, sorted[i])
		}
	}
	return out
}

// Derive is Filter(Sort(records, cfg), query).
func Derive(records []domain.Donation, cfg SortConfig, query string) []domain.Donation {
	return Filter(Sort(records, cfg), query)
}
