// Package domain defines the persistence models for donations and the
// idempotency ledger. These types are mapped with GORM and form the core data
// layer of the donation tracker.
package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Validation errors returned by Fields.Validate.
var (
	ErrEmptyDonorName    = errors.New("donor name is required")
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrAmountPrecision   = errors.New("amount allows at most 12 digits before and 2 after the decimal point")
	ErrInvalidMethod     = errors.New("payment method must be one of: cash, card, online-transfer")
	ErrInvalidDate       = errors.New("date must be a valid calendar date (YYYY-MM-DD)")
)

// PaymentMethod is the closed set of ways a donation can be paid.
type PaymentMethod string

const (
	PaymentCash           PaymentMethod = "cash"
	PaymentCard           PaymentMethod = "card"
	PaymentOnlineTransfer PaymentMethod = "online-transfer"
)

// PaymentMethods lists every method in display order.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentOnlineTransfer}

// MethodDisplay carries the presentation metadata attached to a payment method.
type MethodDisplay struct {
	Icon     string // icon name used by clients
	LabelKey string // key into the translation table
}

// Display returns the presentation metadata for m. The switch is exhaustive
// over PaymentMethods; unknown values get a neutral icon and the raw value.
func (m PaymentMethod) Display() MethodDisplay {
	switch m {
	case PaymentCash:
		return MethodDisplay{Icon: "banknote", LabelKey: "method_cash"}
	case PaymentCard:
		return MethodDisplay{Icon: "credit-card", LabelKey: "method_card"}
	case PaymentOnlineTransfer:
		return MethodDisplay{Icon: "globe", LabelKey: "method_online_transfer"}
	default:
		return MethodDisplay{Icon: "circle", LabelKey: string(m)}
	}
}

// Valid reports whether m is one of the known payment methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentOnlineTransfer:
		return true
	}
	return false
}

// ParsePaymentMethod normalizes s (trim, lower-case) and rejects unknown values.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", ErrInvalidMethod
	}
	return m, nil
}

// dateLayout is the wire and storage format for Date.
const dateLayout = "2006-01-02"

// Date is a calendar date without time of day. The zero value means "unset".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string, rejecting impossible dates such as
// 2024-02-30.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

// MustDate is ParseDate for literals; it panics on malformed input.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Ordinal returns a day count usable for ordering. Unset dates sort first.
func (d Date) Ordinal() int64 {
	if d.IsZero() {
		return -1 << 62
	}
	return d.Time().Unix() / 86400
}

// String renders the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(dateLayout)
}

// MarshalJSON encodes the date as a YYYY-MM-DD string (null when unset).
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts a YYYY-MM-DD string or null.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Value implements driver.Valuer; dates are stored as YYYY-MM-DD text.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner for text and time columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	case time.Time:
		*d = DateOf(v)
		return nil
	default:
		return fmt.Errorf("domain.Date: cannot scan %T", src)
	}
}

func (d *Date) scanString(s string) error {
	// Some drivers hand back a full timestamp for DATE columns.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// GormDataType pins the column type across dialects.
func (Date) GormDataType() string { return "varchar(10)" }

// Fields is the mutable business subset of a donation. Identifier and
// creation metadata are never part of it.
type Fields struct {
	DonorName     string          `json:"donor_name"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Date          Date            `json:"date"`
	Notes         string          `json:"notes"`
}

// Amount limits match the decimal(14,2) column.
const (
	AmountScale     = 2
	AmountIntDigits = 12
)

var amountCeiling = decimal.New(1, AmountIntDigits)

// CheckAmount reports whether a is positive and storable without rounding.
func CheckAmount(a decimal.Decimal) error {
	if !a.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !a.Equal(a.Truncate(AmountScale)) || a.GreaterThanOrEqual(amountCeiling) {
		return ErrAmountPrecision
	}
	return nil
}

// Validate enforces the record invariants on the business fields.
func (f Fields) Validate() error {
	if strings.TrimSpace(f.DonorName) == "" {
		return ErrEmptyDonorName
	}
	if err := CheckAmount(f.Amount); err != nil {
		return err
	}
	if !f.PaymentMethod.Valid() {
		return ErrInvalidMethod
	}
	if f.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Donation represents one donation event.
//
// Fields:
//   - ID: UUID assigned on creation; immutable afterwards.
//   - DonorName, Amount, PaymentMethod, Date, Notes: business fields (mutable).
//   - CreatedBy / CreatedByName: snapshot of the signed-in actor at creation.
//   - CreatedAt / UpdatedAt: store-assigned timestamps; CreatedAt is the
//     authoritative recency ordering key.
//
// Deletion is a hard delete: there is no DeletedAt column.
type Donation struct {
	ID            string          `json:"id"              gorm:"type:char(36);primaryKey"`
	DonorName     string          `json:"donor_name"      gorm:"type:varchar(255);not null"`
	Amount        decimal.Decimal `json:"amount"          gorm:"type:decimal(14,2);not null"`
	PaymentMethod PaymentMethod   `json:"payment_method"  gorm:"type:varchar(32);not null;check:payment_method IN ('cash','card','online-transfer')"`
	Date          Date            `json:"date"            gorm:"not null;index"`
	Notes         string          `json:"notes"           gorm:"type:text"`
	CreatedBy     string          `json:"created_by"      gorm:"type:varchar(64);not null;index"`
	CreatedByName string          `json:"created_by_name" gorm:"type:varchar(255)"`
	CreatedAt     time.Time       `json:"created_at"      gorm:"index:idx_donations_created"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Donation.
func (Donation) TableName() string { return "donations" }

// Fields returns the business subset of d.
func (d Donation) Fields() Fields {
	return Fields{
		DonorName:     d.DonorName,
		Amount:        d.Amount,
		PaymentMethod: d.PaymentMethod,
		Date:          d.Date,
		Notes:         d.Notes,
	}
}

// Apply overwrites the business fields of d with f, leaving identity and
// creation metadata untouched.
func (d *Donation) Apply(f Fields) {
	d.DonorName = strings.TrimSpace(f.DonorName)
	d.Amount = f.Amount
	d.PaymentMethod = f.PaymentMethod
	d.Date = f.Date
	d.Notes = f.Notes
}

// AmountString renders the amount as a plain decimal string ("50", "120.5").
func (d Donation) AmountString() string { return d.Amount.String() }

// Actor is the signed-in identity captured at creation time.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
