// Package i18n holds the bilingual (Arabic/English) string tables and the
// locale negotiation rules used by every user-facing surface.
//
// Tables are YAML documents embedded in the binary. Lookups never fail: a
// missing key falls back to English and finally to the key itself.
package i18n

import (
	"embed"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Locale is a supported UI language.
type Locale string

const (
	Arabic  Locale = "ar"
	English Locale = "en"
)

// Locales lists the supported locales in negotiation preference order.
var Locales = []Locale{English, Arabic}

// Direction is the text flow of a locale.
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

// Direction returns RTL for Arabic and LTR otherwise.
func (l Locale) Direction() Direction {
	if l == Arabic {
		return RTL
	}
	return LTR
}

// Valid reports whether l is a supported locale.
func (l Locale) Valid() bool { return l == Arabic || l == English }

// ParseLocale maps a language tag ("ar", "ar-EG", "EN_us") to a Locale.
func ParseLocale(s string) (Locale, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(s, "-_"); i > 0 {
		s = s[:i]
	}
	l := Locale(s)
	return l, l.Valid()
}

// Text keys.
const (
	KeyAppTitle         = "app_title"
	KeyOrgName          = "org_name"
	KeyLoading          = "loading"
	KeySignedOut        = "signed_out"
	KeyColIndex         = "col_index"
	KeyColDate          = "col_date"
	KeyColFullName      = "col_full_name"
	KeyColAmount        = "col_amount"
	KeyColPaymentMethod = "col_payment_method"
	KeyColNotes         = "col_notes"
	KeyLogoPlaceholder  = "logo_placeholder"
	KeySpreadsheetTitle = "spreadsheet_title"

	KeyReceiptTitle           = "receipt_title"
	KeyReceiptFullName        = "receipt_full_name"
	KeyReceiptAmountPaid      = "receipt_amount_paid"
	KeyReceiptDatePaid        = "receipt_date_paid"
	KeyReceiptIssuerSignature = "receipt_issuer_signature"
	KeyReceiptDonorSignature  = "receipt_donor_signature"
	KeyReceiptReference       = "receipt_reference"

	KeyExportFailedTitle = "export_failed_title"
	KeyExportFailedBody  = "export_failed_body"
	KeyExportBusy        = "export_busy"
	KeyStoreFailed       = "store_failed"
	KeyValidationFailed  = "validation_failed"
)

// Table is the flat set of UI strings for one locale.
type Table struct {
	Locale Locale
	texts  map[string]string
}

// Text returns the string for key, falling back to English and then to the
// key itself.
func (t Table) Text(key string) string {
	if v, ok := t.texts[key]; ok {
		return v
	}
	if v, ok := builtin[English][key]; ok {
		return v
	}
	return key
}

// Direction is shorthand for t.Locale.Direction().
func (t Table) Direction() Direction { return t.Locale.Direction() }

// Map returns a copy of the table's strings with English fallbacks filled in.
func (t Table) Map() map[string]string {
	out := make(map[string]string, len(builtin[English]))
	for k, v := range builtin[English] {
		out[k] = v
	}
	for k, v := range t.texts {
		out[k] = v
	}
	return out
}

// With returns a copy of t with key set to value. Empty values are ignored.
func (t Table) With(key, value string) Table {
	if strings.TrimSpace(value) == "" {
		return t
	}
	texts := make(map[string]string, len(t.texts)+1)
	for k, v := range t.texts {
		texts[k] = v
	}
	texts[key] = value
	return Table{Locale: t.Locale, texts: texts}
}

//go:embed locales/*.yaml
var localeFS embed.FS

var builtin = mustLoad()

func mustLoad() map[Locale]map[string]string {
	out := make(map[Locale]map[string]string, len(Locales))
	for _, l := range Locales {
		raw, err := localeFS.ReadFile("locales/" + string(l) + ".yaml")
		if err != nil {
			panic(fmt.Errorf("i18n: read %s: %w", l, err))
		}
		texts := map[string]string{}
		if err := yaml.Unmarshal(raw, &texts); err != nil {
			panic(fmt.Errorf("i18n: decode %s: %w", l, err))
		}
		out[l] = texts
	}
	return out
}

// Lookup returns the built-in table for l. Unknown locales get English.
func Lookup(l Locale) Table {
	if !l.Valid() {
		l = English
	}
	return Table{Locale: l, texts: builtin[l]}
}

// Catalog is a set of tables with deployment overrides (organization name)
// applied on top of the built-ins.
type Catalog struct {
	tables map[Locale]Table
}

// NewCatalog builds a catalog where orgNames[l], when set, replaces the
// built-in organization name for l.
func NewCatalog(orgNames map[Locale]string) *Catalog {
	c := &Catalog{tables: make(map[Locale]Table, len(Locales))}
	for _, l := range Locales {
		c.tables[l] = Lookup(l).With(KeyOrgName, orgNames[l])
	}
	return c
}

// Lookup returns the table for l. A nil catalog serves the built-ins.
func (c *Catalog) Lookup(l Locale) Table {
	if c == nil {
		return Lookup(l)
	}
	if t, ok := c.tables[l]; ok {
		return t
	}
	return c.tables[English]
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Arabic})

// Negotiate picks a locale from an explicit override (X-Locale) and an
// Accept-Language header, in that order, returning fallback when neither
// names a supported language.
func Negotiate(override, acceptLanguage string, fallback Locale) Locale {
	if l, ok := ParseLocale(override); ok {
		return l
	}
	if strings.TrimSpace(acceptLanguage) != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil && len(tags) > 0 {
			_, idx, conf := matcher.Match(tags...)
			if conf != language.No {
				return Locales[idx]
			}
		}
	}
	if fallback.Valid() {
		return fallback
	}
	return English
}
