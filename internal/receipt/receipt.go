// Package receipt lays out the fixed-size donation receipt.
//
// Render is pure: the same record and table always produce the same
// Document. The document is a list of positioned text blocks on an A4 page,
// already resolved to left/center/right alignment and visual (display) order,
// so the rasterizer in package export can draw it without knowing about
// locales.
package receipt

import (
	"strings"

	"golang.org/x/text/unicode/bidi"

	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/i18n"
)

// Paper size in millimetres (ISO A4).
const (
	PageWidthMM  = 210.0
	PageHeightMM = 297.0
)

// Placeholder is the dotted fill line shown for an empty field.
const Placeholder = "........................................"

// Role identifies what a block shows.
type Role string

const (
	RoleTitle           Role = "title"
	RoleOrganization    Role = "organization"
	RoleRule            Role = "rule"
	RoleFullName        Role = "full_name"
	RoleAmount          Role = "amount"
	RoleDate            Role = "date"
	RoleIssuerSignature Role = "issuer_signature"
	RoleDonorSignature  Role = "donor_signature"
	RoleFooter          Role = "footer"
)

// Align is the horizontal anchor of a block, already mirrored for RTL.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Block is one positioned line of the receipt.
type Block struct {
	Role        Role    `json:"role"`
	Label       string  `json:"label,omitempty"`
	Value       string  `json:"value,omitempty"`
	Placeholder bool    `json:"placeholder"`
	Text        string  `json:"text"` // label and value in visual order
	X           float64 `json:"x_mm"`
	Y           float64 `json:"y_mm"` // baseline
	Width       float64 `json:"width_mm"`
	SizePt      float64 `json:"size_pt"`
	Align       Align   `json:"align"`
}

// Document is a rendered receipt.
type Document struct {
	RecordID  string         `json:"record_id"`
	Locale    i18n.Locale    `json:"locale"`
	Direction i18n.Direction `json:"direction"`
	WidthMM   float64        `json:"width_mm"`
	HeightMM  float64        `json:"height_mm"`
	Blocks    []Block        `json:"blocks"`
}

// Block returns the first block with role r.
func (d *Document) Block(r Role) (Block, bool) {
	for _, b := range d.Blocks {
		if b.Role == r {
			return b, true
		}
	}
	return Block{}, false
}

// Logical returns the block's line in reading order, for shaping engines
// that do their own bidi reordering.
func (b Block) Logical() string {
	return composeLine(b.Label, b.Value)
}

const (
	marginMM = 20.0
	columnMM = (PageWidthMM - 3*marginMM) / 2
)

// Render lays out the receipt for rec in the table's locale. A nil record
// renders every field as a placeholder.
func Render(rec *domain.Donation, tbl i18n.Table) Document {
	if rec == nil {
		rec = &domain.Donation{}
	}
	rtl := tbl.Direction() == i18n.RTL
	contentW := PageWidthMM - 2*marginMM

	// start/end anchors flip with direction.
	startX, startAlign := marginMM, AlignLeft
	endX, endAlign := PageWidthMM-marginMM, AlignRight
	if rtl {
		startX, startAlign, endX, endAlign = endX, endAlign, startX, startAlign
	}

	doc := Document{
		RecordID:  rec.ID,
		Locale:    tbl.Locale,
		Direction: tbl.Direction(),
		WidthMM:   PageWidthMM,
		HeightMM:  PageHeightMM,
	}
	add := func(b Block) {
		b.Text = visual(composeLine(b.Label, b.Value), rtl)
		doc.Blocks = append(doc.Blocks, b)
	}

	add(Block{Role: RoleTitle, Value: tbl.Text(i18n.KeyReceiptTitle),
		X: PageWidthMM / 2, Y: 35, Width: contentW, SizePt: 22, Align: AlignCenter})
	add(Block{Role: RoleOrganization, Value: tbl.Text(i18n.KeyOrgName),
		X: PageWidthMM / 2, Y: 48, Width: contentW, SizePt: 14, Align: AlignCenter})
	add(Block{Role: RoleRule, X: marginMM, Y: 56, Width: contentW, SizePt: 1, Align: AlignLeft})

	fields := []struct {
		role  Role
		key   string
		value string
	}{
		{RoleFullName, i18n.KeyReceiptFullName, strings.TrimSpace(rec.DonorName)},
		{RoleAmount, i18n.KeyReceiptAmountPaid, amountText(rec)},
		{RoleDate, i18n.KeyReceiptDatePaid, rec.Date.String()},
	}
	for i, f := range fields {
		v, ph := fill(f.value)
		add(Block{Role: f.role, Label: tbl.Text(f.key), Value: v, Placeholder: ph,
			X: startX, Y: 90 + float64(i)*22, Width: contentW, SizePt: 14, Align: startAlign})
	}

	// Issuer signs on the start side, donor on the end side.
	add(Block{Role: RoleIssuerSignature, Label: tbl.Text(i18n.KeyReceiptIssuerSignature), Value: Placeholder,
		Placeholder: true, X: startX, Y: 215, Width: columnMM, SizePt: 12, Align: startAlign})
	donor, ph := fill(strings.TrimSpace(rec.DonorName))
	add(Block{Role: RoleDonorSignature, Label: tbl.Text(i18n.KeyReceiptDonorSignature), Value: donor,
		Placeholder: ph, X: endX, Y: 215, Width: columnMM, SizePt: 12, Align: endAlign})

	ref, ph := fill(rec.ID)
	add(Block{Role: RoleFooter, Label: tbl.Text(i18n.KeyReceiptReference), Value: ref, Placeholder: ph,
		X: PageWidthMM / 2, Y: PageHeightMM - 15, Width: contentW, SizePt: 9, Align: AlignCenter})

	return doc
}

func amountText(rec *domain.Donation) string {
	if rec.Amount.IsZero() {
		return ""
	}
	return rec.Amount.StringFixed(2)
}

func fill(v string) (string, bool) {
	if v == "" {
		return Placeholder, true
	}
	return v, false
}

func composeLine(label, value string) string {
	switch {
	case label == "":
		return value
	case value == "":
		return label
	}
	return label + ": " + value
}

// visual reorders a logical string for left-to-right drawing. LTR text is
// returned as-is.
func visual(s string, rtl bool) string {
	if !rtl || s == "" {
		return s
	}
	var p bidi.Paragraph
	if _, err := p.SetString(s, bidi.DefaultDirection(bidi.RightToLeft)); err != nil {
		return s
	}
	order, err := p.Order()
	if err != nil {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < order.NumRuns(); i++ {
		run := order.Run(i)
		if run.Direction() == bidi.RightToLeft {
			b.WriteString(bidi.ReverseString(run.String()))
		} else {
			b.WriteString(run.String())
		}
	}
	return b.String()
}
