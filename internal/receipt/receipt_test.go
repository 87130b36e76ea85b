package receipt

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/i18n"
)

func sample() *domain.Donation {
	return &domain.Donation{
		ID:            "3f1c",
		DonorName:     "Ali",
		Amount:        decimal.RequireFromString("50"),
		PaymentMethod: domain.PaymentCash,
		Date:          domain.MustDate("2024-01-02"),
	}
}

func TestRender_English(t *testing.T) {
	doc := Render(sample(), i18n.Lookup(i18n.English))

	assert.Equal(t, PageWidthMM, doc.WidthMM)
	assert.Equal(t, PageHeightMM, doc.HeightMM)
	assert.Equal(t, i18n.LTR, doc.Direction)
	assert.Equal(t, "3f1c", doc.RecordID)

	title, ok := doc.Block(RoleTitle)
	require.True(t, ok)
	assert.Equal(t, "Donation Receipt", title.Text)

	name, _ := doc.Block(RoleFullName)
	assert.Equal(t, "Full name: Ali", name.Text)
	assert.Equal(t, AlignLeft, name.Align)
	assert.False(t, name.Placeholder)

	amount, _ := doc.Block(RoleAmount)
	assert.Equal(t, "50.00", amount.Value)

	date, _ := doc.Block(RoleDate)
	assert.Equal(t, "2024-01-02", date.Value)

	donor, _ := doc.Block(RoleDonorSignature)
	assert.Equal(t, "Ali", donor.Value)
	issuer, _ := doc.Block(RoleIssuerSignature)
	assert.True(t, issuer.Placeholder)

	footer, _ := doc.Block(RoleFooter)
	assert.Contains(t, footer.Text, "3f1c")
}

func TestRender_ArabicIsMirrored(t *testing.T) {
	doc := Render(sample(), i18n.Lookup(i18n.Arabic))
	assert.Equal(t, i18n.RTL, doc.Direction)

	name, _ := doc.Block(RoleFullName)
	assert.Equal(t, AlignRight, name.Align)
	assert.Equal(t, PageWidthMM-marginMM, name.X)
	// Visual order keeps the same runes as the logical line.
	logical := name.Logical()
	assert.Equal(t, name.Label+": Ali", logical)
	assert.ElementsMatch(t, []rune(logical), []rune(name.Text))
	assert.Contains(t, name.Text, "Ali")

	donor, _ := doc.Block(RoleDonorSignature)
	issuer, _ := doc.Block(RoleIssuerSignature)
	assert.Less(t, donor.X, issuer.X, "donor moves to the left side in RTL")
}

func TestRender_BlankRecordIsAllPlaceholders(t *testing.T) {
	for _, rec := range []*domain.Donation{nil, {}} {
		doc := Render(rec, i18n.Lookup(i18n.English))
		for _, r := range []Role{RoleFullName, RoleAmount, RoleDate, RoleDonorSignature, RoleFooter} {
			b, ok := doc.Block(r)
			require.True(t, ok, r)
			assert.True(t, b.Placeholder, r)
			assert.True(t, strings.Contains(b.Text, Placeholder), r)
		}
	}
}

func TestRender_Deterministic(t *testing.T) {
	for _, l := range i18n.Locales {
		a := Render(sample(), i18n.Lookup(l))
		b := Render(sample(), i18n.Lookup(l))
		assert.Equal(t, a, b)
	}
}

func TestRender_BlocksInsidePage(t *testing.T) {
	doc := Render(sample(), i18n.Lookup(i18n.Arabic))
	for _, b := range doc.Blocks {
		assert.GreaterOrEqual(t, b.X, 0.0, b.Role)
		assert.LessOrEqual(t, b.X, doc.WidthMM, b.Role)
		assert.Greater(t, b.Y, 0.0, b.Role)
		assert.Less(t, b.Y, doc.HeightMM, b.Role)
	}
}

func TestVisual_LTRUntouched(t *testing.T) {
	assert.Equal(t, "Amount: 5", visual("Amount: 5", false))
	assert.Equal(t, "", visual("", true))
}
