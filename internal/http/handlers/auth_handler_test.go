package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-donation-tracker/internal/auth"
	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/i18n"
)

func TestIssueToken_RoundTrip(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodPost, "/auth/token", TokenRequest{DisplayName: " Fatima ", UserID: "u-9"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[TokenResponse](t, w)
	assert.Equal(t, domain.Actor{ID: "u-9", Name: "Fatima"}, resp.Actor)
	assert.True(t, resp.ExpiresAt.Equal(testNow.Add(time.Hour)), resp.ExpiresAt)

	actor, err := auth.ParseToken(resp.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, resp.Actor, actor)

	// The token signs in a create.
	cw := e.do(http.MethodPost, "/donations", DonationRequest{
		DonorName: "Ali", Amount: "5", PaymentMethod: "cash", Date: "2024-01-02",
	}, "Authorization", "Bearer "+resp.Token)
	require.Equal(t, http.StatusCreated, cw.Code, cw.Body.String())
	assert.Equal(t, "Fatima", decode[domain.Donation](t, cw).CreatedByName)
}

func TestIssueToken_GeneratesID(t *testing.T) {
	e := newTestEnv(t)
	resp := decode[TokenResponse](t, e.do(http.MethodPost, "/auth/token", TokenRequest{DisplayName: "Fatima"}))
	assert.NotEmpty(t, resp.Actor.ID)
}

func TestIssueToken_RequiresName(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodPost, "/auth/token", map[string]string{"display_name": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvalidTokenRejected(t *testing.T) {
	e := newTestEnv(t)
	w := e.do(http.MethodGet, "/session", nil, "Authorization", "Bearer not.a.token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetTranslations(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodGet, "/i18n/ar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[TranslationsResponse](t, w)
	assert.Equal(t, i18n.Arabic, resp.Locale)
	assert.Equal(t, i18n.RTL, resp.Direction)
	assert.NotEmpty(t, resp.Texts[i18n.KeyAppTitle])

	en := decode[TranslationsResponse](t, e.do(http.MethodGet, "/i18n/en", nil))
	assert.Equal(t, i18n.LTR, en.Direction)
	assert.NotEqual(t, resp.Texts[i18n.KeyAppTitle], en.Texts[i18n.KeyAppTitle])

	w = e.do(http.MethodGet, "/i18n/de", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
