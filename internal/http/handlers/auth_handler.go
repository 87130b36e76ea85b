// Identity and translation endpoints.
//
//   - POST /auth/token     (demo sign-in: issue a bearer token)
//   - GET  /i18n/{locale}  (translation table)
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-donation-tracker/internal/auth"
	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/i18n"
)

// TokenRequest is the demo sign-in payload.
type TokenRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=1,max=120" example:"Fatima"`
	// UserID pins the identity; a fresh one is generated when empty.
	UserID string `json:"user_id" example:"u-123"`
}

// TokenResponse carries the issued token.
type TokenResponse struct {
	Token     string       `json:"token"`
	Actor     domain.Actor `json:"actor"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// TranslationsResponse is one locale's table.
type TranslationsResponse struct {
	Locale    i18n.Locale       `json:"locale"`
	Direction i18n.Direction    `json:"direction"`
	Texts     map[string]string `json:"texts"`
}

// IssueToken godoc
// @ID          issueToken
// @Summary     Sign in (demo)
// @Description Issues an HS256 bearer token for the given display name.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.TokenRequest  true  "Sign-in payload"
// @Success     200  {object} handlers.TokenResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /auth/token [post]
func (h *Handlers) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.DisplayName) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "display_name required (1–120 chars)")
		return
	}
	actor := domain.Actor{ID: strings.TrimSpace(req.UserID), Name: strings.TrimSpace(req.DisplayName)}
	if actor.ID == "" {
		actor.ID = uuid.NewString()
	}

	tok, err := auth.GenerateToken(actor, h.auth.Secret, h.auth.TokenTTL)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, TokenResponse{
		Token:     tok,
		Actor:     actor,
		ExpiresAt: h.now().Add(h.auth.TokenTTL).UTC(),
	})
}

// GetTranslations godoc
// @ID          getTranslations
// @Summary     Get a translation table
// @Tags        I18n
// @Produce     json
// @Param       locale  path  string  true  "ar or en"
// @Success     200  {object} handlers.TranslationsResponse
// @Failure     400  {object} handlers.ErrorResponse "Unsupported locale"
// @Router      /i18n/{locale} [get]
func (h *Handlers) GetTranslations(c *gin.Context) {
	l, found := i18n.ParseLocale(c.Param("locale"))
	if !found {
		fail(c, http.StatusBadRequest, ErrCodeUnsupportedLocale, "locale must be ar or en")
		return
	}
	tbl := h.catalog.Lookup(l)
	ok(c, http.StatusOK, TranslationsResponse{Locale: l, Direction: tbl.Direction(), Texts: tbl.Map()})
}
