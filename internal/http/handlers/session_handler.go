// View shell session endpoints.
//
// A session holds one user's UI state: current view, locale, modal stack,
// list controls, export flag and the add/edit form. Every endpoint returns
// the full SessionResponse so clients can re-render from it alone.
//
//   - GET    /session
//   - PUT    /session/view
//   - PUT    /session/locale
//   - PUT    /session/sort
//   - PUT    /session/query
//   - POST   /session/modals
//   - DELETE /session/modals
//   - PUT    /session/draft
//   - POST   /session/draft/submit
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/form"
	"github.com/tbourn/go-donation-tracker/internal/http/middleware"
	"github.com/tbourn/go-donation-tracker/internal/i18n"
	"github.com/tbourn/go-donation-tracker/internal/listing"
	"github.com/tbourn/go-donation-tracker/internal/shell"
)

//
// DTOs
//

// SessionResponse is the session state plus the rows it displays.
type SessionResponse struct {
	shell.State
	SignedIn bool              `json:"signed_in"`
	Visible  []domain.Donation `json:"visible"`
	Draft    *form.Draft       `json:"draft,omitempty"`
}

// ChangeViewRequest switches screens. ID is required for "edit".
type ChangeViewRequest struct {
	View string `json:"view" binding:"required" example:"edit" enums:"list,add,edit"`
	ID   string `json:"id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// SetLocaleRequest switches language.
type SetLocaleRequest struct {
	Locale string `json:"locale" binding:"required" example:"ar" enums:"ar,en"`
}

// SetSortRequest picks a sort column. Without Direction it behaves like a
// header click: the active key flips, another key starts ascending.
type SetSortRequest struct {
	Key       string `json:"key" binding:"required" example:"amount"`
	Direction string `json:"direction" example:"desc"`
}

// SetQueryRequest sets the search text.
type SetQueryRequest struct {
	Query string `json:"query" example:"ali"`
}

// OpenModalRequest pushes a dialog.
type OpenModalRequest struct {
	Kind     string `json:"kind" binding:"required" example:"confirm_delete"`
	TargetID string `json:"target_id"`
	Message  string `json:"message"`
}

//
// Helpers
//

func sessionResponse(s *shell.Session) SessionResponse {
	st := s.State()
	resp := SessionResponse{State: st, SignedIn: st.SignedIn(), Visible: st.Visible()}
	if ctrl, has := s.Form(); has {
		d := ctrl.Draft()
		resp.Draft = &d
	}
	return resp
}

func validModal(k shell.ModalKind) bool {
	switch k {
	case shell.ModalConfirmDelete, shell.ModalReceipt, shell.ModalExportFailed, shell.ModalStoreError:
		return true
	}
	return false
}

//
// Handlers
//

// GetSession godoc
// @ID          getSession
// @Summary     Get the caller's view state
// @Tags        Session
// @Produce     json
// @Success     200  {object} handlers.SessionResponse
// @Router      /session [get]
func (h *Handlers) GetSession(c *gin.Context) {
	ok(c, http.StatusOK, sessionResponse(h.session(c)))
}

// ChangeView godoc
// @ID          changeView
// @Summary     Switch view
// @Description "add" opens an empty form (today, cash); "edit" opens a form pre-filled from the record; "list" closes the form.
// @Tags        Session
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ChangeViewRequest  true  "Target view"
// @Success     200  {object} handlers.SessionResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Not signed in"
// @Failure     404  {object} handlers.ErrorResponse "Donation not found"
// @Router      /session/view [put]
func (h *Handlers) ChangeView(c *gin.Context) {
	var req ChangeViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "view required")
		return
	}
	v, err := shell.ParseView(req.View)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "view must be list, add or edit")
		return
	}
	sess := h.session(c)

	switch v {
	case shell.ViewAdd:
		actor, signed := middleware.ActorFrom(c)
		if !signed {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "sign in required")
			return
		}
		sess.OpenForm(form.NewController(form.NewDraft(h.now()), func(ctx context.Context, f domain.Fields) error {
			_, _, err := h.svc.CreateIdempotent(ctx, actor, "", f)
			return err
		}))
	case shell.ViewEdit:
		if _, err := uuid.Parse(req.ID); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "donation id must be a UUID")
			return
		}
		d, err := h.svc.Get(c.Request.Context(), req.ID)
		if err != nil {
			failService(c, err)
			return
		}
		id := d.ID
		sess.OpenForm(form.NewController(form.DraftFrom(d), func(ctx context.Context, f domain.Fields) error {
			_, err := h.svc.Update(ctx, id, f)
			return err
		}))
	default:
		sess.CloseForm()
	}

	sess.Apply(func(st shell.State) shell.State { return st.ChangeView(v, req.ID) })
	ok(c, http.StatusOK, sessionResponse(sess))
}

// SetLocale godoc
// @ID          setLocale
// @Summary     Switch language
// @Tags        Session
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SetLocaleRequest  true  "Locale"
// @Success     200  {object} handlers.SessionResponse
// @Failure     400  {object} handlers.ErrorResponse "Unsupported locale"
// @Router      /session/locale [put]
func (h *Handlers) SetLocale(c *gin.Context) {
	var req SetLocaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "locale required")
		return
	}
	l, found := i18n.ParseLocale(req.Locale)
	if !found {
		fail(c, http.StatusBadRequest, ErrCodeUnsupportedLocale, "locale must be ar or en")
		return
	}
	sess := h.session(c)
	sess.Apply(func(st shell.State) shell.State { return st.SetLocale(l) })
	ok(c, http.StatusOK, sessionResponse(sess))
}

// SetSort godoc
// @ID          setSort
// @Summary     Change list sort
// @Tags        Session
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SetSortRequest  true  "Sort"
// @Success     200  {object} handlers.SessionResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /session/sort [put]
func (h *Handlers) SetSort(c *gin.Context) {
	var req SetSortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "key required")
		return
	}
	key := listing.Key(req.Key)
	sess := h.session(c)
	sess.Apply(func(st shell.State) shell.State {
		if req.Direction == "" {
			return st.ToggleSort(key)
		}
		return st.SetSort(listing.SortConfig{Key: key, Direction: listing.ParseDirection(req.Direction)})
	})
	ok(c, http.StatusOK, sessionResponse(sess))
}

// SetQuery godoc
// @ID          setQuery
// @Summary     Change search text
// @Tags        Session
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.SetQueryRequest  true  "Query"
// @Success     200  {object} handlers.SessionResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /session/query [put]
func (h *Handlers) SetQuery(c *gin.Context) {
	var req SetQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	sess := h.session(c)
	sess.Apply(func(st shell.State) shell.State { return st.SetQuery(req.Query) })
	ok(c, http.StatusOK, sessionResponse(sess))
}

// OpenModal godoc
// @ID          openModal
// @Summary     Open a dialog
// @Tags        Session
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.OpenModalRequest  true  "Dialog"
// @Success     200  {object} handlers.SessionResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /session/modals [post]
func (h *Handlers) OpenModal(c *gin.Context) {
	var req OpenModalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "kind required")
		return
	}
	m := shell.Modal{Kind: shell.ModalKind(req.Kind), TargetID: req.TargetID, Message: req.Message}
	if !validModal(m.Kind) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown modal kind")
		return
	}
	sess := h.session(c)
	sess.Apply(func(st shell.State) shell.State { return st.OpenModal(m) })
	ok(c, http.StatusOK, sessionResponse(sess))
}

// CloseModal godoc
// @ID          closeModal
// @Summary     Close the top dialog
// @Tags        Session
// @Produce     json
// @Success     200  {object} handlers.SessionResponse
// @Router      /session/modals [delete]
func (h *Handlers) CloseModal(c *gin.Context) {
	sess := h.session(c)
	sess.Apply(shell.State.CloseModal)
	ok(c, http.StatusOK, sessionResponse(sess))
}

// SetDraft godoc
// @ID          setDraft
// @Summary     Update the open form's draft
// @Description Ignored while a submit is in flight.
// @Tags        Session
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.DonationRequest  true  "Draft"
// @Success     200  {object} handlers.SessionResponse
// @Failure     409  {object} handlers.ErrorResponse "No open form"
// @Router      /session/draft [put]
func (h *Handlers) SetDraft(c *gin.Context) {
	var req DonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	sess := h.session(c)
	ctrl, has := sess.Form()
	if !has {
		fail(c, http.StatusConflict, ErrCodeNoActiveForm, "no add or edit form is open")
		return
	}
	ctrl.SetDraft(req.draft())
	ok(c, http.StatusOK, sessionResponse(sess))
}

// SubmitDraft godoc
// @ID          submitDraft
// @Summary     Submit the open form
// @Description Validates the draft and saves it. On success the form closes and the list view returns.
// @Description On failure the draft is kept and the error is reported.
// @Tags        Session
// @Produce     json
// @Success     200  {object} handlers.SessionResponse
// @Failure     400  {object} handlers.ErrorResponse "Validation failed"
// @Failure     409  {object} handlers.ErrorResponse "No open form or submit in progress"
// @Failure     500  {object} handlers.ErrorResponse "Store failed"
// @Router      /session/draft/submit [post]
func (h *Handlers) SubmitDraft(c *gin.Context) {
	sess := h.session(c)
	ctrl, has := sess.Form()
	if !has {
		fail(c, http.StatusConflict, ErrCodeNoActiveForm, "no add or edit form is open")
		return
	}

	err := ctrl.Submit(c.Request.Context())
	var ve *form.ValidationError
	switch {
	case errors.As(err, &ve):
		failValidation(c, h.table(c).Text(i18n.KeyValidationFailed), ve.Fields)
	case errors.Is(err, form.ErrSubmitInProgress):
		fail(c, http.StatusConflict, ErrCodeSubmitInProgress, err.Error())
	case err != nil:
		sess.Apply(func(st shell.State) shell.State { return st.ReportError(err) })
		failService(c, err)
	default:
		sess.CloseForm()
		sess.Apply(func(st shell.State) shell.State { return st.ChangeView(shell.ViewList, "") })
		ok(c, http.StatusOK, sessionResponse(sess))
	}
}
