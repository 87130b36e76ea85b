// Package shell holds the per-user application state: current view, locale,
// modal stack, the live collection mirror, list controls and in-flight flags.
//
// State is a plain value. Every transition is a method that returns the next
// State and leaves the receiver untouched, so transitions can be tested in
// isolation and applied atomically by Session.
package shell

import (
	"errors"

	"github.com/tbourn/go-donation-tracker/internal/domain"
	"github.com/tbourn/go-donation-tracker/internal/i18n"
	"github.com/tbourn/go-donation-tracker/internal/listing"
)

// View is the top-level screen.
type View string

const (
	ViewList View = "list"
	ViewAdd  View = "add"
	ViewEdit View = "edit"
)

// ErrUnknownView is returned by ParseView for unsupported names.
var ErrUnknownView = errors.New("unknown view")

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewList, ViewAdd, ViewEdit:
		return v, nil
	}
	return "", ErrUnknownView
}

// ModalKind identifies a dialog.
type ModalKind string

const (
	ModalConfirmDelete ModalKind = "confirm_delete"
	ModalReceipt       ModalKind = "receipt"
	ModalExportFailed  ModalKind = "export_failed"
	ModalStoreError    ModalKind = "store_error"
)

// Modal is one entry of the modal stack.
type Modal struct {
	Kind     ModalKind `json:"kind"`
	TargetID string    `json:"target_id,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// State is the complete UI state of one user session.
type State struct {
	View          View               `json:"view"`
	EditingID     string             `json:"editing_id,omitempty"`
	Locale        i18n.Locale        `json:"locale"`
	Direction     i18n.Direction     `json:"direction"`
	Modals        []Modal            `json:"modals"`
	Mirror        []domain.Donation  `json:"-"`
	MirrorVersion uint64             `json:"mirror_version"`
	Sort          listing.SortConfig `json:"sort"`
	Query         string             `json:"query"`
	Exporting     bool               `json:"exporting"`
	Actor         *domain.Actor      `json:"actor,omitempty"`
	LastError     string             `json:"last_error,omitempty"`
}

// NewState returns the initial state: list view, empty mirror, default sort.
func NewState(locale i18n.Locale) State {
	if !locale.Valid() {
		locale = i18n.English
	}
	return State{
		View:      ViewList,
		Locale:    locale,
		Direction: locale.Direction(),
		Modals:    []Modal{},
		Mirror:    []domain.Donation{},
		Sort:      listing.DefaultSort,
	}
}

// SignedIn reports whether an actor is present.
func (s State) SignedIn() bool { return s.Actor != nil }

// ChangeView switches screens. editingID is kept only for ViewEdit.
func (s State) ChangeView(v View, editingID string) State {
	s.View = v
	s.EditingID = ""
	if v == ViewEdit {
		s.EditingID = editingID
	}
	return s
}

// SetLocale switches language and text direction. Unknown locales are ignored.
func (s State) SetLocale(l i18n.Locale) State {
	if !l.Valid() {
		return s
	}
	s.Locale = l
	s.Direction = l.Direction()
	return s
}

// OpenModal pushes m on top of the modal stack.
func (s State) OpenModal(m Modal) State {
	modals := make([]Modal, len(s.Modals), len(s.Modals)+1)
	copy(modals, s.Modals)
	s.Modals = append(modals, m)
	return s
}

// CloseModal pops the top modal. Closing an empty stack is a no-op.
func (s State) CloseModal() State {
	if len(s.Modals) == 0 {
		return s
	}
	modals := make([]Modal, len(s.Modals)-1)
	copy(modals, s.Modals)
	s.Modals = modals
	return s
}

// TopModal returns the modal on top of the stack.
func (s State) TopModal() (Modal, bool) {
	if len(s.Modals) == 0 {
		return Modal{}, false
	}
	return s.Modals[len(s.Modals)-1], true
}

// ReplaceCollection swaps the mirror for a new snapshot. It never merges.
// Snapshots older than the current mirror are ignored.
func (s State) ReplaceCollection(version uint64, donations []domain.Donation) State {
	if version != 0 && version < s.MirrorVersion {
		return s
	}
	s.Mirror = donations
	s.MirrorVersion = version
	return s
}

// ToggleSort applies the column-header click rule.
func (s State) ToggleSort(k listing.Key) State {
	s.Sort = s.Sort.Toggle(k)
	return s
}

// SetSort sets the sort config directly.
func (s State) SetSort(cfg listing.SortConfig) State {
	s.Sort = cfg
	return s
}

// SetQuery sets the search text.
func (s State) SetQuery(q string) State {
	s.Query = q
	return s
}

// BeginExport marks an export as running.
func (s State) BeginExport() State {
	s.Exporting = true
	return s
}

// EndExport clears the export flag. A non-nil err opens the export failure
// dialog, which is distinct from generic store errors.
func (s State) EndExport(err error) State {
	s.Exporting = false
	if err != nil {
		s.LastError = err.Error()
		return s.OpenModal(Modal{Kind: ModalExportFailed, Message: err.Error()})
	}
	return s
}

// SignIn records the actor; a nil actor means signed out.
func (s State) SignIn(a *domain.Actor) State {
	if a != nil {
		cp := *a
		a = &cp
	}
	s.Actor = a
	return s
}

// ReportError surfaces a store failure as a dismissable dialog.
func (s State) ReportError(err error) State {
	if err == nil {
		return s
	}
	s.LastError = err.Error()
	return s.OpenModal(Modal{Kind: ModalStoreError, Message: err.Error()})
}

// Visible derives the displayed rows from the mirror.
func (s State) Visible() []domain.Donation {
	return listing.Derive(s.Mirror, s.Sort, s.Query)
}
