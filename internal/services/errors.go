// Package services defines the business logic for donations.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Donation-related errors.
var (
	// ErrDonationNotFound indicates that the requested donation does not exist.
	ErrDonationNotFound = errors.New("donation not found")

	// ErrInvalidDonation wraps a domain validation failure. The underlying
	// domain error is joined so callers can inspect it with errors.Is.
	ErrInvalidDonation = errors.New("invalid donation")

	// ErrNotSignedIn is returned when a create is attempted without an actor.
	ErrNotSignedIn = errors.New("not signed in")

	// ErrStore wraps transport/permission failures from the document store.
	// These are surfaced to the caller and never retried.
	ErrStore = errors.New("store operation failed")
)
