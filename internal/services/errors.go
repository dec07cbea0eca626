// Package services defines the business logic for accounts, moderation, and
// scheduled maintenance on top of the repository layer. This file centralizes
// common service-level error values so that they can be consistently returned
// by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing chat replies is performed by the bot router.
package services

import "errors"

var (
	// ErrUserNotFound indicates that the referenced user is not registered.
	ErrUserNotFound = errors.New("user not found")

	// ErrAdNotFound indicates that the referenced listing does not exist.
	ErrAdNotFound = errors.New("ad not found")

	// ErrInsufficientBalance is returned when a debit would push the user's
	// balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrBrandExists is returned when creating a car brand whose name is
	// already taken.
	ErrBrandExists = errors.New("brand already exists")

	// ErrModeratorExists is returned when registering a moderator whose
	// telegram ID is already registered.
	ErrModeratorExists = errors.New("moderator already exists")

	// ErrModerationNotFound indicates that the listing has no moderation
	// record to act on.
	ErrModerationNotFound = errors.New("moderation record not found")

	// ErrNotModerator is returned when a moderator-only action is attempted
	// by a sender without an active moderator account.
	ErrNotModerator = errors.New("not an active moderator")
)
