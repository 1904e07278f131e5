package models

import "errors"

// Domain error taxonomy. Services return these (usually wrapped with %w and
// context); the API boundary maps them onto the uniform
// {success:false, error} envelope and an HTTP status.
var (
	// ErrNotFound: the referenced entity does not exist (or is not visible
	// in the state the operation requires, e.g. joining a non-WAITING match).
	ErrNotFound = errors.New("not found")

	// ErrForbidden: the caller is authenticated but not allowed to act on
	// this entity (not the creator, not a seated player, self-join).
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState: the operation is not valid for the entity's current
	// lifecycle state (double-start, submit after completion, cancel mid-play).
	ErrInvalidState = errors.New("invalid state")

	// ErrInsufficientBalance: a wallet debit would take the balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrConflict: a concurrent mutation won the race (seat already taken,
	// duplicate pending request).
	ErrConflict = errors.New("conflict")
)
