package service

import (
	"errors"
)

var (
	// ErrSelfMessage rejects a degenerate directed edge: an account may not
	// message itself.
	ErrSelfMessage = errors.New("cannot send a message to yourself")

	// ErrEmptyMessage rejects a message with no body after trimming.
	ErrEmptyMessage = errors.New("message body is empty")

	// ErrBadCredentials covers both an unknown email and a wrong password,
	// indistinguishable on purpose.
	ErrBadCredentials = errors.New("invalid email or password")

	// ErrBadCode is returned when a verification or recovery code does not
	// match.
	ErrBadCode = errors.New("code does not match")

	// ErrNotFound maps onto repository not-found conditions at the service
	// boundary.
	ErrNotFound = errors.New("not found")

	// ErrTaken is returned when a username or email is already in use.
	ErrTaken = errors.New("already in use")

	// ErrNotOwner is returned when an account tries to modify a listing it
	// does not own.
	ErrNotOwner = errors.New("account does not own this item")
)
