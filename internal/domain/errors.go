// Package domain defines the error taxonomy shared across services.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing restaurant, bot instance, order or user.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a duplicate credential or restaurant pairing.
	ErrConflict = errors.New("already exists")
	// ErrInvalidCredential signals that the provider rejected a bot token.
	ErrInvalidCredential = errors.New("invalid bot token")
	// ErrForbidden signals a failed role or ownership check.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition signals an order status change outside the allowed table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidState signals wizard or session misuse.
	ErrInvalidState = errors.New("invalid conversation state")
	// ErrCrypto signals a vault encryption or decryption failure.
	ErrCrypto = errors.New("crypto failure")
)

// ProviderError carries the messaging provider's own description when the
// Bot API returns ok:false or the transport fails.
type ProviderError struct {
	Method      string
	Code        int
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Description != "":
		return fmt.Sprintf("telegram %s: %s", e.Method, e.Description)
	case e.Err != nil:
		return fmt.Sprintf("telegram %s: %v", e.Method, e.Err)
	default:
		return fmt.Sprintf("telegram %s failed", e.Method)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NotFoundf wraps ErrNotFound with entity context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Conflictf wraps ErrConflict with entity context.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}
