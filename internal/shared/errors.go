package shared

import (
	"errors"
	"fmt"

	"github.com/exhibit-pos/exhibit-pos/internal/platform/httpx"
)

var (
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", httpx.ErrUnauthorized)
	// ErrSessionNotFound indicates a missing, expired or revoked token.
	ErrSessionNotFound = fmt.Errorf("%w: session not found", httpx.ErrUnauthorized)
	// ErrIdempotencyConflict indicates a duplicate idempotency key.
	ErrIdempotencyConflict = fmt.Errorf("%w: idempotent request already processed", httpx.ErrConflict)
	errNotInitialised      = errors.New("shared: store not initialised")
)
