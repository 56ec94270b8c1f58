package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownSender is returned when the sender has no registered identity
	ErrUnknownSender = errors.New("core: unknown sender")

	// ErrInvalidSignature is returned when the signature does not verify
	// against the sender's registered key
	ErrInvalidSignature = errors.New("core: invalid signature")

	// ErrMalformedPayload matches every *MalformedPayloadError
	ErrMalformedPayload = errors.New("core: malformed payload")

	// ErrDuplicateProduct is returned when registering an existing product
	ErrDuplicateProduct = errors.New("core: product already registered")

	// ErrUnknownProduct is returned when a transfer references no known product
	ErrUnknownProduct = errors.New("core: unknown product")

	// ErrNotOwner is returned when the sender does not hold the product
	ErrNotOwner = errors.New("core: sender is not the current owner")

	// ErrInvalidChain is returned for chains failing structural validation
	ErrInvalidChain = errors.New("core: invalid chain")
)

// MalformedPayloadError reports the payload field that failed schema
// validation
type MalformedPayloadError struct {
	Field  string
	Reason string
}

func (e *MalformedPayloadError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("core: malformed payload: %s", e.Field)
	}
	return fmt.Sprintf("core: malformed payload: %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrMalformedPayload) match
func (e *MalformedPayloadError) Is(target error) bool {
	return target == ErrMalformedPayload
}
