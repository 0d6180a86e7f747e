// Package domain holds shared domain value types.
package domain

import (
	"github.com/google/uuid"

	dErrors "veristat/pkg/domain-errors"
)

// ClientID identifies a bank client whose verification status is tracked.
// Invariant: a ClientID is a valid, non-nil UUID.
//
// Usage: construct via ParseClientID at trust boundaries to enforce the
// invariant; direct casting bypasses validation.
type ClientID uuid.UUID

// ParseClientID constructs a ClientID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, not a UUID, or
// the nil UUID; no other errors are expected.
func ParseClientID(s string) (ClientID, error) {
	if s == "" {
		return ClientID{}, dErrors.New(dErrors.CodeInvalidInput, "client id cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ClientID{}, dErrors.New(dErrors.CodeInvalidInput, "client id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return ClientID{}, dErrors.New(dErrors.CodeInvalidInput, "client id cannot be the nil UUID")
	}
	return ClientID(parsed), nil
}

// NewClientID generates a fresh random ClientID.
func NewClientID() ClientID {
	return ClientID(uuid.New())
}

// String returns the canonical UUID representation.
func (id ClientID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether the ID is the nil UUID.
func (id ClientID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText encodes the ID as its canonical UUID string for JSON payloads.
func (id ClientID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses through ParseClientID so decoded payloads carry the
// same invariant as boundary input.
func (id *ClientID) UnmarshalText(b []byte) error {
	parsed, err := ParseClientID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
