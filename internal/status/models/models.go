// Package models defines the verification record read from the KYC backend
// and the classified status served to the console.
package models

import (
	"time"

	"veristat/pkg/domain"
)

// Document kinds in the fixed KYC schema. Every client has exactly these
// five slots; TotalDocumentSlots is derived from the list, never configured
// independently.
const (
	DocProofOfIdentity = "proof_of_identity"
	DocProofOfAddress  = "proof_of_address"
	DocPhotograph      = "photograph"
	DocSignatureCard   = "signature_card"
	DocTaxCertificate  = "tax_certificate"
)

// DocumentKinds lists the full fixed document set in schema order.
var DocumentKinds = []string{
	DocProofOfIdentity,
	DocProofOfAddress,
	DocPhotograph,
	DocSignatureCard,
	DocTaxCertificate,
}

// TotalDocumentSlots is the fixed cardinality of the document schema.
var TotalDocumentSlots = len(DocumentKinds)

// RequiredDocuments is the minimal pair that constitutes full verification.
var RequiredDocuments = [2]string{DocProofOfIdentity, DocProofOfAddress}

// VerificationRecord is the raw payload returned by the KYC backend for one
// client. It is read-only input to classification; the core never mutates it.
type VerificationRecord struct {
	ClientID domain.ClientID `json:"client_id"`

	// Documents maps a document kind to its verified flag. A missing kind
	// counts as unverified.
	Documents map[string]bool `json:"documents"`

	// ManuallyUnverifiedAt is set when an operator explicitly revoked the
	// client's verified standing. Non-nil overrides every document flag.
	ManuallyUnverifiedAt *time.Time `json:"manually_unverified_at,omitempty"`

	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty"`

	// Method records how the last verification was performed,
	// e.g. "Branch Visit" or "Video Identification".
	Method string `json:"method,omitempty"`
}

// VerificationState is the UI-facing classification of a client's standing.
type VerificationState string

const (
	StateFullyVerified      VerificationState = "fully_verified"
	StatePartiallyVerified  VerificationState = "partially_verified"
	StateNotVerified        VerificationState = "not_verified"
	StateManuallyUnverified VerificationState = "manually_unverified"
	StateError              VerificationState = "error"
)

// MethodManualUnverification is the method reported for operator revocations.
const MethodManualUnverification = "Manual Unverification"

// StatusInfo is the classified verification status for one client.
// Invariant: VerifiedCount <= TotalCount. Immutable once created; a re-fetch
// replaces the whole value.
type StatusInfo struct {
	State          VerificationState `json:"state"`
	VerifiedCount  int               `json:"verified_count"`
	TotalCount     int               `json:"total_count"`
	LastVerifiedOn *time.Time        `json:"last_verified_on,omitempty"`
	Method         string            `json:"method,omitempty"`

	// Message carries the error note for StateError and for statuses
	// degraded by a fetch failure.
	Message string `json:"message,omitempty"`
}

// IsVerified reports whether the client counts as fully verified.
func (s StatusInfo) IsVerified() bool {
	return s.State == StateFullyVerified
}
