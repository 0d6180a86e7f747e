// Package classifier turns raw verification records into UI-facing statuses.
package classifier

import (
	"fmt"

	"veristat/internal/status/models"
)

// Classifier maps a VerificationRecord to a StatusInfo. It is pure: same
// input yields same output, and it never panics — a malformed record
// classifies as StateError instead.
type Classifier struct {
	kinds    []string
	required [2]string
}

// New constructs a classifier over the given document schema. kinds is the
// full fixed slot list; required is the pair whose joint verification
// constitutes full verification.
func New(kinds []string, required [2]string) *Classifier {
	return &Classifier{kinds: kinds, required: required}
}

// Default returns a classifier for the standard KYC document schema.
func Default() *Classifier {
	return New(models.DocumentKinds, models.RequiredDocuments)
}

// Classify derives the status for one record. A nil record (client unknown
// to the backend, or no verification data yet) classifies as not verified.
//
// The check order is deliberate and must not be rearranged:
// manual unverification is an administrative override and beats a record
// whose required documents are all still flagged; and a record with only
// non-required documents verified is partial, never full.
func (c *Classifier) Classify(record *models.VerificationRecord) (status models.StatusInfo) {
	total := len(c.kinds)

	defer func() {
		if r := recover(); r != nil {
			status = models.StatusInfo{
				State:   models.StateError,
				Message: fmt.Sprintf("classification failed: %v", r),
			}
		}
	}()

	if record == nil || len(record.Documents) == 0 {
		return models.StatusInfo{
			State:      models.StateNotVerified,
			TotalCount: total,
		}
	}

	verified := 0
	for _, kind := range c.kinds {
		if record.Documents[kind] {
			verified++
		}
	}
	bothRequired := record.Documents[c.required[0]] && record.Documents[c.required[1]]

	switch {
	case record.ManuallyUnverifiedAt != nil:
		return models.StatusInfo{
			State:         models.StateManuallyUnverified,
			VerifiedCount: verified,
			TotalCount:    total,
			Method:        models.MethodManualUnverification,
		}
	case bothRequired:
		return models.StatusInfo{
			State:          models.StateFullyVerified,
			VerifiedCount:  verified,
			TotalCount:     total,
			LastVerifiedOn: record.LastVerifiedAt,
			Method:         record.Method,
		}
	case verified > 0:
		return models.StatusInfo{
			State:          models.StatePartiallyVerified,
			VerifiedCount:  verified,
			TotalCount:     total,
			LastVerifiedOn: record.LastVerifiedAt,
			Method:         record.Method,
		}
	default:
		return models.StatusInfo{
			State:      models.StateNotVerified,
			TotalCount: total,
		}
	}
}
