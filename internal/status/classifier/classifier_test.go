package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"veristat/internal/status/models"
)

func record(docs map[string]bool) *models.VerificationRecord {
	return &models.VerificationRecord{Documents: docs}
}

func TestClassify_NilRecord(t *testing.T) {
	c := Default()

	status := c.Classify(nil)
	assert.Equal(t, models.StateNotVerified, status.State)
	assert.Equal(t, 0, status.VerifiedCount)
	assert.Equal(t, models.TotalDocumentSlots, status.TotalCount)
}

func TestClassify_EmptyDocuments(t *testing.T) {
	c := Default()

	status := c.Classify(record(map[string]bool{}))
	assert.Equal(t, models.StateNotVerified, status.State)
	assert.Equal(t, 0, status.VerifiedCount)
}

func TestClassify_FullyVerified(t *testing.T) {
	c := Default()
	verifiedOn := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	rec := record(map[string]bool{
		models.DocProofOfIdentity: true,
		models.DocProofOfAddress:  true,
		models.DocPhotograph:      true,
	})
	rec.LastVerifiedAt = &verifiedOn
	rec.Method = "Branch Visit"

	status := c.Classify(rec)
	assert.Equal(t, models.StateFullyVerified, status.State)
	assert.Equal(t, 3, status.VerifiedCount)
	assert.Equal(t, 5, status.TotalCount)
	assert.Equal(t, &verifiedOn, status.LastVerifiedOn)
	assert.Equal(t, "Branch Visit", status.Method)
	assert.True(t, status.IsVerified())
}

// Only one of the two required documents verified: partial, never full,
// regardless of how many non-required documents are flagged.
func TestClassify_OneRequiredFlagIsPartial(t *testing.T) {
	c := Default()

	status := c.Classify(record(map[string]bool{
		models.DocProofOfIdentity: true,
	}))
	assert.Equal(t, models.StatePartiallyVerified, status.State)
	assert.Equal(t, 1, status.VerifiedCount)
	assert.False(t, status.IsVerified())
}

func TestClassify_NonRequiredDocumentsOnlyIsPartial(t *testing.T) {
	c := Default()

	status := c.Classify(record(map[string]bool{
		models.DocPhotograph:     true,
		models.DocSignatureCard:  true,
		models.DocTaxCertificate: true,
	}))
	assert.Equal(t, models.StatePartiallyVerified, status.State)
	assert.Equal(t, 3, status.VerifiedCount)
}

func TestClassify_AllFlagsFalse(t *testing.T) {
	c := Default()

	status := c.Classify(record(map[string]bool{
		models.DocProofOfIdentity: false,
		models.DocProofOfAddress:  false,
	}))
	assert.Equal(t, models.StateNotVerified, status.State)
	assert.Equal(t, 0, status.VerifiedCount)
}

// Manual unverification is an administrative override: it wins even when both
// required documents are still flagged verified.
func TestClassify_ManualUnverificationOverridesFullyVerified(t *testing.T) {
	c := Default()
	revokedAt := time.Date(2026, 5, 2, 15, 30, 0, 0, time.UTC)

	rec := record(map[string]bool{
		models.DocProofOfIdentity: true,
		models.DocProofOfAddress:  true,
		models.DocPhotograph:      true,
		models.DocSignatureCard:   true,
		models.DocTaxCertificate:  true,
	})
	rec.ManuallyUnverifiedAt = &revokedAt

	status := c.Classify(rec)
	assert.Equal(t, models.StateManuallyUnverified, status.State)
	assert.Equal(t, 5, status.VerifiedCount)
	assert.Equal(t, models.MethodManualUnverification, status.Method)
	assert.False(t, status.IsVerified())
}

func TestClassify_CountInvariant(t *testing.T) {
	c := Default()

	// Unknown document kinds in the record are ignored; the count never
	// exceeds the schema cardinality.
	status := c.Classify(record(map[string]bool{
		models.DocProofOfIdentity: true,
		models.DocProofOfAddress:  true,
		"passport_scan":           true,
		"utility_bill":            true,
	}))
	assert.Equal(t, 2, status.VerifiedCount)
	assert.LessOrEqual(t, status.VerifiedCount, status.TotalCount)
}

func TestClassify_Deterministic(t *testing.T) {
	c := Default()
	rec := record(map[string]bool{
		models.DocProofOfIdentity: true,
		models.DocTaxCertificate:  true,
	})

	first := c.Classify(rec)
	for range 10 {
		assert.Equal(t, first, c.Classify(rec))
	}
}
