package fetcher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"veristat/internal/status/models"
	"veristat/pkg/domain"
	"veristat/pkg/platform/sentinel"
)

// PostgresFetcher reads verification records straight from the KYC database.
// Used when veristat runs next to the backend instead of in front of its API.
type PostgresFetcher struct {
	db *sql.DB
}

// NewPostgresFetcher constructs a fetcher over an existing connection pool.
func NewPostgresFetcher(db *sql.DB) *PostgresFetcher {
	return &PostgresFetcher{db: db}
}

const fetchRecordQuery = `
SELECT proof_of_identity, proof_of_address, photograph, signature_card, tax_certificate,
       manually_unverified_at, last_verified_at, method
FROM client_verifications
WHERE client_id = $1`

func (f *PostgresFetcher) FetchRecord(ctx context.Context, id domain.ClientID) (*models.VerificationRecord, error) {
	var (
		identity, address, photo, signature, tax bool
		manuallyUnverifiedAt, lastVerifiedAt     sql.NullTime
		method                                   sql.NullString
	)

	err := f.db.QueryRowContext(ctx, fetchRecordQuery, id.String()).Scan(
		&identity, &address, &photo, &signature, &tax,
		&manuallyUnverifiedAt, &lastVerifiedAt, &method,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("verification record for client %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query verification record for client %s: %w", id, err)
	}

	record := &models.VerificationRecord{
		ClientID: id,
		Documents: map[string]bool{
			models.DocProofOfIdentity: identity,
			models.DocProofOfAddress:  address,
			models.DocPhotograph:      photo,
			models.DocSignatureCard:   signature,
			models.DocTaxCertificate:  tax,
		},
		Method: method.String,
	}
	if manuallyUnverifiedAt.Valid {
		t := manuallyUnverifiedAt.Time
		record.ManuallyUnverifiedAt = &t
	}
	if lastVerifiedAt.Valid {
		t := lastVerifiedAt.Time
		record.LastVerifiedAt = &t
	}
	return record, nil
}
