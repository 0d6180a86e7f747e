// Package fetcher provides the clients that read raw verification records.
package fetcher

import (
	"context"
	"time"

	"veristat/internal/status/models"
	"veristat/pkg/domain"
)

// RecordFetcher reads one client's raw verification record. Implementations
// must return sentinel.ErrNotFound (wrapped) when the backend knows no record
// for the client, and any other error for transport failures; the coordinator
// treats the two differently.
type RecordFetcher interface {
	FetchRecord(ctx context.Context, id domain.ClientID) (*models.VerificationRecord, error)
}

// MockFetcher serves deterministic records with configurable latency to mimic
// real-world calls in dev mode and tests.
type MockFetcher struct {
	Latency time.Duration
}

func (f MockFetcher) FetchRecord(_ context.Context, id domain.ClientID) (*models.VerificationRecord, error) {
	time.Sleep(f.Latency)
	now := time.Now().UTC()
	return &models.VerificationRecord{
		ClientID: id,
		Documents: map[string]bool{
			models.DocProofOfIdentity: true,
			models.DocProofOfAddress:  true,
			models.DocPhotograph:      true,
		},
		LastVerifiedAt: &now,
		Method:         "Branch Visit",
	}, nil
}
