package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"veristat/internal/status/models"
	"veristat/pkg/domain"
	"veristat/pkg/platform/circuit"
	"veristat/pkg/platform/sentinel"
)

// probeEvery is how many open-circuit calls pass between probes of the
// primary. The other calls fail fast with ErrUnavailable.
const probeEvery = 5

// BreakerFetcher wraps a RecordFetcher with a circuit breaker so a dead
// backend degrades table renders quickly instead of stalling each row on a
// timeout. While the circuit is open most fetches fail fast with
// ErrUnavailable; every probeEvery-th call probes the backend so recorded
// successes can close the circuit again.
type BreakerFetcher struct {
	inner    RecordFetcher
	breaker  *circuit.Breaker
	logger   *slog.Logger
	openSeen atomic.Int64
}

// NewBreakerFetcher decorates inner with the given breaker.
func NewBreakerFetcher(inner RecordFetcher, breaker *circuit.Breaker, logger *slog.Logger) *BreakerFetcher {
	return &BreakerFetcher{inner: inner, breaker: breaker, logger: logger}
}

func (f *BreakerFetcher) FetchRecord(ctx context.Context, id domain.ClientID) (*models.VerificationRecord, error) {
	if f.breaker.IsOpen() {
		if f.openSeen.Add(1)%probeEvery != 0 {
			return nil, fmt.Errorf("%s circuit open: %w", f.breaker.Name(), sentinel.ErrUnavailable)
		}
	}

	record, err := f.inner.FetchRecord(ctx, id)
	switch {
	case err == nil, errors.Is(err, sentinel.ErrNotFound):
		// A clean not-found is a backend answer, not a backend failure.
		if _, change := f.breaker.RecordSuccess(); change.Closed {
			f.logger.Info("fetch circuit closed", "breaker", f.breaker.Name())
		}
	default:
		if _, change := f.breaker.RecordFailure(); change.Opened {
			f.logger.Warn("fetch circuit opened", "breaker", f.breaker.Name(), "error", err)
		}
	}
	return record, err
}
