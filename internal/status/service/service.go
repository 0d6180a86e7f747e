// Package service exposes the status query facade consumed by the transport
// layer. It hides the batching pipeline behind plain request/stream calls.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"veristat/internal/status/coordinator"
	"veristat/internal/status/models"
	"veristat/internal/status/store"
	"veristat/pkg/domain"
	dErrors "veristat/pkg/domain-errors"
	"veristat/pkg/platform/sentinel"
)

// Snapshot is the resolved view of a query at one point in time: every
// client whose status is known so far, keyed by ID. Clients still in flight
// are simply absent.
type Snapshot map[domain.ClientID]models.StatusInfo

// BatchRequester is the slice of the coordinator the facade needs.
type BatchRequester interface {
	Request(ids ...domain.ClientID)
	Subscribe() (<-chan coordinator.Update, func())
}

// Service answers status queries. Reads come from the cache where fresh;
// everything else goes through the batch pipeline.
type Service struct {
	cache  store.Cache
	batch  BatchRequester
	logger *slog.Logger
}

// New constructs the facade.
func New(cache store.Cache, batch BatchRequester, logger *slog.Logger) *Service {
	return &Service{cache: cache, batch: batch, logger: logger}
}

// RequestMany resolves a set of clients and streams snapshots as results
// arrive. The first snapshot carries whatever is already fresh in the cache;
// each subsequent one adds a newly resolved client. The channel closes once
// every requested client is resolved, or when ctx is cancelled.
//
// The subscription is taken before the request is queued, so no update can
// fall between the two.
func (s *Service) RequestMany(ctx context.Context, ids []domain.ClientID) (<-chan Snapshot, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no client ids requested")
	}

	updates, cancelSub := s.batch.Subscribe()

	resolved, err := s.cache.Snapshot(ctx, ids)
	if err != nil {
		cancelSub()
		return nil, fmt.Errorf("read cached statuses: %w", err)
	}

	remaining := make(map[domain.ClientID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := resolved[id]; !ok {
			remaining[id] = struct{}{}
		}
	}

	out := make(chan Snapshot, 1)
	out <- clone(resolved)

	if len(remaining) == 0 {
		cancelSub()
		close(out)
		return out, nil
	}

	s.batch.Request(ids...)

	go func() {
		defer cancelSub()
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				if _, wanted := remaining[u.ClientID]; !wanted {
					continue
				}
				delete(remaining, u.ClientID)
				resolved[u.ClientID] = u.Status

				select {
				case out <- clone(resolved):
				case <-ctx.Done():
					return
				}
				if len(remaining) == 0 {
					return
				}
			}
		}
	}()
	return out, nil
}

// RequestOne resolves a single client. A fresh cache entry is returned
// immediately without touching the pipeline; otherwise the call blocks until
// the batch resolves the client or ctx is cancelled.
//
// The subscription is taken before the freshness check: a resolution landing
// between the two is then visible either in the cache or on the channel. The
// reverse order can miss it entirely, because the next batch filters the
// now-fresh entry without broadcasting.
func (s *Service) RequestOne(ctx context.Context, id domain.ClientID) (models.StatusInfo, error) {
	updates, cancelSub := s.batch.Subscribe()
	defer cancelSub()

	if status, err := s.cache.Get(ctx, id); err == nil {
		return status, nil
	}
	s.batch.Request(id)

	for {
		select {
		case <-ctx.Done():
			return models.StatusInfo{}, fmt.Errorf("wait for status of client %s: %w", id, ctx.Err())
		case u, ok := <-updates:
			if !ok {
				return models.StatusInfo{}, fmt.Errorf("status pipeline stopped: %w", sentinel.ErrUnavailable)
			}
			if u.ClientID == id {
				return u.Status, nil
			}
		}
	}
}

// SubscribeToUpdates exposes the raw update stream for in-process consumers
// that want every resolution, not just those of one query. The cancel func
// must be called exactly once.
func (s *Service) SubscribeToUpdates() (<-chan coordinator.Update, func()) {
	return s.batch.Subscribe()
}

// ReadCached returns the fresh cached subset of the given clients without
// triggering any fetches. Absent and stale clients are simply missing from
// the result.
func (s *Service) ReadCached(ctx context.Context, ids []domain.ClientID) (Snapshot, error) {
	snap, err := s.cache.Snapshot(ctx, dedupe(ids))
	if err != nil {
		return nil, fmt.Errorf("read cached statuses: %w", err)
	}
	return snap, nil
}

// Invalidate evicts one client so the next request re-fetches.
func (s *Service) Invalidate(ctx context.Context, id domain.ClientID) error {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		return fmt.Errorf("invalidate status of client %s: %w", id, err)
	}
	s.logger.Info("status invalidated", "client_id", id)
	return nil
}

// InvalidateAll evicts every cached status.
func (s *Service) InvalidateAll(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("invalidate status cache: %w", err)
	}
	s.logger.Info("status cache cleared")
	return nil
}

// IsVerified reports whether the client is fully verified, resolving the
// status first if needed. Error statuses count as not verified.
func (s *Service) IsVerified(ctx context.Context, id domain.ClientID) (bool, error) {
	status, err := s.RequestOne(ctx, id)
	if err != nil {
		return false, err
	}
	return status.IsVerified(), nil
}

func dedupe(ids []domain.ClientID) []domain.ClientID {
	seen := make(map[domain.ClientID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func clone(s Snapshot) Snapshot {
	out := make(Snapshot, len(s))
	for id, status := range s {
		out[id] = status
	}
	return out
}
