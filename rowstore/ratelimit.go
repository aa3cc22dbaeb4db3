package rowstore

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedStore wraps a Store and throttles every call through a shared
// token bucket. Spreadsheet backends enforce per-minute API quotas; wrapping
// the store keeps quota handling out of the cache itself.
type RateLimitedStore struct {
	inner   Store
	limiter *rate.Limiter
}

// NewRateLimitedStore creates a new RateLimitedStore.
// If limiter is nil, calls pass through unthrottled.
func NewRateLimitedStore(inner Store, limiter *rate.Limiter) *RateLimitedStore {
	return &RateLimitedStore{inner: inner, limiter: limiter}
}

func (s *RateLimitedStore) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// ReadAll waits for quota, then delegates.
func (s *RateLimitedStore) ReadAll(ctx context.Context) ([]Row, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.ReadAll(ctx)
}

// AppendRow waits for quota, then delegates.
func (s *RateLimitedStore) AppendRow(ctx context.Context, row Row) (int, error) {
	if err := s.wait(ctx); err != nil {
		return 0, err
	}
	return s.inner.AppendRow(ctx, row)
}

// WriteCell waits for quota, then delegates.
func (s *RateLimitedStore) WriteCell(ctx context.Context, pos, col int, value string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.inner.WriteCell(ctx, pos, col, value)
}
