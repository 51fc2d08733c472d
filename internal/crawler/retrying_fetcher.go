package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sermon-harvester/internal/metrics"
)

// RetryingFetcher waits for the politeness limiter before every attempt and
// retries transient failures according to its policy.
type RetryingFetcher struct {
	Fetcher Fetcher
	Policy  RetryPolicy
	Limiter Limiter
	Logger  *zap.Logger
}

// Fetch implements Fetcher.
func (f *RetryingFetcher) Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error) {
	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	for attempt := 1; ; attempt++ {
		if f.Limiter != nil {
			if err := f.Limiter.Wait(ctx, request.URL); err != nil {
				return FetchResponse{}, err
			}
		}
		resp, err := f.Fetcher.Fetch(ctx, request)
		if err == nil {
			metrics.ObservePage(request.URL, "ok", len(resp.Body))
			return resp, nil
		}
		metrics.ObservePage(request.URL, statusLabel(err), 0)
		if f.Policy == nil || !f.Policy.ShouldRetry(err, attempt) {
			return resp, err
		}
		delay := f.Policy.Backoff(attempt - 1)
		logger.Debug("retrying fetch",
			zap.String("url", request.URL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))
		if err := sleep(ctx, delay); err != nil {
			return FetchResponse{}, err
		}
	}
}

func statusLabel(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("%d", statusErr.StatusCode)
	}
	return "error"
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry backoff: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
