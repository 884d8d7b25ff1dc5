package oracle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/quorum/internal/logging"
	"github.com/aretw0/quorum/pkg/domain"
	"github.com/aretw0/quorum/pkg/ports"
	"github.com/cenkalti/backoff/v4"
)

// RetryOption configures WithRetry.
type RetryOption func(*retrying)

// RetryInterval sets the first backoff interval.
func RetryInterval(d time.Duration) RetryOption {
	return func(r *retrying) {
		r.initial = d
	}
}

// RetryLogger logs every failed attempt at Warn.
func RetryLogger(logger *slog.Logger) RetryOption {
	return func(r *retrying) {
		if logger != nil {
			r.logger = logger
		}
	}
}

type retrying struct {
	next    ports.RiskOracle
	retries uint64
	initial time.Duration
	logger  *slog.Logger
}

// WithRetry retries failed evaluations with exponential backoff, up to
// retries extra attempts. Cancellation and deadline errors are returned at once.
func WithRetry(o ports.RiskOracle, retries uint64, opts ...RetryOption) ports.RiskOracle {
	r := &retrying{
		next:    o,
		retries: retries,
		initial: 200 * time.Millisecond,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *retrying) Evaluate(ctx context.Context, req ports.RiskRequest) (domain.RiskAssessment, error) {
	var (
		out     domain.RiskAssessment
		attempt int
	)
	op := func() error {
		attempt++
		a, err := r.next.Evaluate(ctx, req)
		if err == nil {
			out = a
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		r.logger.WarnContext(ctx, "oracle attempt failed",
			"node_id", req.NodeID,
			"provider", req.Provider,
			"attempt", attempt,
			"error", err,
		)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, r.retries), ctx))
	return out, err
}
