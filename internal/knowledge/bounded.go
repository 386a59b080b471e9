package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// DefaultTimeout is the per-call deadline when none is configured.
const DefaultTimeout = 30 * time.Second

// Bounded limits concurrent calls to a Service and applies a per-call
// timeout. Callers block while the limit is reached.
type Bounded struct {
	next    Service
	sem     *semaphore.Weighted
	timeout time.Duration
}

func NewBounded(next Service, maxInFlight int, timeout time.Duration) *Bounded {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bounded{
		next:    next,
		sem:     semaphore.NewWeighted(int64(maxInFlight)),
		timeout: timeout,
	}
}

// Verify returns ErrServiceTimeout when the call outlives its deadline.
func (b *Bounded) Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return VerifyResponse{}, err
	}
	defer b.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.next.Verify(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return VerifyResponse{}, fmt.Errorf("%w: %s after %s", ErrServiceTimeout, req.CandidateCallee, b.timeout)
		}
		return VerifyResponse{}, err
	}
	return resp, nil
}
