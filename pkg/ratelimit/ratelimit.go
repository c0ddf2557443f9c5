package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Lock spaces out calls so that two consecutive calls start at least the
// configured duration apart.
type Lock interface {
	// Lock blocks until the next call may start or ctx is done. The returned
	// func must be called when the call finishes.
	Lock(ctx context.Context) func()
}

type lock struct {
	limiter *rate.Limiter
}

// New returns a lock that spaces calls by wait. A zero wait never blocks.
func New(wait time.Duration) Lock {
	limit := rate.Inf
	if wait > 0 {
		limit = rate.Every(wait)
	}
	return &lock{limiter: rate.NewLimiter(limit, 1)}
}

func (l *lock) Lock(ctx context.Context) func() {
	// A canceled wait is reported by the request built on the same ctx
	_ = l.limiter.Wait(ctx)
	return func() {}
}
