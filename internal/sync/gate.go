package sync

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Gate bounds simultaneous portal fetches and enforces a minimum spacing
// between requests. Admission is FIFO-ish; completion order across workers
// is not guaranteed, which is fine because each entity's merge only touches
// its own rows.
type Gate struct {
	permits chan struct{}
	limiter *rate.Limiter
}

// NewGate creates a gate admitting at most maxConcurrent holders, with at
// least minInterval between admissions when minInterval > 0.
func NewGate(maxConcurrent int, minInterval time.Duration) *Gate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	g := &Gate{permits: make(chan struct{}, maxConcurrent)}
	if minInterval > 0 {
		g.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return g
}

// Acquire blocks until a permit and the pacing window are available. The
// returned release function is idempotent; callers defer it so the permit
// is returned on every exit path, including panics in the task.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	select {
	case g.permits <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			<-g.permits
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-g.permits })
	}, nil
}

// InFlight number of currently held permits.
func (g *Gate) InFlight() int {
	return len(g.permits)
}
