package llm

import (
	"context"
	"sync"
	"time"
)

// pacer enforces a minimum gap between the end of one provider call and the
// start of the next, across every provider of a dispatcher. The gate slot is
// held from the wait until the call returns, so the check-wait-call-record
// sequence runs as one unit and concurrent callers queue behind it.
type pacer struct {
	interval time.Duration
	gate     chan struct{}

	mu   sync.Mutex
	last time.Time
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{
		interval: interval,
		gate:     make(chan struct{}, 1),
	}
}

// acquire blocks until the caller may start a call. The returned release must
// be called once the call has returned; it records the return time.
func (p *pacer) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case p.gate <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	last := p.last
	p.mu.Unlock()

	if !last.IsZero() {
		if wait := p.interval - time.Since(last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				<-p.gate
				return nil, ctx.Err()
			}
		}
	}

	return func() {
		p.mu.Lock()
		p.last = time.Now()
		p.mu.Unlock()
		<-p.gate
	}, nil
}
