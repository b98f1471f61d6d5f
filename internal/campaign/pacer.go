package campaign

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer spaces outbound call attempts with a jittered delay. The delay keeps
// the telephony provider from rate-limiting or blocklisting the campaign
// number and gives the webhook pipeline of the previous call time to settle.
type Pacer struct {
	Min time.Duration
	Max time.Duration

	mu  sync.Mutex
	rnd *rand.Rand

	// sleep is swapped out in tests to avoid wall-clock waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer with the given jitter bounds.
func NewPacer(min, max time.Duration) *Pacer {
	if max < min {
		max = min
	}
	return &Pacer{
		Min:   min,
		Max:   max,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: sleepWithContext,
	}
}

// Delay picks the next inter-call delay within [Min, Max].
func (p *Pacer) Delay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Max == p.Min {
		return p.Min
	}
	return p.Min + time.Duration(p.rnd.Int63n(int64(p.Max-p.Min)))
}

// Wait blocks for one jittered delay or until the context is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.sleep(ctx, p.Delay())
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
