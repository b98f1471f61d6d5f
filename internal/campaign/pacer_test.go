package campaign

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerDelayWithinBounds(t *testing.T) {
	p := NewPacer(30*time.Second, 60*time.Second)

	for i := 0; i < 200; i++ {
		d := p.Delay()
		assert.GreaterOrEqual(t, d, 30*time.Second)
		assert.Less(t, d, 60*time.Second)
	}
}

func TestPacerDegenerateBounds(t *testing.T) {
	p := NewPacer(10*time.Second, 10*time.Second)
	assert.Equal(t, 10*time.Second, p.Delay())

	// Max below min collapses to min.
	p = NewPacer(10*time.Second, 5*time.Second)
	assert.Equal(t, 10*time.Second, p.Delay())
}

func TestPacerWaitUsesInjectedSleep(t *testing.T) {
	p := NewPacer(30*time.Second, 60*time.Second)

	var slept time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, slept, 30*time.Second)
	assert.Less(t, slept, 60*time.Second)
}

func TestPacerWaitHonorsCancel(t *testing.T) {
	p := NewPacer(time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
