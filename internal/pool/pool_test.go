package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, New(0).Limit())
	assert.Equal(t, DefaultLimit, New(-3).Limit())
	assert.Equal(t, 3, New(3).Limit())
}

// TestGo_RespectsLimit verifies no more than Limit tasks run at once.
func TestGo_RespectsLimit(t *testing.T) {
	p := New(3)
	var inFlight, peak atomic.Int32

	err := p.Go(context.Background(), 20, func(context.Context, int) error {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

// TestGo_IndexedResults checks results land at their own index.
func TestGo_IndexedResults(t *testing.T) {
	results := make([]int, 50)
	err := New(7).Go(context.Background(), len(results), func(_ context.Context, i int) error {
		time.Sleep(time.Duration(50-i) * 50 * time.Microsecond)
		results[i] = i * i
		return nil
	})

	require.NoError(t, err)
	for i, v := range results {
		assert.Equal(t, i*i, v)
	}
}

func TestGo_FirstErrorCancelsRest(t *testing.T) {
	boom := errors.New("boom")
	var started atomic.Int32

	err := New(1).Go(context.Background(), 10, func(ctx context.Context, i int) error {
		started.Add(1)
		if i == 2 {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(3), started.Load())
}

func TestGo_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var started atomic.Int32
	err := New(2).Go(ctx, 5, func(context.Context, int) error {
		started.Add(1)
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, started.Load())
}

// TestEach_IsolatesFailures verifies every task runs even when some fail.
func TestEach_IsolatesFailures(t *testing.T) {
	var mu sync.Mutex
	ran := map[int]bool{}

	New(4).Each(context.Background(), 10, func(_ context.Context, i int) {
		mu.Lock()
		ran[i] = true
		mu.Unlock()
	}, nil)

	assert.Len(t, ran, 10)
}

func TestEach_SkipsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran, skipped atomic.Int32
	New(1).Each(ctx, 10, func(_ context.Context, i int) {
		ran.Add(1)
		if i == 3 {
			cancel()
		}
	}, func(_ int, err error) {
		assert.ErrorIs(t, err, context.Canceled)
		skipped.Add(1)
	})

	assert.Equal(t, int32(10), ran.Load()+skipped.Load())
	assert.GreaterOrEqual(t, skipped.Load(), int32(1))
}
