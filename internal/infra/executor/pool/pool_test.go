package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRunReturnsResult(t *testing.T) {
	p := New(2, 4, zerolog.Nop())
	defer p.Close()

	v, err := Run(context.Background(), p, func(ctx context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, v)

	_, err = Run(context.Background(), p, func(ctx context.Context) (string, error) { return "", errors.New("boom") })
	require.EqualError(t, err, "boom")
}

func TestRunNilPoolInline(t *testing.T) {
	v, err := Run(context.Background(), nil, func(ctx context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestRunBoundsConcurrency(t *testing.T) {
	p := New(2, 16, zerolog.Nop())
	defer p.Close()

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Run(context.Background(), p, func(ctx context.Context) (struct{}, error) {
				n := active.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				active.Add(-1)
				return struct{}{}, nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunCancelledContext(t *testing.T) {
	p := New(1, 0, zerolog.Nop())
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var called atomic.Bool
	_, err := Run(ctx, p, func(ctx context.Context) (int, error) {
		called.Store(true)
		return 1, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called.Load())
}

func TestRunAfterClose(t *testing.T) {
	p := New(1, 1, zerolog.Nop())
	p.Close()
	p.Close()

	_, err := Run(context.Background(), p, func(ctx context.Context) (int, error) { return 1, nil })
	require.ErrorIs(t, err, ErrClosed)
}
