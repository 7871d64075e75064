package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRetryable = errors.New("retryable")
var errTerminal = errors.New("terminal")

func isRetryable(err error) bool {
	return errors.Is(err, errRetryable)
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Fixed(3, time.Millisecond, isRetryable), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Fixed(3, time.Millisecond, isRetryable), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errRetryable
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Fixed(3, time.Millisecond, isRetryable), func(ctx context.Context) error {
		calls++
		return errRetryable
	})

	require.ErrorIs(t, err, errRetryable)
	assert.Equal(t, 3, calls)
}

func TestDo_TerminalErrorStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Fixed(3, time.Millisecond, isRetryable), func(ctx context.Context) error {
		calls++
		return errTerminal
	})

	require.ErrorIs(t, err, errTerminal)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelInterruptsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	policy := Fixed(5, time.Minute, isRetryable)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Do(ctx, policy, func(ctx context.Context) error {
			calls++
			return errRetryable
		})
	}()

	// Первая попытка завершилась, Do спит минуту — отмена будит его
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("Do не прервался по отмене контекста")
	}
}

func TestDo_ExponentialBackoffGrows(t *testing.T) {
	var gaps []time.Duration
	last := time.Now()

	calls := 0
	policy := Exponential(3, 10*time.Millisecond, 2.0, isRetryable)
	_ = Do(context.Background(), policy, func(ctx context.Context) error {
		now := time.Now()
		if calls > 0 {
			gaps = append(gaps, now.Sub(last))
		}
		last = now
		calls++
		return errRetryable
	})

	require.Len(t, gaps, 2)
	// Вторая пауза примерно вдвое длиннее первой
	assert.GreaterOrEqual(t, gaps[0], 10*time.Millisecond)
	assert.GreaterOrEqual(t, gaps[1], 20*time.Millisecond)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 0}, func(ctx context.Context) error {
		calls++
		return errTerminal
	})

	require.ErrorIs(t, err, errTerminal)
	assert.Equal(t, 1, calls)
}
