package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"film-generator/internal/models"
	"film-generator/pkg/retry"
)

// recordingSleeper собирает задержки вместо реального ожидания.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func TestExecutor_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("Success after two transient failures", func(t *testing.T) {
		sleeper := &recordingSleeper{}
		exec := retry.NewWithSleeper(retry.Config{MaxRetries: 3, InitialDelay: 2 * time.Second}, sleeper.sleep)

		calls := 0
		err := exec.Do(ctx, func(ctx context.Context) error {
			calls++
			if calls <= 2 {
				return fmt.Errorf("%w: connection aborted", models.ErrTransient)
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		// Суммарная задержка = initialDelay*(2^0 + 2^1)
		require.Len(t, sleeper.delays, 2)
		assert.Equal(t, 2*time.Second, sleeper.delays[0])
		assert.Equal(t, 4*time.Second, sleeper.delays[1])
	})

	t.Run("Non-transient failure returns immediately", func(t *testing.T) {
		sleeper := &recordingSleeper{}
		exec := retry.NewWithSleeper(retry.Config{MaxRetries: 3, InitialDelay: time.Second}, sleeper.sleep)

		businessErr := errors.New("validation error")
		calls := 0
		err := exec.Do(ctx, func(ctx context.Context) error {
			calls++
			return businessErr
		})

		assert.ErrorIs(t, err, businessErr)
		assert.Equal(t, 1, calls)
		assert.Empty(t, sleeper.delays, "непереходящая ошибка не должна порождать повторы")
	})

	t.Run("Exhausted retries propagate last transient error", func(t *testing.T) {
		sleeper := &recordingSleeper{}
		exec := retry.NewWithSleeper(retry.Config{MaxRetries: 3, InitialDelay: time.Second}, sleeper.sleep)

		calls := 0
		err := exec.Do(ctx, func(ctx context.Context) error {
			calls++
			return fmt.Errorf("%w: timeout #%d", models.ErrTransient, calls)
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrTransient)
		assert.Contains(t, err.Error(), "timeout #3")
		assert.Equal(t, 3, calls)
		assert.Len(t, sleeper.delays, 2)
	})

	t.Run("Context cancellation aborts backoff", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		exec := retry.NewWithSleeper(retry.Config{MaxRetries: 3, InitialDelay: time.Second},
			func(ctx context.Context, d time.Duration) error {
				cancel()
				return ctx.Err()
			})

		err := exec.Do(cancelCtx, func(ctx context.Context) error {
			return fmt.Errorf("%w: flaky", models.ErrTransient)
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrTransient)
		assert.Contains(t, err.Error(), "aborted during backoff")
	})
}

func TestDoValue(t *testing.T) {
	ctx := context.Background()
	sleeper := &recordingSleeper{}
	exec := retry.NewWithSleeper(retry.Config{MaxRetries: 3, InitialDelay: time.Second}, sleeper.sleep)

	calls := 0
	got, err := retry.DoValue(ctx, exec, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", fmt.Errorf("%w: blip", models.ErrTransient)
		}
		return "job-42", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "job-42", got)
	assert.Equal(t, 2, calls)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, retry.IsTransient(fmt.Errorf("%w: boom", models.ErrTransient)))
	assert.True(t, retry.IsTransient(errors.New("read tcp: connection reset by peer")))
	assert.False(t, retry.IsTransient(models.ErrInsufficientCredits))
	assert.False(t, retry.IsTransient(nil))
}
