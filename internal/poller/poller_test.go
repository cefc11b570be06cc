package poller_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"film-generator/internal/execution/mocks"
	"film-generator/internal/models"
	"film-generator/internal/poller"
)

const testJobID = "job-1"

func newTestPoller(client *mocks.Client, stuckThreshold time.Duration) *poller.Poller {
	return poller.New(zap.NewNop(), client, poller.Config{
		Interval:       5 * time.Millisecond,
		StuckThreshold: stuckThreshold,
	})
}

func jobWith(status models.JobStatus, progress, completedUnits int) models.Job {
	return models.Job{
		ID:             testJobID,
		Kind:           models.JobKindImage,
		Status:         status,
		Progress:       progress,
		TotalUnits:     5,
		CompletedUnits: completedUnits,
	}
}

func TestPoller_TerminalHandling(t *testing.T) {
	t.Run("OnTerminal fires exactly once and releases the binding", func(t *testing.T) {
		mockClient := new(mocks.Client)
		// Первый тик - processing, дальше всегда completed
		mockClient.On("Status", mock.Anything, testJobID).Return(jobWith(models.JobStatusProcessing, 40, 2), nil).Once()
		mockClient.On("Status", mock.Anything, testJobID).Return(jobWith(models.JobStatusCompleted, 100, 5), nil)

		p := newTestPoller(mockClient, time.Minute)

		var terminalCount int64
		err := p.Start(context.Background(), testJobID, poller.Hooks{
			OnTerminal: func(job models.Job) {
				atomic.AddInt64(&terminalCount, 1)
				assert.Equal(t, models.JobStatusCompleted, job.Status)
			},
		})
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			return atomic.LoadInt64(&terminalCount) == 1
		}, time.Second, 2*time.Millisecond)

		// Даем циклу шанс на лишние тики и убеждаемся, что их не было
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, int64(1), atomic.LoadInt64(&terminalCount))

		// Привязка освобождена: можно наблюдать следующую задачу
		assert.Equal(t, poller.StateIdle, p.State())
		assert.Empty(t, p.JobID())
	})

	t.Run("Fetch error on a tick does not stop polling", func(t *testing.T) {
		mockClient := new(mocks.Client)
		mockClient.On("Status", mock.Anything, testJobID).Return(models.Job{}, errors.New("network blip")).Once()
		mockClient.On("Status", mock.Anything, testJobID).Return(jobWith(models.JobStatusCompleted, 100, 5), nil)

		p := newTestPoller(mockClient, time.Minute)

		var terminalCount int64
		require.NoError(t, p.Start(context.Background(), testJobID, poller.Hooks{
			OnTerminal: func(models.Job) { atomic.AddInt64(&terminalCount, 1) },
		}))

		assert.Eventually(t, func() bool {
			return atomic.LoadInt64(&terminalCount) == 1
		}, time.Second, 2*time.Millisecond)
	})
}

func TestPoller_StuckDetection(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("Status", mock.Anything, testJobID).Return(jobWith(models.JobStatusPending, 0, 0), nil)

	p := newTestPoller(mockClient, 20*time.Millisecond)

	var stuckCount, tickCount int64
	require.NoError(t, p.Start(context.Background(), testJobID, poller.Hooks{
		OnTick:  func(models.Job) { atomic.AddInt64(&tickCount, 1) },
		OnStuck: func(jobID string) { atomic.AddInt64(&stuckCount, 1) },
	}))
	defer p.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&stuckCount) == 1
	}, time.Second, 2*time.Millisecond)

	// Предупреждение не останавливает опрос и не повторяется
	ticksAtStuck := atomic.LoadInt64(&tickCount)
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&tickCount) > ticksAtStuck
	}, time.Second, 2*time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&stuckCount))
}

func TestPoller_PartialProgress(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("Status", mock.Anything, testJobID).Return(jobWith(models.JobStatusProcessing, 40, 2), nil).Once()
	mockClient.On("Status", mock.Anything, testJobID).Return(jobWith(models.JobStatusCompleted, 100, 5), nil)

	p := newTestPoller(mockClient, time.Minute)

	var partial atomic.Value
	var terminalCount int64
	require.NoError(t, p.Start(context.Background(), testJobID, poller.Hooks{
		OnPartialProgress: func(job models.Job) { partial.Store(job) },
		OnTerminal:        func(models.Job) { atomic.AddInt64(&terminalCount, 1) },
	}))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&terminalCount) == 1
	}, time.Second, 2*time.Millisecond)

	job, ok := partial.Load().(models.Job)
	require.True(t, ok, "частичный прогресс должен был вызвать refresh-callback")
	assert.Equal(t, 2, job.CompletedUnits)
	assert.Equal(t, models.JobStatusProcessing, job.Status)
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("Status", mock.Anything, testJobID).Return(jobWith(models.JobStatusProcessing, 10, 0), nil)

	p := newTestPoller(mockClient, time.Minute)

	var terminalCount int64
	require.NoError(t, p.Start(context.Background(), testJobID, poller.Hooks{
		OnTerminal: func(models.Job) { atomic.AddInt64(&terminalCount, 1) },
	}))

	p.Stop()
	p.Stop() // повторный Stop - no-op

	assert.Equal(t, poller.StateStopped, p.State())
	assert.Empty(t, p.JobID())

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt64(&terminalCount), "после Stop терминальная обработка не должна срабатывать")
}

func TestPoller_RestartAfterTerminal(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("Status", mock.Anything, testJobID).Return(jobWith(models.JobStatusCompleted, 100, 5), nil)
	mockClient.On("Status", mock.Anything, "job-2").Return(models.Job{ID: "job-2", Status: models.JobStatusCompleted, Progress: 100}, nil)

	p := newTestPoller(mockClient, time.Minute)

	var firstDone int64
	require.NoError(t, p.Start(context.Background(), testJobID, poller.Hooks{
		OnTerminal: func(models.Job) { atomic.AddInt64(&firstDone, 1) },
	}))
	assert.Eventually(t, func() bool { return atomic.LoadInt64(&firstDone) == 1 }, time.Second, 2*time.Millisecond)

	// Привязка освобождена - новая задача принимается без ошибок
	var secondDone int64
	require.NoError(t, p.Start(context.Background(), "job-2", poller.Hooks{
		OnTerminal: func(models.Job) { atomic.AddInt64(&secondDone, 1) },
	}))
	assert.Eventually(t, func() bool { return atomic.LoadInt64(&secondDone) == 1 }, time.Second, 2*time.Millisecond)
}

func TestPoller_SecondStartWhilePollingRejected(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("Status", mock.Anything, testJobID).Return(jobWith(models.JobStatusProcessing, 10, 0), nil)

	p := newTestPoller(mockClient, time.Minute)
	require.NoError(t, p.Start(context.Background(), testJobID, poller.Hooks{}))
	defer p.Stop()

	err := p.Start(context.Background(), "job-2", poller.Hooks{})
	assert.ErrorIs(t, err, models.ErrJobAlreadyActive)
}
