package poller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"film-generator/internal/execution/mocks"
	"film-generator/internal/models"
)

// Белые тесты машины тиков: проверяем переходы напрямую, без цикла таймера.

func startBound(t *testing.T, p *Poller, jobID string, hooks Hooks) {
	t.Helper()
	p.mu.Lock()
	p.state = StatePolling
	p.jobID = jobID
	p.hooks = hooks
	p.startedAt = time.Now()
	p.snapshot = models.Job{ID: jobID, Status: models.JobStatusPending}
	p.mu.Unlock()
}

func TestTick_TwoRapidTerminalTicks(t *testing.T) {
	mockClient := new(mocks.Client)
	completed := models.Job{ID: "j1", Status: models.JobStatusCompleted, Progress: 100}
	mockClient.On("Status", mock.Anything, "j1").Return(completed, nil)

	p := New(zap.NewNop(), mockClient, Config{})

	terminalCount := 0
	startBound(t, p, "j1", Hooks{
		OnTerminal: func(models.Job) { terminalCount++ },
	})

	// Два одинаковых терминальных тика подряд: второй обязан быть no-op,
	// потому что первый уже освободил привязку.
	assert.True(t, p.tick(context.Background(), "j1"))
	assert.True(t, p.tick(context.Background(), "j1"))

	assert.Equal(t, 1, terminalCount)
	assert.Equal(t, StateIdle, p.State())
}

func TestTick_LateTickForCancelledJobIsNoop(t *testing.T) {
	mockClient := new(mocks.Client)
	completed := models.Job{ID: "j1", Status: models.JobStatusCompleted, Progress: 100}
	mockClient.On("Status", mock.Anything, "j1").Return(completed, nil)

	p := New(zap.NewNop(), mockClient, Config{})

	terminalCount := 0
	startBound(t, p, "j1", Hooks{
		OnTerminal: func(models.Job) { terminalCount++ },
	})

	// Локальная отмена уже случилась: привязка снята
	p.Stop()

	// Поздний терминальный тик отмененной, но еще выполнявшейся задачи
	assert.True(t, p.tick(context.Background(), "j1"))
	assert.Zero(t, terminalCount)
}

func TestTick_TerminalTickReleasesLoopContext(t *testing.T) {
	mockClient := new(mocks.Client)
	completed := models.Job{ID: "j1", Status: models.JobStatusCompleted, Progress: 100}
	mockClient.On("Status", mock.Anything, "j1").Return(completed, nil)

	p := New(zap.NewNop(), mockClient, Config{})
	startBound(t, p, "j1", Hooks{})

	// Родительский контекст долгоживущий: цикл обязан отменить свой
	// производный контекст сам, не дожидаясь остановки процесса.
	loopCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	assert.True(t, p.tick(context.Background(), "j1"))

	select {
	case <-loopCtx.Done():
	default:
		t.Fatal("контекст цикла должен быть отменен терминальным тиком")
	}
	p.mu.Lock()
	assert.Nil(t, p.cancel)
	p.mu.Unlock()
}

func TestTick_ProgressIsMonotoneWhileProcessing(t *testing.T) {
	mockClient := new(mocks.Client)
	mockClient.On("Status", mock.Anything, "j1").
		Return(models.Job{ID: "j1", Status: models.JobStatusProcessing, Progress: 60}, nil).Once()
	// Сервис вернул регрессию прогресса
	mockClient.On("Status", mock.Anything, "j1").
		Return(models.Job{ID: "j1", Status: models.JobStatusProcessing, Progress: 40}, nil).Once()

	p := New(zap.NewNop(), mockClient, Config{})
	startBound(t, p, "j1", Hooks{})

	require.False(t, p.tick(context.Background(), "j1"))
	assert.Equal(t, 60, p.Snapshot().Progress)

	require.False(t, p.tick(context.Background(), "j1"))
	assert.Equal(t, 60, p.Snapshot().Progress, "прогресс не должен уменьшаться")
}
