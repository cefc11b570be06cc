// Package poller наблюдает за фоновой задачей генерации до терминального
// состояния. Цикл опроса - явная машина состояний Idle/Polling/Stopped,
// управляемая таймером: свойства "остановиться ровно один раз" и
// "присоединиться после перезагрузки" обеспечиваются переходами состояний,
// а не цепочкой рекурсивных таймаутов.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"film-generator/internal/execution"
	"film-generator/internal/models"
)

// State - состояние поллера.
type State int

const (
	// StateIdle - привязки к задаче нет; можно начинать новый опрос.
	StateIdle State = iota
	// StatePolling - идет опрос привязанной задачи.
	StatePolling
	// StateStopped - опрос остановлен явно (Stop или отмена).
	StateStopped
)

// DefaultInterval - интервал между опросами статуса.
const DefaultInterval = 2500 * time.Millisecond

// DefaultStuckThreshold - порог, после которого задача в pending с нулевым
// прогрессом считается зависшей. Предупреждение не останавливает опрос.
const DefaultStuckThreshold = 30 * time.Second

// Hooks - callbacks наблюдателя. Любой из них может быть nil.
type Hooks struct {
	// OnTick вызывается на каждом успешном опросе со свежим снапшотом.
	OnTick func(job models.Job)
	// OnStuck вызывается один раз, если задача подозрительно долго
	// остается pending с нулевым прогрессом. Не фатально.
	OnStuck func(jobID string)
	// OnPartialProgress вызывается, пока задача processing и часть
	// подработ уже завершена - чтобы частичные результаты стали видимы
	// до завершения всей задачи.
	OnPartialProgress func(job models.Job)
	// OnTerminal вызывается ровно один раз при достижении терминального
	// статуса; после него привязка к задаче освобождена.
	OnTerminal func(job models.Job)
}

// Config содержит настройки поллера.
type Config struct {
	Interval       time.Duration
	StuckThreshold time.Duration
}

// Poller опрашивает сервис исполнения по одной задаче за раз.
// Привязка job-id принадлежит ровно одному оркестратору.
type Poller struct {
	logger *zap.Logger
	client execution.Client

	interval       time.Duration
	stuckThreshold time.Duration

	mu         sync.Mutex
	state      State
	jobID      string
	snapshot   models.Job
	hooks      Hooks
	cancel     context.CancelFunc
	startedAt  time.Time
	stuckFired bool
}

// New создает поллер. Нулевые поля конфига заменяются значениями по умолчанию.
func New(logger *zap.Logger, client execution.Client, cfg Config) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	stuckThreshold := cfg.StuckThreshold
	if stuckThreshold <= 0 {
		stuckThreshold = DefaultStuckThreshold
	}
	return &Poller{
		logger:         logger.Named("JobPoller"),
		client:         client,
		interval:       interval,
		stuckThreshold: stuckThreshold,
		state:          StateIdle,
	}
}

// Start привязывает поллер к задаче и запускает цикл опроса: немедленный
// первый запрос статуса, затем тики по фиксированному интервалу.
// Повторный Start при активном опросе - ошибка: привязка эксклюзивна.
func (p *Poller) Start(ctx context.Context, jobID string, hooks Hooks) error {
	p.mu.Lock()
	if p.state == StatePolling {
		p.mu.Unlock()
		return models.ErrJobAlreadyActive
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.state = StatePolling
	p.jobID = jobID
	p.hooks = hooks
	p.cancel = cancel
	p.startedAt = time.Now()
	p.stuckFired = false
	p.snapshot = models.Job{ID: jobID, Status: models.JobStatusPending}
	p.mu.Unlock()

	p.logger.Info("Polling started", zap.String("jobID", jobID))

	go p.loop(loopCtx, jobID)
	return nil
}

// Stop останавливает опрос и освобождает привязку. Идемпотентен:
// повторный вызов и вызов после терминального тика - no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.state != StatePolling {
		p.mu.Unlock()
		return
	}
	p.state = StateStopped
	jobID := p.jobID
	p.jobID = ""
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.logger.Info("Polling stopped", zap.String("jobID", jobID))
}

// State возвращает текущее состояние машины.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// JobID возвращает привязанную задачу, пустая строка - привязки нет.
func (p *Poller) JobID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobID
}

// Snapshot возвращает последний наблюдаемый снапшот задачи.
func (p *Poller) Snapshot() models.Job {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

func (p *Poller) loop(ctx context.Context, jobID string) {
	// Немедленный первый опрос до первого тика таймера.
	if terminal := p.tick(ctx, jobID); terminal {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if terminal := p.tick(ctx, jobID); terminal {
				return
			}
		}
	}
}

// tick выполняет один опрос статуса. Возвращает true, если опрос завершен
// (терминальный статус либо привязка уже освобождена).
func (p *Poller) tick(ctx context.Context, jobID string) bool {
	job, err := p.client.Status(ctx, jobID)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		// Ошибка одного тика не прекращает наблюдение: следующий тик повторит.
		p.logger.Warn("Status fetch failed, will retry on next tick",
			zap.String("jobID", jobID), zap.Error(err))
		return false
	}

	p.mu.Lock()
	if p.state != StatePolling || p.jobID != jobID {
		// Поздний тик после Stop или после терминального перехода - no-op.
		// Это и дает свойство "терминальная обработка ровно один раз".
		p.mu.Unlock()
		return true
	}

	// Прогресс не убывает, пока задача processing: регрессию от сервиса
	// зажимаем к последнему наблюдаемому значению.
	if job.Status == models.JobStatusProcessing && job.Progress < p.snapshot.Progress {
		job.Progress = p.snapshot.Progress
	}
	p.snapshot = job
	hooks := p.hooks

	fireStuck := false
	if !p.stuckFired &&
		job.Status == models.JobStatusPending &&
		job.Progress == 0 &&
		time.Since(p.startedAt) > p.stuckThreshold {
		p.stuckFired = true
		fireStuck = true
	}

	terminal := job.Status.IsTerminal()
	var cancel context.CancelFunc
	if terminal {
		// Освобождаем привязку: новая задача может быть отправлена.
		// Контекст цикла отменяется явно, иначе он живет до конца
		// родительского контекста оркестратора.
		p.state = StateIdle
		p.jobID = ""
		cancel = p.cancel
		p.cancel = nil
	}
	p.mu.Unlock()

	if hooks.OnTick != nil {
		hooks.OnTick(job)
	}
	if fireStuck {
		p.logger.Warn("Job appears stuck: still pending at zero progress",
			zap.String("jobID", jobID), zap.Duration("threshold", p.stuckThreshold))
		if hooks.OnStuck != nil {
			hooks.OnStuck(jobID)
		}
	}
	if !terminal && job.Status == models.JobStatusProcessing && job.CompletedUnits > 0 && hooks.OnPartialProgress != nil {
		hooks.OnPartialProgress(job)
	}
	if terminal {
		p.logger.Info("Job reached terminal status",
			zap.String("jobID", jobID), zap.String("status", string(job.Status)))
		if hooks.OnTerminal != nil {
			hooks.OnTerminal(job)
		}
		if cancel != nil {
			cancel()
		}
	}
	return terminal
}
