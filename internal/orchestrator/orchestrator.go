// Package orchestrator отправляет задачи генерации в сервис исполнения и
// сопровождает их до терминального состояния. Конфликт отправки (эквивалентная
// задача уже выполняется) разрешается присоединением к существующей задаче,
// а не ошибкой пользователю.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"film-generator/internal/credit"
	"film-generator/internal/execution"
	"film-generator/internal/models"
	"film-generator/internal/poller"
	"film-generator/internal/repository"
	"film-generator/internal/store"
)

// Notifier - поверхность уведомлений пользователя. Fire-and-forget:
// ошибки доставки логируются реализацией и не влияют на оркестрацию.
type Notifier interface {
	Notify(ctx context.Context, notification models.UserNotification)
}

// JobHandle - привязка к отправленной или подхваченной задаче.
type JobHandle struct {
	JobID string
	Kind  models.JobKind
	// Attached == true означает, что отправка разрешилась присоединением
	// к уже выполнявшейся задаче (ответ 409 сервиса исполнения).
	Attached bool
}

// SubmitParams - параметры отправки задачи генерации.
type SubmitParams struct {
	Kind    models.JobKind
	Payload models.GenerationPayload
	// CostEstimate считает вызывающий: цена за единицу * количество единиц.
	CostEstimate      int64
	HasOwnCredentials bool
}

// SubmitOutcome - результат отправки.
type SubmitOutcome struct {
	Handle *JobHandle
	// NeedsOwnCredentials == true: кредитов платформы недостаточно, задача
	// не отправлена; вызывающему предлагается указать собственные учетные
	// данные и повторить отправку с SkipCreditCheck.
	NeedsOwnCredentials bool
}

// Config содержит настройки оркестратора.
type Config struct {
	Poller poller.Config
}

// Orchestrator управляет задачами генерации одного проекта.
// Инвариант: не более одной активной задачи каждого типа на экземпляр;
// привязка job-id к поллеру принадлежит только этому экземпляру.
type Orchestrator struct {
	logger    *zap.Logger
	client    execution.Client
	gate      *credit.Gate
	state     *store.ProjectState
	artifacts repository.ArtifactRepository
	notifier  Notifier

	// baseCtx - контекст жизни оркестратора, а не HTTP-запроса: опрос и
	// терминальная обработка продолжаются после того, как ответ на submit
	// уже отправлен клиенту.
	baseCtx context.Context

	projectID uuid.UUID
	accountID uuid.UUID
	userID    uuid.UUID

	mu      sync.Mutex
	pollers map[models.JobKind]*poller.Poller
	bound   map[models.JobKind]string
	// pending резервирует тип задачи между проверкой привязки и фактическим
	// bind: параллельная отправка того же типа не должна пройти проверку.
	pending map[models.JobKind]struct{}

	pollerCfg poller.Config
}

// New создает оркестратор для проекта. ctx задает время жизни фоновых
// циклов опроса; nil означает context.Background().
func New(
	ctx context.Context,
	logger *zap.Logger,
	client execution.Client,
	gate *credit.Gate,
	state *store.ProjectState,
	artifacts repository.ArtifactRepository,
	notifier Notifier,
	projectID, accountID, userID uuid.UUID,
	cfg Config,
) *Orchestrator {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Orchestrator{
		logger:    logger.Named("Orchestrator").With(zap.String("projectID", projectID.String())),
		client:    client,
		gate:      gate,
		state:     state,
		artifacts: artifacts,
		notifier:  notifier,
		baseCtx:   ctx,
		projectID: projectID,
		accountID: accountID,
		userID:    userID,
		pollers:   make(map[models.JobKind]*poller.Poller),
		bound:     make(map[models.JobKind]string),
		pending:   make(map[models.JobKind]struct{}),
		pollerCfg: cfg.Poller,
	}
}

// Submit отправляет задачу генерации, предварительно пройдя кредитный гейт.
// Повторная отправка при уже привязанной задаче того же типа - локальный
// no-op с предупреждением, второй отправки не происходит.
func (o *Orchestrator) Submit(ctx context.Context, params SubmitParams) (SubmitOutcome, error) {
	log := o.logger.With(zap.String("kind", string(params.Kind)))

	o.mu.Lock()
	if jobID, ok := o.bound[params.Kind]; ok {
		o.mu.Unlock()
		log.Warn("Submit ignored: a job of this kind is already bound", zap.String("jobID", jobID))
		return SubmitOutcome{}, models.ErrJobAlreadyActive
	}
	if _, ok := o.pending[params.Kind]; ok {
		o.mu.Unlock()
		log.Warn("Submit ignored: a submission of this kind is already in flight")
		return SubmitOutcome{}, models.ErrJobAlreadyActive
	}
	o.pending[params.Kind] = struct{}{}
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.pending, params.Kind)
		o.mu.Unlock()
	}()

	decision, err := o.gate.Authorize(ctx, o.accountID, params.CostEstimate, params.HasOwnCredentials)
	if err != nil {
		return SubmitOutcome{}, fmt.Errorf("ошибка кредитного гейта: %w", err)
	}
	switch decision {
	case credit.DecisionFallbackToOwnCredentials:
		log.Info("Submission deferred: insufficient credits, own credentials required")
		return SubmitOutcome{NeedsOwnCredentials: true}, nil
	case credit.DecisionBlock:
		return SubmitOutcome{}, models.ErrInsufficientCredits
	}

	payload := params.Payload
	payload.ProjectID = o.projectID
	if params.HasOwnCredentials {
		payload.SkipCreditCheck = true
	}

	jobID, err := o.client.Submit(ctx, params.Kind, payload)
	if err != nil {
		var conflict *execution.ConflictError
		if errors.As(err, &conflict) {
			// Эквивалентная задача уже выполняется: присоединяемся к ней
			// вместо ошибки. Для пользователя это успешное возобновление.
			log.Info("Submission conflict, attaching to existing job",
				zap.String("existingJobID", conflict.ExistingJobID))
			jobsAttached.WithLabelValues(string(params.Kind)).Inc()
			handle, attachErr := o.bind(params.Kind, conflict.ExistingJobID, true)
			if attachErr != nil {
				return SubmitOutcome{}, attachErr
			}
			return SubmitOutcome{Handle: handle}, nil
		}
		if errors.Is(err, models.ErrInsufficientCredits) {
			// Различимый класс сообщения: предложить пополнение или смену
			// источника оплаты.
			log.Warn("Submission rejected: insufficient credits on execution side")
			return SubmitOutcome{}, err
		}
		log.Error("Submission failed", zap.Error(err))
		return SubmitOutcome{}, fmt.Errorf("ошибка отправки задачи: %w", err)
	}

	jobsSubmitted.WithLabelValues(string(params.Kind)).Inc()
	if !params.HasOwnCredentials {
		// Задача принята за платформенные кредиты: кэшированный баланс устарел.
		o.gate.ConfirmSpend(ctx, o.accountID)
	}
	handle, err := o.bind(params.Kind, jobID, false)
	if err != nil {
		return SubmitOutcome{}, err
	}
	return SubmitOutcome{Handle: handle}, nil
}

// Attach подхватывает уже активную задачу проекта, найденную через сервис
// исполнения - путь возобновления после перезагрузки страницы или
// переоткрытия вкладки. Возвращает nil без ошибки, если активной задачи нет.
func (o *Orchestrator) Attach(ctx context.Context, kind models.JobKind) (*JobHandle, error) {
	o.mu.Lock()
	if jobID, ok := o.bound[kind]; ok {
		o.mu.Unlock()
		return &JobHandle{JobID: jobID, Kind: kind, Attached: true}, nil
	}
	o.mu.Unlock()

	job, err := o.client.ActiveJob(ctx, o.projectID, kind)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска активной задачи: %w", err)
	}
	if job == nil {
		return nil, nil
	}

	o.logger.Info("Resuming observation of active job",
		zap.String("kind", string(kind)), zap.String("jobID", job.ID))
	jobsAttached.WithLabelValues(string(kind)).Inc()
	return o.bind(kind, job.ID, true)
}

// Cancel отправляет best-effort отмену и безусловно останавливает локальный
// опрос: локально отмена эффективна, даже если удаленный вызов не удался
// или проиграл гонку финальному тику.
func (o *Orchestrator) Cancel(ctx context.Context, kind models.JobKind) error {
	o.mu.Lock()
	jobID, ok := o.bound[kind]
	p := o.pollers[kind]
	o.mu.Unlock()

	if !ok {
		return models.ErrJobNotFound
	}

	remoteErr := o.client.Cancel(ctx, jobID)
	if remoteErr != nil {
		o.logger.Warn("Remote cancel failed, stopping local polling anyway",
			zap.String("jobID", jobID), zap.Error(remoteErr))
	}

	if p != nil {
		p.Stop()
	}
	o.release(kind)
	o.state.ClearJob(kind)
	jobsCancelled.WithLabelValues(string(kind)).Inc()

	o.logger.Info("Job cancelled locally", zap.String("jobID", jobID))
	return nil
}

// BoundJob возвращает привязанную задачу указанного типа.
func (o *Orchestrator) BoundJob(kind models.JobKind) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	jobID, ok := o.bound[kind]
	return jobID, ok
}

// Snapshot возвращает последний наблюдаемый снапшот задачи указанного типа.
func (o *Orchestrator) Snapshot(kind models.JobKind) (models.Job, bool) {
	return o.state.Job(kind)
}

// bind привязывает поллер к задаче и регистрирует ее за типом. Опрос и его
// callbacks живут на baseCtx: HTTP-запрос, породивший привязку, завершается
// сразу после ответа, а наблюдение за задачей - нет.
func (o *Orchestrator) bind(kind models.JobKind, jobID string, attached bool) (*JobHandle, error) {
	o.mu.Lock()
	if existing, ok := o.bound[kind]; ok && existing == jobID {
		// Гонка двух присоединений к одной задаче: привязка уже есть.
		o.mu.Unlock()
		return &JobHandle{JobID: jobID, Kind: kind, Attached: true}, nil
	}
	p, ok := o.pollers[kind]
	if !ok {
		p = poller.New(o.logger, o.client, o.pollerCfg)
		o.pollers[kind] = p
	}
	o.bound[kind] = jobID
	o.mu.Unlock()

	hooks := poller.Hooks{
		OnTick: func(job models.Job) {
			job.ProjectID = o.projectID
			job.Kind = kind
			o.state.ReconcileJob(job)
		},
		OnStuck: func(stuckJobID string) {
			o.notifier.Notify(o.baseCtx, models.UserNotification{
				UserID:    o.userID,
				ProjectID: o.projectID,
				Level:     models.NotificationLevelWarning,
				Message:   "Генерация еще не началась, задача в очереди дольше обычного",
				JobID:     stuckJobID,
			})
		},
		OnPartialProgress: func(job models.Job) {
			// Частично готовые подработы (уже сгенерированные сцены)
			// становятся видимыми до завершения всей задачи.
			o.refreshArtifacts(o.baseCtx)
		},
		OnTerminal: func(job models.Job) {
			o.handleTerminal(o.baseCtx, kind, job)
		},
	}

	if err := p.Start(o.baseCtx, jobID, hooks); err != nil {
		if errors.Is(err, models.ErrJobAlreadyActive) && p.JobID() == jobID {
			// Поллер уже наблюдает эту же задачу - привязку не трогаем.
			return &JobHandle{JobID: jobID, Kind: kind, Attached: true}, nil
		}
		o.release(kind)
		return nil, fmt.Errorf("ошибка запуска поллера: %w", err)
	}

	return &JobHandle{JobID: jobID, Kind: kind, Attached: attached}, nil
}

// handleTerminal - единственный путь терминальной обработки задачи.
func (o *Orchestrator) handleTerminal(ctx context.Context, kind models.JobKind, job models.Job) {
	job.ProjectID = o.projectID
	job.Kind = kind
	o.state.ReconcileJob(job)
	o.refreshArtifacts(ctx)
	o.release(kind)

	jobsCompleted.WithLabelValues(string(kind), string(job.Status)).Inc()

	level := models.NotificationLevelSuccess
	message := "Генерация завершена"
	switch job.Status {
	case models.JobStatusFailed:
		level = models.NotificationLevelError
		message = "Генерация завершилась с ошибкой"
		if job.ErrorDetails != nil {
			message = fmt.Sprintf("Генерация завершилась с ошибкой: %s", *job.ErrorDetails)
		}
	case models.JobStatusCompletedWithErrors:
		level = models.NotificationLevelWarning
		message = fmt.Sprintf("Генерация завершена частично: %d из %d", job.CompletedUnits, job.TotalUnits)
	case models.JobStatusCancelled:
		level = models.NotificationLevelWarning
		message = "Генерация отменена"
	}

	o.notifier.Notify(ctx, models.UserNotification{
		UserID:    o.userID,
		ProjectID: o.projectID,
		Level:     level,
		Message:   message,
		JobID:     job.ID,
	})
}

// refreshArtifacts перечитывает артефакты проекта из хранилища в зеркало.
func (o *Orchestrator) refreshArtifacts(ctx context.Context) {
	artifacts, err := o.artifacts.ListByProject(ctx, o.projectID)
	if err != nil {
		o.logger.Warn("Failed to refresh project artifacts", zap.Error(err))
		return
	}
	o.state.ReconcileArtifacts(artifacts)
}

func (o *Orchestrator) release(kind models.JobKind) {
	o.mu.Lock()
	delete(o.bound, kind)
	o.mu.Unlock()
}
