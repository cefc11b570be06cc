// Package approval реализует процесс согласования перегенерации и удаления
// артефактов между коллаборатором и админом. Коллаборатор не меняет проект
// напрямую: он создает запрос, админ одобряет с бюджетом попыток, после чего
// попытки, выбор кандидата и финальное подтверждение идут по фиксированной
// машине состояний.
package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"film-generator/internal/execution"
	"film-generator/internal/models"
	"film-generator/internal/repository"
	"film-generator/internal/store"
)

// Notifier доставляет уведомление пользователю. Ошибки доставки не влияют
// на исход операции.
type Notifier interface {
	Notify(ctx context.Context, notification models.UserNotification)
}

// GenerateParams - параметры одной попытки генерации кандидата.
type GenerateParams struct {
	Prompt        string
	AspectRatio   string
	Resolution    string
	Steps         int
	GuidanceScale float64
}

// Service - сервис согласования перегенерации и удаления артефактов.
type Service interface {
	// CreateRequest создает запрос на перегенерацию артефакта. Доступно любому
	// участнику проекта, в том числе для заблокированных артефактов: запрос -
	// это и есть путь изменения того, что нельзя менять напрямую.
	CreateRequest(ctx context.Context, actor models.Actor, targetID uuid.UUID) (*models.RegenerationRequest, error)
	// Approve одобряет запрос и устанавливает бюджет попыток. Только админ.
	Approve(ctx context.Context, actor models.Actor, requestID uuid.UUID, maxAttempts int) (*models.RegenerationRequest, error)
	// Reject отклоняет запрос из любого нетерминального состояния. Только админ.
	Reject(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*models.RegenerationRequest, error)
	// Generate выполняет одну попытку генерации кандидата. Только автор запроса.
	Generate(ctx context.Context, actor models.Actor, requestID uuid.UUID, params GenerateParams) (*models.RegenerationRequest, error)
	// BeginSelection досрочно переводит запрос к выбору кандидата. Только автор.
	BeginSelection(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*models.RegenerationRequest, error)
	// Select фиксирует выбранный кандидатский URL. Только автор запроса.
	Select(ctx context.Context, actor models.Actor, requestID uuid.UUID, selectedURL string) (*models.RegenerationRequest, error)
	// Confirm завершает запрос: выбранный URL становится изображением
	// артефакта. Только админ.
	Confirm(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*models.RegenerationRequest, error)
	ListRequests(ctx context.Context, projectID uuid.UUID) ([]models.RegenerationRequest, error)

	// CreateDeletionRequest создает запрос на удаление артефакта.
	CreateDeletionRequest(ctx context.Context, actor models.Actor, targetID uuid.UUID) (*models.DeletionRequest, error)
	// ApproveDeletion одобряет запрос и выполняет удаление. Только админ.
	ApproveDeletion(ctx context.Context, actor models.Actor, requestID uuid.UUID) error
	// RejectDeletion отклоняет запрос на удаление. Только админ.
	RejectDeletion(ctx context.Context, actor models.Actor, requestID uuid.UUID) error
	ListDeletionRequests(ctx context.Context, projectID uuid.UUID) ([]models.DeletionRequest, error)
}

type serviceImpl struct {
	logger    *zap.Logger
	requests  repository.RegenerationRequestRepository
	deletions repository.DeletionRequestRepository
	artifacts repository.ArtifactRepository
	generator execution.ImageGenerator
	states    *store.Registry
	notifier  Notifier
}

var _ Service = (*serviceImpl)(nil)

// NewService создает сервис согласования.
func NewService(
	logger *zap.Logger,
	requests repository.RegenerationRequestRepository,
	deletions repository.DeletionRequestRepository,
	artifacts repository.ArtifactRepository,
	generator execution.ImageGenerator,
	states *store.Registry,
	notifier Notifier,
) Service {
	return &serviceImpl{
		logger:    logger.Named("ApprovalService"),
		requests:  requests,
		deletions: deletions,
		artifacts: artifacts,
		generator: generator,
		states:    states,
		notifier:  notifier,
	}
}

func (s *serviceImpl) CreateRequest(ctx context.Context, actor models.Actor, targetID uuid.UUID) (*models.RegenerationRequest, error) {
	target, err := s.artifacts.GetByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения целевого артефакта: %w", err)
	}

	req := &models.RegenerationRequest{
		ID:            uuid.New(),
		ProjectID:     target.ProjectID,
		TargetType:    models.TargetTypeImage,
		TargetID:      targetID,
		Status:        models.RegenerationStatusPending,
		GeneratedURLs: []string{},
		RequestedBy:   actor.UserID,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("ошибка создания запроса на перегенерацию: %w", err)
	}

	s.states.For(req.ProjectID).ReconcileRegeneration(*req)
	regenerationRequestsCreated.Inc()
	s.logger.Info("Regeneration request created",
		zap.String("requestID", req.ID.String()),
		zap.String("targetID", targetID.String()),
		zap.String("requestedBy", actor.UserID.String()))
	return req, nil
}

func (s *serviceImpl) Approve(ctx context.Context, actor models.Actor, requestID uuid.UUID, maxAttempts int) (*models.RegenerationRequest, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("одобрение доступно только админу: %w", models.ErrForbidden)
	}
	if maxAttempts < 1 {
		return nil, fmt.Errorf("бюджет попыток должен быть положительным: %w", models.ErrInvalidInput)
	}

	req, err := s.loadMutable(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RegenerationStatusPending {
		return nil, transitionError(req.Status, models.RegenerationStatusApproved)
	}

	req.Status = models.RegenerationStatusApproved
	req.MaxAttempts = maxAttempts
	if err := s.persist(ctx, req); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, models.UserNotification{
		UserID:    req.RequestedBy,
		ProjectID: req.ProjectID,
		Level:     models.NotificationLevelSuccess,
		Message:   fmt.Sprintf("Запрос на перегенерацию одобрен, доступно попыток: %d", maxAttempts),
	})
	s.logger.Info("Regeneration request approved",
		zap.String("requestID", requestID.String()), zap.Int("maxAttempts", maxAttempts))
	return req, nil
}

func (s *serviceImpl) Reject(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*models.RegenerationRequest, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("отклонение доступно только админу: %w", models.ErrForbidden)
	}

	req, err := s.loadMutable(ctx, requestID)
	if err != nil {
		return nil, err
	}

	// Отклонение разрешено из любого нетерминального состояния
	req.Status = models.RegenerationStatusRejected
	if err := s.persist(ctx, req); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, models.UserNotification{
		UserID:    req.RequestedBy,
		ProjectID: req.ProjectID,
		Level:     models.NotificationLevelWarning,
		Message:   "Запрос на перегенерацию отклонен",
	})
	s.logger.Info("Regeneration request rejected", zap.String("requestID", requestID.String()))
	return req, nil
}

// Generate выполняет одну синхронную попытку: переводит запрос в generating,
// получает URL кандидата, увеличивает счетчик попыток и возвращает запрос
// либо в approved (попытки остались), либо принудительно в selecting
// (бюджет исчерпан). Счетчик попыток только растет.
func (s *serviceImpl) Generate(ctx context.Context, actor models.Actor, requestID uuid.UUID, params GenerateParams) (*models.RegenerationRequest, error) {
	req, err := s.loadMutable(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequestedBy != actor.UserID {
		return nil, fmt.Errorf("попытки доступны только автору запроса: %w", models.ErrNotRequester)
	}
	if req.MaxAttempts > 0 && req.AttemptsExhausted() {
		// Исчерпанный бюджет блокирует генерацию независимо от статуса
		return nil, fmt.Errorf("бюджет попыток %d исчерпан: %w", req.MaxAttempts, models.ErrAttemptsExhausted)
	}
	if req.Status != models.RegenerationStatusApproved {
		return nil, transitionError(req.Status, models.RegenerationStatusGenerating)
	}

	req.Status = models.RegenerationStatusGenerating
	if err := s.persist(ctx, req); err != nil {
		return nil, err
	}

	imageURL, genErr := s.generator.GenerateImage(ctx, models.GenerationPayload{
		ProjectID:   req.ProjectID,
		Prompt:      params.Prompt,
		AspectRatio: params.AspectRatio,
		Resolution:  params.Resolution,
		Steps:       params.Steps,
		Guidance:    params.GuidanceScale,
	})
	if genErr != nil {
		// Неудачная попытка не тратит бюджет: возврат в approved
		req.Status = models.RegenerationStatusApproved
		if err := s.persist(ctx, req); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка генерации кандидата: %w", genErr)
	}

	req.AttemptsUsed++
	req.GeneratedURLs = append(req.GeneratedURLs, imageURL)
	if req.AttemptsExhausted() {
		// Принудительный перевод к выбору: новых попыток не будет
		req.Status = models.RegenerationStatusSelecting
	} else {
		req.Status = models.RegenerationStatusApproved
	}
	if err := s.persist(ctx, req); err != nil {
		return nil, err
	}

	regenerationAttempts.Inc()
	s.logger.Info("Regeneration attempt completed",
		zap.String("requestID", requestID.String()),
		zap.Int("attemptsUsed", req.AttemptsUsed),
		zap.Int("maxAttempts", req.MaxAttempts),
		zap.String("status", string(req.Status)))
	return req, nil
}

func (s *serviceImpl) BeginSelection(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*models.RegenerationRequest, error) {
	req, err := s.loadMutable(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequestedBy != actor.UserID {
		return nil, fmt.Errorf("переход к выбору доступен только автору запроса: %w", models.ErrNotRequester)
	}
	if req.Status != models.RegenerationStatusApproved {
		return nil, transitionError(req.Status, models.RegenerationStatusSelecting)
	}
	if len(req.GeneratedURLs) == 0 {
		return nil, fmt.Errorf("нет кандидатов для выбора: %w", models.ErrInvalidTransition)
	}

	req.Status = models.RegenerationStatusSelecting
	if err := s.persist(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *serviceImpl) Select(ctx context.Context, actor models.Actor, requestID uuid.UUID, selectedURL string) (*models.RegenerationRequest, error) {
	req, err := s.loadMutable(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequestedBy != actor.UserID {
		return nil, fmt.Errorf("выбор доступен только автору запроса: %w", models.ErrNotRequester)
	}
	if req.Status != models.RegenerationStatusSelecting {
		return nil, transitionError(req.Status, models.RegenerationStatusAwaitingFinal)
	}
	if !containsURL(req.GeneratedURLs, selectedURL) {
		return nil, fmt.Errorf("url не входит в список кандидатов: %w", models.ErrUnknownCandidate)
	}

	req.Status = models.RegenerationStatusAwaitingFinal
	req.SelectedURL = &selectedURL
	if err := s.persist(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("Candidate selected",
		zap.String("requestID", requestID.String()), zap.String("selectedURL", selectedURL))
	return req, nil
}

func (s *serviceImpl) Confirm(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*models.RegenerationRequest, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("финальное подтверждение доступно только админу: %w", models.ErrForbidden)
	}

	req, err := s.loadMutable(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != models.RegenerationStatusAwaitingFinal {
		return nil, transitionError(req.Status, models.RegenerationStatusCompleted)
	}
	if req.SelectedURL == nil {
		return nil, fmt.Errorf("нет выбранного кандидата: %w", models.ErrInvalidTransition)
	}

	// Сначала запись артефакта, затем статус запроса: если запись упала,
	// запрос остается в awaiting_final и подтверждение можно повторить.
	if err := s.artifacts.UpdateImageURL(ctx, req.TargetID, *req.SelectedURL); err != nil {
		return nil, fmt.Errorf("ошибка записи изображения артефакта: %w", err)
	}
	s.states.For(req.ProjectID).ReconcileArtifactImage(req.TargetID, *req.SelectedURL)

	req.Status = models.RegenerationStatusCompleted
	if err := s.persist(ctx, req); err != nil {
		return nil, err
	}

	regenerationRequestsCompleted.Inc()
	s.notifier.Notify(ctx, models.UserNotification{
		UserID:    req.RequestedBy,
		ProjectID: req.ProjectID,
		Level:     models.NotificationLevelSuccess,
		Message:   "Перегенерация подтверждена, артефакт обновлен",
	})
	s.logger.Info("Regeneration request completed",
		zap.String("requestID", requestID.String()),
		zap.String("targetID", req.TargetID.String()))
	return req, nil
}

func (s *serviceImpl) ListRequests(ctx context.Context, projectID uuid.UUID) ([]models.RegenerationRequest, error) {
	requests, err := s.requests.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения запросов проекта: %w", err)
	}
	return requests, nil
}

func (s *serviceImpl) CreateDeletionRequest(ctx context.Context, actor models.Actor, targetID uuid.UUID) (*models.DeletionRequest, error) {
	target, err := s.artifacts.GetByID(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения целевого артефакта: %w", err)
	}

	req := &models.DeletionRequest{
		ID:          uuid.New(),
		ProjectID:   target.ProjectID,
		TargetType:  models.TargetTypeImage,
		TargetID:    targetID,
		Status:      models.DeletionStatusPending,
		RequestedBy: actor.UserID,
	}
	if err := s.deletions.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("ошибка создания запроса на удаление: %w", err)
	}

	s.logger.Info("Deletion request created",
		zap.String("requestID", req.ID.String()),
		zap.String("targetID", targetID.String()))
	return req, nil
}

// ApproveDeletion удаляет артефакт: одобрение и есть исполнение. Хранилище
// каскадно снимает нацеленные на артефакт запросы, зеркало повторяет каскад.
func (s *serviceImpl) ApproveDeletion(ctx context.Context, actor models.Actor, requestID uuid.UUID) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("одобрение удаления доступно только админу: %w", models.ErrForbidden)
	}

	req, err := s.deletions.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("ошибка чтения запроса на удаление: %w", err)
	}
	if req.Status != models.DeletionStatusPending {
		return fmt.Errorf("запрос на удаление уже решен (%s): %w", req.Status, models.ErrRequestTerminal)
	}

	if err := s.artifacts.Delete(ctx, req.TargetID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("ошибка удаления артефакта: %w", err)
	}
	if err := s.deletions.UpdateStatus(ctx, requestID, models.DeletionStatusApproved); err != nil {
		return fmt.Errorf("ошибка обновления запроса на удаление: %w", err)
	}

	s.states.For(req.ProjectID).RemoveArtifact(req.TargetID)
	s.notifier.Notify(ctx, models.UserNotification{
		UserID:    req.RequestedBy,
		ProjectID: req.ProjectID,
		Level:     models.NotificationLevelSuccess,
		Message:   "Запрос на удаление одобрен, артефакт удален",
	})
	s.logger.Info("Deletion request approved",
		zap.String("requestID", requestID.String()),
		zap.String("targetID", req.TargetID.String()))
	return nil
}

func (s *serviceImpl) RejectDeletion(ctx context.Context, actor models.Actor, requestID uuid.UUID) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("отклонение удаления доступно только админу: %w", models.ErrForbidden)
	}

	req, err := s.deletions.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("ошибка чтения запроса на удаление: %w", err)
	}
	if req.Status != models.DeletionStatusPending {
		return fmt.Errorf("запрос на удаление уже решен (%s): %w", req.Status, models.ErrRequestTerminal)
	}

	if err := s.deletions.UpdateStatus(ctx, requestID, models.DeletionStatusRejected); err != nil {
		return fmt.Errorf("ошибка обновления запроса на удаление: %w", err)
	}

	s.notifier.Notify(ctx, models.UserNotification{
		UserID:    req.RequestedBy,
		ProjectID: req.ProjectID,
		Level:     models.NotificationLevelWarning,
		Message:   "Запрос на удаление отклонен",
	})
	return nil
}

func (s *serviceImpl) ListDeletionRequests(ctx context.Context, projectID uuid.UUID) ([]models.DeletionRequest, error) {
	requests, err := s.deletions.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения запросов на удаление: %w", err)
	}
	return requests, nil
}

// loadMutable читает запрос и отсекает терминальные состояния: завершенный
// или отклоненный запрос больше не меняется.
func (s *serviceImpl) loadMutable(ctx context.Context, requestID uuid.UUID) (*models.RegenerationRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения запроса на перегенерацию: %w", err)
	}
	if req.Status.IsTerminal() {
		return nil, fmt.Errorf("запрос в терминальном состоянии %s: %w", req.Status, models.ErrRequestTerminal)
	}
	return req, nil
}

func (s *serviceImpl) persist(ctx context.Context, req *models.RegenerationRequest) error {
	if err := s.requests.Update(ctx, req); err != nil {
		return fmt.Errorf("ошибка сохранения запроса на перегенерацию: %w", err)
	}
	s.states.For(req.ProjectID).ReconcileRegeneration(*req)
	return nil
}

func transitionError(from, to models.RegenerationStatus) error {
	return fmt.Errorf("переход %s -> %s запрещен: %w", from, to, models.ErrInvalidTransition)
}

func containsURL(urls []string, target string) bool {
	for _, u := range urls {
		if u == target {
			return true
		}
	}
	return false
}
