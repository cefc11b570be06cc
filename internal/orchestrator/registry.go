package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"film-generator/internal/artifact"
	"film-generator/internal/credit"
	"film-generator/internal/execution"
	"film-generator/internal/models"
	"film-generator/internal/repository"
	"film-generator/internal/store"
)

// ProjectRuntime - набор сервисов с состоянием, живущих на один проект:
// зеркало, оркестратор и сервисы артефактов поверх общего зеркала.
type ProjectRuntime struct {
	State        *store.ProjectState
	Orchestrator *Orchestrator
	Locks        artifact.LockManager
	Artifacts    artifact.Service
}

// RegistryDeps - зависимости, общие для всех проектных рантаймов.
type RegistryDeps struct {
	// BaseCtx ограничивает время жизни фоновых циклов опроса. Обычно это
	// корневой контекст процесса, отменяемый при остановке сервиса.
	BaseCtx   context.Context
	Logger    *zap.Logger
	Client    execution.Client
	Gate      *credit.Gate
	Artifacts repository.ArtifactRepository
	Notifier  Notifier
	States    *store.Registry
	Config    Config
}

// Registry выдает проектный рантайм по требованию. Рантайм создается при
// первом обращении и дальше разделяется всеми участниками проекта: именно
// он несет инвариант "не более одной активной задачи каждого типа".
type Registry struct {
	deps RegistryDeps

	mu       sync.Mutex
	projects map[uuid.UUID]*ProjectRuntime
}

// NewRegistry создает пустой реестр проектных рантаймов.
func NewRegistry(deps RegistryDeps) *Registry {
	return &Registry{
		deps:     deps,
		projects: make(map[uuid.UUID]*ProjectRuntime),
	}
}

// GetOrCreate возвращает рантайм проекта, создавая его при первом обращении.
// Актор первого обращения становится адресатом уведомлений оркестратора и
// владельцем кредитного счета (персональный счет = ID пользователя).
func (r *Registry) GetOrCreate(projectID uuid.UUID, actor models.Actor) *ProjectRuntime {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rt, ok := r.projects[projectID]; ok {
		return rt
	}

	state := r.deps.States.For(projectID)
	locks := artifact.NewLockManager(r.deps.Logger, r.deps.Artifacts, state)
	rt := &ProjectRuntime{
		State: state,
		Orchestrator: New(
			r.deps.BaseCtx,
			r.deps.Logger,
			r.deps.Client,
			r.deps.Gate,
			state,
			r.deps.Artifacts,
			r.deps.Notifier,
			projectID, actor.UserID, actor.UserID,
			r.deps.Config,
		),
		Locks:     locks,
		Artifacts: artifact.NewService(r.deps.Logger, projectID, r.deps.Artifacts, locks, state),
	}
	r.projects[projectID] = rt

	r.deps.Logger.Info("Project runtime created", zap.String("projectID", projectID.String()))
	return rt
}

// Get возвращает рантайм проекта, если он уже существует.
func (r *Registry) Get(projectID uuid.UUID) (*ProjectRuntime, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.projects[projectID]
	return rt, ok
}
