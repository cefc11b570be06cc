package artifact

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"film-generator/internal/models"
	"film-generator/internal/repository"
	"film-generator/internal/store"
)

// Service - прямые операции над артефактами, минующие процесс согласования.
// Каждая изменяющая операция проходит защитную проверку блокировки до
// какого-либо обращения к хранилищу: заблокированный артефакт меняется
// только через запрос на перегенерацию или удаление.
type Service interface {
	Create(ctx context.Context, actor models.Actor, kind models.ArtifactKind) (*models.Artifact, error)
	Get(ctx context.Context, artifactID uuid.UUID) (*models.Artifact, error)
	List(ctx context.Context, projectID uuid.UUID) ([]models.Artifact, error)
	// UpdateImage - прямая замена изображения артефакта (админский путь).
	UpdateImage(ctx context.Context, actor models.Actor, artifactID uuid.UUID, imageURL string) error
	// Delete - прямое удаление артефакта (админский путь).
	Delete(ctx context.Context, actor models.Actor, artifactID uuid.UUID) error
}

type serviceImpl struct {
	logger    *zap.Logger
	projectID uuid.UUID
	artifacts repository.ArtifactRepository
	locks     LockManager
	state     *store.ProjectState
}

var _ Service = (*serviceImpl)(nil)

// NewService создает сервис прямых операций над артефактами.
func NewService(logger *zap.Logger, projectID uuid.UUID, artifacts repository.ArtifactRepository, locks LockManager, state *store.ProjectState) Service {
	return &serviceImpl{
		logger:    logger.Named("ArtifactService"),
		projectID: projectID,
		artifacts: artifacts,
		locks:     locks,
		state:     state,
	}
}

func (s *serviceImpl) Create(ctx context.Context, actor models.Actor, kind models.ArtifactKind) (*models.Artifact, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("создание артефакта доступно только админу: %w", models.ErrForbidden)
	}

	a := &models.Artifact{
		ID:        uuid.New(),
		ProjectID: s.projectID,
		Kind:      kind,
	}
	if err := s.artifacts.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("ошибка создания артефакта: %w", err)
	}

	s.state.ReconcileArtifact(*a)
	s.logger.Info("Artifact created", zap.String("artifactID", a.ID.String()), zap.String("kind", string(kind)))
	return a, nil
}

func (s *serviceImpl) Get(ctx context.Context, artifactID uuid.UUID) (*models.Artifact, error) {
	if a, ok := s.state.Artifact(artifactID); ok {
		return &a, nil
	}

	a, err := s.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения артефакта: %w", err)
	}
	s.state.ReconcileArtifact(*a)
	return a, nil
}

func (s *serviceImpl) List(ctx context.Context, projectID uuid.UUID) ([]models.Artifact, error) {
	artifacts, err := s.artifacts.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения артефактов проекта: %w", err)
	}
	s.state.ReconcileArtifacts(artifacts)
	return artifacts, nil
}

func (s *serviceImpl) UpdateImage(ctx context.Context, actor models.Actor, artifactID uuid.UUID, imageURL string) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("прямое изменение артефакта доступно только админу: %w", models.ErrForbidden)
	}
	if err := s.locks.EnsureUnlocked(ctx, artifactID); err != nil {
		return err
	}

	if err := s.artifacts.UpdateImageURL(ctx, artifactID, imageURL); err != nil {
		return fmt.Errorf("ошибка записи изображения артефакта: %w", err)
	}
	s.state.ReconcileArtifactImage(artifactID, imageURL)
	return nil
}

func (s *serviceImpl) Delete(ctx context.Context, actor models.Actor, artifactID uuid.UUID) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("прямое удаление артефакта доступно только админу: %w", models.ErrForbidden)
	}
	if err := s.locks.EnsureUnlocked(ctx, artifactID); err != nil {
		return err
	}

	if err := s.artifacts.Delete(ctx, artifactID); err != nil {
		return fmt.Errorf("ошибка удаления артефакта: %w", err)
	}
	s.state.RemoveArtifact(artifactID)
	s.logger.Info("Artifact deleted", zap.String("artifactID", artifactID.String()))
	return nil
}
