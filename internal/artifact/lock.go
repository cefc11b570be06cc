// Package artifact реализует управление блокировкой артефактов: переключение
// флага админом и защитную проверку перед любым изменяющим действием.
package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"film-generator/internal/models"
	"film-generator/internal/repository"
	"film-generator/internal/store"
)

// LockManager - менеджер блокировок артефактов проекта.
type LockManager interface {
	// ToggleLock переключает флаг блокировки артефакта. Только для админа.
	// Возвращает подтвержденное хранилищем значение флага.
	ToggleLock(ctx context.Context, actor models.Actor, artifactID uuid.UUID) (bool, error)
	// EnsureUnlocked - защитная проверка перед изменяющим действием.
	// Вызывается до любой отправки в сеть или очередь.
	EnsureUnlocked(ctx context.Context, artifactID uuid.UUID) error
}

type lockManagerImpl struct {
	logger    *zap.Logger
	artifacts repository.ArtifactRepository
	state     *store.ProjectState
}

var _ LockManager = (*lockManagerImpl)(nil)

// NewLockManager создает менеджер блокировок.
func NewLockManager(logger *zap.Logger, artifacts repository.ArtifactRepository, state *store.ProjectState) LockManager {
	return &lockManagerImpl{
		logger:    logger.Named("LockManager"),
		artifacts: artifacts,
		state:     state,
	}
}

// ToggleLock переключает блокировку двухфазно: сначала запись в хранилище,
// затем сверка зеркала с подтвержденным сервером значением. Зеркало никогда
// не обновляется до ответа хранилища.
func (m *lockManagerImpl) ToggleLock(ctx context.Context, actor models.Actor, artifactID uuid.UUID) (bool, error) {
	if !actor.IsAdmin() {
		return false, fmt.Errorf("переключение блокировки доступно только админу: %w", models.ErrForbidden)
	}

	current, err := m.currentLocked(ctx, artifactID)
	if err != nil {
		return false, err
	}

	confirmed, err := m.artifacts.SetLocked(ctx, artifactID, !current)
	if err != nil {
		return false, fmt.Errorf("ошибка записи флага блокировки: %w", err)
	}

	m.state.ReconcileArtifactLock(artifactID, confirmed)
	m.logger.Info("Artifact lock toggled",
		zap.String("artifactID", artifactID.String()),
		zap.Bool("locked", confirmed))
	return confirmed, nil
}

// EnsureUnlocked возвращает ErrLockedResource для заблокированного артефакта.
// Изменяющих вызовов при отказе не происходит.
func (m *lockManagerImpl) EnsureUnlocked(ctx context.Context, artifactID uuid.UUID) error {
	locked, err := m.currentLocked(ctx, artifactID)
	if err != nil {
		return err
	}
	if locked {
		return fmt.Errorf("артефакт %s заблокирован: %w", artifactID, models.ErrLockedResource)
	}
	return nil
}

// currentLocked читает флаг из зеркала, при промахе - из хранилища
// с последующей сверкой зеркала.
func (m *lockManagerImpl) currentLocked(ctx context.Context, artifactID uuid.UUID) (bool, error) {
	if a, ok := m.state.Artifact(artifactID); ok {
		return a.Locked, nil
	}

	a, err := m.artifacts.GetByID(ctx, artifactID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, fmt.Errorf("артефакт %s не найден: %w", artifactID, models.ErrNotFound)
		}
		return false, fmt.Errorf("ошибка чтения артефакта: %w", err)
	}
	m.state.ReconcileArtifact(*a)
	return a.Locked, nil
}
