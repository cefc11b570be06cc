// Package store содержит локальное зеркало состояния проекта: активные
// задачи, артефакты и запросы на перегенерацию, которые читают несколько
// поверхностей UI. Это единственный разделяемый изменяемый ресурс ядра,
// поэтому все записи идут через именованные reconcile-методы под
// блокировкой - никаких спекулятивных присваиваний полей со стороны
// вызывающих.
package store

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"film-generator/internal/models"
)

// ProjectState - зеркало состояния одного проекта.
type ProjectState struct {
	logger *zap.Logger

	mu            sync.RWMutex
	projectID     uuid.UUID
	jobs          map[models.JobKind]models.Job
	artifacts     map[uuid.UUID]models.Artifact
	regenerations map[uuid.UUID]models.RegenerationRequest
}

// NewProjectState создает пустое зеркало проекта.
func NewProjectState(projectID uuid.UUID, logger *zap.Logger) *ProjectState {
	return &ProjectState{
		logger:        logger.Named("ProjectState"),
		projectID:     projectID,
		jobs:          make(map[models.JobKind]models.Job),
		artifacts:     make(map[uuid.UUID]models.Artifact),
		regenerations: make(map[uuid.UUID]models.RegenerationRequest),
	}
}

// ProjectID возвращает проект, которому принадлежит зеркало.
func (s *ProjectState) ProjectID() uuid.UUID {
	return s.projectID
}

// ReconcileJob записывает наблюдаемое состояние задачи.
// Вызывается только из пути поллинга/оркестрации.
func (s *ProjectState) ReconcileJob(job models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Kind] = job
}

// ClearJob снимает привязку задачи указанного типа (после терминального
// состояния или локальной отмены).
func (s *ProjectState) ClearJob(kind models.JobKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, kind)
}

// Job возвращает последнее наблюдаемое состояние задачи указанного типа.
func (s *ProjectState) Job(kind models.JobKind) (models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[kind]
	return job, ok
}

// ReconcileArtifact записывает артефакт целиком (после загрузки из хранилища).
func (s *ProjectState) ReconcileArtifact(artifact models.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[artifact.ID] = artifact
}

// ReconcileArtifacts записывает пакет артефактов (refresh снапшота проекта).
func (s *ProjectState) ReconcileArtifacts(artifacts []models.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range artifacts {
		s.artifacts[a.ID] = a
	}
}

// ReconcileArtifactLock записывает подтвержденное сервером значение флага
// блокировки. Значение не предполагается, а приходит из ответа хранилища -
// двухфазная запись без дрейфа.
func (s *ProjectState) ReconcileArtifactLock(artifactID uuid.UUID, locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	artifact, ok := s.artifacts[artifactID]
	if !ok {
		s.logger.Debug("Lock reconcile for unknown artifact", zap.String("artifactID", artifactID.String()))
		return
	}
	artifact.Locked = locked
	s.artifacts[artifactID] = artifact
}

// ReconcileArtifactImage записывает подтвержденный сервером URL изображения.
func (s *ProjectState) ReconcileArtifactImage(artifactID uuid.UUID, imageURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	artifact, ok := s.artifacts[artifactID]
	if !ok {
		s.logger.Debug("Image reconcile for unknown artifact", zap.String("artifactID", artifactID.String()))
		return
	}
	artifact.ImageURL = &imageURL
	s.artifacts[artifactID] = artifact
}

// RemoveArtifact удаляет артефакт из зеркала вместе с нацеленными на него
// запросами (каскад, как в хранилище).
func (s *ProjectState) RemoveArtifact(artifactID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, artifactID)
	for id, req := range s.regenerations {
		if req.TargetID == artifactID {
			delete(s.regenerations, id)
		}
	}
}

// Artifact возвращает артефакт из зеркала.
func (s *ProjectState) Artifact(artifactID uuid.UUID) (models.Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	artifact, ok := s.artifacts[artifactID]
	return artifact, ok
}

// Artifacts возвращает все артефакты зеркала.
func (s *ProjectState) Artifacts() []models.Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		result = append(result, a)
	}
	return result
}

// ReconcileRegeneration записывает состояние запроса на перегенерацию.
func (s *ProjectState) ReconcileRegeneration(req models.RegenerationRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regenerations[req.ID] = req
}

// Regeneration возвращает запрос из зеркала.
func (s *ProjectState) Regeneration(requestID uuid.UUID) (models.RegenerationRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.regenerations[requestID]
	return req, ok
}
