package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"film-generator/internal/models"
	"film-generator/internal/repository"
)

// Mock ArtifactRepository
type ArtifactRepository struct {
	mock.Mock
}

func (m *ArtifactRepository) Create(ctx context.Context, artifact *models.Artifact) error {
	args := m.Called(ctx, artifact)
	return args.Error(0)
}

func (m *ArtifactRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Artifact), args.Error(1)
}

func (m *ArtifactRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Artifact, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Artifact), args.Error(1)
}

func (m *ArtifactRepository) UpdateImageURL(ctx context.Context, id uuid.UUID, imageURL string) error {
	args := m.Called(ctx, id, imageURL)
	return args.Error(0)
}

func (m *ArtifactRepository) SetLocked(ctx context.Context, id uuid.UUID, locked bool) (bool, error) {
	args := m.Called(ctx, id, locked)
	return args.Bool(0), args.Error(1)
}

func (m *ArtifactRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ repository.ArtifactRepository = (*ArtifactRepository)(nil)

// Mock RegenerationRequestRepository
type RegenerationRequestRepository struct {
	mock.Mock
}

func (m *RegenerationRequestRepository) Create(ctx context.Context, req *models.RegenerationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *RegenerationRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RegenerationRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegenerationRequest), args.Error(1)
}

func (m *RegenerationRequestRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.RegenerationRequest, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RegenerationRequest), args.Error(1)
}

func (m *RegenerationRequestRepository) Update(ctx context.Context, req *models.RegenerationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

var _ repository.RegenerationRequestRepository = (*RegenerationRequestRepository)(nil)

// Mock DeletionRequestRepository
type DeletionRequestRepository struct {
	mock.Mock
}

func (m *DeletionRequestRepository) Create(ctx context.Context, req *models.DeletionRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *DeletionRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DeletionRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DeletionRequest), args.Error(1)
}

func (m *DeletionRequestRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.DeletionRequest, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DeletionRequest), args.Error(1)
}

func (m *DeletionRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.DeletionStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

var _ repository.DeletionRequestRepository = (*DeletionRequestRepository)(nil)
