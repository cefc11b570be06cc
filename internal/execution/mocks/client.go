package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"film-generator/internal/execution"
	"film-generator/internal/models"
)

// Client is a mock type for the execution.Client type
type Client struct {
	mock.Mock
}

func (m *Client) Submit(ctx context.Context, kind models.JobKind, payload models.GenerationPayload) (string, error) {
	args := m.Called(ctx, kind, payload)
	return args.String(0), args.Error(1)
}

func (m *Client) Status(ctx context.Context, jobID string) (models.Job, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).(models.Job), args.Error(1)
}

func (m *Client) Cancel(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *Client) ActiveJob(ctx context.Context, projectID uuid.UUID, kind models.JobKind) (*models.Job, error) {
	args := m.Called(ctx, projectID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

var _ execution.Client = (*Client)(nil)

// ImageGenerator is a mock type for the execution.ImageGenerator type
type ImageGenerator struct {
	mock.Mock
}

func (m *ImageGenerator) GenerateImage(ctx context.Context, payload models.GenerationPayload) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

var _ execution.ImageGenerator = (*ImageGenerator)(nil)
