package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"film-generator/internal/models"
)

// DBTX - минимальный контракт pgx, общий для пула и транзакции.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ArtifactRepository - хранилище артефактов проекта.
type ArtifactRepository interface {
	Create(ctx context.Context, artifact *models.Artifact) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Artifact, error)
	// UpdateImageURL записывает новый URL изображения артефакта.
	UpdateImageURL(ctx context.Context, id uuid.UUID, imageURL string) error
	// SetLocked записывает флаг и возвращает подтвержденное сервером значение.
	SetLocked(ctx context.Context, id uuid.UUID, locked bool) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RegenerationRequestRepository - хранилище запросов на перегенерацию.
type RegenerationRequestRepository interface {
	Create(ctx context.Context, req *models.RegenerationRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RegenerationRequest, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.RegenerationRequest, error)
	// Update перезаписывает изменяемые поля запроса (статус, попытки,
	// кандидаты, выбор).
	Update(ctx context.Context, req *models.RegenerationRequest) error
}

// DeletionRequestRepository - хранилище запросов на удаление.
type DeletionRequestRepository interface {
	Create(ctx context.Context, req *models.DeletionRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DeletionRequest, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.DeletionRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.DeletionStatus) error
}
