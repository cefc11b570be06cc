package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"film-generator/internal/models"
)

// Compile-time check
var _ DeletionRequestRepository = (*pgDeletionRequestRepository)(nil)

type pgDeletionRequestRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgDeletionRequestRepository создает репозиторий запросов на удаление.
func NewPgDeletionRequestRepository(db DBTX, logger *zap.Logger) DeletionRequestRepository {
	return &pgDeletionRequestRepository{
		db:     db,
		logger: logger.Named("PgDeletionRepo"),
	}
}

func (r *pgDeletionRequestRepository) Create(ctx context.Context, req *models.DeletionRequest) error {
	query := `
        INSERT INTO deletion_requests
            (id, project_id, target_type, target_id, status, requested_by, created_at, updated_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, NOW(), NOW())
    `
	_, err := r.db.Exec(ctx, query,
		req.ID,
		req.ProjectID,
		req.TargetType,
		req.TargetID,
		req.Status,
		req.RequestedBy,
	)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса на удаление: %w", err)
	}
	r.logger.Info("Deletion request created", zap.String("requestID", req.ID.String()))
	return nil
}

func (r *pgDeletionRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DeletionRequest, error) {
	query := `
        SELECT id, project_id, target_type, target_id, status, requested_by, created_at, updated_at
        FROM deletion_requests
        WHERE id = $1
    `
	var req models.DeletionRequest
	if err := pgxscan.Get(ctx, r.db, &req, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения запроса на удаление: %w", err)
	}
	return &req, nil
}

func (r *pgDeletionRequestRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.DeletionRequest, error) {
	query := `
        SELECT id, project_id, target_type, target_id, status, requested_by, created_at, updated_at
        FROM deletion_requests
        WHERE project_id = $1
        ORDER BY created_at DESC
    `
	var reqs []models.DeletionRequest
	if err := pgxscan.Select(ctx, r.db, &reqs, query, projectID); err != nil {
		return nil, fmt.Errorf("ошибка чтения запросов на удаление: %w", err)
	}
	return reqs, nil
}

func (r *pgDeletionRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.DeletionStatus) error {
	query := `UPDATE deletion_requests SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("ошибка обновления запроса на удаление: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
