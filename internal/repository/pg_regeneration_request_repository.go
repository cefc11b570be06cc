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
var _ RegenerationRequestRepository = (*pgRegenerationRequestRepository)(nil)

type pgRegenerationRequestRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgRegenerationRequestRepository создает репозиторий запросов на перегенерацию.
func NewPgRegenerationRequestRepository(db DBTX, logger *zap.Logger) RegenerationRequestRepository {
	return &pgRegenerationRequestRepository{
		db:     db,
		logger: logger.Named("PgRegenerationRepo"),
	}
}

func (r *pgRegenerationRequestRepository) Create(ctx context.Context, req *models.RegenerationRequest) error {
	query := `
        INSERT INTO regeneration_requests
            (id, project_id, target_type, target_id, status, max_attempts, attempts_used,
             generated_urls, selected_url, requested_by, created_at, updated_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
    `
	logFields := []zap.Field{
		zap.String("requestID", req.ID.String()),
		zap.String("targetID", req.TargetID.String()),
	}

	_, err := r.db.Exec(ctx, query,
		req.ID,
		req.ProjectID,
		req.TargetType,
		req.TargetID,
		req.Status,
		req.MaxAttempts,
		req.AttemptsUsed,
		nonNilURLs(req.GeneratedURLs),
		req.SelectedURL,
		req.RequestedBy,
	)
	if err != nil {
		r.logger.Error("Failed to create regeneration request", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания запроса на перегенерацию: %w", err)
	}
	r.logger.Info("Regeneration request created", logFields...)
	return nil
}

func (r *pgRegenerationRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RegenerationRequest, error) {
	query := `
        SELECT id, project_id, target_type, target_id, status, max_attempts, attempts_used,
               generated_urls, selected_url, requested_by, created_at, updated_at
        FROM regeneration_requests
        WHERE id = $1
    `
	var req models.RegenerationRequest
	if err := pgxscan.Get(ctx, r.db, &req, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения запроса на перегенерацию: %w", err)
	}
	return &req, nil
}

func (r *pgRegenerationRequestRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.RegenerationRequest, error) {
	query := `
        SELECT id, project_id, target_type, target_id, status, max_attempts, attempts_used,
               generated_urls, selected_url, requested_by, created_at, updated_at
        FROM regeneration_requests
        WHERE project_id = $1
        ORDER BY created_at DESC
    `
	var reqs []models.RegenerationRequest
	if err := pgxscan.Select(ctx, r.db, &reqs, query, projectID); err != nil {
		return nil, fmt.Errorf("ошибка чтения запросов проекта: %w", err)
	}
	return reqs, nil
}

func (r *pgRegenerationRequestRepository) Update(ctx context.Context, req *models.RegenerationRequest) error {
	// attempts_used только растет: условие в WHERE защищает инвариант и от
	// гонки двух вкладок, и от ошибочного отката в коде.
	query := `
        UPDATE regeneration_requests
        SET status = $2, max_attempts = $3, attempts_used = $4,
            generated_urls = $5, selected_url = $6, updated_at = NOW()
        WHERE id = $1 AND attempts_used <= $4
    `
	tag, err := r.db.Exec(ctx, query,
		req.ID,
		req.Status,
		req.MaxAttempts,
		req.AttemptsUsed,
		nonNilURLs(req.GeneratedURLs),
		req.SelectedURL,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления запроса на перегенерацию: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// nonNilURLs приводит nil к пустому списку: колонка generated_urls объявлена
// NOT NULL, а pgx кодирует nil-срез в SQL NULL.
func nonNilURLs(urls []string) []string {
	if urls == nil {
		return []string{}
	}
	return urls
}
