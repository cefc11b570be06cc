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
var _ ArtifactRepository = (*pgArtifactRepository)(nil)

type pgArtifactRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgArtifactRepository создает репозиторий артефактов поверх Postgres.
func NewPgArtifactRepository(db DBTX, logger *zap.Logger) ArtifactRepository {
	return &pgArtifactRepository{
		db:     db,
		logger: logger.Named("PgArtifactRepo"),
	}
}

func (r *pgArtifactRepository) Create(ctx context.Context, artifact *models.Artifact) error {
	query := `
        INSERT INTO artifacts (id, project_id, kind, image_url, locked, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
    `
	logFields := []zap.Field{
		zap.String("artifactID", artifact.ID.String()),
		zap.String("projectID", artifact.ProjectID.String()),
	}

	_, err := r.db.Exec(ctx, query,
		artifact.ID,
		artifact.ProjectID,
		artifact.Kind,
		artifact.ImageURL,
		artifact.Locked,
	)
	if err != nil {
		r.logger.Error("Failed to create artifact", append(logFields, zap.Error(err))...)
		return fmt.Errorf("ошибка создания артефакта: %w", err)
	}
	r.logger.Debug("Artifact created", logFields...)
	return nil
}

func (r *pgArtifactRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error) {
	query := `
        SELECT id, project_id, kind, image_url, locked, created_at, updated_at
        FROM artifacts
        WHERE id = $1
    `
	var artifact models.Artifact
	if err := pgxscan.Get(ctx, r.db, &artifact, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения артефакта: %w", err)
	}
	return &artifact, nil
}

func (r *pgArtifactRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Artifact, error) {
	query := `
        SELECT id, project_id, kind, image_url, locked, created_at, updated_at
        FROM artifacts
        WHERE project_id = $1
        ORDER BY created_at
    `
	var artifacts []models.Artifact
	if err := pgxscan.Select(ctx, r.db, &artifacts, query, projectID); err != nil {
		return nil, fmt.Errorf("ошибка чтения артефактов проекта: %w", err)
	}
	return artifacts, nil
}

func (r *pgArtifactRepository) UpdateImageURL(ctx context.Context, id uuid.UUID, imageURL string) error {
	query := `UPDATE artifacts SET image_url = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, imageURL)
	if err != nil {
		return fmt.Errorf("ошибка обновления изображения артефакта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetLocked пишет флаг и читает его обратно одним запросом: зеркало в памяти
// обновляется подтвержденным значением, а не предположенным.
func (r *pgArtifactRepository) SetLocked(ctx context.Context, id uuid.UUID, locked bool) (bool, error) {
	query := `UPDATE artifacts SET locked = $2, updated_at = NOW() WHERE id = $1 RETURNING locked`
	var confirmed bool
	if err := r.db.QueryRow(ctx, query, id, locked).Scan(&confirmed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, models.ErrNotFound
		}
		return false, fmt.Errorf("ошибка переключения блокировки: %w", err)
	}
	return confirmed, nil
}

func (r *pgArtifactRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Запросы на перегенерацию/удаление удаляются каскадом (FK).
	query := `DELETE FROM artifacts WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления артефакта: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	r.logger.Info("Artifact deleted", zap.String("artifactID", id.String()))
	return nil
}
