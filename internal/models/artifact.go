package models

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactKind - тип сгенерированного артефакта.
type ArtifactKind string

const (
	ArtifactKindSceneImage ArtifactKind = "scene_image"
	ArtifactKindSceneText  ArtifactKind = "scene_text"
)

// Artifact - сгенерированный артефакт проекта (например, изображение сцены).
// Пока Locked == true, все мутирующие действия над артефактом отклоняются
// до сетевого вызова; флаг переключает только админ.
type Artifact struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	ProjectID uuid.UUID    `json:"projectId" db:"project_id"`
	Kind      ArtifactKind `json:"kind" db:"kind"`
	ImageURL  *string      `json:"imageUrl,omitempty" db:"image_url"`
	Locked    bool         `json:"locked" db:"locked"`
	CreatedAt time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time    `json:"updatedAt" db:"updated_at"`
}
