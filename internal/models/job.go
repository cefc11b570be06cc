package models

import (
	"time"

	"github.com/google/uuid"
)

// JobKind определяет тип фоновой задачи генерации.
type JobKind string

const (
	JobKindSceneText JobKind = "scene_text_generation"
	JobKindImage     JobKind = "image_generation"
)

// JobStatus представляет статус задачи на стороне сервиса исполнения.
type JobStatus string

const (
	JobStatusPending             JobStatus = "pending"
	JobStatusProcessing          JobStatus = "processing"
	JobStatusCompleted           JobStatus = "completed"
	JobStatusCompletedWithErrors JobStatus = "completed_with_errors"
	JobStatusFailed              JobStatus = "failed"
	JobStatusCancelled           JobStatus = "cancelled"
)

// IsTerminal сообщает, является ли статус терминальным.
// Терминальная задача никогда не возобновляется, только отчитывается.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job - одна единица фоновой работы генерации, которую мы наблюдаем поллингом.
// ID присваивается сервисом исполнения; у проекта не может быть двух активных
// задач одного типа одновременно.
type Job struct {
	ID             string     `json:"id"`
	ProjectID      uuid.UUID  `json:"projectId"`
	Kind           JobKind    `json:"kind"`
	Status         JobStatus  `json:"status"`
	Progress       int        `json:"progress"` // 0-100, не убывает пока processing
	TotalUnits     int        `json:"totalUnits"`
	CompletedUnits int        `json:"completedUnits"`
	FailedUnits    int        `json:"failedUnits"`
	ErrorDetails   *string    `json:"errorDetails,omitempty"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// IsActive сообщает, считается ли задача активной (занимает слот проекта).
func (j *Job) IsActive() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusProcessing
}

// GenerationPayload - полезная нагрузка, уходящая в сервис исполнения.
// Поля соответствуют параметрам GPU-эндпоинтов генерации.
type GenerationPayload struct {
	ProjectID   uuid.UUID `json:"projectId"`
	Prompt      string    `json:"prompt,omitempty"`
	AspectRatio string    `json:"aspectRatio,omitempty"` // "1:1", "16:9", "9:16", "4:3", "3:4", "3:2", "2:3"
	Resolution  string    `json:"resolution,omitempty"`  // "hd", "2k", "4k"
	Steps       int       `json:"numInferenceSteps,omitempty"`
	Guidance    float64   `json:"guidanceScale,omitempty"`
	Units       int       `json:"units,omitempty"` // количество сцен/изображений в задаче

	// SkipCreditCheck выставляется при повторной отправке с собственными
	// учетными данными провайдера (fallback кредитного гейта).
	SkipCreditCheck bool    `json:"skipCreditCheck,omitempty"`
	ProviderToken   *string `json:"providerToken,omitempty"`
}
