package models

import (
	"time"

	"github.com/google/uuid"
)

// RegenerationStatus - статус запроса на перегенерацию артефакта.
type RegenerationStatus string

const (
	RegenerationStatusPending       RegenerationStatus = "pending"
	RegenerationStatusApproved      RegenerationStatus = "approved"
	RegenerationStatusGenerating    RegenerationStatus = "generating"
	RegenerationStatusSelecting     RegenerationStatus = "selecting"
	RegenerationStatusAwaitingFinal RegenerationStatus = "awaiting_final"
	RegenerationStatusCompleted     RegenerationStatus = "completed"
	RegenerationStatusRejected      RegenerationStatus = "rejected"
)

// IsTerminal сообщает, завершен ли запрос окончательно.
func (s RegenerationStatus) IsTerminal() bool {
	return s == RegenerationStatusCompleted || s == RegenerationStatusRejected
}

// TargetType - тип артефакта, на который нацелен запрос.
type TargetType string

const (
	TargetTypeImage TargetType = "image"
)

// RegenerationRequest - запрос коллаборатора на перегенерацию одного артефакта.
// Создается коллаборатором, одобряется/отклоняется админом; количество попыток
// ограничено MaxAttempts. AttemptsUsed только растет: когда попытки исчерпаны,
// дальнейшая генерация запрещена и запрос обязан перейти к выбору кандидата.
type RegenerationRequest struct {
	ID            uuid.UUID          `json:"id" db:"id"`
	ProjectID     uuid.UUID          `json:"projectId" db:"project_id"`
	TargetType    TargetType         `json:"targetType" db:"target_type"`
	TargetID      uuid.UUID          `json:"targetId" db:"target_id"`
	Status        RegenerationStatus `json:"status" db:"status"`
	MaxAttempts   int                `json:"maxAttempts" db:"max_attempts"`
	AttemptsUsed  int                `json:"attemptsUsed" db:"attempts_used"`
	GeneratedURLs []string           `json:"generatedUrls" db:"generated_urls"`
	SelectedURL   *string            `json:"selectedUrl,omitempty" db:"selected_url"`
	RequestedBy   uuid.UUID          `json:"requestedBy" db:"requested_by"`
	CreatedAt     time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time          `json:"updatedAt" db:"updated_at"`
}

// AttemptsExhausted сообщает, исчерпан ли бюджет попыток.
func (r *RegenerationRequest) AttemptsExhausted() bool {
	return r.AttemptsUsed >= r.MaxAttempts
}

// DeletionStatus - статус запроса на удаление артефакта.
type DeletionStatus string

const (
	DeletionStatusPending  DeletionStatus = "pending"
	DeletionStatusApproved DeletionStatus = "approved"
	DeletionStatusRejected DeletionStatus = "rejected"
)

// DeletionRequest - запрос коллаборатора на удаление артефакта вместо
// перегенерации. Структурно тот же объект управления, что и
// RegenerationRequest, но без бюджета попыток.
type DeletionRequest struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	ProjectID   uuid.UUID      `json:"projectId" db:"project_id"`
	TargetType  TargetType     `json:"targetType" db:"target_type"`
	TargetID    uuid.UUID      `json:"targetId" db:"target_id"`
	Status      DeletionStatus `json:"status" db:"status"`
	RequestedBy uuid.UUID      `json:"requestedBy" db:"requested_by"`
	CreatedAt   time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time      `json:"updatedAt" db:"updated_at"`
}
