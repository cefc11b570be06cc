package models

import "github.com/google/uuid"

// NotificationLevel - уровень уведомления для пользователя.
type NotificationLevel string

const (
	NotificationLevelSuccess NotificationLevel = "success"
	NotificationLevelWarning NotificationLevel = "warning"
	NotificationLevelError   NotificationLevel = "error"
)

// UserNotification - fire-and-forget сообщение для поверхности уведомлений UI.
// Доставка не обязана быть надежной или упорядоченной.
type UserNotification struct {
	UserID    uuid.UUID         `json:"userId"`
	ProjectID uuid.UUID         `json:"projectId"`
	Level     NotificationLevel `json:"level"`
	Message   string            `json:"message"`
	JobID     string            `json:"jobId,omitempty"`
}
