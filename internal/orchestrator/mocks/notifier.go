package mocks

import (
	"context"
	"sync"

	"film-generator/internal/models"
	"film-generator/internal/orchestrator"
)

// Notifier - потокобезопасный мок поверхности уведомлений, собирающий
// все отправленные сообщения.
type Notifier struct {
	mu            sync.Mutex
	Notifications []models.UserNotification
}

func (m *Notifier) Notify(_ context.Context, notification models.UserNotification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, notification)
}

// Sent возвращает копию собранных уведомлений.
func (m *Notifier) Sent() []models.UserNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]models.UserNotification, len(m.Notifications))
	copy(result, m.Notifications)
	return result
}

var _ orchestrator.Notifier = (*Notifier)(nil)
