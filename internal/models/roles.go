package models

import "github.com/google/uuid"

// Role определяет роль актора в проекте.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleCollaborator Role = "collaborator"
)

// Actor - аутентифицированный участник проекта, выполняющий действие.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin сообщает, обладает ли актор админскими привилегиями
// (одобрение запросов, переключение блокировки артефактов).
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
