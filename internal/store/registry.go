package store

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry выдает зеркало проекта по требованию. Одно зеркало на проект,
// создается лениво при первом обращении.
type Registry struct {
	logger *zap.Logger

	mu     sync.Mutex
	states map[uuid.UUID]*ProjectState
}

// NewRegistry создает пустой реестр зеркал.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger: logger,
		states: make(map[uuid.UUID]*ProjectState),
	}
}

// For возвращает зеркало проекта, создавая его при первом обращении.
func (r *Registry) For(projectID uuid.UUID) *ProjectState {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.states[projectID]
	if !ok {
		state = NewProjectState(projectID, r.logger)
		r.states[projectID] = state
	}
	return state
}
