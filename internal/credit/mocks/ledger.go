package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"film-generator/internal/credit"
)

// Ledger is a mock type for the credit.Ledger type
type Ledger struct {
	mock.Mock
}

func (m *Ledger) Balance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *Ledger) InvalidateBalance(ctx context.Context, accountID uuid.UUID) {
	m.Called(ctx, accountID)
}

var _ credit.Ledger = (*Ledger)(nil)
