package credit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"film-generator/internal/credit"
	"film-generator/internal/credit/mocks"
)

func TestGate_Authorize(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()

	t.Run("Sufficient balance proceeds on platform credit", func(t *testing.T) {
		mockLedger := new(mocks.Ledger)
		gate := credit.NewGate(mockLedger, zap.NewNop())

		// Сценарий A: 5 сцен по 10 кредитов при балансе 100
		mockLedger.On("Balance", ctx, accountID).Return(int64(100), nil).Once()

		decision, err := gate.Authorize(ctx, accountID, 50, false)
		require.NoError(t, err)
		assert.Equal(t, credit.DecisionProceed, decision)
		mockLedger.AssertExpectations(t)
	})

	t.Run("Insufficient balance falls back to own credentials", func(t *testing.T) {
		mockLedger := new(mocks.Ledger)
		gate := credit.NewGate(mockLedger, zap.NewNop())

		// Сценарий B: стоимость 10 при балансе 5 - не блокируем, предлагаем fallback
		mockLedger.On("Balance", ctx, accountID).Return(int64(5), nil).Once()

		decision, err := gate.Authorize(ctx, accountID, 10, false)
		require.NoError(t, err)
		assert.Equal(t, credit.DecisionFallbackToOwnCredentials, decision)
		mockLedger.AssertExpectations(t)
	})

	t.Run("Own credentials skip the ledger entirely", func(t *testing.T) {
		mockLedger := new(mocks.Ledger)
		gate := credit.NewGate(mockLedger, zap.NewNop())

		decision, err := gate.Authorize(ctx, accountID, 1_000_000, true)
		require.NoError(t, err)
		assert.Equal(t, credit.DecisionProceed, decision)
		mockLedger.AssertNotCalled(t, "Balance")
	})

	t.Run("Ledger error propagates", func(t *testing.T) {
		mockLedger := new(mocks.Ledger)
		gate := credit.NewGate(mockLedger, zap.NewNop())

		ledgerErr := errors.New("ledger unavailable")
		mockLedger.On("Balance", ctx, accountID).Return(int64(0), ledgerErr).Once()

		decision, err := gate.Authorize(ctx, accountID, 10, false)
		require.Error(t, err)
		assert.ErrorIs(t, err, ledgerErr)
		assert.Equal(t, credit.DecisionBlock, decision)
	})

	t.Run("Exact balance is sufficient", func(t *testing.T) {
		mockLedger := new(mocks.Ledger)
		gate := credit.NewGate(mockLedger, zap.NewNop())

		mockLedger.On("Balance", ctx, accountID).Return(int64(50), nil).Once()

		decision, err := gate.Authorize(ctx, accountID, 50, false)
		require.NoError(t, err)
		assert.Equal(t, credit.DecisionProceed, decision)
	})
}
