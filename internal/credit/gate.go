// Package credit решает, может ли действие выполняться за платформенные
// кредиты. Гейт не знает цен: стоимость считает вызывающий как цена за
// единицу * количество единиц, что позволяет переиспользовать гейт для всех
// типов генерации.
package credit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Decision - решение кредитного гейта.
type Decision int

const (
	// DecisionProceed - действие разрешено (за кредиты платформы либо за
	// собственные учетные данные вызывающего).
	DecisionProceed Decision = iota
	// DecisionFallbackToOwnCredentials - кредитов недостаточно; вызывающему
	// предлагается указать собственные учетные данные провайдера.
	DecisionFallbackToOwnCredentials
	// DecisionBlock - действие запрещено. Пока существует fallback-путь,
	// гейт никогда не блокирует молча; значение зарезервировано.
	DecisionBlock
)

func (d Decision) String() string {
	switch d {
	case DecisionProceed:
		return "proceed"
	case DecisionFallbackToOwnCredentials:
		return "fallback_to_own_credentials"
	case DecisionBlock:
		return "block"
	}
	return "unknown"
}

// Ledger - внешний сервис кредитного леджера.
type Ledger interface {
	Balance(ctx context.Context, accountID uuid.UUID) (int64, error)
	// InvalidateBalance сбрасывает локально закэшированный баланс аккаунта.
	InvalidateBalance(ctx context.Context, accountID uuid.UUID)
}

// Gate проверяет оценку стоимости против текущего баланса.
type Gate struct {
	ledger Ledger
	logger *zap.Logger
}

// NewGate создает кредитный гейт.
func NewGate(ledger Ledger, logger *zap.Logger) *Gate {
	return &Gate{
		ledger: ledger,
		logger: logger.Named("CreditGate"),
	}
}

// Authorize решает, может ли действие стоимостью costEstimate продолжиться.
// Наличие собственных учетных данных провайдера пропускает проверку баланса
// целиком: потребление платформенных кредитов не происходит.
func (g *Gate) Authorize(ctx context.Context, accountID uuid.UUID, costEstimate int64, hasOwnCredentials bool) (Decision, error) {
	if hasOwnCredentials {
		g.logger.Debug("Own provider credentials present, skipping credit check",
			zap.String("accountID", accountID.String()))
		return DecisionProceed, nil
	}

	balance, err := g.ledger.Balance(ctx, accountID)
	if err != nil {
		return DecisionBlock, fmt.Errorf("ошибка получения баланса: %w", err)
	}

	log := g.logger.With(
		zap.String("accountID", accountID.String()),
		zap.Int64("balance", balance),
		zap.Int64("costEstimate", costEstimate),
	)

	if balance >= costEstimate {
		log.Debug("Credit check passed")
		return DecisionProceed, nil
	}

	// Недостаточно кредитов, но fallback-путь существует всегда.
	log.Info("Insufficient credits, suggesting own credentials fallback")
	return DecisionFallbackToOwnCredentials, nil
}

// ConfirmSpend фиксирует фактическое списание платформенных кредитов:
// закэшированный баланс аккаунта устарел и сбрасывается.
func (g *Gate) ConfirmSpend(ctx context.Context, accountID uuid.UUID) {
	g.ledger.InvalidateBalance(ctx, accountID)
}
