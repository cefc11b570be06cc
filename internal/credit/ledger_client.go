package credit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"film-generator/internal/models"
	"film-generator/pkg/retry"
)

// LedgerConfig содержит настройки клиента кредитного леджера.
type LedgerConfig struct {
	BaseURL       string `env:"CREDIT_LEDGER_BASE_URL" env-required:"true"`
	Timeout       int    `env:"CREDIT_LEDGER_TIMEOUT_SEC" env-default:"10"`
	CacheTTLSec   int    `env:"CREDIT_BALANCE_CACHE_TTL_SEC" env-default:"15"`
}

// httpLedger - HTTP-клиент леджера с кэшем баланса в Redis.
// Баланс меняется извне (пополнения, другие списания), поэтому TTL короткий;
// после отправки задачи кэш инвалидируется явно.
type httpLedger struct {
	logger   *zap.Logger
	baseURL  string
	http     *http.Client
	retrier  *retry.Executor
	redis    *redis.Client
	cacheTTL time.Duration
}

// NewHTTPLedger создает клиент леджера. redisClient может быть nil - тогда
// кэширование отключено и каждый вызов идет в леджер напрямую.
func NewHTTPLedger(logger *zap.Logger, cfg LedgerConfig, retrier *retry.Executor, redisClient *redis.Client) (Ledger, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("credit ledger base URL is not configured")
	}
	return &httpLedger{
		logger:  logger.Named("CreditLedger"),
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		retrier:  retrier,
		redis:    redisClient,
		cacheTTL: time.Duration(cfg.CacheTTLSec) * time.Second,
	}, nil
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

func balanceKey(accountID uuid.UUID) string {
	return fmt.Sprintf("credit_balance:%s", accountID.String())
}

// Balance возвращает баланс аккаунта, используя кэш в Redis.
func (l *httpLedger) Balance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	log := l.logger.With(zap.String("accountID", accountID.String()))

	if l.redis != nil {
		cached, err := l.redis.Get(ctx, balanceKey(accountID)).Result()
		if err == nil {
			if balance, parseErr := strconv.ParseInt(cached, 10, 64); parseErr == nil {
				log.Debug("Balance served from cache", zap.Int64("balance", balance))
				return balance, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			// Проблемы Redis не должны блокировать проверку кредитов.
			log.Warn("Failed to read balance cache", zap.Error(err))
		}
	}

	balance, err := retry.DoValue(ctx, l.retrier, func(ctx context.Context) (int64, error) {
		return l.fetchBalance(ctx, accountID)
	})
	if err != nil {
		return 0, err
	}

	if l.redis != nil {
		if err := l.redis.Set(ctx, balanceKey(accountID), strconv.FormatInt(balance, 10), l.cacheTTL).Err(); err != nil {
			log.Warn("Failed to cache balance", zap.Error(err))
		}
	}

	return balance, nil
}

// InvalidateBalance сбрасывает кэшированный баланс аккаунта.
// Вызывается после отправки задачи, списывающей кредиты.
func (l *httpLedger) InvalidateBalance(ctx context.Context, accountID uuid.UUID) {
	if l.redis == nil {
		return
	}
	if err := l.redis.Del(ctx, balanceKey(accountID)).Err(); err != nil {
		l.logger.Warn("Failed to invalidate balance cache",
			zap.String("accountID", accountID.String()), zap.Error(err))
	}
}

func (l *httpLedger) fetchBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	endpointURL := fmt.Sprintf("%s/accounts/%s/balance", l.baseURL, accountID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create balance request: %w", err)
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return 0, fmt.Errorf("%w: ledger returned %d", models.ErrTransient, resp.StatusCode)
		}
		return 0, fmt.Errorf("ledger returned %d: %s", resp.StatusCode, string(body))
	}
	if readErr != nil {
		return 0, fmt.Errorf("%w: reading balance response: %v", models.ErrTransient, readErr)
	}

	var br balanceResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return 0, fmt.Errorf("failed to decode balance response: %w", err)
	}
	return br.Balance, nil
}
