// Package retry выполняет одну логическую сетевую операцию с ограниченным
// числом повторов и экспоненциальной задержкой. Повторяются только временные
// классы отказов (обрыв соединения, таймаут, общий сетевой сбой); бизнес-ошибки
// возвращаются сразу. Экзекьютор не хранит состояния и безопасен для
// конкурентных вызовов.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"film-generator/internal/models"
)

// DefaultMaxRetries - число повторов по умолчанию.
const DefaultMaxRetries = 3

// DefaultInitialDelay - начальная задержка по умолчанию.
// Задержка перед повтором N считается как InitialDelay * 2^N.
const DefaultInitialDelay = 2 * time.Second

// Config содержит настройки экзекьютора.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration

	// sleep подменяется в тестах; nil означает реальное ожидание по таймеру.
	sleep func(ctx context.Context, d time.Duration) error
}

// Executor выполняет операции с повтором. Нулевое значение непригодно,
// используйте New.
type Executor struct {
	maxRetries   int
	initialDelay time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
}

// New создает экзекьютор. Нулевые поля конфига заменяются значениями по умолчанию.
func New(cfg Config) *Executor {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	initialDelay := cfg.InitialDelay
	if initialDelay <= 0 {
		initialDelay = DefaultInitialDelay
	}
	sleep := cfg.sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	return &Executor{
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		sleep:        sleep,
	}
}

// NewWithSleeper создает экзекьютор с подмененной функцией ожидания.
// Используется в тестах, чтобы не ждать реальные задержки.
func NewWithSleeper(cfg Config, sleep func(ctx context.Context, d time.Duration) error) *Executor {
	cfg.sleep = sleep
	return New(cfg)
}

// Do выполняет операцию, повторяя ее при временных сбоях.
// Итеративный цикл с явным счетчиком попыток: отмена контекста прерывает
// ожидание между повторами немедленно. Исчерпание повторов возвращает
// последнюю временную ошибку.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("retry aborted after %d attempts: %w", attempt, lastErr)
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			// Бизнес-ошибки и валидация уходят наверх без повтора.
			return err
		}
		lastErr = err

		if attempt >= e.maxRetries-1 {
			return fmt.Errorf("retries exhausted after %d attempts: %w", e.maxRetries, lastErr)
		}

		delay := e.initialDelay * (1 << attempt)
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("retry aborted during backoff: %w", lastErr)
		}
	}
}

// DoValue - вариант Do для операций, возвращающих значение.
func DoValue[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

// IsTransient классифицирует ошибку как временную.
// Временными считаются: явные models.ErrTransient, сетевые таймауты,
// обрыв/сброс соединения и преждевременное закрытие ответа.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, models.ErrTransient) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	// http.Client заворачивает обрывы в url.Error без типизированной причины.
	msg := err.Error()
	if strings.Contains(msg, "connection reset") || strings.Contains(msg, "connection refused") || strings.Contains(msg, "broken pipe") {
		return true
	}
	return false
}

// sleepWithContext ждет d или отмены контекста, смотря что наступит раньше.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
