// Package execution содержит клиент сервиса фонового исполнения задач
// генерации (GPU-эндпоинты). Контракт узкий: submit/status/cancel/activeJob.
// Сами алгоритмы планирования задач живут на стороне сервиса.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"film-generator/internal/models"
	"film-generator/pkg/retry"
)

// Client определяет контракт сервиса исполнения.
type Client interface {
	// Submit отправляет новую задачу. Конфликт (активная задача того же типа
	// уже существует у проекта) возвращается как *ConflictError.
	Submit(ctx context.Context, kind models.JobKind, payload models.GenerationPayload) (string, error)
	// Status возвращает текущее состояние задачи.
	Status(ctx context.Context, jobID string) (models.Job, error)
	// Cancel отправляет запрос на отмену. Отмена кооперативная: удаленная
	// работа может успеть завершиться.
	Cancel(ctx context.Context, jobID string) error
	// ActiveJob возвращает активную задачу проекта указанного типа или nil.
	ActiveJob(ctx context.Context, projectID uuid.UUID, kind models.JobKind) (*models.Job, error)
}

// ConflictError - ответ 409 сервиса исполнения: эквивалентная задача уже
// выполняется. Несет ID существующей задачи, чтобы оркестратор мог
// присоединиться к ней вместо повторной отправки.
type ConflictError struct {
	ExistingJobID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%v: existing job %s", models.ErrJobConflict, e.ExistingJobID)
}

// Is позволяет errors.Is(err, models.ErrJobConflict) для типизированного конфликта.
func (e *ConflictError) Is(target error) bool {
	return target == models.ErrJobConflict
}

// Config содержит настройки клиента.
type Config struct {
	BaseURL string `env:"EXECUTION_SERVICE_BASE_URL" env-required:"true"`
	Timeout int    `env:"EXECUTION_SERVICE_TIMEOUT_SEC" env-default:"30"` // Таймаут в секундах
}

type httpClientImpl struct {
	logger  *zap.Logger
	baseURL string
	http    *http.Client
	retrier *retry.Executor
}

// NewClient создает HTTP-клиент сервиса исполнения. Каждый вызов заворачивается
// в retry-экзекьютор: временные сетевые сбои поглощаются здесь, бизнес-ответы
// (409, 402) уходят наверх без повтора.
func NewClient(logger *zap.Logger, cfg Config, retrier *retry.Executor) (Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("execution service base URL is not configured")
	}
	return &httpClientImpl{
		logger:  logger.Named("ExecutionClient"),
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		retrier: retrier,
	}, nil
}

// submitResponse - тело ответа на submit.
type submitResponse struct {
	JobID string `json:"jobId"`
}

// conflictResponse - тело ответа 409.
type conflictResponse struct {
	ExistingJobID string `json:"existingJobId"`
}

type submitRequest struct {
	Kind    models.JobKind           `json:"kind"`
	Payload models.GenerationPayload `json:"payload"`
}

func (c *httpClientImpl) Submit(ctx context.Context, kind models.JobKind, payload models.GenerationPayload) (string, error) {
	log := c.logger.With(
		zap.String("kind", string(kind)),
		zap.String("projectID", payload.ProjectID.String()),
	)

	body, err := json.Marshal(submitRequest{Kind: kind, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("failed to marshal submit payload: %w", err)
	}

	jobID, err := retry.DoValue(ctx, c.retrier, func(ctx context.Context) (string, error) {
		resp, err := c.doRequest(ctx, http.MethodPost, "/jobs", bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)

		switch resp.StatusCode {
		case http.StatusAccepted, http.StatusOK, http.StatusCreated:
			if readErr != nil {
				return "", fmt.Errorf("%w: reading submit response: %v", models.ErrTransient, readErr)
			}
			var sr submitResponse
			if err := json.Unmarshal(respBody, &sr); err != nil {
				return "", fmt.Errorf("failed to decode submit response: %w", err)
			}
			return sr.JobID, nil
		case http.StatusConflict:
			var cr conflictResponse
			if err := json.Unmarshal(respBody, &cr); err != nil || cr.ExistingJobID == "" {
				return "", fmt.Errorf("conflict response without existing job id: %s", string(respBody))
			}
			return "", &ConflictError{ExistingJobID: cr.ExistingJobID}
		case http.StatusPaymentRequired:
			return "", fmt.Errorf("%w: %s", models.ErrInsufficientCredits, string(respBody))
		default:
			return "", classifyStatus(resp.StatusCode, respBody)
		}
	})
	if err != nil {
		return "", err
	}

	log.Info("Job submitted to execution service", zap.String("jobID", jobID))
	return jobID, nil
}

func (c *httpClientImpl) Status(ctx context.Context, jobID string) (models.Job, error) {
	return retry.DoValue(ctx, c.retrier, func(ctx context.Context) (models.Job, error) {
		resp, err := c.doRequest(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil)
		if err != nil {
			return models.Job{}, err
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusOK:
			if readErr != nil {
				return models.Job{}, fmt.Errorf("%w: reading status response: %v", models.ErrTransient, readErr)
			}
			var job models.Job
			if err := json.Unmarshal(respBody, &job); err != nil {
				return models.Job{}, fmt.Errorf("failed to decode job status: %w", err)
			}
			return job, nil
		case http.StatusNotFound:
			return models.Job{}, fmt.Errorf("%w: job %s", models.ErrJobNotFound, jobID)
		default:
			return models.Job{}, classifyStatus(resp.StatusCode, respBody)
		}
	})
}

func (c *httpClientImpl) Cancel(ctx context.Context, jobID string) error {
	return c.retrier.Do(ctx, func(ctx context.Context) error {
		resp, err := c.doRequest(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(jobID), nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
			return nil
		case http.StatusNotFound:
			// Задача уже неизвестна сервису - для отмены это успех.
			return nil
		default:
			return classifyStatus(resp.StatusCode, respBody)
		}
	})
}

func (c *httpClientImpl) ActiveJob(ctx context.Context, projectID uuid.UUID, kind models.JobKind) (*models.Job, error) {
	path := fmt.Sprintf("/jobs/active?projectId=%s&kind=%s", url.QueryEscape(projectID.String()), url.QueryEscape(string(kind)))
	return retry.DoValue(ctx, c.retrier, func(ctx context.Context) (*models.Job, error) {
		resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusOK:
			if readErr != nil {
				return nil, fmt.Errorf("%w: reading active job response: %v", models.ErrTransient, readErr)
			}
			var job models.Job
			if err := json.Unmarshal(respBody, &job); err != nil {
				return nil, fmt.Errorf("failed to decode active job: %w", err)
			}
			return &job, nil
		case http.StatusNoContent, http.StatusNotFound:
			return nil, nil
		default:
			return nil, classifyStatus(resp.StatusCode, respBody)
		}
	})
}

// doRequest выполняет один HTTP-вызов; транспортные ошибки помечаются
// как временные для retry-экзекьютора.
func (c *httpClientImpl) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransient, err)
	}
	return resp, nil
}

// classifyStatus превращает неожиданный HTTP-статус в ошибку.
// 5xx считаются временными, 4xx - бизнес-ошибками.
func classifyStatus(status int, body []byte) error {
	if status >= 500 {
		return fmt.Errorf("%w: execution service returned %d: %s", models.ErrTransient, status, string(body))
	}
	return fmt.Errorf("execution service returned %d: %s", status, string(body))
}
