package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"film-generator/internal/models"
	"film-generator/pkg/retry"
)

// ImageGenerator - синхронная генерация одного изображения-кандидата.
// Используется попытками перегенерации: один вызов - один URL, без фоновой
// задачи и поллинга.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, payload models.GenerationPayload) (string, error)
}

// ImageGeneratorConfig содержит настройки клиента одиночной генерации.
// Таймаут заметно выше обычного: вызов ждет готовое изображение.
type ImageGeneratorConfig struct {
	BaseURL string `env:"IMAGE_GENERATOR_BASE_URL" env-required:"true"`
	Timeout int    `env:"IMAGE_GENERATOR_TIMEOUT_SEC" env-default:"180"` // Таймаут в секундах
}

type httpImageGeneratorImpl struct {
	logger  *zap.Logger
	baseURL string
	http    *http.Client
	retrier *retry.Executor
}

var _ ImageGenerator = (*httpImageGeneratorImpl)(nil)

// NewImageGenerator создает HTTP-клиент одиночной генерации изображений.
func NewImageGenerator(logger *zap.Logger, cfg ImageGeneratorConfig, retrier *retry.Executor) (ImageGenerator, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("image generator base URL is not configured")
	}
	return &httpImageGeneratorImpl{
		logger:  logger.Named("ImageGenerator"),
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		retrier: retrier,
	}, nil
}

type generateImageResponse struct {
	ImageURL string `json:"imageUrl"`
}

func (c *httpImageGeneratorImpl) GenerateImage(ctx context.Context, payload models.GenerationPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation payload: %w", err)
	}

	imageURL, err := retry.DoValue(ctx, c.retrier, func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("%w: %v", models.ErrTransient, err)
		}
		defer resp.Body.Close()

		respBody, readErr := io.ReadAll(resp.Body)
		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated:
			if readErr != nil {
				return "", fmt.Errorf("%w: reading generation response: %v", models.ErrTransient, readErr)
			}
			var gr generateImageResponse
			if err := json.Unmarshal(respBody, &gr); err != nil {
				return "", fmt.Errorf("failed to decode generation response: %w", err)
			}
			if gr.ImageURL == "" {
				return "", fmt.Errorf("generation response without image url: %s", string(respBody))
			}
			return gr.ImageURL, nil
		case http.StatusPaymentRequired:
			return "", fmt.Errorf("%w: %s", models.ErrInsufficientCredits, string(respBody))
		default:
			return "", classifyStatus(resp.StatusCode, respBody)
		}
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("Candidate image generated", zap.String("projectID", payload.ProjectID.String()))
	return imageURL, nil
}
