package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"film-generator/internal/approval"
	"film-generator/internal/authutils"
	"film-generator/internal/credit"
	creditmocks "film-generator/internal/credit/mocks"
	execmocks "film-generator/internal/execution/mocks"
	"film-generator/internal/handler"
	"film-generator/internal/models"
	"film-generator/internal/orchestrator"
	orchmocks "film-generator/internal/orchestrator/mocks"
	"film-generator/internal/poller"
	repomocks "film-generator/internal/repository/mocks"
	"film-generator/internal/store"
)

const jwtTestSecret = "test-secret-for-handler"

// --- Локальный мок approval.Service --- //

type approvalMock struct {
	mock.Mock
}

var _ approval.Service = (*approvalMock)(nil)

func (m *approvalMock) CreateRequest(ctx context.Context, actor models.Actor, targetID uuid.UUID) (*models.RegenerationRequest, error) {
	args := m.Called(ctx, actor, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegenerationRequest), args.Error(1)
}

func (m *approvalMock) Approve(ctx context.Context, actor models.Actor, requestID uuid.UUID, maxAttempts int) (*models.RegenerationRequest, error) {
	args := m.Called(ctx, actor, requestID, maxAttempts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegenerationRequest), args.Error(1)
}

func (m *approvalMock) Reject(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*models.RegenerationRequest, error) {
	args := m.Called(ctx, actor, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegenerationRequest), args.Error(1)
}

func (m *approvalMock) Generate(ctx context.Context, actor models.Actor, requestID uuid.UUID, params approval.GenerateParams) (*models.RegenerationRequest, error) {
	args := m.Called(ctx, actor, requestID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegenerationRequest), args.Error(1)
}

func (m *approvalMock) BeginSelection(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*models.RegenerationRequest, error) {
	args := m.Called(ctx, actor, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegenerationRequest), args.Error(1)
}

func (m *approvalMock) Select(ctx context.Context, actor models.Actor, requestID uuid.UUID, selectedURL string) (*models.RegenerationRequest, error) {
	args := m.Called(ctx, actor, requestID, selectedURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegenerationRequest), args.Error(1)
}

func (m *approvalMock) Confirm(ctx context.Context, actor models.Actor, requestID uuid.UUID) (*models.RegenerationRequest, error) {
	args := m.Called(ctx, actor, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RegenerationRequest), args.Error(1)
}

func (m *approvalMock) ListRequests(ctx context.Context, projectID uuid.UUID) ([]models.RegenerationRequest, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RegenerationRequest), args.Error(1)
}

func (m *approvalMock) CreateDeletionRequest(ctx context.Context, actor models.Actor, targetID uuid.UUID) (*models.DeletionRequest, error) {
	args := m.Called(ctx, actor, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DeletionRequest), args.Error(1)
}

func (m *approvalMock) ApproveDeletion(ctx context.Context, actor models.Actor, requestID uuid.UUID) error {
	return m.Called(ctx, actor, requestID).Error(0)
}

func (m *approvalMock) RejectDeletion(ctx context.Context, actor models.Actor, requestID uuid.UUID) error {
	return m.Called(ctx, actor, requestID).Error(0)
}

func (m *approvalMock) ListDeletionRequests(ctx context.Context, projectID uuid.UUID) ([]models.DeletionRequest, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DeletionRequest), args.Error(1)
}

// --- Сборка тестового окружения --- //

type handlerFixture struct {
	client    *execmocks.Client
	ledger    *creditmocks.Ledger
	artifacts *repomocks.ArtifactRepository
	approval  *approvalMock
	router    *gin.Engine

	adminID  uuid.UUID
	collabID uuid.UUID
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	f := &handlerFixture{
		client:    new(execmocks.Client),
		ledger:    new(creditmocks.Ledger),
		artifacts: new(repomocks.ArtifactRepository),
		approval:  new(approvalMock),
		adminID:   uuid.New(),
		collabID:  uuid.New(),
	}

	verifier, err := authutils.NewJWTVerifier(jwtTestSecret, logger)
	require.NoError(t, err)

	// Успешная отправка за платформенные кредиты сбрасывает кэш баланса.
	f.ledger.On("InvalidateBalance", mock.Anything, mock.Anything).Maybe()

	registry := orchestrator.NewRegistry(orchestrator.RegistryDeps{
		BaseCtx:   context.Background(),
		Logger:    logger,
		Client:    f.client,
		Gate:      credit.NewGate(f.ledger, logger),
		Artifacts: f.artifacts,
		Notifier:  &orchmocks.Notifier{},
		States:    store.NewRegistry(logger),
		// Большой интервал: в HTTP-тестах фоновый опрос не должен тикать.
		Config: orchestrator.Config{Poller: poller.Config{Interval: time.Hour, StuckThreshold: time.Hour}},
	})

	h := handler.NewHandler(logger, verifier, registry, f.approval, f.client, f.artifacts)

	f.router = gin.New()
	h.RegisterRoutes(f.router)
	return f
}

func (f *handlerFixture) token(t *testing.T, userID uuid.UUID, role models.Role) string {
	t.Helper()
	token, err := authutils.GenerateTestJWT(userID, role, jwtTestSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func (f *handlerFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// --- Тесты --- //

func TestAuthMiddleware(t *testing.T) {
	f := newHandlerFixture(t)
	projectID := uuid.New()

	t.Run("no token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/projects/"+projectID.String()+"/artifacts", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, models.ErrCodeTokenInvalid, decodeError(t, rec).Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/v1/projects/"+projectID.String()+"/artifacts", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		expired, err := authutils.GenerateTestJWT(f.adminID, models.RoleAdmin, jwtTestSecret, -time.Minute)
		require.NoError(t, err)

		rec := f.do(t, http.MethodGet, "/api/v1/projects/"+projectID.String()+"/artifacts", expired, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, models.ErrCodeTokenExpired, decodeError(t, rec).Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		forged, err := authutils.GenerateTestJWT(f.adminID, models.RoleAdmin, "another-secret", time.Hour)
		require.NoError(t, err)

		rec := f.do(t, http.MethodGet, "/api/v1/projects/"+projectID.String()+"/artifacts", forged, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("healthz is public", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSubmitGeneration(t *testing.T) {
	t.Run("successful submission", func(t *testing.T) {
		f := newHandlerFixture(t)
		projectID := uuid.New()
		token := f.token(t, f.adminID, models.RoleAdmin)

		f.ledger.On("Balance", mock.Anything, f.adminID).Return(int64(1000), nil).Once()
		f.client.On("Submit", mock.Anything, models.JobKindImage, mock.Anything).Return("J-100", nil).Once()
		// Фоновый поллер делает немедленный первый опрос после привязки.
		f.client.On("Status", mock.Anything, "J-100").
			Return(models.Job{ID: "J-100", Status: models.JobStatusProcessing}, nil).Maybe()

		rec := f.do(t, http.MethodPost, "/api/v1/projects/"+projectID.String()+"/generations", token, gin.H{
			"kind":         models.JobKindImage,
			"prompt":       "ночной город в дожде",
			"units":        5,
			"costEstimate": 50,
		})

		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		var resp struct {
			JobID    string `json:"jobId"`
			Attached bool   `json:"attached"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "J-100", resp.JobID)
		assert.False(t, resp.Attached)
		f.client.AssertExpectations(t)
	})

	t.Run("insufficient credits offers own credentials", func(t *testing.T) {
		f := newHandlerFixture(t)
		projectID := uuid.New()
		token := f.token(t, f.adminID, models.RoleAdmin)

		f.ledger.On("Balance", mock.Anything, f.adminID).Return(int64(10), nil).Once()

		rec := f.do(t, http.MethodPost, "/api/v1/projects/"+projectID.String()+"/generations", token, gin.H{
			"kind":         models.JobKindImage,
			"units":        5,
			"costEstimate": 500,
		})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp struct {
			NeedsOwnCredentials bool `json:"needsOwnCredentials"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.NeedsOwnCredentials)
		f.client.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown kind", func(t *testing.T) {
		f := newHandlerFixture(t)
		token := f.token(t, f.adminID, models.RoleAdmin)

		rec := f.do(t, http.MethodPost, "/api/v1/projects/"+uuid.NewString()+"/generations", token, gin.H{
			"kind": "sound_generation",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, models.ErrCodeValidation, decodeError(t, rec).Code)
	})

	t.Run("invalid project id", func(t *testing.T) {
		f := newHandlerFixture(t)
		token := f.token(t, f.adminID, models.RoleAdmin)

		rec := f.do(t, http.MethodPost, "/api/v1/projects/not-a-uuid/generations", token, gin.H{
			"kind": models.JobKindImage,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetGeneration(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.token(t, f.collabID, models.RoleCollaborator)

	f.client.On("Status", mock.Anything, "J-7").
		Return(models.Job{ID: "J-7", Status: models.JobStatusProcessing, Progress: 40}, nil).Once()

	rec := f.do(t, http.MethodGet, "/api/v1/generations/J-7", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var job models.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "J-7", job.ID)
	assert.Equal(t, 40, job.Progress)

	f.client.On("Status", mock.Anything, "J-missing").
		Return(models.Job{}, models.ErrJobNotFound).Once()

	rec = f.do(t, http.MethodGet, "/api/v1/generations/J-missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, models.ErrCodeNotFound, decodeError(t, rec).Code)
}

func TestToggleLock(t *testing.T) {
	t.Run("admin toggles lock", func(t *testing.T) {
		f := newHandlerFixture(t)
		token := f.token(t, f.adminID, models.RoleAdmin)

		artifactID := uuid.New()
		projectID := uuid.New()
		f.artifacts.On("GetByID", mock.Anything, artifactID).
			Return(&models.Artifact{ID: artifactID, ProjectID: projectID, Kind: models.ArtifactKindSceneImage}, nil)
		f.artifacts.On("SetLocked", mock.Anything, artifactID, true).Return(true, nil).Once()

		rec := f.do(t, http.MethodPost, "/api/v1/artifacts/"+artifactID.String()+"/lock-toggle", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Locked bool `json:"locked"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Locked)
		f.artifacts.AssertExpectations(t)
	})

	t.Run("collaborator is rejected by middleware", func(t *testing.T) {
		f := newHandlerFixture(t)
		token := f.token(t, f.collabID, models.RoleCollaborator)

		rec := f.do(t, http.MethodPost, "/api/v1/artifacts/"+uuid.NewString()+"/lock-toggle", token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, models.ErrCodeForbidden, decodeError(t, rec).Code)
		f.artifacts.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("unknown artifact", func(t *testing.T) {
		f := newHandlerFixture(t)
		token := f.token(t, f.adminID, models.RoleAdmin)

		artifactID := uuid.New()
		f.artifacts.On("GetByID", mock.Anything, artifactID).Return(nil, models.ErrNotFound).Once()

		rec := f.do(t, http.MethodPost, "/api/v1/artifacts/"+artifactID.String()+"/lock-toggle", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRegenerationRequestEndpoints(t *testing.T) {
	t.Run("create request", func(t *testing.T) {
		f := newHandlerFixture(t)
		token := f.token(t, f.collabID, models.RoleCollaborator)

		artifactID := uuid.New()
		created := &models.RegenerationRequest{
			ID:          uuid.New(),
			TargetID:    artifactID,
			Status:      models.RegenerationStatusPending,
			RequestedBy: f.collabID,
		}
		f.approval.On("CreateRequest", mock.Anything,
			models.Actor{UserID: f.collabID, Role: models.RoleCollaborator}, artifactID).
			Return(created, nil).Once()

		rec := f.do(t, http.MethodPost, "/api/v1/artifacts/"+artifactID.String()+"/regeneration-requests", token, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp models.RegenerationRequest
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, created.ID, resp.ID)
		f.approval.AssertExpectations(t)
	})

	t.Run("approve requires positive budget", func(t *testing.T) {
		f := newHandlerFixture(t)
		token := f.token(t, f.adminID, models.RoleAdmin)

		rec := f.do(t, http.MethodPost, "/api/v1/regeneration-requests/"+uuid.NewString()+"/approve", token, gin.H{
			"maxAttempts": 0,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.approval.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("approve is admin only", func(t *testing.T) {
		f := newHandlerFixture(t)
		token := f.token(t, f.collabID, models.RoleCollaborator)

		rec := f.do(t, http.MethodPost, "/api/v1/regeneration-requests/"+uuid.NewString()+"/approve", token, gin.H{
			"maxAttempts": 3,
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("exhausted budget maps to conflict", func(t *testing.T) {
		f := newHandlerFixture(t)
		token := f.token(t, f.collabID, models.RoleCollaborator)
		requestID := uuid.New()

		f.approval.On("Generate", mock.Anything, mock.Anything, requestID, mock.Anything).
			Return(nil, models.ErrAttemptsExhausted).Once()

		rec := f.do(t, http.MethodPost, "/api/v1/regeneration-requests/"+requestID.String()+"/attempts", token, gin.H{
			"prompt": "другой ракурс",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, models.ErrCodeAttemptsExhausted, decodeError(t, rec).Code)
	})

	t.Run("foreign requester maps to forbidden", func(t *testing.T) {
		f := newHandlerFixture(t)
		token := f.token(t, f.collabID, models.RoleCollaborator)
		requestID := uuid.New()

		f.approval.On("Select", mock.Anything, mock.Anything, requestID, "https://cdn.example.com/c1.png").
			Return(nil, models.ErrNotRequester).Once()

		rec := f.do(t, http.MethodPost, "/api/v1/regeneration-requests/"+requestID.String()+"/selection", token, gin.H{
			"selectedUrl": "https://cdn.example.com/c1.png",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, models.ErrCodeNotRequester, decodeError(t, rec).Code)
	})
}

func TestDeletionRequestEndpoints(t *testing.T) {
	f := newHandlerFixture(t)
	adminToken := f.token(t, f.adminID, models.RoleAdmin)
	requestID := uuid.New()

	f.approval.On("ApproveDeletion", mock.Anything,
		models.Actor{UserID: f.adminID, Role: models.RoleAdmin}, requestID).
		Return(nil).Once()

	rec := f.do(t, http.MethodPost, "/api/v1/deletion-requests/"+requestID.String()+"/approve", adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	f.approval.AssertExpectations(t)

	// Терминальный запрос нельзя решить повторно
	f.approval.On("RejectDeletion", mock.Anything, mock.Anything, requestID).
		Return(models.ErrRequestTerminal).Once()

	rec = f.do(t, http.MethodPost, "/api/v1/deletion-requests/"+requestID.String()+"/reject", adminToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, models.ErrCodeRequestTerminal, decodeError(t, rec).Code)
}

func TestListEndpoints(t *testing.T) {
	f := newHandlerFixture(t)
	token := f.token(t, f.collabID, models.RoleCollaborator)
	projectID := uuid.New()

	f.approval.On("ListRequests", mock.Anything, projectID).
		Return([]models.RegenerationRequest{{ID: uuid.New(), ProjectID: projectID}}, nil).Once()

	rec := f.do(t, http.MethodGet, "/api/v1/projects/"+projectID.String()+"/regeneration-requests", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var requests []models.RegenerationRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &requests))
	assert.Len(t, requests, 1)

	f.approval.On("ListDeletionRequests", mock.Anything, projectID).
		Return([]models.DeletionRequest{}, nil).Once()

	rec = f.do(t, http.MethodGet, "/api/v1/projects/"+projectID.String()+"/deletion-requests", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
