// Package handler содержит HTTP-поверхность сервиса: маршруты генерации,
// блокировок и процесса согласования поверх доменных сервисов.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"film-generator/internal/approval"
	"film-generator/internal/authutils"
	"film-generator/internal/execution"
	"film-generator/internal/models"
	"film-generator/internal/orchestrator"
	"film-generator/internal/repository"
)

// Handler обслуживает HTTP API сервиса.
type Handler struct {
	logger    *zap.Logger
	verifier  *authutils.JWTVerifier
	registry  *orchestrator.Registry
	approval  approval.Service
	execution execution.Client
	artifacts repository.ArtifactRepository
}

// NewHandler создает HTTP-обработчик.
func NewHandler(
	logger *zap.Logger,
	verifier *authutils.JWTVerifier,
	registry *orchestrator.Registry,
	approvalSvc approval.Service,
	executionClient execution.Client,
	artifacts repository.ArtifactRepository,
) *Handler {
	return &Handler{
		logger:    logger.Named("Handler"),
		verifier:  verifier,
		registry:  registry,
		approval:  approvalSvc,
		execution: executionClient,
		artifacts: artifacts,
	}
}

// RegisterRoutes регистрирует маршруты API.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	api.Use(h.AuthMiddleware())
	{
		projects := api.Group("/projects/:projectId")
		{
			projects.POST("/generations", h.submitGeneration)
			projects.GET("/generations/active", h.activeGeneration)
			projects.DELETE("/generations/:kind", h.cancelGeneration)

			projects.GET("/artifacts", h.listArtifacts)
			projects.POST("/artifacts", h.createArtifact)

			projects.GET("/regeneration-requests", h.listRegenerationRequests)
			projects.GET("/deletion-requests", h.listDeletionRequests)
		}

		api.GET("/generations/:jobId", h.getGeneration)

		artifacts := api.Group("/artifacts/:artifactId")
		{
			artifacts.POST("/lock-toggle", h.AdminOnly(), h.toggleLock)
			artifacts.PUT("/image", h.AdminOnly(), h.updateArtifactImage)
			artifacts.DELETE("", h.AdminOnly(), h.deleteArtifact)
			artifacts.POST("/regeneration-requests", h.createRegenerationRequest)
			artifacts.POST("/deletion-requests", h.createDeletionRequest)
		}

		regen := api.Group("/regeneration-requests/:requestId")
		{
			regen.POST("/approve", h.AdminOnly(), h.approveRegeneration)
			regen.POST("/reject", h.AdminOnly(), h.rejectRegeneration)
			regen.POST("/attempts", h.generateAttempt)
			regen.POST("/begin-selection", h.beginSelection)
			regen.POST("/selection", h.selectCandidate)
			regen.POST("/confirm", h.AdminOnly(), h.confirmRegeneration)
		}

		deletion := api.Group("/deletion-requests/:requestId")
		{
			deletion.POST("/approve", h.AdminOnly(), h.approveDeletion)
			deletion.POST("/reject", h.AdminOnly(), h.rejectDeletion)
		}
	}
}

// --- Generations ---

func (h *Handler) submitGeneration(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}

	var req submitGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
			Code: models.ErrCodeValidation, Message: "invalid request body: " + err.Error(),
		})
		return
	}
	if req.Kind != models.JobKindSceneText && req.Kind != models.JobKindImage {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
			Code: models.ErrCodeValidation, Message: "unknown generation kind",
		})
		return
	}

	actor := actorFrom(c)
	rt := h.registry.GetOrCreate(projectID, actor)

	outcome, err := rt.Orchestrator.Submit(c.Request.Context(), orchestrator.SubmitParams{
		Kind: req.Kind,
		Payload: models.GenerationPayload{
			Prompt:        req.Prompt,
			AspectRatio:   req.AspectRatio,
			Resolution:    req.Resolution,
			Steps:         req.Steps,
			Guidance:      req.GuidanceScale,
			Units:         req.Units,
			ProviderToken: req.ProviderToken,
		},
		CostEstimate:      req.CostEstimate,
		HasOwnCredentials: req.HasOwnCredentials,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if outcome.NeedsOwnCredentials {
		// Не ошибка: кредитов не хватает, UI предлагает собственные
		// учетные данные провайдера и повторяет отправку.
		c.JSON(http.StatusOK, submitGenerationResponse{NeedsOwnCredentials: true})
		return
	}

	c.JSON(http.StatusAccepted, submitGenerationResponse{
		JobID:    outcome.Handle.JobID,
		Attached: outcome.Handle.Attached,
	})
}

func (h *Handler) activeGeneration(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	kind := models.JobKind(c.Query("kind"))
	if kind != models.JobKindSceneText && kind != models.JobKindImage {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
			Code: models.ErrCodeValidation, Message: "unknown generation kind",
		})
		return
	}

	rt := h.registry.GetOrCreate(projectID, actorFrom(c))
	handle, err := rt.Orchestrator.Attach(c.Request.Context(), kind)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if handle == nil {
		c.Status(http.StatusNoContent)
		return
	}

	if job, ok := rt.Orchestrator.Snapshot(kind); ok {
		c.JSON(http.StatusOK, job)
		return
	}
	c.JSON(http.StatusOK, submitGenerationResponse{JobID: handle.JobID, Attached: true})
}

func (h *Handler) getGeneration(c *gin.Context) {
	job, err := h.execution.Status(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) cancelGeneration(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	kind := models.JobKind(c.Param("kind"))

	rt := h.registry.GetOrCreate(projectID, actorFrom(c))
	if err := rt.Orchestrator.Cancel(c.Request.Context(), kind); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Artifacts ---

func (h *Handler) listArtifacts(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	rt := h.registry.GetOrCreate(projectID, actorFrom(c))
	artifacts, err := rt.Artifacts.List(c.Request.Context(), projectID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, artifacts)
}

func (h *Handler) createArtifact(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	var body createArtifactBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
			Code: models.ErrCodeValidation, Message: "invalid request body: " + err.Error(),
		})
		return
	}

	rt := h.registry.GetOrCreate(projectID, actorFrom(c))
	artifact, err := rt.Artifacts.Create(c.Request.Context(), actorFrom(c), body.Kind)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, artifact)
}

func (h *Handler) toggleLock(c *gin.Context) {
	artifactID, rt, ok := h.resolveArtifactRuntime(c)
	if !ok {
		return
	}

	locked, err := rt.Locks.ToggleLock(c.Request.Context(), actorFrom(c), artifactID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toggleLockResponse{Locked: locked})
}

func (h *Handler) updateArtifactImage(c *gin.Context) {
	artifactID, rt, ok := h.resolveArtifactRuntime(c)
	if !ok {
		return
	}
	var body updateArtifactImageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
			Code: models.ErrCodeValidation, Message: "invalid request body: " + err.Error(),
		})
		return
	}

	if err := rt.Artifacts.UpdateImage(c.Request.Context(), actorFrom(c), artifactID, body.ImageURL); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteArtifact(c *gin.Context) {
	artifactID, rt, ok := h.resolveArtifactRuntime(c)
	if !ok {
		return
	}

	if err := rt.Artifacts.Delete(c.Request.Context(), actorFrom(c), artifactID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Regeneration requests ---

func (h *Handler) createRegenerationRequest(c *gin.Context) {
	artifactID, ok := parseUUIDParam(c, "artifactId")
	if !ok {
		return
	}

	req, err := h.approval.CreateRequest(c.Request.Context(), actorFrom(c), artifactID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *Handler) listRegenerationRequests(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	requests, err := h.approval.ListRequests(c.Request.Context(), projectID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *Handler) approveRegeneration(c *gin.Context) {
	requestID, ok := parseUUIDParam(c, "requestId")
	if !ok {
		return
	}
	var body approveRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
			Code: models.ErrCodeValidation, Message: "invalid request body: " + err.Error(),
		})
		return
	}

	req, err := h.approval.Approve(c.Request.Context(), actorFrom(c), requestID, body.MaxAttempts)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) rejectRegeneration(c *gin.Context) {
	requestID, ok := parseUUIDParam(c, "requestId")
	if !ok {
		return
	}
	req, err := h.approval.Reject(c.Request.Context(), actorFrom(c), requestID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) generateAttempt(c *gin.Context) {
	requestID, ok := parseUUIDParam(c, "requestId")
	if !ok {
		return
	}
	var body generateAttemptBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
			Code: models.ErrCodeValidation, Message: "invalid request body: " + err.Error(),
		})
		return
	}

	req, err := h.approval.Generate(c.Request.Context(), actorFrom(c), requestID, approval.GenerateParams{
		Prompt:        body.Prompt,
		AspectRatio:   body.AspectRatio,
		Resolution:    body.Resolution,
		Steps:         body.Steps,
		GuidanceScale: body.GuidanceScale,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) beginSelection(c *gin.Context) {
	requestID, ok := parseUUIDParam(c, "requestId")
	if !ok {
		return
	}
	req, err := h.approval.BeginSelection(c.Request.Context(), actorFrom(c), requestID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) selectCandidate(c *gin.Context) {
	requestID, ok := parseUUIDParam(c, "requestId")
	if !ok {
		return
	}
	var body selectCandidateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
			Code: models.ErrCodeValidation, Message: "invalid request body: " + err.Error(),
		})
		return
	}

	req, err := h.approval.Select(c.Request.Context(), actorFrom(c), requestID, body.SelectedURL)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) confirmRegeneration(c *gin.Context) {
	requestID, ok := parseUUIDParam(c, "requestId")
	if !ok {
		return
	}
	req, err := h.approval.Confirm(c.Request.Context(), actorFrom(c), requestID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

// --- Deletion requests ---

func (h *Handler) createDeletionRequest(c *gin.Context) {
	artifactID, ok := parseUUIDParam(c, "artifactId")
	if !ok {
		return
	}
	req, err := h.approval.CreateDeletionRequest(c.Request.Context(), actorFrom(c), artifactID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *Handler) listDeletionRequests(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	requests, err := h.approval.ListDeletionRequests(c.Request.Context(), projectID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *Handler) approveDeletion(c *gin.Context) {
	requestID, ok := parseUUIDParam(c, "requestId")
	if !ok {
		return
	}
	if err := h.approval.ApproveDeletion(c.Request.Context(), actorFrom(c), requestID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) rejectDeletion(c *gin.Context) {
	requestID, ok := parseUUIDParam(c, "requestId")
	if !ok {
		return
	}
	if err := h.approval.RejectDeletion(c.Request.Context(), actorFrom(c), requestID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Helpers ---

// resolveArtifactRuntime находит проектный рантайм по артефакту из пути.
func (h *Handler) resolveArtifactRuntime(c *gin.Context) (uuid.UUID, *orchestrator.ProjectRuntime, bool) {
	artifactID, ok := parseUUIDParam(c, "artifactId")
	if !ok {
		return uuid.Nil, nil, false
	}

	a, err := h.artifacts.GetByID(c.Request.Context(), artifactID)
	if err != nil {
		handleServiceError(c, err)
		return uuid.Nil, nil, false
	}

	return artifactID, h.registry.GetOrCreate(a.ProjectID, actorFrom(c)), true
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
			Code: models.ErrCodeValidation, Message: "invalid " + name,
		})
		return uuid.Nil, false
	}
	return id, true
}
