package handler

import (
	"film-generator/internal/models"
)

// --- Request/Response Structs ---

type submitGenerationRequest struct {
	Kind              models.JobKind `json:"kind" binding:"required"`
	Prompt            string         `json:"prompt"`
	AspectRatio       string         `json:"aspectRatio"`
	Resolution        string         `json:"resolution"`
	Steps             int            `json:"steps"`
	GuidanceScale     float64        `json:"guidanceScale"`
	Units             int            `json:"units"`
	CostEstimate      int64          `json:"costEstimate"`
	HasOwnCredentials bool           `json:"hasOwnCredentials"`
	ProviderToken     *string        `json:"providerToken,omitempty"`
}

type submitGenerationResponse struct {
	JobID               string `json:"jobId,omitempty"`
	Attached            bool   `json:"attached"`
	NeedsOwnCredentials bool   `json:"needsOwnCredentials,omitempty"`
}

type toggleLockResponse struct {
	Locked bool `json:"locked"`
}

type approveRequestBody struct {
	MaxAttempts int `json:"maxAttempts" binding:"required,min=1"`
}

type generateAttemptBody struct {
	Prompt        string  `json:"prompt"`
	AspectRatio   string  `json:"aspectRatio"`
	Resolution    string  `json:"resolution"`
	Steps         int     `json:"steps"`
	GuidanceScale float64 `json:"guidanceScale"`
}

type selectCandidateBody struct {
	SelectedURL string `json:"selectedUrl" binding:"required"`
}

type createArtifactBody struct {
	Kind models.ArtifactKind `json:"kind" binding:"required"`
}

type updateArtifactImageBody struct {
	ImageURL string `json:"imageUrl" binding:"required"`
}
