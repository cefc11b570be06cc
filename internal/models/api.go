package models

// Коды ошибок API для клиента.
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeTokenInvalid        = "TOKEN_INVALID"
	ErrCodeTokenExpired        = "TOKEN_EXPIRED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeJobConflict         = "JOB_CONFLICT"
	ErrCodeJobActive           = "JOB_ALREADY_ACTIVE"
	ErrCodeInsufficientFunds   = "INSUFFICIENT_CREDITS"
	ErrCodeLockedResource      = "ARTIFACT_LOCKED"
	ErrCodeAttemptsExhausted   = "ATTEMPTS_EXHAUSTED"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeUnknownCandidate    = "UNKNOWN_CANDIDATE"
	ErrCodeRequestTerminal     = "REQUEST_TERMINAL"
	ErrCodeNotRequester        = "NOT_REQUESTER"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// ErrorResponse - стандартное тело ошибки API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
