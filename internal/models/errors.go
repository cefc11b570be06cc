package models

import "errors"

// Application-wide standard errors
var (
	// Common Resource/DB Errors
	ErrNotFound = errors.New("resource not found")

	// Authorization Errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Transient network failures. Wrapped around the underlying cause;
	// the retry executor is the only layer allowed to absorb these.
	ErrTransient = errors.New("transient network failure")

	// Generation & Credit Errors
	ErrInsufficientCredits = errors.New("insufficient platform credits")
	ErrJobConflict         = errors.New("an equivalent job is already running")
	ErrJobAlreadyActive    = errors.New("a job of this kind is already bound to this orchestrator")
	ErrJobNotFound         = errors.New("job not found")

	// Collaboration & Governance Errors
	ErrLockedResource      = errors.New("artifact is locked")
	ErrAttemptsExhausted   = errors.New("regeneration attempt budget exhausted")
	ErrInvalidTransition   = errors.New("invalid request state transition")
	ErrUnknownCandidate    = errors.New("selected url is not a generated candidate")
	ErrRequestTerminal     = errors.New("request is already in a terminal state")
	ErrNotRequester        = errors.New("only the requesting collaborator may perform this action")

	// General Request/Server Errors
	ErrInternalServer = errors.New("internal server error")
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidInput   = errors.New("invalid input data")
)
