package domain

import "errors"

var (
	ErrUnauthorized            = errors.New("unauthorized")
	ErrNotFound                = errors.New("not found")
	ErrUnsupportedMediaKind    = errors.New("unsupported media kind")
	ErrMalformedUpload         = errors.New("malformed upload")
	ErrChainIntegrityViolation = errors.New("custody chain integrity violation")
	ErrAnalysisTimeout         = errors.New("analysis timed out")
	ErrAnalysisFailure         = errors.New("analysis failed")
	ErrAnalysisInFlight        = errors.New("analysis already in flight")
	ErrRateLimited             = errors.New("rate limited")
	ErrPolicyDenied            = errors.New("report release denied by policy")
)
