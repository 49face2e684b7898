package domain

import "errors"

var (
	// ErrInvalidInput is returned for malformed specs or constraints
	// (e.g. non-positive budget) before any scoring runs
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a swap target is absent from its pool
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable is returned when a fetcher or judge call fails;
	// it degrades to UNKNOWN verdicts or fallback data, never aborts a batch
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrJudgeUnavailable is returned by judge stages that are not configured
	ErrJudgeUnavailable = errors.New("judge unavailable")
)
