package model

import "errors"

// Sentinel errors shared across the indexing and answering pipeline.
var (
	// ErrStoreUnavailable means no catalog generation has been promoted yet.
	// This is the only failure the serving layer surfaces to callers.
	ErrStoreUnavailable = errors.New("catalog store has no promoted generation")

	// ErrRateLimited means the upstream kept returning 429 after the bounded
	// retry. Treated per stage, never fatal to a whole rebuild.
	ErrRateLimited = errors.New("upstream rate limit exhausted")

	// ErrModelUnavailable means the language model call failed or returned
	// nothing usable. Always recovered via the deterministic fallback.
	ErrModelUnavailable = errors.New("language model unavailable")
)
