// Package provider wraps LLM completion backends behind a single
// interface, decorated with caching and retry so the pipeline stages that
// call a provider never need to know which backend answered or whether
// the answer came from disk.
package provider

import (
	"context"

	"vibesafe/internal/hashing"
)

// Request carries everything a Provider needs to produce a completion,
// deliberately excluding anything time- or randomness-derived beyond the
// caller-supplied seed.
type Request struct {
	UnitID   string
	Prompt   string
	SpecHash string
	Params   hashing.ProviderParams

	// Force skips a Cached decorator's read of an existing cache entry,
	// so `vibesafe compile --force` always calls out to the provider even
	// when an unchanged spec/prompt pair is already cached. The fresh
	// completion still overwrites the cache entry afterward.
	Force bool
}

// Provider produces a single completion for a rendered prompt.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}
