// Package pipeline holds the small pieces of logic shared between the
// Orchestrator (which computes a spec's hash before generating a
// checkpoint) and the Loader (which recomputes the same hash to detect
// drift) — kept in one place so the two can never silently diverge.
package pipeline

import (
	"fmt"

	"vibesafe/internal/config"
	"vibesafe/internal/hashing"
	"vibesafe/internal/spec"
)

// ProviderIdentity renders "<kind>:<model>" for the provider a unit
// resolves to, the string that participates in a unit's SpecHash.
func ProviderIdentity(cfg *config.Config, providerName string) string {
	p := cfg.GetProvider(providerName)
	return fmt.Sprintf("%s:%s", p.Kind, p.Model)
}

// SpecHashInputsFor projects a Spec plus its resolved provider/template
// identity into the exact tuple hashing.SpecHash consumes.
func SpecHashInputsFor(cfg *config.Config, s spec.Spec) hashing.SpecHashInputs {
	providerName := s.Options.Provider
	provider := cfg.GetProvider(providerName)
	templateID := cfg.ResolveTemplateID(s.TemplateRef, string(s.Kind))

	deps := make([]hashing.DependencyEntry, len(s.DependencyDigest))
	copy(deps, s.DependencyDigest)

	return hashing.SpecHashInputs{
		Signature:        s.SignatureText,
		Docstring:        s.Docstring,
		PreHoleSource:    s.PreHoleSource,
		TemplateID:       templateID,
		ProviderIdentity: fmt.Sprintf("%s:%s", provider.Kind, provider.Model),
		Params: hashing.ProviderParams{
			Seed:        provider.Seed,
			Temperature: provider.Temperature,
			MaxTokens:   provider.MaxTokens,
		},
		Dependencies: deps,
	}
}
