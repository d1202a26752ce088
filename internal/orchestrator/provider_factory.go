package orchestrator

import (
	"context"
	"fmt"

	"vibesafe/internal/config"
	"vibesafe/internal/provider"
)

// resolveProvider returns the cached Provider for providerName, building
// and wrapping it (Cached, then WithRetry) on first use. Constructing an
// OpenAI or Gemini client is cheap, but the wrap order matters: caching
// sits closest to the network call so a retried request still checks
// disk first.
func (o *Orchestrator) resolveProvider(providerName string) (provider.Provider, error) {
	pc := o.cfg.GetProvider(providerName)
	key := providerName
	if key == "" {
		key = "default"
	}

	if p, ok := o.providers[key]; ok {
		return p, nil
	}

	apiKey, err := o.cfg.APIKey(providerName)
	if err != nil {
		return nil, err
	}

	var base provider.Provider
	switch pc.Kind {
	case "openai-compatible", "":
		base = provider.NewOpenAICompatible(apiKey, pc.BaseURL, pc.Model)
	case "gemini":
		g, err := provider.NewGemini(context.Background(), apiKey, pc.Model)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: gemini provider %q: %w", key, err)
		}
		base = g
	default:
		return nil, fmt.Errorf("orchestrator: unknown provider kind %q for %q", pc.Kind, key)
	}

	cacheDir := o.cfg.ResolvePath(o.cfg.Paths.Cache)
	wrapped := provider.NewWithRetry(provider.NewCached(base, cacheDir))
	o.providers[key] = wrapped
	return wrapped, nil
}

// runMode reports the resolved dev/prod mode.
func (o *Orchestrator) runMode() config.RunMode { return o.cfg.RunMode() }
