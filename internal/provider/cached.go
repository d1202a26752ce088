package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"vibesafe/internal/hashing"
)

// cacheEnvelope is the on-disk JSON shape of one cache entry.
type cacheEnvelope struct {
	Completion string `json:"completion"`
	ResponseID string `json:"response_id"`
	Timestamp  string `json:"timestamp"`
}

// Cached wraps a Provider with a content-addressed disk cache keyed on
// spec hash, prompt hash, seed, and provider params — so recompiling an
// unchanged unit under an unchanged prompt never calls out to the network
// (§4.4's cache key: H_prompt || provider_identity, scoped by spec_hash).
type Cached struct {
	inner    Provider
	cacheDir string
}

// NewCached wraps inner with a cache rooted at cacheDir.
func NewCached(inner Provider, cacheDir string) *Cached {
	return &Cached{inner: inner, cacheDir: cacheDir}
}

func (c *Cached) Complete(ctx context.Context, req Request) (string, error) {
	promptHash := hashing.PromptHash(req.Prompt)
	key := cacheKey(req.SpecHash, promptHash, req.Params)
	path := filepath.Join(c.cacheDir, key+".bin")

	if !req.Force {
		if data, err := os.ReadFile(path); err == nil {
			var env cacheEnvelope
			if json.Unmarshal(data, &env) == nil {
				return env.Completion, nil
			}
		}
	}

	completion, err := c.inner.Complete(ctx, req)
	if err != nil {
		return "", err
	}

	env := cacheEnvelope{Completion: completion, ResponseID: key, Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if data, err := json.Marshal(env); err == nil {
		_ = writeAtomic(path, data)
	}
	return completion, nil
}

func cacheKey(specHash, promptHash string, params hashing.ProviderParams) string {
	h := sha256.New()
	h.Write([]byte(specHash))
	h.Write([]byte("\n"))
	h.Write([]byte(promptHash))
	h.Write([]byte("\n"))
	h.Write([]byte(strconv.Itoa(params.Seed)))
	h.Write([]byte("\n"))
	h.Write([]byte(sortedParamsJSON(params)))
	return hex.EncodeToString(h.Sum(nil))
}

// sortedParamsJSON renders params as JSON with keys in a fixed, sorted
// order so the cache key never depends on struct field order.
func sortedParamsJSON(params hashing.ProviderParams) string {
	m := map[string]any{
		"max_tokens":  params.MaxTokens,
		"seed":        params.Seed,
		"temperature": params.Temperature,
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := "{"
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%q:%v", k, m[k])
	}
	return out + "}"
}

// writeAtomic writes data to path via a temp file plus rename, so a
// concurrent reader never observes a partially-written cache entry.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
