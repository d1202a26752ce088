// Package config loads vibesafe.toml and resolves the effective RunMode,
// provider settings, and path layout for a project. Configuration is a
// value, not ambient global state; callers thread a *Config through the
// pipeline explicitly (the one package-level convenience, Load, mirrors the
// original CLI's upward vibesafe.toml search).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// RunMode selects strict (prod) or permissive (dev) integrity enforcement.
type RunMode string

const (
	Dev  RunMode = "dev"
	Prod RunMode = "prod"
)

// ProviderConfig configures one named LLM provider entry.
type ProviderConfig struct {
	Kind        string  `toml:"kind"`
	Model       string  `toml:"model"`
	BaseURL     string  `toml:"base_url"`
	APIKeyEnv   string  `toml:"api_key_env"`
	Seed        int     `toml:"seed"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     int     `toml:"timeout"` // seconds
}

func defaultProvider() ProviderConfig {
	return ProviderConfig{
		Kind:      "openai-compatible",
		Model:     "gpt-4o-mini",
		BaseURL:   "https://api.openai.com/v1",
		APIKeyEnv: "OPENAI_API_KEY",
		Seed:      42,
		Timeout:   60,
	}
}

// PathsConfig locates the checkpoint store, cache, and index on disk.
type PathsConfig struct {
	Checkpoints string   `toml:"checkpoints"`
	Cache       string   `toml:"cache"`
	Index       string   `toml:"index"`
	Generated   string   `toml:"generated"`
	Sources     []string `toml:"sources"`
}

func defaultPaths() PathsConfig {
	return PathsConfig{
		Checkpoints: ".vibesafe/checkpoints",
		Cache:       ".vibesafe/cache",
		Index:       ".vibesafe/index.toml",
		Generated:   "__generated__",
		Sources:     []string{"."},
	}
}

// PromptsConfig maps unit kind to a default template path.
type PromptsConfig struct {
	Function string `toml:"function"`
	HTTP     string `toml:"http"`
	CLI      string `toml:"cli"`
}

func defaultPrompts() PromptsConfig {
	return PromptsConfig{
		Function: "function",
		HTTP:     "http_endpoint",
		CLI:      "cli_command",
	}
}

// ProjectConfig is project-wide state, notably the default RunMode.
type ProjectConfig struct {
	Env string `toml:"env"`
}

// SandboxConfig controls gate execution isolation.
type SandboxConfig struct {
	Enabled  bool `toml:"enabled"`
	Timeout  int  `toml:"timeout"`   // seconds
	MemoryMB int  `toml:"memory_mb"`
}

func defaultSandbox() SandboxConfig {
	return SandboxConfig{Enabled: false, Timeout: 10, MemoryMB: 256}
}

// ExecutionConfig holds concurrency and timeout settings (§5).
// MaxParallelGates sizes the verification harness's worker pool; nothing
// reads MaxParallelProvider or ProviderTimeout.
type ExecutionConfig struct {
	MaxParallelProvider int `toml:"max_parallel_provider"`
	MaxParallelGates    int `toml:"max_parallel_gates"`
	ProviderTimeout     int `toml:"provider_timeout"` // seconds
}

func defaultExecution() ExecutionConfig {
	return ExecutionConfig{MaxParallelProvider: 4, MaxParallelGates: 4, ProviderTimeout: 60}
}

// LoggingConfig controls internal/logging's verbosity and format.
type LoggingConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

func defaultLogging() LoggingConfig {
	return LoggingConfig{Level: "info", JSON: false}
}

// Config is the root, fully-resolved project configuration.
type Config struct {
	Project   ProjectConfig             `toml:"project"`
	Provider  map[string]ProviderConfig `toml:"provider"`
	Paths     PathsConfig               `toml:"paths"`
	Prompts   PromptsConfig             `toml:"prompts"`
	Sandbox   SandboxConfig             `toml:"sandbox"`
	Execution ExecutionConfig           `toml:"execution"`
	Logging   LoggingConfig             `toml:"logging"`

	// rootDir is the directory vibesafe.toml was found in (or cwd), used to
	// resolve every relative path in Paths.
	rootDir string
}

// Default returns a Config populated entirely from built-in defaults, used
// when no vibesafe.toml is present (dev-friendly bootstrap).
func Default() *Config {
	cwd, _ := os.Getwd()
	return &Config{
		Project:   ProjectConfig{Env: string(Dev)},
		Provider:  map[string]ProviderConfig{"default": defaultProvider()},
		Paths:     defaultPaths(),
		Prompts:   defaultPrompts(),
		Sandbox:   defaultSandbox(),
		Execution: defaultExecution(),
		Logging:   defaultLogging(),
		rootDir:   cwd,
	}
}

// Load searches upward from the current directory for vibesafe.toml,
// falling back to Default() when none is found.
func Load() (*Config, error) {
	path, err := findConfig()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile parses a specific vibesafe.toml path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	cfg.rootDir = filepath.Dir(path)

	// Decode onto the defaulted struct so unset TOML sections keep their
	// built-in defaults rather than zero values.
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(cfg.Provider) == 0 {
		cfg.Provider = map[string]ProviderConfig{"default": defaultProvider()}
	}
	return cfg, nil
}

func findConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: getwd: %w", err)
	}
	for {
		candidate := filepath.Join(dir, "vibesafe.toml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// GetProvider looks up a named provider, falling back to "default".
func (c *Config) GetProvider(name string) ProviderConfig {
	if name == "" {
		name = "default"
	}
	if p, ok := c.Provider[name]; ok {
		return p
	}
	return c.Provider["default"]
}

// APIKey resolves the environment variable named by a provider's
// api_key_env field.
func (c *Config) APIKey(providerName string) (string, error) {
	p := c.GetProvider(providerName)
	key := os.Getenv(p.APIKeyEnv)
	if key == "" {
		return "", fmt.Errorf("config: API key not set in $%s", p.APIKeyEnv)
	}
	return key, nil
}

// ResolvePath resolves a possibly-relative path against the config root.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.rootDir, path)
}

// RunMode resolves the effective mode: $VIBESAFE_ENV overrides
// project.env, as specified in §3.1 / §6.2.
func (c *Config) RunMode() RunMode {
	if v := os.Getenv("VIBESAFE_ENV"); v == string(Prod) || v == string(Dev) {
		return RunMode(v)
	}
	if c.Project.Env == string(Prod) {
		return Prod
	}
	return Dev
}

// ResolveTemplateID picks the template identifier for a unit: an explicit
// override wins, otherwise the configured default for its kind (§4.3).
func (c *Config) ResolveTemplateID(explicit, kind string) string {
	if explicit != "" {
		return explicit
	}
	switch kind {
	case "http":
		return c.Prompts.HTTP
	case "cli":
		return c.Prompts.CLI
	default:
		return c.Prompts.Function
	}
}
