// Package vserrors defines the error taxonomy shared across the vibesafe
// pipeline: spec extraction, templating, provider calls, validation,
// verification gates, storage, and runtime integrity checks.
//
// Every error carries the failing unit id (when applicable), the phase in
// which it occurred and a remediation hint (Hint), so callers need not
// re-derive that context at the call site. The CLI prints the error
// message, which includes the phase, kind and unit id, but not the hint.
package vserrors

import "fmt"

// Phase identifies which pipeline stage produced an error.
type Phase string

const (
	PhaseExtract  Phase = "extract"
	PhaseHash     Phase = "hash"
	PhasePrompt   Phase = "prompt"
	PhaseProvider Phase = "provider"
	PhaseValidate Phase = "validate"
	PhaseStore    Phase = "store"
	PhaseVerify   Phase = "verify"
	PhaseLoad     Phase = "load"
	PhaseConfig   Phase = "config"
)

// VibesafeError is the common interface every taxonomy member implements.
type VibesafeError interface {
	error
	Unit() string
	Phase() Phase
	Hint() string
}

type base struct {
	unit  string
	phase Phase
	kind  string
	msg   string
	hint  string
}

func (b *base) Error() string {
	if b.unit != "" {
		return fmt.Sprintf("%s: %s: %s: %s", b.phase, b.kind, b.unit, b.msg)
	}
	return fmt.Sprintf("%s: %s: %s", b.phase, b.kind, b.msg)
}

func (b *base) Unit() string  { return b.unit }
func (b *base) Phase() Phase  { return b.phase }
func (b *base) Hint() string  { return b.hint }
func (b *base) Kind() string  { return b.kind }
func (b *base) Unwrap() error { return nil }

// SpecError kinds: MissingDoctest, InvalidSignature, SentinelMissing,
// DecoratorOptionInvalid.
type SpecError struct{ *base }

func NewMissingDoctest(unit string) *SpecError {
	return &SpecError{&base{unit: unit, phase: PhaseExtract, kind: "MissingDoctest",
		msg: "spec declares no doctest examples", hint: "add a >>> example to the docstring"}}
}

func NewInvalidSignature(unit, msg string) *SpecError {
	return &SpecError{&base{unit: unit, phase: PhaseExtract, kind: "InvalidSignature",
		msg: msg, hint: "annotate every parameter and the return type"}}
}

func NewSentinelMissing(unit string) *SpecError {
	return &SpecError{&base{unit: unit, phase: PhaseExtract, kind: "SentinelMissing",
		msg: "function body has no vibesafe.Handled() call", hint: "end the stub body with vibesafe.Handled()"}}
}

func NewDecoratorOptionInvalid(unit, option string) *SpecError {
	return &SpecError{&base{unit: unit, phase: PhaseExtract, kind: "DecoratorOptionInvalid",
		msg: fmt.Sprintf("unknown directive option %q", option), hint: "remove or correct the directive option"}}
}

// TemplateError kinds: TemplateNotFound, TemplateRenderError.
type TemplateError struct{ *base }

func NewTemplateNotFound(unit, path string) *TemplateError {
	return &TemplateError{&base{unit: unit, phase: PhasePrompt, kind: "TemplateNotFound",
		msg: fmt.Sprintf("template not found: %s", path), hint: "check prompts.* paths in vibesafe.toml"}}
}

func NewTemplateRenderError(unit string, err error) *TemplateError {
	return &TemplateError{&base{unit: unit, phase: PhasePrompt, kind: "TemplateRenderError",
		msg: err.Error(), hint: "fix the template or its context fields"}}
}

// ProviderCategory enumerates ProviderError categories.
type ProviderCategory string

const (
	ProviderAuth     ProviderCategory = "auth"
	ProviderQuota    ProviderCategory = "quota"
	ProviderNetwork  ProviderCategory = "network"
	ProviderProtocol ProviderCategory = "protocol"
	ProviderMalformed ProviderCategory = "malformed"
)

type ProviderError struct {
	*base
	Category ProviderCategory
}

func NewProviderError(unit string, category ProviderCategory, err error) *ProviderError {
	return &ProviderError{
		base:     &base{unit: unit, phase: PhaseProvider, kind: "ProviderError", msg: err.Error(), hint: "check provider credentials and network access"},
		Category: category,
	}
}

// Retryable reports whether a ProviderError category should be retried.
func (p *ProviderError) Retryable() bool {
	return p.Category == ProviderNetwork || p.Category == ProviderQuota
}

// ValidationError carries the structural/semantic failure kind and location.
type ValidationError struct {
	*base
	Location string
}

func NewValidationError(unit, kind, location, msg string) *ValidationError {
	return &ValidationError{
		base:     &base{unit: unit, phase: PhaseValidate, kind: kind, msg: msg, hint: "inspect the generated artifact at " + location},
		Location: location,
	}
}

// GateCategory enumerates GateFailure categories.
type GateCategory string

const (
	GateExampleMismatch GateCategory = "example_mismatch"
	GateLint            GateCategory = "lint"
	GateType            GateCategory = "type"
	GateTimeout         GateCategory = "timeout"
	GateSandbox         GateCategory = "sandbox"
)

type GateFailure struct {
	*base
	Category GateCategory
}

func NewGateFailure(unit string, category GateCategory, msg string) *GateFailure {
	return &GateFailure{
		base:     &base{unit: unit, phase: PhaseVerify, kind: "GateFailure", msg: msg, hint: "run `vibesafe test --target " + unit + "` for details"},
		Category: category,
	}
}

// StorageError kinds: WriteFailed, HashMismatchOnWrite, IndexLockContended.
type StorageError struct{ *base }

func NewStorageError(unit, kind, msg string) *StorageError {
	return &StorageError{&base{unit: unit, phase: PhaseStore, kind: kind, msg: msg, hint: "retry the operation; storage errors do not corrupt existing checkpoints"}}
}

// IntegrityError kinds: HashMismatch, CheckpointMissing. HashMismatch is
// produced by the runtime Loader in prod mode; CheckpointMissing by the
// Loader in either mode and by checkpoint.Store.Read when a checkpoint's
// files are absent.
type IntegrityError struct{ *base }

func NewHashMismatch(unit, sourceHash, checkpointHash string) *IntegrityError {
	return &IntegrityError{&base{unit: unit, phase: PhaseLoad, kind: "HashMismatch",
		msg:  fmt.Sprintf("source spec hash %s does not match checkpoint spec hash %s", sourceHash, checkpointHash),
		hint: "run `vibesafe compile` to regenerate, or revert the source change"}}
}

func NewCheckpointMissing(unit string) *IntegrityError {
	return &IntegrityError{&base{unit: unit, phase: PhaseLoad, kind: "CheckpointMissing",
		msg: "no active checkpoint for unit", hint: "run `vibesafe compile && vibesafe save --target " + unit + "`"}}
}

// ConfigError wraps a bad config file or environment variable.
type ConfigError struct{ *base }

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{&base{phase: PhaseConfig, kind: "ConfigError", msg: msg, hint: "check vibesafe.toml"}}
}
