// Package orchestrator drives the full spec -> hash -> checkpoint ->
// verify -> activate pipeline: it is the only package that calls out to an
// LLM provider, and the only package that writes checkpoints. The CLI and
// the runtime Loader both sit on top of it — the Loader through the
// narrow Compiler interface, the CLI through the verb methods here.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vibesafe/internal/audit"
	"vibesafe/internal/checkpoint"
	"vibesafe/internal/config"
	"vibesafe/internal/hashing"
	"vibesafe/internal/logging"
	"vibesafe/internal/pipeline"
	"vibesafe/internal/prompt"
	"vibesafe/internal/provider"
	"vibesafe/internal/reasoning"
	"vibesafe/internal/spec"
	"vibesafe/internal/validate"
	"vibesafe/internal/verification"
	"vibesafe/internal/vserrors"

	"go.uber.org/zap"
)

// Orchestrator composes every pipeline stage behind the verbs the CLI and
// the runtime Loader call. It reuses each wrapped provider client across
// calls and keeps one Reasoner as the running
// picture of every unit's derived status.
type Orchestrator struct {
	cfg       *config.Config
	extractor *spec.Extractor
	renderer  *prompt.Renderer
	validator *validate.Validator
	harness   *verification.Harness
	store     *checkpoint.Store
	reasoner  *reasoning.Reasoner
	auditDB   *audit.DB

	providers map[string]provider.Provider
}

// New wires an Orchestrator from a resolved Config. auditDB may be nil,
// in which case run history is not persisted (used by tests).
func New(cfg *config.Config, store *checkpoint.Store, auditDB *audit.DB) (*Orchestrator, error) {
	reasoner, err := reasoning.New()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	return &Orchestrator{
		cfg:       cfg,
		extractor: spec.NewExtractor(),
		renderer:  prompt.NewRenderer(""),
		validator: validate.NewValidator(validate.Config{}),
		harness:   verification.NewHarness(cfg.Sandbox, cfg.Execution.MaxParallelGates),
		store:     store,
		reasoner:  reasoner,
		auditDB:   auditDB,
		providers: map[string]provider.Provider{},
	}, nil
}

// Close releases the extractor's and validator's tree-sitter parsers.
func (o *Orchestrator) Close() {
	o.extractor.Close()
	o.validator.Close()
}

// sourceRoots resolves every configured source root to an absolute path.
func (o *Orchestrator) sourceRoots() []string {
	roots := make([]string, len(o.cfg.Paths.Sources))
	for i, r := range o.cfg.Paths.Sources {
		roots[i] = o.cfg.ResolvePath(r)
	}
	return roots
}

// ScanAll extracts every unit under the project's configured source roots.
func (o *Orchestrator) ScanAll(ctx context.Context) ([]spec.Spec, error) {
	return o.extractor.Scan(ctx, o.sourceRoots())
}

// findUnit re-walks the source tree to locate the file declaring unitID,
// since a Spec itself carries no file path (§3.3 — Specs are
// reconstructed, not persisted).
func (o *Orchestrator) findUnit(ctx context.Context, unitID string) (spec.Spec, string, error) {
	files, err := spec.ScanFiles(o.sourceRoots())
	if err != nil {
		return spec.Spec{}, "", err
	}
	for _, f := range files {
		specs, err := o.extractor.ExtractFile(ctx, f)
		if err != nil {
			return spec.Spec{}, "", err
		}
		for _, s := range specs {
			if s.UnitID == unitID {
				return s, f, nil
			}
		}
	}
	return spec.Spec{}, "", vserrors.NewSentinelMissing(unitID)
}

// Compile satisfies loader.Compiler: it generates, validates, verifies,
// checkpoints, and — only on a full gate pass — activates unitID's
// implementation. This is the method the dev-mode Loader calls
// synchronously on a cache miss or hash drift.
func (o *Orchestrator) Compile(ctx context.Context, unitID string) error {
	return o.CompileForce(ctx, unitID, false)
}

// CompileForce is Compile with control over whether an unchanged
// spec/prompt pair is still served out of the provider cache. `vibesafe
// compile --force` sets force to bypass a stale-but-still-cached
// completion without needing to touch the spec to invalidate it.
func (o *Orchestrator) CompileForce(ctx context.Context, unitID string, force bool) error {
	s, _, err := o.findUnit(ctx, unitID)
	if err != nil {
		return err
	}
	return o.compile(ctx, s, force)
}

func (o *Orchestrator) compile(ctx context.Context, s spec.Spec, force bool) error {
	attempt := uuid.New().String()
	start := time.Now()
	log := logging.ForUnit(s.UnitID, "compile").With(zap.String("attempt", attempt))

	providerName := s.Options.Provider
	prov, err := o.resolveProvider(providerName)
	if err != nil {
		o.record(s.UnitID, "compile", "error", err.Error(), "", "", start)
		return err
	}
	pc := o.cfg.GetProvider(providerName)

	if len(s.Examples) == 0 {
		log.Warn("unit declares no doctest examples; its checkpoint will not be eligible for activation")
	}

	templateID := o.cfg.ResolveTemplateID(s.TemplateRef, string(s.Kind))
	promptCtx := prompt.FromSpec(s, resolvedImportsFor(s))
	renderedPrompt, err := o.renderer.Render(s.UnitID, templateID, promptCtx)
	if err != nil {
		o.record(s.UnitID, "compile", "error", err.Error(), "", "", start)
		return err
	}

	specHash := hashing.SpecHash(pipeline.SpecHashInputsFor(o.cfg, s))
	promptHash := hashing.PromptHash(renderedPrompt)

	log.Info("requesting completion", zap.String("provider", pc.Kind), zap.String("model", pc.Model))
	completion, err := prov.Complete(ctx, provider.Request{
		UnitID:   s.UnitID,
		Prompt:   renderedPrompt,
		SpecHash: specHash,
		Params: hashing.ProviderParams{
			Seed:        pc.Seed,
			Temperature: pc.Temperature,
			MaxTokens:   pc.MaxTokens,
		},
		Force: force,
	})
	if err != nil {
		o.record(s.UnitID, "compile", "error", err.Error(), specHash, "", start)
		return err
	}

	artifact := extractCode(completion)
	if err := o.validator.Validate(ctx, s, artifact); err != nil {
		log.Warn("generated artifact failed structural validation", zap.Error(err))
		o.record(s.UnitID, "compile", "error", err.Error(), specHash, "", start)
		return err
	}

	implHash := hashing.ImplHash(artifact)
	chkHash := hashing.CheckpointHash(specHash, promptHash, implHash)

	reports, err := o.verifyArtifact(ctx, s, artifact)
	if err != nil {
		o.record(s.UnitID, "compile", "error", err.Error(), specHash, chkHash, start)
		return err
	}

	meta := checkpoint.Meta{
		UnitID:       s.UnitID,
		SpecHash:     specHash,
		PromptHash:   promptHash,
		ImplHash:     implHash,
		CheckpointID: hashing.ShortHash(chkHash, 12),
		Provider:     pc.Kind,
		Model:        pc.Model,
		Seed:         pc.Seed,
		Temperature:  pc.Temperature,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		GateReport:   toGateResults(reports),
		HashInputs: checkpoint.HashInputsEcho{
			SignatureText:    s.SignatureText,
			TemplateID:       templateID,
			ProviderIdentity: pipeline.ProviderIdentity(o.cfg, providerName),
		},
		Deps: toDepPins(s.DependencyDigest),
	}

	if err := o.store.Write(s.UnitID, chkHash, artifact, meta); err != nil {
		o.record(s.UnitID, "compile", "error", err.Error(), specHash, chkHash, start)
		return err
	}
	o.assertCheckpointFacts(s.UnitID, specHash, chkHash, reports)

	if !allPassed(reports) {
		gate, detail := firstFailure(reports)
		log.Warn("checkpoint written but failed a gate, not activating", zap.String("gate", gate))
		o.record(s.UnitID, "compile", "error", detail, specHash, chkHash, start)
		return vserrors.NewGateFailure(s.UnitID, gate2category(gate), detail)
	}

	if len(s.Examples) == 0 {
		log.Warn("checkpoint written but unit has no doctest examples, not activating")
		err := vserrors.NewMissingDoctest(s.UnitID)
		o.record(s.UnitID, "compile", "error", err.Error(), specHash, chkHash, start)
		return err
	}

	if err := o.store.Activate(ctx, s.UnitID, chkHash, time.Now()); err != nil {
		o.record(s.UnitID, "compile", "error", err.Error(), specHash, chkHash, start)
		return err
	}
	_ = o.reasoner.AssertActive(s.UnitID, chkHash)
	_ = o.reasoner.Recompute()

	log.Info("checkpoint activated", zap.String("checkpoint", chkHash))
	o.record(s.UnitID, "compile", "ok", "", specHash, chkHash, start)
	return nil
}

// verifyArtifact runs the harness against a not-yet-checkpointed artifact
// in a throwaway directory, so the lint and type-check gates have real
// files to operate on before anything is written to the checkpoint store
// (compile writes the checkpoint afterwards, whether or not the gates
// passed, and activates it only on a full pass).
func (o *Orchestrator) verifyArtifact(ctx context.Context, s spec.Spec, artifact []byte) ([]verification.GateReport, error) {
	tmp, err := os.MkdirTemp("", "vibesafe-verify-*")
	if err != nil {
		return nil, fmt.Errorf("orchestrator: create verify dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := os.WriteFile(filepath.Join(tmp, "impl.go"), artifact, 0o644); err != nil {
		return nil, fmt.Errorf("orchestrator: write candidate: %w", err)
	}

	candidate := verification.Candidate{UnitID: s.UnitID, Spec: s, Impl: artifact, CheckpointDir: tmp}
	return o.harness.Run(ctx, candidate), nil
}

func (o *Orchestrator) record(unitID, phase, outcome, detail, specHash, chkHash string, start time.Time) {
	if o.auditDB == nil {
		return
	}
	if err := o.auditDB.Record(audit.RunRecord{
		UnitID:    unitID,
		Phase:     phase,
		Outcome:   outcome,
		Detail:    detail,
		SpecHash:  specHash,
		ChkHash:   chkHash,
		Duration:  time.Since(start),
		Timestamp: start,
	}); err != nil {
		logging.ForUnit(unitID, phase).Warn("failed to record audit entry", zap.Error(err))
	}
}

// resolvedImportsFor projects a Spec's already-resolved dependency digest
// into the list the prompt template renders as ResolvedImports: the
// distinct ResolvedPath values, which are the files declaring the unit's
// resolved dependencies, not import paths. This avoids a second
// tree-sitter pass over source the Extractor already walked.
func resolvedImportsFor(s spec.Spec) []string {
	seen := map[string]bool{}
	var out []string
	for _, d := range s.DependencyDigest {
		if d.ResolvedPath == "" || seen[d.ResolvedPath] {
			continue
		}
		seen[d.ResolvedPath] = true
		out = append(out, d.ResolvedPath)
	}
	return out
}

// extractCode strips a markdown fenced code block from an LLM completion,
// if present, so a model that wraps its answer in ```go ... ``` still
// validates and hashes on the bare source it contains.
func extractCode(completion string) []byte {
	text := strings.TrimSpace(completion)
	if !strings.HasPrefix(text, "```") {
		return []byte(text)
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return []byte(text)
	}
	lines = lines[1:] // drop opening fence, e.g. "```go"
	end := len(lines)
	for i, l := range lines {
		if strings.TrimSpace(l) == "```" {
			end = i
			break
		}
	}
	return []byte(strings.TrimSpace(strings.Join(lines[:end], "\n")))
}

func allPassed(reports []verification.GateReport) bool {
	for _, r := range reports {
		if !r.Passed {
			return false
		}
	}
	return true
}

func firstFailure(reports []verification.GateReport) (gate, detail string) {
	for _, r := range reports {
		if !r.Passed {
			return r.Gate, r.Detail
		}
	}
	return "", ""
}

func gate2category(gate string) vserrors.GateCategory {
	switch gate {
	case "lint":
		return vserrors.GateLint
	case "typecheck":
		return vserrors.GateType
	default:
		return vserrors.GateExampleMismatch
	}
}

func toGateResults(reports []verification.GateReport) []checkpoint.GateResult {
	out := make([]checkpoint.GateResult, len(reports))
	for i, r := range reports {
		out[i] = checkpoint.GateResult{Gate: r.Gate, Passed: r.Passed, Detail: r.Detail, Category: string(r.Category)}
	}
	return out
}

func toDepPins(deps []hashing.DependencyEntry) []checkpoint.DepPin {
	out := make([]checkpoint.DepPin, len(deps))
	for i, d := range deps {
		out[i] = checkpoint.DepPin{Name: d.Name, ContentHash: d.ContentHash}
	}
	return out
}
