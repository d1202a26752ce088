package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"

	"vibesafe/internal/config"
	"vibesafe/internal/hashing"
	"vibesafe/internal/pipeline"
	"vibesafe/internal/reasoning"
	"vibesafe/internal/verification"
	"vibesafe/internal/vserrors"
)

// Save activates an already-written checkpoint for unitID, without
// re-running gates. It exists for the `vibesafe save` verb: a human
// reviewing `vibesafe test` output on a specific historical hash can
// activate it directly, bypassing Compile's auto-activate-on-full-pass
// policy. It still enforces the same activation invariant Compile does —
// a unit with no doctest examples, or a checkpoint whose stored gate
// report contains a failure, can never become active.
func (o *Orchestrator) Save(ctx context.Context, unitID, hChk string) error {
	start := time.Now()

	s, _, err := o.findUnit(ctx, unitID)
	if err != nil {
		o.record(unitID, "save", "error", err.Error(), "", hChk, start)
		return err
	}
	if len(s.Examples) == 0 {
		err := vserrors.NewMissingDoctest(unitID)
		o.record(unitID, "save", "error", err.Error(), "", hChk, start)
		return err
	}

	_, meta, err := o.store.Read(unitID, hChk)
	if err != nil {
		o.record(unitID, "save", "error", err.Error(), "", hChk, start)
		return err
	}
	for _, g := range meta.GateReport {
		if !g.Passed {
			err := vserrors.NewGateFailure(unitID, vserrors.GateCategory(g.Category),
				fmt.Sprintf("checkpoint %s failed gate %s: %s", hashing.ShortHash(hChk, 12), g.Gate, g.Detail))
			o.record(unitID, "save", "error", err.Error(), meta.SpecHash, hChk, start)
			return err
		}
	}

	if err := o.store.Activate(ctx, unitID, hChk, time.Now()); err != nil {
		o.record(unitID, "save", "error", err.Error(), meta.SpecHash, hChk, start)
		return err
	}
	_ = o.reasoner.AssertActive(unitID, hChk)
	_ = o.reasoner.Recompute()
	o.record(unitID, "save", "ok", "", meta.SpecHash, hChk, start)
	return nil
}

// Verify re-runs the gate harness against an already-checkpointed
// implementation, for `vibesafe test`. It reads the checkpoint's impl.go
// straight out of the store rather than the temp copy Compile used, so a
// regression introduced by an unrelated verification-gate change (a new
// golangci-lint version, say) is caught without regenerating anything.
func (o *Orchestrator) Verify(ctx context.Context, unitID, hChk string) ([]verification.GateReport, error) {
	s, _, err := o.findUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	impl, _, err := o.store.Read(unitID, hChk)
	if err != nil {
		return nil, err
	}

	candidate := verification.Candidate{
		UnitID:        unitID,
		Spec:          s,
		Impl:          impl,
		CheckpointDir: o.store.CheckpointDir(unitID, hChk),
	}
	reports := o.harness.Run(ctx, candidate)
	specHash := hashing.SpecHash(pipeline.SpecHashInputsFor(o.cfg, s))
	o.assertCheckpointFacts(unitID, specHash, hChk, reports)
	_ = o.reasoner.Recompute()
	return reports, nil
}

// Status derives every scanned unit's current state via internal/reasoning,
// asserting the facts fresh from the checkpoint store on each call so a
// checkpoint written by another process is picked up.
func (o *Orchestrator) Status(ctx context.Context) ([]reasoning.UnitStatus, error) {
	specs, err := o.ScanAll(ctx)
	if err != nil {
		return nil, err
	}

	o.reasoner.Reset()
	ids := make([]string, 0, len(specs))
	for _, s := range specs {
		ids = append(ids, s.UnitID)
		_ = o.reasoner.AssertUnit(s.UnitID)
		_ = o.reasoner.AssertSpecHash(s.UnitID, hashing.SpecHash(pipeline.SpecHashInputsFor(o.cfg, s)))
		_ = o.reasoner.AssertExampleCount(s.UnitID, len(s.Examples))

		hashes, err := o.store.ListCheckpoints(s.UnitID)
		if err != nil {
			return nil, err
		}
		for _, h := range hashes {
			_, meta, err := o.store.Read(s.UnitID, h)
			if err != nil {
				continue
			}
			_ = o.reasoner.AssertCheckpoint(s.UnitID, h, meta.SpecHash)
			for _, g := range meta.GateReport {
				_ = o.reasoner.AssertGateResult(s.UnitID, h, g.Gate, g.Passed)
			}
		}
		if active, err := o.store.Active(s.UnitID); err == nil && active != "" {
			_ = o.reasoner.AssertActive(s.UnitID, active)
		}
	}

	if err := o.reasoner.Recompute(); err != nil {
		return nil, err
	}
	return o.reasoner.AllStatuses(ids)
}

// Diff renders a unified diff between two of unitID's checkpointed
// implementations. Computing the hunks is go-difflib's job (go-diff's own
// package only parses and prints the unified format, it never generates
// one); go-diff then parses the result back to report a hunk count,
// catching a malformed diff before it reaches a terminal.
func (o *Orchestrator) Diff(unitID, hashA, hashB string) (string, error) {
	implA, _, err := o.store.Read(unitID, hashA)
	if err != nil {
		return "", err
	}
	implB, _, err := o.store.Read(unitID, hashB)
	if err != nil {
		return "", err
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(implA)),
		B:        difflib.SplitLines(string(implB)),
		FromFile: fmt.Sprintf("%s@%s", unitID, hashing.ShortHash(hashA, 12)),
		ToFile:   fmt.Sprintf("%s@%s", unitID, hashing.ShortHash(hashB, 12)),
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("orchestrator: render diff: %w", err)
	}
	if text == "" {
		return "", nil
	}

	fd, err := diff.ParseFileDiff([]byte(text))
	if err != nil {
		return "", vserrors.NewStorageError(unitID, "WriteFailed", fmt.Sprintf("malformed diff output: %v", err))
	}
	return fmt.Sprintf("%s\n# %d hunk(s), +%d/-%d lines\n", text, len(fd.Hunks), added(fd), removed(fd)), nil
}

func added(fd *diff.FileDiff) int {
	n := 0
	for _, h := range fd.Hunks {
		for _, line := range bytes.Split(h.Body, []byte("\n")) {
			if len(line) > 0 && line[0] == '+' {
				n++
			}
		}
	}
	return n
}

func removed(fd *diff.FileDiff) int {
	n := 0
	for _, h := range fd.Hunks {
		for _, line := range bytes.Split(h.Body, []byte("\n")) {
			if len(line) > 0 && line[0] == '-' {
				n++
			}
		}
	}
	return n
}

// Init scaffolds a new project at root: a default vibesafe.toml and the
// .vibesafe/ checkpoint tree, without overwriting an existing config.
func Init(root string) error {
	cfgPath := filepath.Join(root, "vibesafe.toml")
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("orchestrator: %s already exists", cfgPath)
	}

	cfg := config.Default()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("orchestrator: marshal default config: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
		return fmt.Errorf("orchestrator: write vibesafe.toml: %w", err)
	}

	for _, dir := range []string{".vibesafe/checkpoints", ".vibesafe/cache", "__generated__"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return fmt.Errorf("orchestrator: mkdir %s: %w", dir, err)
		}
	}
	return nil
}

// assertCheckpointFacts feeds one checkpoint's outcome into the reasoner
// so Status reflects it without a full re-scan.
func (o *Orchestrator) assertCheckpointFacts(unitID, specHash, chkHash string, reports []verification.GateReport) {
	_ = o.reasoner.AssertUnit(unitID)
	_ = o.reasoner.AssertSpecHash(unitID, specHash)
	_ = o.reasoner.AssertCheckpoint(unitID, chkHash, specHash)
	for _, r := range reports {
		_ = o.reasoner.AssertGateResult(unitID, chkHash, r.Gate, r.Passed)
	}
}
