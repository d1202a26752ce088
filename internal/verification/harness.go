// Package verification runs the gates a checkpointed implementation must
// pass before it may be activated: example replay under yaegi, a lint
// gate, a type-check gate, and an optional property gate folded into the
// example gate.
package verification

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vibesafe/internal/config"
	"vibesafe/internal/spec"
	"vibesafe/internal/vserrors"
)

// Candidate is one implementation awaiting verification.
type Candidate struct {
	UnitID        string
	Spec          spec.Spec
	Impl          []byte
	CheckpointDir string // holds impl.go, used by the lint gate (the type gate reads Impl)
}

// GateReport is one gate's outcome, persisted into a checkpoint's
// meta.toml gate_report table.
type GateReport struct {
	Gate     string
	Passed   bool
	Category vserrors.GateCategory
	Detail   string
}

// Harness runs the ordered gate set against candidates, optionally
// fanning out across many candidates with a bounded worker pool
// (mirrors the teacher's errgroup-based intelligence gatherer).
type Harness struct {
	sandbox     config.SandboxConfig
	maxParallel int
}

// NewHarness constructs a Harness. maxParallel bounds concurrent
// candidates in RunMany; it does not affect the gates within one
// candidate, which always run sequentially (cheap gates first).
func NewHarness(sandbox config.SandboxConfig, maxParallel int) *Harness {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	return &Harness{sandbox: sandbox, maxParallel: maxParallel}
}

// Run executes every gate for one candidate in order: examples, lint,
// type-check. A gate's own failure does not stop later gates from
// running, so a `vibesafe test` report shows every failure at once.
func (h *Harness) Run(ctx context.Context, c Candidate) []GateReport {
	var reports []GateReport
	reports = append(reports, h.runGate(ctx, "examples", func(gctx context.Context) GateReport {
		return RunExamples(gctx, c)
	}))
	reports = append(reports, h.runGate(ctx, "lint", func(gctx context.Context) GateReport {
		return RunLint(gctx, c, h.sandboxMemoryMB())
	}))
	reports = append(reports, h.runGate(ctx, "typecheck", func(gctx context.Context) GateReport {
		return RunTypeCheck(gctx, c, h.sandboxMemoryMB())
	}))
	return reports
}

func (h *Harness) sandboxMemoryMB() int {
	if !h.sandbox.Enabled {
		return 0
	}
	return h.sandbox.MemoryMB
}

func (h *Harness) gateTimeout() time.Duration {
	if h.sandbox.Timeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(h.sandbox.Timeout) * time.Second
}

func (h *Harness) runGate(ctx context.Context, name string, fn func(context.Context) GateReport) GateReport {
	gctx, cancel := context.WithTimeout(ctx, h.gateTimeout())
	defer cancel()

	done := make(chan GateReport, 1)
	go func() { done <- fn(gctx) }()

	select {
	case r := <-done:
		return r
	case <-gctx.Done():
		return GateReport{Gate: name, Passed: false, Category: vserrors.GateTimeout, Detail: "gate exceeded its timeout"}
	}
}

// RunMany verifies several candidates concurrently, bounded by
// h.maxParallel, and returns each candidate's report keyed by unit id.
func (h *Harness) RunMany(ctx context.Context, candidates []Candidate) map[string][]GateReport {
	results := make(map[string][]GateReport, len(candidates))
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(h.maxParallel)

	for _, c := range candidates {
		c := c
		eg.Go(func() error {
			r := h.Run(egCtx, c)
			mu.Lock()
			results[c.UnitID] = r
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return results
}
