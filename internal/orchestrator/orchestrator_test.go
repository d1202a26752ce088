package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vibesafe/internal/checkpoint"
	"vibesafe/internal/config"
	"vibesafe/internal/hashing"
	"vibesafe/internal/pipeline"
	"vibesafe/internal/reasoning"
	"vibesafe/internal/spec"
	"vibesafe/internal/verification"
)

func TestExtractCodeStripsMarkdownFence(t *testing.T) {
	completion := "```go\npackage impl\n\nfunc AddOne(a int) int {\n\treturn a + 1\n}\n```"
	got := string(extractCode(completion))
	want := "package impl\n\nfunc AddOne(a int) int {\n\treturn a + 1\n}"
	if got != want {
		t.Errorf("extractCode = %q, want %q", got, want)
	}
}

func TestExtractCodePassesThroughPlainSource(t *testing.T) {
	src := "package impl\n\nfunc AddOne(a int) int { return a + 1 }"
	if got := string(extractCode(src)); got != src {
		t.Errorf("extractCode = %q, want unchanged %q", got, src)
	}
}

func TestAllPassedAndFirstFailure(t *testing.T) {
	ok := []verification.GateReport{{Gate: "examples", Passed: true}, {Gate: "lint", Passed: true}}
	if !allPassed(ok) {
		t.Error("expected allPassed true when every gate passed")
	}

	bad := []verification.GateReport{{Gate: "examples", Passed: true}, {Gate: "lint", Passed: false, Detail: "unused import"}}
	if allPassed(bad) {
		t.Error("expected allPassed false with a failing gate")
	}
	gate, detail := firstFailure(bad)
	if gate != "lint" || detail != "unused import" {
		t.Errorf("firstFailure = (%q, %q), want (lint, unused import)", gate, detail)
	}
}

func TestResolvedImportsForDedupsAndSkipsEmpty(t *testing.T) {
	s := spec.Spec{DependencyDigest: []hashing.DependencyEntry{
		{Name: "fmt.Sprintf", ResolvedPath: "fmt", ContentHash: "h1"},
		{Name: "fmt.Errorf", ResolvedPath: "fmt", ContentHash: "h1"},
		{Name: "localHelper", ResolvedPath: "", ContentHash: "h2"},
		{Name: "strings.TrimSpace", ResolvedPath: "strings", ContentHash: "h3"},
	}}
	got := resolvedImportsFor(s)
	if len(got) != 2 || got[0] != "fmt" || got[1] != "strings" {
		t.Errorf("resolvedImportsFor = %v, want [fmt strings]", got)
	}
}

func TestInitScaffoldsProjectLayout(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "vibesafe.toml")); err != nil {
		t.Errorf("expected vibesafe.toml to exist: %v", err)
	}
	for _, sub := range []string{".vibesafe/checkpoints", ".vibesafe/cache", "__generated__"} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", sub)
		}
	}
	if err := Init(dir); err == nil {
		t.Error("expected second Init on the same root to fail")
	}
}

func setupOrchestrator(t *testing.T) (*Orchestrator, string, string) {
	t.Helper()
	dir := t.TempDir()
	sourceFile := filepath.Join(dir, "ops.go")
	src := `package ops

import "vibesafe"

// AddOne increments an integer.
//
// >>> AddOne(1)
// 2
//
//vibesafe:func provider=default
func AddOne(a int) int {
	vibesafe.Handled()
}
`
	if err := os.WriteFile(sourceFile, []byte(src), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	store := checkpoint.NewStore(filepath.Join(dir, ".vibesafe"))
	cfg := config.Default()
	cfg.Paths.Sources = []string{dir}

	o, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(o.Close)
	return o, dir, sourceFile
}

func TestSaveActivatesCheckpoint(t *testing.T) {
	o, _, _ := setupOrchestrator(t)

	impl := []byte("package impl\n\nfunc AddOne(a int) int { return a + 1 }\n")
	meta := checkpoint.Meta{UnitID: "ops/AddOne", SpecHash: "h1"}
	if err := o.store.Write("ops/AddOne", "chk1", impl, meta); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := o.Save(context.Background(), "ops/AddOne", "chk1"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	active, err := o.store.Active("ops/AddOne")
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if active != "chk1" {
		t.Errorf("active = %q, want chk1", active)
	}
}

func TestStatusReflectsActivatedCheckpoint(t *testing.T) {
	o, _, _ := setupOrchestrator(t)

	specs, err := o.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if len(specs) != 1 || specs[0].UnitID != "ops/AddOne" {
		t.Fatalf("unexpected scan result: %+v", specs)
	}

	statuses, err := o.Status(context.Background())
	if err != nil {
		t.Fatalf("Status (uncompiled): %v", err)
	}
	if len(statuses) != 1 || statuses[0].State != reasoning.StateUncompiled {
		t.Fatalf("expected uncompiled status, got %+v", statuses)
	}

	specHash := hashing.SpecHash(pipeline.SpecHashInputsFor(o.cfg, specs[0]))

	impl := []byte("package impl\n\nfunc AddOne(a int) int { return a + 1 }\n")
	meta := checkpoint.Meta{
		UnitID:     "ops/AddOne",
		SpecHash:   specHash,
		GateReport: []checkpoint.GateResult{{Gate: "examples", Passed: true}},
	}
	if err := o.store.Write("ops/AddOne", "chk1", impl, meta); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := o.store.Activate(context.Background(), "ops/AddOne", "chk1", time.Now()); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	statuses, err = o.Status(context.Background())
	if err != nil {
		t.Fatalf("Status (active): %v", err)
	}
	if len(statuses) != 1 || statuses[0].State != reasoning.StateActive {
		t.Fatalf("expected active status, got %+v", statuses)
	}
	if statuses[0].ExampleCount != 1 {
		t.Errorf("example count = %d, want 1", statuses[0].ExampleCount)
	}
}

// setupOrchestratorNoExamples writes a decorated unit with no doctest
// examples, for exercising the activation guard in Save/compile.
func setupOrchestratorNoExamples(t *testing.T) *Orchestrator {
	t.Helper()
	dir := t.TempDir()
	src := `package ops

import "vibesafe"

//vibesafe:func provider=default
func AddOne(a int) int {
	vibesafe.Handled()
}
`
	if err := os.WriteFile(filepath.Join(dir, "ops.go"), []byte(src), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	store := checkpoint.NewStore(filepath.Join(dir, ".vibesafe"))
	cfg := config.Default()
	cfg.Paths.Sources = []string{dir}

	o, err := New(cfg, store, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(o.Close)
	return o
}

func TestSaveRejectsUnitWithNoExamples(t *testing.T) {
	o := setupOrchestratorNoExamples(t)

	impl := []byte("package impl\n\nfunc AddOne(a int) int { return a + 1 }\n")
	meta := checkpoint.Meta{UnitID: "ops/AddOne", SpecHash: "h1"}
	if err := o.store.Write("ops/AddOne", "chk1", impl, meta); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := o.Save(context.Background(), "ops/AddOne", "chk1"); err == nil {
		t.Fatal("expected Save to reject a unit with no doctest examples")
	}

	if active, err := o.store.Active("ops/AddOne"); err == nil && active != "" {
		t.Fatalf("expected no active checkpoint, got %q", active)
	}
}

func TestSaveRejectsCheckpointWithFailingGate(t *testing.T) {
	o, _, _ := setupOrchestrator(t)

	impl := []byte("package impl\n\nfunc AddOne(a int) int { return a + 1 }\n")
	meta := checkpoint.Meta{
		UnitID:   "ops/AddOne",
		SpecHash: "h1",
		GateReport: []checkpoint.GateResult{
			{Gate: "examples", Passed: true},
			{Gate: "lint", Passed: false, Detail: "unused import", Category: "lint"},
		},
	}
	if err := o.store.Write("ops/AddOne", "chk1", impl, meta); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := o.Save(context.Background(), "ops/AddOne", "chk1"); err == nil {
		t.Fatal("expected Save to reject a checkpoint with a failing gate")
	}

	if active, err := o.store.Active("ops/AddOne"); err == nil && active != "" {
		t.Fatalf("expected no active checkpoint, got %q", active)
	}
}

func TestDiffProducesUnifiedDiff(t *testing.T) {
	o, _, _ := setupOrchestrator(t)

	implA := []byte("package impl\n\nfunc AddOne(a int) int { return a + 1 }\n")
	implB := []byte("package impl\n\nfunc AddOne(a int) int { return a + 2 }\n")
	if err := o.store.Write("ops/AddOne", "chkA", implA, checkpoint.Meta{UnitID: "ops/AddOne"}); err != nil {
		t.Fatalf("write chkA: %v", err)
	}
	if err := o.store.Write("ops/AddOne", "chkB", implB, checkpoint.Meta{UnitID: "ops/AddOne"}); err != nil {
		t.Fatalf("write chkB: %v", err)
	}

	out, err := o.Diff("ops/AddOne", "chkA", "chkB")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if out == "" {
		t.Fatal("expected non-empty diff between differing checkpoints")
	}
}
