package loader

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
	"vibesafe/internal/spec"
	"vibesafe/internal/vserrors"
)

const addOneSource = `package ops

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

const addOneImpl = `package impl

func AddOne(a int) int {
	return a + 1
}
`

// fakeCompiler records how many times Compile was invoked and either
// writes a checkpoint matching the current source or returns a scripted
// error.
type fakeCompiler struct {
	calls   int
	store   *checkpoint.Store
	cfg     *config.Config
	sources string
	err     error
}

func (f *fakeCompiler) Compile(ctx context.Context, unitID string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	e := spec.NewExtractor()
	defer e.Close()
	specs, err := e.ExtractFile(ctx, f.sources)
	if err != nil {
		return err
	}
	var s spec.Spec
	for _, cand := range specs {
		if cand.UnitID == unitID {
			s = cand
		}
	}
	hChk := hashing.CheckpointHash(
		hashing.SpecHash(pipeline.SpecHashInputsFor(f.cfg, s)),
		"prompt-hash",
		hashing.ImplHash([]byte(addOneImpl)),
	)
	meta := checkpoint.Meta{
		UnitID:   unitID,
		SpecHash: hashing.SpecHash(pipeline.SpecHashInputsFor(f.cfg, s)),
	}
	if err := f.store.Write(unitID, hChk, []byte(addOneImpl), meta); err != nil {
		return err
	}
	return f.store.Activate(ctx, unitID, hChk, time.Now())
}

func setup(t *testing.T) (dir, sourceFile string, store *checkpoint.Store, cfg *config.Config) {
	t.Helper()
	dir = t.TempDir()
	sourceFile = filepath.Join(dir, "ops.go")
	if err := os.WriteFile(sourceFile, []byte(addOneSource), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	store = checkpoint.NewStore(filepath.Join(dir, ".vibesafe"))
	cfg = config.Default()
	return dir, sourceFile, store, cfg
}

func TestLoadDevModeCompilesOnMissingCheckpoint(t *testing.T) {
	_, sourceFile, store, cfg := setup(t)
	cfg.Project.Env = string(config.Dev)
	fc := &fakeCompiler{store: store, cfg: cfg, sources: sourceFile}
	l := New(store, spec.NewExtractor(), cfg, fc)

	callable, err := l.Load(context.Background(), sourceFile, "ops/AddOne")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fc.calls != 1 {
		t.Fatalf("expected compiler to be called once, got %d", fc.calls)
	}
	results, err := callable.Call(1)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(results) != 1 || results[0].(int) != 2 {
		t.Errorf("AddOne(1) = %v, want [2]", results)
	}
}

func TestLoadProdModeFailsOnMissingCheckpoint(t *testing.T) {
	_, sourceFile, store, cfg := setup(t)
	cfg.Project.Env = string(config.Prod)
	fc := &fakeCompiler{store: store, cfg: cfg, sources: sourceFile}
	l := New(store, spec.NewExtractor(), cfg, fc)

	_, err := l.Load(context.Background(), sourceFile, "ops/AddOne")
	if err == nil {
		t.Fatal("expected error in prod mode with no active checkpoint")
	}
	if _, ok := err.(*vserrors.IntegrityError); !ok {
		t.Errorf("expected *vserrors.IntegrityError, got %T (%v)", err, err)
	}
	if fc.calls != 0 {
		t.Errorf("compiler must not run in prod mode, got %d calls", fc.calls)
	}
}

func TestLoadProdModeFailsOnHashDrift(t *testing.T) {
	dir, sourceFile, store, cfg := setup(t)
	cfg.Project.Env = string(config.Dev)
	fc := &fakeCompiler{store: store, cfg: cfg, sources: sourceFile}
	l := New(store, spec.NewExtractor(), cfg, fc)

	if _, err := l.Load(context.Background(), sourceFile, "ops/AddOne"); err != nil {
		t.Fatalf("initial dev-mode load: %v", err)
	}

	drifted := `package ops

import "vibesafe"

// AddOne increments an integer, now documented differently.
//
// >>> AddOne(1)
// 2
//
//vibesafe:func provider=default
func AddOne(a int) int {
	vibesafe.Handled()
}
`
	if err := os.WriteFile(sourceFile, []byte(drifted), 0o644); err != nil {
		t.Fatalf("rewrite source: %v", err)
	}
	_ = dir

	cfg.Project.Env = string(config.Prod)
	_, err := l.Load(context.Background(), sourceFile, "ops/AddOne")
	if err == nil {
		t.Fatal("expected hash mismatch error in prod mode after drift")
	}
	if _, ok := err.(*vserrors.IntegrityError); !ok {
		t.Errorf("expected *vserrors.IntegrityError, got %T (%v)", err, err)
	}
}

func TestLoadMemoizesSameCheckpoint(t *testing.T) {
	_, sourceFile, store, cfg := setup(t)
	cfg.Project.Env = string(config.Dev)
	fc := &fakeCompiler{store: store, cfg: cfg, sources: sourceFile}
	l := New(store, spec.NewExtractor(), cfg, fc)

	if _, err := l.Load(context.Background(), sourceFile, "ops/AddOne"); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if _, err := l.Load(context.Background(), sourceFile, "ops/AddOne"); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if fc.calls != 1 {
		t.Errorf("expected compiler to run once across two loads of an unchanged spec, got %d", fc.calls)
	}
}

func TestInvalidateDropsMemoizedCallable(t *testing.T) {
	_, sourceFile, store, cfg := setup(t)
	cfg.Project.Env = string(config.Dev)
	fc := &fakeCompiler{store: store, cfg: cfg, sources: sourceFile}
	l := New(store, spec.NewExtractor(), cfg, fc)

	if _, err := l.Load(context.Background(), sourceFile, "ops/AddOne"); err != nil {
		t.Fatalf("first load: %v", err)
	}
	l.Invalidate("ops/AddOne")
	if _, err := l.Load(context.Background(), sourceFile, "ops/AddOne"); err != nil {
		t.Fatalf("reload after invalidate: %v", err)
	}
	// Reloading the same active checkpoint after invalidation must not
	// require recompilation, only re-interpretation.
	if fc.calls != 1 {
		t.Errorf("expected no additional compile after invalidate, got %d calls", fc.calls)
	}
}

func TestWatchInvalidationsInvalidatesOnEvent(t *testing.T) {
	_, sourceFile, store, cfg := setup(t)
	cfg.Project.Env = string(config.Dev)
	fc := &fakeCompiler{store: store, cfg: cfg, sources: sourceFile}
	l := New(store, spec.NewExtractor(), cfg, fc)

	if _, err := l.Load(context.Background(), sourceFile, "ops/AddOne"); err != nil {
		t.Fatalf("first load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := make(chan string, 1)
	l.WatchInvalidations(ctx, "ops/AddOne", ch)
	ch <- "ops/AddOne"

	deadline := time.After(time.Second)
	for {
		l.mu.Lock()
		_, cached := l.cache["ops/AddOne"]
		l.mu.Unlock()
		if !cached {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for WatchInvalidations to drop the cache entry")
		case <-time.After(time.Millisecond):
		}
	}
}
