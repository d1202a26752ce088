// Package loader is the runtime side of vibesafe: turning a unit id into a
// callable Go value backed by its active checkpoint, with dev/prod
// integrity behavior and best-effort in-process memoization.
package loader

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"vibesafe/internal/checkpoint"
	"vibesafe/internal/config"
	"vibesafe/internal/hashing"
	"vibesafe/internal/introspect"
	"vibesafe/internal/logging"
	"vibesafe/internal/pipeline"
	"vibesafe/internal/spec"
	"vibesafe/internal/vserrors"
)

// Compiler is the subset of internal/orchestrator that the Loader invokes
// synchronously in dev mode on a hash mismatch. Threading it as an
// interface avoids an import cycle between loader and orchestrator.
type Compiler interface {
	Compile(ctx context.Context, unitID string) error
}

type loadedArtifact struct {
	hChk     string
	callable introspect.Callable
}

// Loader resolves unit ids to callables against a project's checkpoint
// store, re-verifying source-vs-checkpoint spec hash on every call.
type Loader struct {
	store     *checkpoint.Store
	extractor *spec.Extractor
	cfg       *config.Config
	compiler  Compiler

	mu    sync.Mutex
	cache map[string]loadedArtifact
}

// New constructs a Loader. compiler may be nil in Prod mode, where it is
// never invoked.
func New(store *checkpoint.Store, extractor *spec.Extractor, cfg *config.Config, compiler Compiler) *Loader {
	return &Loader{
		store:     store,
		extractor: extractor,
		cfg:       cfg,
		compiler:  compiler,
		cache:     map[string]loadedArtifact{},
	}
}

// Load resolves unitID to a callable, re-extracting and re-hashing its
// current source on every call so drift is always detected (§4.8).
func (l *Loader) Load(ctx context.Context, sourceFile, unitID string) (introspect.Callable, error) {
	s, err := l.extractCurrentSpec(ctx, sourceFile, unitID)
	if err != nil {
		return introspect.Callable{}, err
	}
	currentHash := hashing.SpecHash(pipeline.SpecHashInputsFor(l.cfg, s))

	hChk, err := l.store.Active(unitID)
	if err != nil {
		return introspect.Callable{}, err
	}
	if hChk == "" {
		return l.handleMissing(ctx, sourceFile, unitID)
	}

	_, meta, err := l.store.Read(unitID, hChk)
	if err != nil {
		return l.handleMissing(ctx, sourceFile, unitID)
	}

	if meta.SpecHash != currentHash {
		return l.handleMismatch(ctx, sourceFile, unitID, currentHash, meta.SpecHash)
	}

	return l.loadFromCheckpoint(ctx, unitID, hChk)
}

func (l *Loader) handleMissing(ctx context.Context, sourceFile, unitID string) (introspect.Callable, error) {
	if l.cfg.RunMode() == config.Prod {
		return introspect.Callable{}, vserrors.NewCheckpointMissing(unitID)
	}
	logging.ForUnit(unitID, "load").Warn("no active checkpoint, compiling")
	if err := l.compiler.Compile(ctx, unitID); err != nil {
		return introspect.Callable{}, err
	}
	hChk, err := l.store.Active(unitID)
	if err != nil || hChk == "" {
		return introspect.Callable{}, vserrors.NewCheckpointMissing(unitID)
	}
	return l.loadFromCheckpoint(ctx, unitID, hChk)
}

func (l *Loader) handleMismatch(ctx context.Context, sourceFile, unitID, currentHash, checkpointHash string) (introspect.Callable, error) {
	if l.cfg.RunMode() == config.Prod {
		return introspect.Callable{}, vserrors.NewHashMismatch(unitID, currentHash, checkpointHash)
	}
	logging.ForUnit(unitID, "load").Warn("spec hash drifted, recompiling",
		zap.String("current_hash", currentHash), zap.String("checkpoint_hash", checkpointHash))
	if err := l.compiler.Compile(ctx, unitID); err != nil {
		return introspect.Callable{}, err
	}
	hChk, err := l.store.Active(unitID)
	if err != nil || hChk == "" {
		return introspect.Callable{}, vserrors.NewCheckpointMissing(unitID)
	}
	return l.loadFromCheckpoint(ctx, unitID, hChk)
}

func (l *Loader) loadFromCheckpoint(ctx context.Context, unitID, hChk string) (introspect.Callable, error) {
	l.mu.Lock()
	if cached, ok := l.cache[unitID]; ok && cached.hChk == hChk {
		l.mu.Unlock()
		return cached.callable, nil
	}
	l.mu.Unlock()

	impl, _, err := l.store.Read(unitID, hChk)
	if err != nil {
		return introspect.Callable{}, err
	}

	interp := introspect.NewInterpreter()
	callable, err := interp.LoadArtifact(ctx, string(impl), funcNameOf(unitID))
	if err != nil {
		return introspect.Callable{}, fmt.Errorf("loader: %w", err)
	}

	l.mu.Lock()
	l.cache[unitID] = loadedArtifact{hChk: hChk, callable: callable}
	l.mu.Unlock()
	return callable, nil
}

// Invalidate drops a unit's memoized callable. The Store publishes no
// activation events; callers invoke Invalidate directly or feed events
// through WatchInvalidations.
func (l *Loader) Invalidate(unitID string) {
	l.mu.Lock()
	delete(l.cache, unitID)
	l.mu.Unlock()
}

// WatchInvalidations consumes activation events from ch and invalidates
// unitID's cache entry on each one. The goroutine stops when ctx is done
// or ch is closed.
func (l *Loader) WatchInvalidations(ctx context.Context, unitID string, ch <-chan string) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				l.Invalidate(unitID)
			}
		}
	}()
}

func (l *Loader) extractCurrentSpec(ctx context.Context, sourceFile, unitID string) (spec.Spec, error) {
	specs, err := l.extractor.ExtractFile(ctx, sourceFile)
	if err != nil {
		return spec.Spec{}, err
	}
	for _, s := range specs {
		if s.UnitID == unitID {
			return s, nil
		}
	}
	return spec.Spec{}, vserrors.NewSentinelMissing(unitID)
}

func funcNameOf(unitID string) string {
	for i := len(unitID) - 1; i >= 0; i-- {
		if unitID[i] == '/' {
			return unitID[i+1:]
		}
	}
	return unitID
}
