// Package reasoning derives a unit's status — uncompiled, drifted, active,
// or gate-failing — from asserted facts using Google Mangle's Datalog
// evaluator, instead of hand-rolled conditionals scattered across the
// orchestrator and CLI. Facts participate in no hash; this is
// observability derived from the checkpoint store and gate reports, never
// an input to them.
package reasoning

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// State is a unit's derived reasoning outcome.
type State string

const (
	StateUncompiled      State = "uncompiled"
	StateDrifted         State = "drifted"
	StatePendingActivate State = "pending_activation"
	StateGateFailing     State = "gate_failing"
	StateActive          State = "active"
)

// UnitStatus is one unit's derived state plus enough detail to explain it.
type UnitStatus struct {
	UnitID       string
	State        State
	ActiveHash   string
	CurrentHash  string
	FailingGates []string
	ExampleCount int
}

// Reasoner wraps a Mangle fact store and program, evaluated to fixed point
// after every batch of assertions.
type Reasoner struct {
	mu          sync.Mutex
	store       factstore.FactStore
	programInfo *analysis.ProgramInfo
	predicates  map[string]ast.PredicateSym
}

// New constructs a Reasoner with the package's schema loaded and evaluated.
func New() (*Reasoner, error) {
	unit, err := parse.Unit(bytes.NewReader([]byte(schema)))
	if err != nil {
		return nil, fmt.Errorf("reasoning: parse schema: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("reasoning: analyze schema: %w", err)
	}

	r := &Reasoner{
		store:       factstore.NewSimpleInMemoryStore(),
		programInfo: programInfo,
		predicates:  make(map[string]ast.PredicateSym, len(programInfo.Decls)),
	}
	for sym := range programInfo.Decls {
		r.predicates[sym.Symbol] = sym
	}
	return r, nil
}

// Reset drops every asserted and derived fact, keeping the loaded schema.
func (r *Reasoner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = factstore.NewSimpleInMemoryStore()
}

func (r *Reasoner) assert(predicate string, args ...ast.BaseTerm) error {
	sym, ok := r.predicates[predicate]
	if !ok {
		return fmt.Errorf("reasoning: predicate %s not declared", predicate)
	}
	if len(args) != sym.Arity {
		return fmt.Errorf("reasoning: predicate %s expects %d args, got %d", predicate, sym.Arity, len(args))
	}
	r.store.Add(ast.NewAtom(predicate, args...))
	return nil
}

// AssertUnit records unitID as a known unit.
func (r *Reasoner) AssertUnit(unitID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assert("unit", nameTerm(unitID))
}

// AssertSpecHash records the current source-derived spec hash for unitID.
func (r *Reasoner) AssertSpecHash(unitID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assert("spec_hash", nameTerm(unitID), ast.String(hash))
}

// AssertCheckpoint records that chkHash is a checkpoint for unitID built
// against chkSpecHash.
func (r *Reasoner) AssertCheckpoint(unitID, chkHash, chkSpecHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assert("checkpoint", nameTerm(unitID), ast.String(chkHash), ast.String(chkSpecHash))
}

// AssertActive records chkHash as unitID's currently active checkpoint.
func (r *Reasoner) AssertActive(unitID, chkHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assert("active", nameTerm(unitID), ast.String(chkHash))
}

// AssertGateResult records one gate's pass/fail outcome for a checkpoint.
func (r *Reasoner) AssertGateResult(unitID, chkHash, gate string, passed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assert("gate_result", nameTerm(unitID), ast.String(chkHash), ast.String(gate), boolTerm(passed))
}

// AssertExampleCount records how many worked examples unitID's docstring
// carried at extraction time.
func (r *Reasoner) AssertExampleCount(unitID string, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.assert("example_count", nameTerm(unitID), ast.Number(int64(count)))
}

// Recompute evaluates every rule to fixed point against the currently
// asserted facts. Call it once per batch of Assert* calls, not per call.
func (r *Reasoner) Recompute() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := mengine.EvalProgramWithStats(r.programInfo, r.store)
	if err != nil {
		return fmt.Errorf("reasoning: evaluate: %w", err)
	}
	return nil
}

// Status derives unitID's state from the facts asserted so far. Call
// Recompute first if new facts were asserted since the last call.
func (r *Reasoner) Status(unitID string) (UnitStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := UnitStatus{UnitID: unitID, State: StateUncompiled}
	target := nameTerm(unitID).Symbol

	if counts, err := r.queryLocked("example_count", map[int]string{0: target}); err != nil {
		return st, err
	} else if len(counts) > 0 {
		st.ExampleCount = int(numberOf(counts[0].Args[1]))
	}

	checkpoints, err := r.queryLocked("has_checkpoint", map[int]string{0: target})
	if err != nil {
		return st, err
	}
	if len(checkpoints) == 0 {
		return st, nil
	}

	actives, err := r.queryLocked("active", map[int]string{0: target})
	if err != nil {
		return st, err
	}
	if len(actives) == 0 {
		st.State = StatePendingActivate
		return st, nil
	}
	st.ActiveHash = stringOf(actives[0].Args[1])

	pairings, err := r.queryLocked("active_pairing", map[int]string{0: target})
	if err != nil {
		return st, err
	}
	if len(pairings) > 0 {
		st.CurrentHash = stringOf(pairings[0].Args[3])
		chkSpecHash := stringOf(pairings[0].Args[2])
		if chkSpecHash != st.CurrentHash {
			st.State = StateDrifted
			return st, nil
		}
	}

	failures, err := r.queryLocked("active_gate_failure", map[int]string{0: target})
	if err != nil {
		return st, err
	}
	for _, f := range failures {
		st.FailingGates = append(st.FailingGates, stringOf(f.Args[1]))
	}
	if len(st.FailingGates) > 0 {
		st.State = StateGateFailing
		return st, nil
	}

	st.State = StateActive
	return st, nil
}

// AllStatuses derives Status for every unit that has been asserted.
func (r *Reasoner) AllStatuses(unitIDs []string) ([]UnitStatus, error) {
	out := make([]UnitStatus, 0, len(unitIDs))
	for _, id := range unitIDs {
		st, err := r.Status(id)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// queryLocked returns every fact for predicate whose argument at index i
// (for each i in filters) matches the given constant symbol, mirroring the
// filter-in-Go style of the teacher's QueryFacts helper rather than
// building a bound query atom for the evaluator.
func (r *Reasoner) queryLocked(predicate string, filters map[int]string) ([]ast.Atom, error) {
	sym, ok := r.predicates[predicate]
	if !ok {
		return nil, fmt.Errorf("reasoning: predicate %s not declared", predicate)
	}

	var results []ast.Atom
	err := r.store.GetFacts(ast.NewQuery(sym), func(fact ast.Atom) error {
		for idx, want := range filters {
			if idx >= len(fact.Args) || stringOf(fact.Args[idx]) != want {
				return nil
			}
		}
		results = append(results, fact)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reasoning: query %s: %w", predicate, err)
	}
	return results, nil
}

func nameTerm(id string) ast.Constant {
	safe := strings.ReplaceAll(id, "/", "_")
	name, err := ast.Name("/unit_" + safe)
	if err != nil {
		return ast.String(id)
	}
	return name
}

func boolTerm(b bool) ast.Constant {
	if b {
		return ast.TrueConstant
	}
	return ast.FalseConstant
}

func stringOf(term ast.BaseTerm) string {
	if c, ok := term.(ast.Constant); ok {
		return c.Symbol
	}
	return fmt.Sprintf("%v", term)
}

func numberOf(term ast.BaseTerm) int64 {
	if c, ok := term.(ast.Constant); ok {
		return c.NumValue
	}
	return 0
}
