package reasoning

import "testing"

func mustAssertBase(t *testing.T, r *Reasoner, unitID, hash string) {
	t.Helper()
	if err := r.AssertUnit(unitID); err != nil {
		t.Fatalf("AssertUnit: %v", err)
	}
	if err := r.AssertSpecHash(unitID, hash); err != nil {
		t.Fatalf("AssertSpecHash: %v", err)
	}
}

func TestStatusUncompiledWithNoCheckpoint(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustAssertBase(t, r, "pkg/AddOne", "h1")
	if err := r.Recompute(); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	st, err := r.Status("pkg/AddOne")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateUncompiled {
		t.Errorf("state = %q, want uncompiled", st.State)
	}
}

func TestStatusPendingActivationWithUnactivatedCheckpoint(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustAssertBase(t, r, "pkg/AddOne", "h1")
	if err := r.AssertCheckpoint("pkg/AddOne", "chk1", "h1"); err != nil {
		t.Fatalf("AssertCheckpoint: %v", err)
	}
	if err := r.Recompute(); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	st, err := r.Status("pkg/AddOne")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StatePendingActivate {
		t.Errorf("state = %q, want pending_activation", st.State)
	}
}

func TestStatusActiveWhenPairingMatchesAndGatesPass(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustAssertBase(t, r, "pkg/AddOne", "h1")
	if err := r.AssertCheckpoint("pkg/AddOne", "chk1", "h1"); err != nil {
		t.Fatalf("AssertCheckpoint: %v", err)
	}
	if err := r.AssertActive("pkg/AddOne", "chk1"); err != nil {
		t.Fatalf("AssertActive: %v", err)
	}
	if err := r.AssertGateResult("pkg/AddOne", "chk1", "examples", true); err != nil {
		t.Fatalf("AssertGateResult: %v", err)
	}
	if err := r.Recompute(); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	st, err := r.Status("pkg/AddOne")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateActive {
		t.Errorf("state = %q, want active", st.State)
	}
	if st.ActiveHash != "chk1" {
		t.Errorf("active hash = %q, want chk1", st.ActiveHash)
	}
}

func TestStatusDriftedWhenSourceHashMovesPastActiveCheckpoint(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustAssertBase(t, r, "pkg/AddOne", "h2")
	if err := r.AssertCheckpoint("pkg/AddOne", "chk1", "h1"); err != nil {
		t.Fatalf("AssertCheckpoint: %v", err)
	}
	if err := r.AssertActive("pkg/AddOne", "chk1"); err != nil {
		t.Fatalf("AssertActive: %v", err)
	}
	if err := r.Recompute(); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	st, err := r.Status("pkg/AddOne")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateDrifted {
		t.Errorf("state = %q, want drifted", st.State)
	}
}

func TestStatusGateFailingWhenActiveCheckpointFailedAGate(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustAssertBase(t, r, "pkg/AddOne", "h1")
	if err := r.AssertCheckpoint("pkg/AddOne", "chk1", "h1"); err != nil {
		t.Fatalf("AssertCheckpoint: %v", err)
	}
	if err := r.AssertActive("pkg/AddOne", "chk1"); err != nil {
		t.Fatalf("AssertActive: %v", err)
	}
	if err := r.AssertGateResult("pkg/AddOne", "chk1", "lint", false); err != nil {
		t.Fatalf("AssertGateResult: %v", err)
	}
	if err := r.Recompute(); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	st, err := r.Status("pkg/AddOne")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateGateFailing {
		t.Errorf("state = %q, want gate_failing", st.State)
	}
	if len(st.FailingGates) != 1 || st.FailingGates[0] != "lint" {
		t.Errorf("failing gates = %v, want [lint]", st.FailingGates)
	}
}

func TestStatusIncludesExampleCount(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustAssertBase(t, r, "pkg/AddOne", "h1")
	if err := r.AssertExampleCount("pkg/AddOne", 3); err != nil {
		t.Fatalf("AssertExampleCount: %v", err)
	}
	if err := r.Recompute(); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	st, err := r.Status("pkg/AddOne")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.ExampleCount != 3 {
		t.Errorf("example count = %d, want 3", st.ExampleCount)
	}
}

func TestAllStatusesCoversEveryUnit(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustAssertBase(t, r, "pkg/A", "ha")
	mustAssertBase(t, r, "pkg/B", "hb")
	if err := r.AssertCheckpoint("pkg/B", "chkb", "hb"); err != nil {
		t.Fatalf("AssertCheckpoint: %v", err)
	}
	if err := r.AssertActive("pkg/B", "chkb"); err != nil {
		t.Fatalf("AssertActive: %v", err)
	}
	if err := r.Recompute(); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	statuses, err := r.AllStatuses([]string{"pkg/A", "pkg/B"})
	if err != nil {
		t.Fatalf("AllStatuses: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].State != StateUncompiled {
		t.Errorf("pkg/A state = %q, want uncompiled", statuses[0].State)
	}
	if statuses[1].State != StateActive {
		t.Errorf("pkg/B state = %q, want active", statuses[1].State)
	}
}

func TestResetClearsFacts(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustAssertBase(t, r, "pkg/AddOne", "h1")
	if err := r.Recompute(); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	r.Reset()

	st, err := r.Status("pkg/AddOne")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateUncompiled {
		t.Errorf("state after reset = %q, want uncompiled (facts cleared)", st.State)
	}
}
