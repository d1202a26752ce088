package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"vibesafe/internal/checkpoint"
	"vibesafe/internal/config"
	"vibesafe/internal/orchestrator"
)

// cliCommand returns a bare cobra.Command carrying a background context,
// standing in for the one cobra builds during a real Execute() call.
func cliCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

const stubSource = `package ops

import "vibesafe"

// AddStrs adds two decimal integers given as strings.
//
// >>> AddStrs("2", "3")
// "5"
//
//vibesafe:func provider=fast tag=arith
func AddStrs(a string, b string) string {
	vibesafe.Handled()
}
`

// setupProject scaffolds a vibesafe project in a temp dir, writes one
// decorated stub into it, and points the package-level cfg/orch globals
// at it the way PersistentPreRunE would for a real invocation.
func setupProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	if err := orchestrator.Init(root); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "ops.go"), []byte(stubSource), 0o644); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	c, err := config.LoadFile(filepath.Join(root, "vibesafe.toml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	c.Paths.Sources = []string{root}

	store := checkpoint.NewStore(c.ResolvePath(filepath.Dir(c.Paths.Index)))
	o, err := orchestrator.New(c, store, nil)
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	t.Cleanup(func() { o.Close() })

	cfg = c
	orch = o
	return root
}

func TestInitCmdScaffoldsProject(t *testing.T) {
	root := t.TempDir()
	cmd := cliCommand()
	if err := initCmd.RunE(cmd, []string{root}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "vibesafe.toml")); err != nil {
		t.Errorf("vibesafe.toml was not created: %v", err)
	}

	// Running init again against an initialized project must fail rather
	// than silently clobber existing configuration.
	if err := initCmd.RunE(cmd, []string{root}); err == nil {
		t.Error("expected second init to fail on an already-initialized project")
	}
}

func TestScanCmdListsDecoratedUnits(t *testing.T) {
	setupProject(t)
	cmd := cliCommand()
	if err := scanCmd.RunE(cmd, nil); err != nil {
		t.Fatalf("scan: %v", err)
	}
}

func TestStatusCmdReportsUncompiledUnit(t *testing.T) {
	setupProject(t)
	cmd := cliCommand()
	if err := statusCmd.RunE(cmd, nil); err != nil {
		t.Fatalf("status: %v", err)
	}
}

func TestTestCmdRequiresTarget(t *testing.T) {
	setupProject(t)
	testTarget, testHash = "", ""
	defer func() { testTarget, testHash = "", "" }()

	cmd := cliCommand()
	if err := testCmd.RunE(cmd, nil); err == nil {
		t.Error("expected an error when --target is omitted")
	}
}

func TestSaveCmdRequiresTargetAndHash(t *testing.T) {
	setupProject(t)
	saveTarget, saveHash = "ops.AddStrs", ""
	defer func() { saveTarget, saveHash = "", "" }()

	cmd := cliCommand()
	if err := saveCmd.RunE(cmd, nil); err == nil {
		t.Error("expected an error when --hash is omitted")
	}
}

func TestDiffCmdRequiresFrom(t *testing.T) {
	setupProject(t)
	diffTarget, diffFrom, diffTo = "ops.AddStrs", "", ""
	defer func() { diffTarget, diffFrom, diffTo = "", "", "" }()

	cmd := cliCommand()
	if err := diffCmd.RunE(cmd, nil); err == nil {
		t.Error("expected an error when --from is omitted")
	}
}

func TestCheckCmdSkipsUncompiledUnits(t *testing.T) {
	setupProject(t)
	cmd := cliCommand()
	// The freshly scaffolded unit has no active checkpoint yet, so check
	// lists it as skipped and then returns a not-clean error.
	if err := checkCmd.RunE(cmd, nil); err == nil {
		t.Error("expected check to report the uncompiled unit as a non-clean result")
	}
}
