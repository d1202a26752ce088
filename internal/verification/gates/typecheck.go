package gates

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// RunTypeCheck runs `go vet ./...` inside a throwaway module that wraps
// implSource, so a candidate implementation is type-checked without ever
// touching the caller's own go.mod or module graph. Like RunLint, a
// missing `go` binary degrades to a skip rather than a hard failure — the
// pipeline that produced implSource never itself shells out to `go
// build`, and shouldn't require the toolchain to be present just to
// report on it.
func RunTypeCheck(ctx context.Context, implSource []byte, memoryMB int) (Result, error) {
	if _, err := exec.LookPath("go"); err != nil {
		return Result{Passed: true, Output: "go toolchain not found on PATH, skipping"}, nil
	}

	tmp, err := os.MkdirTemp("", "vibesafe-vet-*")
	if err != nil {
		return Result{}, fmt.Errorf("gates: mkdir temp: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := os.WriteFile(filepath.Join(tmp, "impl.go"), implSource, 0o644); err != nil {
		return Result{}, fmt.Errorf("gates: write impl.go: %w", err)
	}
	goMod := "module vibesafe_typecheck_candidate\n\ngo 1.24\n"
	if err := os.WriteFile(filepath.Join(tmp, "go.mod"), []byte(goMod), 0o644); err != nil {
		return Result{}, fmt.Errorf("gates: write go.mod: %w", err)
	}

	cmd := exec.CommandContext(ctx, "go", "vet", "./...")
	cmd.Dir = tmp
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := withMemoryLimit(memoryMB, cmd.Run)
	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n--- stderr ---\n" + stderr.String()
	}

	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	return Result{Passed: runErr == nil, Output: output}, nil
}
