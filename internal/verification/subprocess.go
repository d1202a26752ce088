package verification

import (
	"context"

	"vibesafe/internal/verification/gates"
	"vibesafe/internal/vserrors"
)

// RunLint runs the lint gate against a candidate's checkpoint directory.
func RunLint(ctx context.Context, c Candidate, memoryMB int) GateReport {
	result, err := gates.RunLint(ctx, c.CheckpointDir, memoryMB)
	return subprocessReport("lint", result, err)
}

// RunTypeCheck runs the type-check gate against a candidate's artifact
// source, wrapped in a throwaway module.
func RunTypeCheck(ctx context.Context, c Candidate, memoryMB int) GateReport {
	result, err := gates.RunTypeCheck(ctx, c.Impl, memoryMB)
	return subprocessReport("typecheck", result, err)
}

func subprocessReport(gate string, result gates.Result, err error) GateReport {
	if err != nil {
		if err == context.DeadlineExceeded {
			return GateReport{Gate: gate, Passed: false, Category: vserrors.GateTimeout, Detail: "gate timed out"}
		}
		return GateReport{Gate: gate, Passed: false, Category: vserrors.GateSandbox, Detail: err.Error()}
	}
	category := vserrors.GateLint
	if gate == "typecheck" {
		category = vserrors.GateType
	}
	if result.Passed {
		category = ""
	}
	return GateReport{Gate: gate, Passed: result.Passed, Category: category, Detail: result.Output}
}
