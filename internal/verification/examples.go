package verification

import (
	"context"
	"strings"

	"vibesafe/internal/introspect"
	"vibesafe/internal/spec"
	"vibesafe/internal/vserrors"
)

// RunExamples interprets a candidate's impl.go under yaegi and replays
// every declared example (plus any hypothesis-block rows folded in as
// literal examples) against it, comparing stringified results.
func RunExamples(ctx context.Context, c Candidate) GateReport {
	funcName := funcNameOf(c.UnitID)

	interp := introspect.NewInterpreter()
	if _, err := interp.LoadArtifact(ctx, string(c.Impl), funcName); err != nil {
		return GateReport{Gate: "examples", Passed: false, Category: vserrors.GateExampleMismatch, Detail: err.Error()}
	}

	examples := allExamples(c.Spec)
	if len(examples) == 0 {
		return GateReport{Gate: "examples", Passed: true, Detail: "no examples declared"}
	}

	for _, ex := range examples {
		got, err := interp.EvalExpression(ctx, funcName, ex.InputSource)
		if err != nil {
			return GateReport{Gate: "examples", Passed: false, Category: vserrors.GateExampleMismatch,
				Detail: "evaluating " + ex.InputSource + ": " + err.Error()}
		}
		if !matchEllipsis(ex.ExpectedOutput, got) {
			return GateReport{Gate: "examples", Passed: false, Category: vserrors.GateExampleMismatch,
				Detail: ex.InputSource + ": want " + ex.ExpectedOutput + ", got " + got}
		}
	}
	return GateReport{Gate: "examples", Passed: true}
}

// allExamples combines a Spec's declared doctest examples with any
// hypothesis-block rows, since the pack has no property-testing library
// and property inputs are instead expressed as additional literal example
// rows (§9's resolution for the optional property gate).
func allExamples(s spec.Spec) []spec.Example {
	examples := append([]spec.Example{}, s.Examples...)
	for _, block := range s.HypothesisBlocks {
		examples = append(examples, spec.ParseExamples(block)...)
	}
	return examples
}

func funcNameOf(unitID string) string {
	idx := strings.LastIndex(unitID, "/")
	if idx == -1 {
		return unitID
	}
	return unitID[idx+1:]
}

// matchEllipsis compares expected against actual, treating any "..." span
// in expected as a wildcard matching any run of characters, and requiring
// a byte-exact match otherwise.
func matchEllipsis(expected, actual string) bool {
	if !strings.Contains(expected, "...") {
		return expected == actual
	}

	segments := strings.Split(expected, "...")
	pos := 0
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		idx := strings.Index(actual[pos:], seg)
		if idx == -1 {
			return false
		}
		if i == 0 && idx != 0 {
			return false // first segment must anchor at the start
		}
		pos += idx + len(seg)
	}
	if last := segments[len(segments)-1]; last != "" && !strings.HasSuffix(actual, last) {
		return false // final segment must anchor at the end
	}
	return true
}
