// Package validate runs the structural and semantic gates an LLM-produced
// artifact must pass before it is even eligible for the verification
// harness's example gate — cheap, deterministic checks that catch
// malformed output without ever compiling or executing it.
package validate

import (
	"context"
	"strings"

	"vibesafe/internal/introspect"
	"vibesafe/internal/spec"
	"vibesafe/internal/vserrors"
)

// MaxArtifactSize is the largest artifact the Validator accepts (§4.5.6).
const MaxArtifactSize = 256 * 1024

// Config carries the deny-list and other per-project validator settings.
type Config struct {
	ForbiddenCalls []string // e.g. "exec.Command", matched as a substring of the artifact
}

// Validator runs the ordered gates against a candidate artifact.
type Validator struct {
	parser *introspect.Parser
	cfg    Config
}

// NewValidator constructs a Validator with its own tree-sitter parser.
func NewValidator(cfg Config) *Validator {
	return &Validator{parser: introspect.NewParser(), cfg: cfg}
}

// Close releases the underlying parser.
func (v *Validator) Close() { v.parser.Close() }

// Validate runs every gate in order against artifact for the unit
// described by s, stopping at the first failure (§4.5's fast-fail order).
func (v *Validator) Validate(ctx context.Context, s spec.Spec, artifact []byte) error {
	if err := v.checkParsable(ctx, s.UnitID, artifact); err != nil {
		return err
	}

	decls, err := v.parser.ParseFile(ctx, artifact)
	if err != nil {
		return vserrors.NewValidationError(s.UnitID, "Parsability", "impl.go", err.Error())
	}

	decl, err := v.checkSymbolPresent(s, decls)
	if err != nil {
		return err
	}
	if err := v.checkSignatureMatch(s, decl); err != nil {
		return err
	}
	if err := v.checkForbiddenConstructs(s.UnitID, artifact); err != nil {
		return err
	}
	if err := v.checkImportsResolve(s.UnitID, artifact); err != nil {
		return err
	}
	if err := v.checkArtifactSize(s.UnitID, artifact); err != nil {
		return err
	}
	return nil
}

func (v *Validator) checkParsable(ctx context.Context, unitID string, artifact []byte) error {
	hasErr, err := v.parser.HasErrorNode(ctx, artifact)
	if err != nil || hasErr {
		return vserrors.NewValidationError(unitID, "Parsability", "impl.go", "artifact does not parse as valid Go")
	}
	return nil
}

func (v *Validator) checkSymbolPresent(s spec.Spec, decls []introspect.FuncDecl) (introspect.FuncDecl, error) {
	name := unitFuncName(s.UnitID)
	for _, d := range decls {
		if d.Name == name {
			return d, nil
		}
	}
	return introspect.FuncDecl{}, vserrors.NewValidationError(s.UnitID, "SymbolPresence", "impl.go",
		"no top-level function named "+name+" found in artifact")
}

func (v *Validator) checkSignatureMatch(s spec.Spec, decl introspect.FuncDecl) error {
	if len(decl.Params) != len(s.Signature.Params) {
		return vserrors.NewValidationError(s.UnitID, "SignatureMatch", "impl.go", "parameter count mismatch")
	}
	for i, p := range decl.Params {
		want := s.Signature.Params[i]
		if p.Name != want.Name || normalizeType(p.Type) != normalizeType(want.Type) {
			return vserrors.NewValidationError(s.UnitID, "SignatureMatch", "impl.go",
				"parameter "+want.Name+" does not match declared signature")
		}
	}
	if normalizeType(decl.ReturnText) != normalizeType(s.Signature.ReturnType) {
		return vserrors.NewValidationError(s.UnitID, "SignatureMatch", "impl.go", "return type mismatch")
	}
	return nil
}

func (v *Validator) checkForbiddenConstructs(unitID string, artifact []byte) error {
	text := string(artifact)
	for _, forbidden := range v.cfg.ForbiddenCalls {
		if strings.Contains(text, forbidden) {
			return vserrors.NewValidationError(unitID, "ForbiddenConstruct", "impl.go", "artifact references forbidden construct "+forbidden)
		}
	}
	return nil
}

func (v *Validator) checkImportsResolve(unitID string, artifact []byte) error {
	resolver, err := introspect.NewResolver("impl.go", artifact)
	if err != nil {
		return vserrors.NewValidationError(unitID, "ImportResolution", "impl.go", "artifact does not parse for import resolution")
	}
	for _, imp := range importPaths(string(artifact)) {
		if !resolver.ImportResolvable(imp) {
			return vserrors.NewValidationError(unitID, "ImportResolution", "impl.go", "unresolvable import "+imp)
		}
	}
	return nil
}

func (v *Validator) checkArtifactSize(unitID string, artifact []byte) error {
	if len(artifact) > MaxArtifactSize {
		return vserrors.NewValidationError(unitID, "ArtifactSize", "impl.go", "artifact exceeds maximum size")
	}
	return nil
}

// unitFuncName extracts the function name from a "<module/path>/Name" unit id.
func unitFuncName(unitID string) string {
	idx := strings.LastIndex(unitID, "/")
	if idx == -1 {
		return unitID
	}
	return unitID[idx+1:]
}

func normalizeType(t string) string {
	return strings.Join(strings.Fields(t), " ")
}

// importPaths does a line-oriented scan for quoted import paths in either
// a single "import "pkg"" line or an "import (...)" block.
func importPaths(source string) []string {
	var paths []string
	inBlock := false
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && trimmed == ")":
			inBlock = false
		case inBlock, strings.HasPrefix(trimmed, "import "):
			if p := extractQuoted(trimmed); p != "" {
				paths = append(paths, p)
			}
		}
	}
	return paths
}

func extractQuoted(s string) string {
	start := strings.Index(s, `"`)
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(s, `"`)
	if end <= start {
		return ""
	}
	return s[start+1 : end]
}
