package spec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"vibesafe/internal/hashing"
	"vibesafe/internal/introspect"
	"vibesafe/internal/vserrors"
)

// Extractor produces Specs from Go source files under a project root. It
// owns a tree-sitter Parser (§6.6's concrete Target Introspector) for the
// lifetime of a scan.
type Extractor struct {
	parser *introspect.Parser
}

// NewExtractor constructs an Extractor with a fresh tree-sitter parser.
func NewExtractor() *Extractor {
	return &Extractor{parser: introspect.NewParser()}
}

// Close releases the underlying parser.
func (e *Extractor) Close() { e.parser.Close() }

// Scan walks the given source roots in sorted order and extracts every
// vibesafe unit found, in deterministic (path, then declaration) order
// (§4.1 "reproducible given the same filesystem state").
func (e *Extractor) Scan(ctx context.Context, roots []string) ([]Spec, error) {
	files, err := ScanFiles(roots)
	if err != nil {
		return nil, err
	}

	var specs []Spec
	for _, f := range files {
		fileSpecs, err := e.ExtractFile(ctx, f)
		if err != nil {
			return nil, err
		}
		specs = append(specs, fileSpecs...)
	}
	return specs, nil
}

// ScanFiles lists every non-test Go source file under roots, sorted, using
// the same skip rules as Scan. Callers that need to map a unit id back to
// the file that declares it (the orchestrator's Compiler.Compile) walk
// this list themselves rather than duplicating Scan's traversal.
func ScanFiles(roots []string) ([]string, error) {
	var files []string
	for _, root := range roots {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if info.Name() == "_examples" || info.Name() == "__generated__" || strings.HasPrefix(info.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("spec: walk %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ExtractFile extracts every decorated unit in one Go source file.
func (e *Extractor) ExtractFile(ctx context.Context, path string) ([]Spec, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("spec: read %s: %w", path, err)
	}

	decls, err := e.parser.ParseFile(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("spec: parse %s: %w", path, err)
	}

	resolver, err := introspect.NewResolver(path, content)
	if err != nil {
		return nil, fmt.Errorf("spec: resolver %s: %w", path, err)
	}

	unitPrefix := packagePathFor(path, content)

	var specs []Spec
	for _, d := range decls {
		if d.Directive == "" {
			continue
		}
		unitID := unitPrefix + "/" + d.Name

		kind, opts, err := parseDirective(unitID, d.Directive)
		if err != nil {
			return nil, err
		}

		s, err := buildSpec(unitID, kind, opts, d, content, resolver)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

var packageClause = regexp.MustCompile(`(?m)^package\s+([A-Za-z_][A-Za-z0-9_]*)`)

// packagePathFor derives the "module path" half of a unit id from the
// file's package clause — the Go-native analogue of the original's Python
// module path (§3.1's unit_id format) — so ids stay the same wherever the
// project sits on disk. Packages with the same name in different
// directories share a prefix. A file without a package clause falls back
// to its base name without extension.
func packagePathFor(path string, content []byte) string {
	if m := packageClause.FindSubmatch(content); m != nil {
		return string(m[1])
	}
	return filepath.Base(strings.TrimSuffix(path, filepath.Ext(path)))
}

func buildSpec(unitID string, kind Kind, opts Options, d introspect.FuncDecl, content []byte, resolver *introspect.Resolver) (Spec, error) {
	docstring := NormalizeDocstring(d.DocComment)
	examples := ParseExamples(docstring)
	hypothesis := ExtractHypothesisBlocks(docstring)

	bodyText := string(content[d.BodyStart:d.BodyEnd])
	preHole, err := extractPreHoleSource(bodyText)
	if err != nil {
		return Spec{}, vserrors.NewSentinelMissing(unitID)
	}

	if err := validateSignature(unitID, d); err != nil {
		return Spec{}, err
	}

	sig := Signature{ReturnType: d.ReturnText}
	for _, p := range d.Params {
		sig.Params = append(sig.Params, Param{Name: p.Name, Type: p.Type})
	}

	deps := resolver.ResolveIdentifiers(d.Name, preHole)
	depEntries := make([]hashing.DependencyEntry, 0, len(deps))
	for _, dep := range deps {
		depEntries = append(depEntries, hashing.DependencyEntry{
			Name: dep.Name, ResolvedPath: dep.ResolvedPath, ContentHash: dep.ContentHash,
		})
	}

	return Spec{
		UnitID:           unitID,
		Kind:             kind,
		Signature:        sig,
		SignatureText:    SignatureText(d.Name, sig),
		Docstring:        docstring,
		Examples:         examples,
		PreHoleSource:    preHole,
		ProviderRef:      opts.Provider,
		TemplateRef:      opts.Template,
		Options:          opts,
		DependencyDigest: depEntries,
		HypothesisBlocks: hypothesis,
	}, nil
}

func validateSignature(unitID string, d introspect.FuncDecl) error {
	for _, p := range d.Params {
		if p.Type == "" {
			return vserrors.NewInvalidSignature(unitID, fmt.Sprintf("parameter %q has no type annotation", p.Name))
		}
	}
	return nil
}

// extractPreHoleSource returns the body source up to (excluding) the
// statement invoking the sentinel, matching on the call's textual identity
// only (§4.1's "checks its name, not its value").
func extractPreHoleSource(body string) (string, error) {
	lines := strings.Split(body, "\n")
	var kept []string
	found := false
	for _, line := range lines {
		if strings.Contains(line, Sentinel) {
			found = true
			break
		}
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	if !found {
		return "", fmt.Errorf("sentinel not found")
	}
	return dedent(strings.Join(kept, "\n")), nil
}

func dedent(s string) string {
	lines := strings.Split(s, "\n")
	minIndent := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := len(l) - len(strings.TrimLeft(l, " \t"))
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent <= 0 {
		return s
	}
	for i, l := range lines {
		if len(l) >= minIndent {
			lines[i] = l[minIndent:]
		}
	}
	return strings.Join(lines, "\n")
}
