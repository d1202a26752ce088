package introspect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"go/build"
	"os"
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// Resolution is what the Resolver returns for one referenced identifier.
type Resolution struct {
	Name         string
	ResolvedPath string
	ContentHash  string
	Resolved     bool
}

// Resolver answers "what package-level declaration does this identifier
// refer to, and what does it hash to" for names appearing in a unit's
// pre-hole source, and validates import paths for the Validator's import
// gate.
type Resolver struct {
	filePath string
	content  []byte

	mu       sync.Mutex
	topLevel map[string]declSite // name -> location
	stdlib   map[string]bool
}

type declSite struct {
	start, end int
}

// NewResolver builds a Resolver scoped to one Go source file: topLevel
// declarations in that file are the only resolution targets, per §4.1's
// "direct references only" rule (no transitive dependency closure).
func NewResolver(filePath string, content []byte) (*Resolver, error) {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	defer p.Close()

	tree, err := p.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	top := make(map[string]declSite)
	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		var nameNode *sitter.Node
		switch n.Type() {
		case "function_declaration", "type_declaration":
			nameNode = n.ChildByFieldName("name")
			if nameNode == nil && n.Type() == "type_declaration" {
				if spec := n.NamedChild(0); spec != nil {
					nameNode = spec.ChildByFieldName("name")
				}
			}
		case "var_declaration", "const_declaration":
			// var/const decls can declare multiple names via
			// var_spec/const_spec children; register each.
			for j := 0; j < int(n.NamedChildCount()); j++ {
				spec := n.NamedChild(j)
				if nn := spec.ChildByFieldName("name"); nn != nil {
					top[nn.Content(content)] = declSite{int(n.StartByte()), int(n.EndByte())}
				}
			}
			continue
		}
		if nameNode != nil {
			top[nameNode.Content(content)] = declSite{int(n.StartByte()), int(n.EndByte())}
		}
	}

	return &Resolver{filePath: filePath, content: content, topLevel: top, stdlib: stdlibPackages()}, nil
}

var identifierRE = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*\b`)

// keywords excluded from dependency-ref scanning: they are never
// package-level declarations, so treating them as "unresolved" would just
// add noise to the dependency digest.
var goKeywords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
	"true": true, "false": true, "nil": true, "iota": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true,
	"float32": true, "float64": true, "string": true, "bool": true, "byte": true,
	"rune": true, "error": true, "any": true, "uintptr": true, "complex64": true,
	"complex128": true,
	"len": true, "cap": true, "make": true, "new": true, "append": true,
	"copy": true, "delete": true, "panic": true, "recover": true, "print": true,
	"println": true, "close": true,
}

// ResolveIdentifiers scans body for referenced identifiers and resolves
// each against the file's top-level declarations. Names that are Go
// keywords/builtins are skipped entirely (they are never dependency refs);
// everything else that isn't a local top-level declaration becomes an
// "unresolved" tombstone so hashing stays deterministic (Invariant 6/§4.1).
func (r *Resolver) ResolveIdentifiers(unitName string, body string) []Resolution {
	seen := map[string]bool{}
	var out []Resolution
	for _, name := range identifierRE.FindAllString(body, -1) {
		if goKeywords[name] || name == unitName || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, r.resolveOne(name))
	}
	return out
}

func (r *Resolver) resolveOne(name string) Resolution {
	r.mu.Lock()
	defer r.mu.Unlock()

	site, ok := r.topLevel[name]
	if !ok {
		return Resolution{Name: name, ResolvedPath: "", ContentHash: "unresolved", Resolved: false}
	}
	src := r.content[site.start:site.end]
	sum := sha256.Sum256(src)
	return Resolution{
		Name:         name,
		ResolvedPath: r.filePath,
		ContentHash:  hex.EncodeToString(sum[:]),
		Resolved:     true,
	}
}

// ImportResolvable reports whether an import path resolves to a stdlib
// package (the Validator's import gate, §4.5 item 5). The Resolver only
// knows about GOROOT, so every non-stdlib import reports false; there is
// no whitelist for other packages.
func (r *Resolver) ImportResolvable(path string) bool {
	path = strings.Trim(path, `"`)
	return r.stdlib[path]
}

var (
	stdlibOnce  sync.Once
	stdlibCache map[string]bool
)

// stdlibPackages enumerates GOROOT/src package import paths once per
// process. It is a best-effort filesystem walk (mirrors what `go list std`
// would report) rather than a shelled-out toolchain invocation, since
// vibesafe itself must never assume `go` is on PATH inside a sandbox.
func stdlibPackages() map[string]bool {
	stdlibOnce.Do(func() {
		stdlibCache = map[string]bool{}
		root := build.Default.GOROOT
		srcDir := root + string(os.PathSeparator) + "src"
		walkStdlib(srcDir, "", stdlibCache)
	})
	return stdlibCache
}

func walkStdlib(dir, prefix string, out map[string]bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	hasGoFile := false
	for _, e := range entries {
		if e.IsDir() {
			if strings.HasPrefix(e.Name(), ".") || e.Name() == "testdata" || e.Name() == "internal" || e.Name() == "cmd" {
				continue
			}
			childPrefix := e.Name()
			if prefix != "" {
				childPrefix = prefix + "/" + e.Name()
			}
			walkStdlib(dir+string(os.PathSeparator)+e.Name(), childPrefix, out)
		} else if strings.HasSuffix(e.Name(), ".go") {
			hasGoFile = true
		}
	}
	if hasGoFile && prefix != "" {
		out[prefix] = true
	}
}
