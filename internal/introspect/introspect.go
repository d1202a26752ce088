// Package introspect is the concrete Target Introspector for the Go host
// language: it parses source with tree-sitter, resolves package-level
// identifiers to their declaring file, and loads a validated implementation
// as a callable Go value via the yaegi interpreter — no `go build` step is
// ever invoked, which sidesteps the compilation hangs and toolchain-version
// skew the teacher's YaegiExecutor was built to avoid.
package introspect

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

// FuncDecl is a parsed top-level function declaration.
type FuncDecl struct {
	Name       string
	Params     []Param
	ReturnText string
	DocComment string // doc comment block immediately preceding the func, raw
	Directive  string // e.g. "vibesafe:func provider=fast"
	BodyStart  int    // byte offset just past the body's opening brace
	BodyEnd    int    // byte offset of the body's closing brace
	NodeStart  int    // byte offset of the func keyword
	NodeEnd    int    // byte offset just past the closing brace
}

// Param is one function parameter, name plus raw type text.
type Param struct {
	Name string
	Type string
}

// Parser wraps a tree-sitter parser configured for Go.
type Parser struct {
	ts *sitter.Parser
}

// NewParser constructs a Go-language tree-sitter parser.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &Parser{ts: p}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() { p.ts.Close() }

// ParseFile parses one Go source file and returns every top-level function
// declaration along with the directive comment (if any) immediately above
// it, e.g. "//vibesafe:func provider=fast".
func (p *Parser) ParseFile(ctx context.Context, content []byte) ([]FuncDecl, error) {
	tree, err := p.ts.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("introspect: parse: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("introspect: source has syntax errors")
	}

	getText := func(n *sitter.Node) string {
		if n == nil {
			return ""
		}
		return n.Content(content)
	}

	var decls []FuncDecl
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() != "function_declaration" {
			continue
		}
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		paramsNode := n.ChildByFieldName("parameters")
		resultNode := n.ChildByFieldName("result")
		bodyNode := n.ChildByFieldName("body")

		decl := FuncDecl{
			Name:       getText(nameNode),
			ReturnText: collapseWhitespace(getText(resultNode)),
			NodeStart:  int(n.StartByte()),
			NodeEnd:    int(n.EndByte()),
		}
		if paramsNode != nil {
			decl.Params = parseParams(paramsNode, content)
		}
		if bodyNode != nil {
			decl.BodyStart = int(bodyNode.StartByte()) + 1 // past '{'
			decl.BodyEnd = int(bodyNode.EndByte()) - 1      // before '}'
		}

		decl.DocComment, decl.Directive = precedingComments(n, content)
		decls = append(decls, decl)
	}
	return decls, nil
}

// parseParams walks a parameter_list node, expanding grouped declarations
// like "a, b string" into individual (name, type) pairs.
func parseParams(paramsNode *sitter.Node, content []byte) []Param {
	var params []Param
	for i := 0; i < int(paramsNode.NamedChildCount()); i++ {
		decl := paramsNode.NamedChild(i)
		if decl.Type() != "parameter_declaration" {
			continue
		}
		typeNode := decl.ChildByFieldName("type")
		typeText := collapseWhitespace(typeNode.Content(content))

		var names []string
		for j := 0; j < int(decl.NamedChildCount()); j++ {
			c := decl.NamedChild(j)
			if c.Type() == "identifier" {
				names = append(names, c.Content(content))
			}
		}
		if len(names) == 0 {
			// Unnamed parameter: the whole declaration is a type.
			params = append(params, Param{Type: typeText})
			continue
		}
		for _, name := range names {
			params = append(params, Param{Name: name, Type: typeText})
		}
	}
	return params
}

// precedingComments walks backward over sibling `comment` nodes directly
// above a declaration, separating the //vibesafe:... directive line (if
// any) from the remaining doc comment text.
func precedingComments(n *sitter.Node, content []byte) (doc string, directive string) {
	var lines []string
	prev := n.PrevSibling()
	for prev != nil && prev.Type() == "comment" {
		lines = append([]string{prev.Content(content)}, lines...)
		prev = prev.PrevSibling()
	}

	var docLines []string
	for _, l := range lines {
		trimmed := strings.TrimPrefix(l, "//")
		if strings.HasPrefix(strings.TrimSpace(trimmed), "vibesafe:") {
			directive = strings.TrimSpace(trimmed)
			continue
		}
		docLines = append(docLines, strings.TrimPrefix(trimmed, " "))
	}
	return strings.Join(docLines, "\n"), directive
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// HasErrorNode reports whether re-parsing artifact bytes yields any ERROR
// node in the tree — the Validator's parsability gate.
func (p *Parser) HasErrorNode(ctx context.Context, content []byte) (bool, error) {
	tree, err := p.ts.ParseCtx(ctx, nil, content)
	if err != nil {
		return true, err
	}
	defer tree.Close()
	return tree.RootNode().HasError(), nil
}
