// Package spec extracts canonical Spec records from vibesafe-decorated Go
// functions. A Spec is never persisted (§3.3): it is reconstructed fresh on
// every scan, compile, and runtime load, which is what lets the Loader
// detect drift by simply re-extracting and re-hashing.
package spec

import "vibesafe/internal/hashing"

// Kind is the declared unit kind.
type Kind string

const (
	KindFunction Kind = "function"
	KindHTTP     Kind = "http"
	KindCLI      Kind = "cli"
)

// Sentinel is the distinguished call that marks where a stub's pre-hole
// source ends. The Extractor recognizes it syntactically; it never runs.
const Sentinel = "vibesafe.Handled"

// SourceLocation is enough information to re-read a unit's source slice.
type SourceLocation struct {
	File      string
	StartLine int
	EndLine   int
}

// Param is one canonical (name, type) signature entry.
type Param struct {
	Name string
	Type string
}

// Signature is a unit's canonical, ordered parameter list plus return type.
type Signature struct {
	Params     []Param
	ReturnType string
}

// Example is one doctest-derived input/output pair (§3.1).
type Example struct {
	InputSource    string
	ExpectedOutput string
}

// Options carries per-unit overrides parsed from the directive comment.
type Options struct {
	Provider string
	Template string
	Method   string // http only
	Path     string // http only
	Tags     []string
}

// DependencyRef is one name referenced in a unit's pre-hole source.
type DependencyRef struct {
	Name         string
	ResolvedPath string
	ContentHash  string
}

// Unit is the raw extraction of one decorated function, before it is
// turned into an immutable Spec.
type Unit struct {
	UnitID         string
	Kind           Kind
	SourceLocation SourceLocation
	Signature      Signature
	Docstring      string // raw, byte-exact
	PreHoleSource  string
	ProviderRef    string
	TemplateRef    string
	Options        Options
	DependencyRefs []DependencyRef
}

// Spec is the immutable tuple hashed and rendered downstream. Constructing
// one never touches disk beyond the initial source read.
type Spec struct {
	UnitID              string
	Kind                Kind
	Signature           Signature
	SignatureText       string // canonical rendering, what actually gets hashed
	Docstring           string // normalized
	Examples            []Example
	PreHoleSource       string
	ProviderRef         string
	TemplateRef         string
	Options             Options
	DependencyDigest    []hashing.DependencyEntry
	HypothesisBlocks    []string
}

// SignatureText renders a Signature canonically: "func Name(a T, b U) R".
func SignatureText(name string, sig Signature) string {
	out := "func " + name + "("
	for i, p := range sig.Params {
		if i > 0 {
			out += ", "
		}
		if p.Name != "" {
			out += p.Name + " "
		}
		out += p.Type
	}
	out += ")"
	if sig.ReturnType != "" {
		out += " " + sig.ReturnType
	}
	return out
}
