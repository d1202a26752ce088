// Package prompt renders a unit's Spec into the text sent to an LLM
// provider, deterministically: the same Spec and Options always produce
// byte-identical prompt text, since PromptHash depends on it.
package prompt

import (
	"encoding/json"

	"vibesafe/internal/spec"
)

// Param mirrors spec.Param for the template context's JSON shape.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Example mirrors spec.Example for the template context.
type Example struct {
	InputSource    string `json:"input_source"`
	ExpectedOutput string `json:"expected_output"`
}

// Options mirrors the http/cli-relevant fields of spec.Options.
type Options struct {
	Method string   `json:"method,omitempty"`
	Path   string   `json:"path,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// Context is the canonical, JSON-serializable projection of a Spec that a
// template renders against. The rendered template text, not this struct,
// is what participates in H_prompt.
type Context struct {
	UnitID          string    `json:"unit_id"`
	Kind            string    `json:"kind"`
	Params          []Param   `json:"params"`
	ReturnType      string    `json:"return_type"`
	SignatureText   string    `json:"signature_text"`
	DocString       string    `json:"docstring"`
	Examples        []Example `json:"examples"`
	PreHoleSource   string    `json:"pre_hole_source"`
	ResolvedImports []string  `json:"resolved_imports"`
	Options         Options   `json:"options"`
}

// FromSpec projects a spec.Spec plus the paths of its resolved
// dependencies into a template Context.
func FromSpec(s spec.Spec, resolvedImports []string) Context {
	params := make([]Param, 0, len(s.Signature.Params))
	for _, p := range s.Signature.Params {
		params = append(params, Param{Name: p.Name, Type: p.Type})
	}
	examples := make([]Example, 0, len(s.Examples))
	for _, e := range s.Examples {
		examples = append(examples, Example{InputSource: e.InputSource, ExpectedOutput: e.ExpectedOutput})
	}
	imports := resolvedImports
	if imports == nil {
		imports = []string{}
	}
	return Context{
		UnitID:          s.UnitID,
		Kind:            string(s.Kind),
		Params:          params,
		ReturnType:      s.Signature.ReturnType,
		SignatureText:   s.SignatureText,
		DocString:       s.Docstring,
		Examples:        examples,
		PreHoleSource:   s.PreHoleSource,
		ResolvedImports: imports,
		Options: Options{
			Method: s.Options.Method,
			Path:   s.Options.Path,
			Tags:   s.Options.Tags,
		},
	}
}

// RenderInputs returns the canonical JSON encoding of the context, with
// fields in struct declaration order (json.Marshal's default). Checkpoint
// meta.toml does not store it.
func (c Context) RenderInputs() ([]byte, error) {
	return json.Marshal(c)
}
