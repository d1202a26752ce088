package prompt

import (
	"embed"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"vibesafe/internal/vserrors"
)

// templateFS bakes the built-in prompt templates into the binary, mirroring
// how the teacher's prompt package embeds its atom corpus.
//
//go:embed templates/*.tmpl
var templateFS embed.FS

// Renderer resolves a template id to its text and executes it against a
// Context. It never touches the clock or a random source, so rendering the
// same Context twice always produces identical bytes.
type Renderer struct {
	overrideDir string // optional on-disk directory searched before the embedded set
	cache       map[string]*template.Template
}

// NewRenderer constructs a Renderer. overrideDir may be empty; when set, a
// file named "<templateID>.tmpl" under it takes precedence over the
// embedded default with the same id.
func NewRenderer(overrideDir string) *Renderer {
	return &Renderer{overrideDir: overrideDir, cache: map[string]*template.Template{}}
}

// Render resolves templateID and executes it against ctx, returning the
// rendered prompt text.
func (r *Renderer) Render(unitID, templateID string, ctx Context) (string, error) {
	tmpl, err := r.load(unitID, templateID)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, ctx); err != nil {
		return "", vserrors.NewTemplateRenderError(unitID, err)
	}
	return sb.String(), nil
}

func (r *Renderer) load(unitID, templateID string) (*template.Template, error) {
	if t, ok := r.cache[templateID]; ok {
		return t, nil
	}

	text, err := r.readTemplate(templateID)
	if err != nil {
		return nil, vserrors.NewTemplateNotFound(unitID, templateID)
	}

	tmpl, err := template.New(templateID).Parse(text)
	if err != nil {
		return nil, vserrors.NewTemplateRenderError(unitID, err)
	}
	r.cache[templateID] = tmpl
	return tmpl, nil
}

func (r *Renderer) readTemplate(templateID string) (string, error) {
	name := templateID
	if !strings.HasSuffix(name, ".tmpl") {
		name += ".tmpl"
	}

	if r.overrideDir != "" {
		path := filepath.Join(r.overrideDir, name)
		if data, err := os.ReadFile(path); err == nil {
			return string(data), nil
		}
	}

	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
