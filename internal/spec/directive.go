package spec

import (
	"strings"

	"vibesafe/internal/vserrors"
)

var knownOptionKeys = map[string]bool{
	"provider": true, "template": true, "method": true, "path": true, "tag": true,
}

// parseDirective parses "vibesafe:func provider=fast template=custom.tmpl"
// into a Kind and Options. Unknown keys are rejected per §4.1.
func parseDirective(unitID, directive string) (Kind, Options, error) {
	fields := strings.Fields(directive)
	if len(fields) == 0 {
		return "", Options{}, vserrors.NewDecoratorOptionInvalid(unitID, directive)
	}

	head := strings.TrimPrefix(fields[0], "vibesafe:")
	var kind Kind
	switch head {
	case "func":
		kind = KindFunction
	case "http":
		kind = KindHTTP
	case "cli":
		kind = KindCLI
	default:
		return "", Options{}, vserrors.NewDecoratorOptionInvalid(unitID, head)
	}

	opts := Options{}
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			return "", Options{}, vserrors.NewDecoratorOptionInvalid(unitID, f)
		}
		if !knownOptionKeys[key] {
			return "", Options{}, vserrors.NewDecoratorOptionInvalid(unitID, key)
		}
		switch key {
		case "provider":
			opts.Provider = value
		case "template":
			opts.Template = value
		case "method":
			opts.Method = value
		case "path":
			opts.Path = value
		case "tag":
			opts.Tags = append(opts.Tags, value)
		}
	}
	return kind, opts, nil
}
