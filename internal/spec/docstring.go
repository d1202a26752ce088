package spec

import (
	"regexp"
	"strings"
)

// NormalizeDocstring strips common leading indentation across non-empty
// lines, normalizes line endings to LF, and trims leading/trailing blank
// lines while preserving internal blank lines — the Go equivalent of
// Python's inspect.cleandoc, used by the original hashing.normalize_docstring.
func NormalizeDocstring(raw string) string {
	if raw == "" {
		return ""
	}
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if minIndent == -1 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent > 0 {
		for i, line := range lines {
			if len(line) >= minIndent {
				lines[i] = line[minIndent:]
			} else {
				lines[i] = strings.TrimLeft(line, " \t")
			}
		}
	}

	// Trim leading/trailing blank lines only.
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}

var hypothesisBlockRE = regexp.MustCompile(`(?is)` + "```" + `hypothesis\n(.*?)\n` + "```")

// ExtractHypothesisBlocks pulls fenced ```hypothesis blocks out of a
// docstring for the Verification Harness's optional property gate (§4.7.4).
func ExtractHypothesisBlocks(doc string) []string {
	matches := hypothesisBlockRE.FindAllStringSubmatch(doc, -1)
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, NormalizeDocstring(m[1]))
	}
	return blocks
}

// ParseExamples extracts >>> / ... doctest-style examples from a
// normalized docstring. Expected-output whitespace is preserved
// byte-for-byte (§3.2 Invariant 6, §8 S6).
func ParseExamples(doc string) []Example {
	lines := strings.Split(doc, "\n")
	var examples []Example

	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, ">>> ") && trimmed != ">>>" {
			i++
			continue
		}

		var inputParts []string
		inputParts = append(inputParts, strings.TrimPrefix(strings.TrimPrefix(trimmed, ">>>"), " "))
		i++
		for i < len(lines) {
			cont := strings.TrimSpace(lines[i])
			if strings.HasPrefix(cont, "... ") || cont == "..." {
				inputParts = append(inputParts, strings.TrimPrefix(strings.TrimPrefix(cont, "..."), " "))
				i++
				continue
			}
			break
		}

		var outputLines []string
		for i < len(lines) {
			line := lines[i]
			trimmedOut := strings.TrimSpace(line)
			if trimmedOut == "" || strings.HasPrefix(trimmedOut, ">>> ") || trimmedOut == ">>>" {
				break
			}
			outputLines = append(outputLines, line)
			i++
		}

		examples = append(examples, Example{
			InputSource:    strings.Join(inputParts, "\n"),
			ExpectedOutput: strings.Join(outputLines, "\n"),
		})
	}
	return examples
}
