package language

import (
	"strings"
	"unicode"
)

const indentUnit = "    "

// Format re-indents code for the given language. Python lines keep their
// relative indentation rounded to the nearest multiple of four spaces; brace
// languages are re-indented by brace depth. Unknown ids are treated like brace
// languages.
func Format(id, code string) string {
	lines := strings.Split(code, "\n")
	if id == "python" {
		for i, line := range lines {
			trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
			width := len(line) - len(trimmed)
			lines[i] = strings.Repeat(" ", (width+2)/4*4) + trimmed
		}
		return strings.Join(lines, "\n")
	}

	depth := 0
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "}") && depth > 0 {
			depth--
		}
		lines[i] = strings.Repeat(indentUnit, depth) + trimmed
		if strings.HasSuffix(trimmed, "{") {
			depth++
		}
	}
	return strings.Join(lines, "\n")
}
