// Package text formats help text of the CLI commands.
package text

import (
	"strings"
)

// Indentation prefixes every example line.
const Indentation = `  `

// LongDesc trims a raw string literal used as a long description and removes the indentation
// its source lines share.
func LongDesc(s string) string {
	return strings.Join(dedent(s), "\n")
}

// Examples formats an example block: shared indentation is removed and every line is indented
// by Indentation.
func Examples(s string) string {
	lines := dedent(s)
	for i, line := range lines {
		if line != "" {
			lines[i] = Indentation + line
		}
	}

	return strings.Join(lines, "\n")
}

// dedent splits s into lines without the leading and trailing blank lines and removes the
// smallest indentation of the non blank lines from each line.
func dedent(s string) []string {
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if common < 0 || n < common {
			common = n
		}
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = strings.TrimRight(line[common:], " \t")
	}

	return lines
}
