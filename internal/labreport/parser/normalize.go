package parser

import "strings"

// cleanLine removes bracketed notes, footnote markers and pipes, then
// collapses whitespace.
func cleanLine(line string) string {
	line = brackets.ReplaceAllString(line, " ")
	line = footnoteMark.ReplaceAllString(line, "")
	line = strings.ReplaceAll(line, "|", " ")
	line = strings.TrimSpace(line)
	return whitespace.ReplaceAllString(line, " ")
}

// splitColumns breaks a raw table line into column cells. Pipes are the
// primary boundary; within each cell, runs of 3+ spaces also separate columns.
func splitColumns(raw string) []string {
	var parts []string
	if strings.Contains(raw, "|") {
		for _, p := range strings.Split(raw, "|") {
			if strings.TrimSpace(p) != "" {
				parts = append(parts, p)
			}
		}
	} else {
		parts = []string{raw}
	}

	var out []string
	for _, p := range parts {
		if gapSplit.MatchString(p) {
			for _, s := range gapSplit.Split(p, -1) {
				if strings.TrimSpace(s) != "" {
					out = append(out, s)
				}
			}
		} else {
			out = append(out, p)
		}
	}
	return out
}
