// Package parser extracts structured test rows from free-form lab report
// text. It is layout agnostic: lines are split into column cells, cleaned,
// filtered against noise patterns and matched against a small grammar of
// value, unit and reference range shapes.
package parser

import (
	"fmt"
	"strings"

	"github.com/reportrx/reportrx-backend/internal/labreport/domain"
)

// Parse extracts test rows from report text. Lines that look like data but
// could not be parsed are returned separately for user feedback; header and
// footer noise is dropped silently.
func Parse(text string) ([]domain.ParsedRow, []string) {
	rows := []domain.ParsedRow{}
	unparsed := []string{}

	// A line without numbers may be a test name whose value wrapped onto the
	// next line; it is stashed and prepended to the next numeric line.
	pendingName := ""

	for _, rawLine := range splitLines(text) {
		segments := splitColumns(rawLine)
		if len(segments) == 0 {
			segments = []string{rawLine}
		}
		for _, segment := range segments {
			line := cleanLine(segment)
			if line == "" {
				continue
			}
			if noise.MatchString(line) {
				continue
			}
			if sectionHeader.MatchString(line) {
				pendingName = ""
				continue
			}
			if bareParen.MatchString(line) || onlyComparator.MatchString(line) {
				unparsed = append(unparsed, line)
				continue
			}

			hasNumber := firstNumberPos.MatchString(line) || posNeg.MatchString(line)
			if !hasNumber {
				if !metaName.MatchString(line) {
					pendingName = line
				}
				continue
			}
			if pendingName != "" {
				line = pendingName + " " + line
				pendingName = ""
			}

			splitPos := -1
			if idx := firstNumberPos.FindStringSubmatchIndex(line); idx != nil {
				splitPos = idx[2]
			}

			rangeStr, rng, le, ge := extractRange(line)

			// Positive/Negative detection takes precedence over numeric
			// extraction.
			var value any
			comp, rawVal, unit, unitRaw := "", "", "", ""
			vmEnd := -1
			if pm := posNeg.FindStringSubmatch(line); pm != nil {
				value = capitalize(pm[1])
				splitPos = -1
			} else if idx := valueWithUnit.FindStringSubmatchIndex(line); idx != nil {
				if idx[2] >= 0 {
					comp = line[idx[2]:idx[3]]
				}
				rawVal = line[idx[4]:idx[5]]
				if comp != "" {
					value = comp + rawVal
				} else if f, err := toFloat(rawVal); err == nil {
					value = f
				} else {
					value = rawVal
				}
				if idx[6] >= 0 {
					unitRaw = line[idx[6]:idx[7]]
				}
				unit = normalizeUnit(unitRaw)
				// For name splitting, prefer the start of the captured value
				splitPos = idx[4]
				vmEnd = idx[1]
			}

			name := ""
			if splitPos >= 0 {
				name = strings.Trim(line[:splitPos], " -:\t")
				// Drop junk-only prefixes like '(' or '≤' from PDF splits
				if name != "" && junkName.MatchString(name) {
					name = ""
				}
			} else if i := strings.Index(line, ":"); i >= 0 {
				name = strings.TrimSpace(line[:i])
			}

			// Metadata headers/fields are noise, not unparsed errors
			if name != "" && (metaName.MatchString(name) || anyMetaToken.MatchString(name)) {
				continue
			}

			// A segment with no usable name but a range likely belongs to the
			// previous row (ranges split across PDF columns).
			if name == "" {
				if rangeStr != "" && len(rows) > 0 {
					last := &rows[len(rows)-1]
					if last.ReferenceRange == "" {
						last.ReferenceRange = rangeStr
						if f := computeFlag(last.Value, rng, le, ge); f != "" {
							last.Flag = f
						}
						last.Confidence = confidence(last)
						continue
					}
				}
				unparsed = append(unparsed, line)
				continue
			}

			// Explicit flag markers like 'H', 'L', '↑', '↓' after the value.
			// Only the tail after value/unit is searched to avoid the '/L' in
			// units.
			explicitFlag := domain.Flag("")
			if vmEnd >= 0 && vmEnd < len(line) {
				if m := endFlagTail.FindStringSubmatch(line[vmEnd:]); m != nil {
					switch strings.ToLower(m[1]) {
					case "h", "high", "↑":
						explicitFlag = domain.FlagHigh
					case "l", "low", "↓":
						explicitFlag = domain.FlagLow
					}
				}
			}

			nameRaw := name
			name = canonicalizeName(name)

			if value == nil {
				unparsed = append(unparsed, line)
				continue
			}

			flag := computeFlag(value, rng, le, ge)
			if explicitFlag != "" {
				flag = explicitFlag
			}

			valueText := valueString(value)
			if comp != "" && rawVal != "" {
				valueText = comp + rawVal
			}
			var valueNum *float64
			if comp == "" {
				if f, ok := value.(float64); ok {
					v := f
					valueNum = &v
				}
			}

			row := domain.ParsedRow{
				TestName:       name,
				TestNameRaw:    nameRaw,
				Value:          value,
				ValueText:      valueText,
				ValueNum:       valueNum,
				Unit:           unit,
				UnitRaw:        unitRaw,
				Comparator:     comp,
				ReferenceRange: rangeStr,
				Flag:           flag,
				RawLine:        line,
			}
			row.Confidence = confidence(&row)
			rows = append(rows, row)
		}
	}

	return rows, unparsed
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func valueString(v any) string {
	switch t := v.(type) {
	case float64:
		return formatFloat(t)
	case string:
		return t
	}
	return fmt.Sprintf("%v", v)
}
