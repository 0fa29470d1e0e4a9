package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// Number pattern supporting plain digits or thousands groups, with an
// optional decimal part using '.' or ','.
// Examples: "13.2", "1,234.5", "5,4", "1,234", "210"
const num = `(?:\d{1,3}(?:,\d{3})+|\d+)(?:[\.,]\d+)?`
const hyphen = `[-–]`

// Units: basic common forms plus a flexible token near the value
const unitToken = `%|mg/dL|g/dL|mmol/L|ng/mL|pg/mL|mIU/L|IU/L|U/L|` +
	`x?10\^\d+/[a-zA-ZμuL]+|10\^\d+/?L|[a-zA-Zμµ%][\wμµ/^%]*`

var (
	rangeXY = regexp.MustCompile(`\b(` + num + `)\s*` + hyphen + `\s*(` + num + `)\b`)
	// Support "to" as a range separator and ranges in parentheses
	rangeTo = regexp.MustCompile(`(?i)\b(` + num + `)\s*(?:to)\s*(` + num + `)\b`)
	parenXY = regexp.MustCompile(`\((` + num + `)\s*` + hyphen + `\s*(` + num + `)\)`)

	// Threshold ranges like "≤ 200" or "<=200" may be preceded by spaces or
	// symbols, so no leading word boundary; stop at whitespace or end.
	rangeLE = regexp.MustCompile(`(?:≤|<=)\s*(` + num + `)(?:\s|$)`)
	rangeGE = regexp.MustCompile(`(?:≥|>=)\s*(` + num + `)(?:\s|$)`)
	// Some PDF extractions (certain fonts) turn '≤' into a middle dot.
	// Treat '· N' as a conservative proxy for '≤ N'.
	rangeAltLE = regexp.MustCompile(`[·•]\s*(` + num + `)(?:\s|$)`)

	refRange = regexp.MustCompile(`(?i)reference\s*(?:range|interval)[:\s]+(` + num + `)\s*` + hyphen + `\s*(` + num + `)`)
	// Alternate labels that often precede ranges
	refAny = regexp.MustCompile(`(?i)(?:ref(?:erence)?\s*(?:range|interval)|normal\s*range|range|ref\s*:)[:\s]+` +
		`(` + num + `)\s*` + hyphen + `\s*(` + num + `)`)

	// The numeric value must not be part of a word (avoid the '12' in 'B12'),
	// so a non-alphanumeric prefix is required. An optional comparator may sit
	// directly before the value ('<5', '≥ 3.5'). Submatch indices locate the
	// value start since the prefix consumes one character.
	// Groups: 1=comp 2=val 3=unit
	valueWithUnit = regexp.MustCompile(`(?:^|[^A-Za-z0-9])(<|>|≤|≥|<=|>=)?\s*(` + num + `)\s*((?:` + unitToken + `))?\b`)

	posNeg      = regexp.MustCompile(`(?i)\b(positive|negative|reactive|non[- ]?reactive)\b`)
	endFlagTail = regexp.MustCompile(`(?i)(?:[\[(]?\s*)(High|Low|H|L|↑|↓)(?:\s*[\])])?\s*$`)

	// Avoid matching numbers inside alphanumeric tokens; group 1 carries the
	// number so its submatch index gives the true start position.
	firstNumberPos = regexp.MustCompile(`(?:^|[^A-Za-z])(` + num + `)`)

	// Filters for obvious non-data lines
	sectionHeader = regexp.MustCompile(`(?i)^(?:comprehensive\s+metabolic\s+panel|complete\s+blood\s+count|` +
		`lipid\s+panel|thyroid\s+function|vitamins|edge[-\s]*case.*parsing)\s*\(?$`)
	onlyComparator = regexp.MustCompile(`^\(?\s*(?:≤|>=|≥|<=|<|>)\s*` + num + `\s*\)?\s*$`)
	bareParen      = regexp.MustCompile(`^\(\s*\)?$`)
	junkName       = regexp.MustCompile(`^[\s()\[\]{}·•≤≥]+$`)

	// Header/footer noise
	noise = regexp.MustCompile(`(?i)^(?:` +
		`page\s*\d+|confidential|laboratory\s*report|` +
		`patient:|dob:|collected:|collection\s*time:?|reported:|report\s*summary|` +
		`results\b|comprehensive\s*laboratory\s*report|test\s*result\s*units|reference\s*range\s*flag|` +
		`metabolic\s*panel|lipid\s*profile|complete\s*blood\s*count|cbc\b|biochemistry\b|hematology\b|` +
		`method:?|analy[sz]er:?|specimen:?|clinical\s*correlation|watermark|do\s*not\s*copy|for\s*information|` +
		`note:|end\s*of\s*report|` +
		`•\s|[-·•]\s` +
		`)`)

	// Metadata fields skipped entirely when they appear as the test name.
	// Kept specific to avoid excluding genuine assays like "Prothrombin Time".
	metaName = regexp.MustCompile(`(?i)^(report\s*id|mrn|location|report\s*date|referring\s*doctor|doctor\b|physician\b|` +
		`collection\s*time|collected\s*time|reported\s*time|accession\s*no\.?|sample\s*(?:id|no\.?|type)|` +
		`specimen\s*(?:id|type)|patient\s*(?:name|id|mrn|uhid)?\b|age\b|sex\b|gender\b|lab\s*(?:no\.?|id)|barcode\b|` +
		`receipt\s*date|receipt\s*no\.?|clinic\b|department\b|ward\b|hospital\b|` +
		`method\b|analy[sz]er\b|specimen\b|comment\b|narrative\b)`)

	// Broader metadata tokens that may appear anywhere in a header-like field
	anyMetaToken = regexp.MustCompile(`(?i)\b(mrn|patient\s*(?:name|id|mrn|uhid)|report\s*id|accession\s*(?:no\.?|number)|` +
		`location|clinic|department|ward|hospital|laboratory\s*(?:id|number)?|lab\s*(?:no\.?|id)|barcode|dob)\b`)

	brackets     = regexp.MustCompile(`\[[^\]]*\]`)
	footnoteMark = regexp.MustCompile(`\*+`)
	whitespace   = regexp.MustCompile(`\s+`)
	gapSplit     = regexp.MustCompile(`\s{3,}`)

	thousandsGrouped = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
	compVal          = regexp.MustCompile(`^(<|>|≤|≥|<=|>=)\s*(` + num + `)$`)
)

// normalizeNumber resolves ',' as either a thousands separator or a decimal
// comma before float conversion.
func normalizeNumber(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		return strings.ReplaceAll(s, ",", "")
	}
	if strings.Contains(s, ",") {
		if thousandsGrouped.MatchString(s) {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.ReplaceAll(s, ",", ".")
	}
	return s
}

func toFloat(s string) (float64, error) {
	return strconv.ParseFloat(normalizeNumber(s), 64)
}

// formatFloat renders a float the way range strings present it:
// integral values keep a trailing ".0" ("13.0"), others use the shortest
// exact form ("3.5", "0.15").
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// interval is an inclusive low-high reference range
type interval struct {
	low  float64
	high float64
}

// extractRange finds a reference range anywhere in the segment. Labelled
// ranges win over parenthesised ones, which win over bare "X-Y" and "X to Y";
// thresholds come last.
func extractRange(segment string) (text string, rng *interval, le, ge *float64) {
	for _, re := range []*regexp.Regexp{refRange, refAny, parenXY, rangeXY, rangeTo} {
		if m := re.FindStringSubmatch(segment); m != nil {
			low, errL := toFloat(m[1])
			high, errH := toFloat(m[2])
			if errL != nil || errH != nil {
				continue
			}
			return formatFloat(low) + "-" + formatFloat(high), &interval{low: low, high: high}, nil, nil
		}
	}
	if m := rangeLE.FindStringSubmatch(segment); m != nil {
		if v, err := toFloat(m[1]); err == nil {
			return "≤ " + formatFloat(v), nil, &v, nil
		}
	}
	if m := rangeAltLE.FindStringSubmatch(segment); m != nil {
		if v, err := toFloat(m[1]); err == nil {
			return "≤ " + formatFloat(v), nil, &v, nil
		}
	}
	if m := rangeGE.FindStringSubmatch(segment); m != nil {
		if v, err := toFloat(m[1]); err == nil {
			return "≥ " + formatFloat(v), nil, nil, &v
		}
	}
	return "", nil, nil, nil
}
