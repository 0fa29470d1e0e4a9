package parser

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9\s]+`)

// canonicalNames maps cleaned lowercase names to display names.
// Order matters: prefix matching walks the list top to bottom.
var canonicalNames = []struct {
	key  string
	name string
}{
	{"hba1c", "Hemoglobin A1c"},
	{"hemoglobin a1c", "Hemoglobin A1c"},
	{"alt", "ALT"},
	{"sgpt", "ALT"},
	{"ast", "AST"},
	{"sgot", "AST"},
	{"hdl", "HDL Cholesterol"},
	{"ldl", "LDL Cholesterol"},
	{"tsh", "TSH"},
	{"wbc", "WBC"},
	{"rbc", "RBC"},
	{"hbsag", "Hep B Surface Antigen"},
	{"crp", "CRP"},
	{"vitamin b12", "Vitamin B12"},
	{"haemoglobin", "Hemoglobin"},
	{"hemoglobin", "Hemoglobin"},
	{"vitamin d", "Vitamin D"},
	{"25 oh vitamin d", "Vitamin D (25-OH)"},
}

// canonicalizeName maps a raw test name to its canonical display form,
// first by exact match and then by prefix. Unknown names pass through.
func canonicalizeName(name string) string {
	if name == "" {
		return name
	}
	base := strings.ToLower(strings.TrimSpace(nonAlnum.ReplaceAllString(name, " ")))
	base = whitespace.ReplaceAllString(base, " ")
	for _, e := range canonicalNames {
		if base == e.key {
			return e.name
		}
	}
	for _, e := range canonicalNames {
		if strings.HasPrefix(base, e.key) {
			return e.name
		}
	}
	return name
}

var unitMap = map[string]string{
	"mg/dl":    "mg/dL",
	"g/dl":     "g/dL",
	"ng/ml":    "ng/mL",
	"pg/ml":    "pg/mL",
	"miu/l":    "mIU/L",
	"iu/l":     "IU/L",
	"u/l":      "U/L",
	"uiu/ml":   "μIU/mL",
	"μiu/ml":   "μIU/mL",
	"µiu/ml":   "μIU/mL",
	"x10^9/l":  "x10^9/L",
	"x10^3/μl": "x10^3/μL",
	"x10^3/ul": "x10^3/μL",
	"10^3/μl":  "10^3/μL",
	"10^3/ul":  "10^3/μL",
	"mmol/l":   "mmol/L",
	"%":        "%",
}

// normalizeUnit maps common unit spellings to a canonical form and fixes the
// micro symbol and trailing litre casing.
func normalizeUnit(unit string) string {
	if unit == "" {
		return ""
	}
	u := strings.ReplaceAll(unit, "µ", "μ")
	if mapped, ok := unitMap[strings.ToLower(u)]; ok {
		return mapped
	}
	return strings.ReplaceAll(u, "/l", "/L")
}
