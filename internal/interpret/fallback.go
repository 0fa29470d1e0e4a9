package interpret

import (
	"sort"
	"strconv"
	"strings"

	"github.com/reportrx/reportrx-backend/internal/labreport/domain"
)

const disclaimer = "Educational information only. Not a diagnosis or treatment recommendation. " +
	"Always consult a qualified clinician."

// firstNextStep stays fixed to preserve the contract with existing clients
const firstNextStep = "Please schedule a visit with your doctor to review these results and your overall health."

func severityOrder(f domain.Flag) int {
	switch f {
	case domain.FlagHigh:
		return 0
	case domain.FlagAbnormal:
		return 1
	case domain.FlagLow:
		return 2
	default:
		return 3
	}
}

func isFlagged(f domain.Flag) bool {
	return f == domain.FlagLow || f == domain.FlagHigh || f == domain.FlagAbnormal
}

// fallbackInterpretation builds a deterministic interpretation used when no
// LLM is configured or the call failed. Flagged rows are ordered by severity,
// then name.
func fallbackInterpretation(rows []domain.ParsedRow) *Interpretation {
	sorted := make([]domain.ParsedRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		oi, oj := severityOrder(sorted[i].Flag), severityOrder(sorted[j].Flag)
		if oi != oj {
			return oi < oj
		}
		return strings.ToLower(sorted[i].TestName) < strings.ToLower(sorted[j].TestName)
	})

	var flags []FlagItem
	var flagged []domain.ParsedRow
	for _, r := range sorted {
		if !isFlagged(r.Flag) {
			continue
		}
		flagged = append(flagged, r)
		note := "Result reported as abnormal"
		switch r.Flag {
		case domain.FlagHigh:
			note = "Higher than reference range"
		case domain.FlagLow:
			note = "Lower than reference range"
		}
		flags = append(flags, FlagItem{TestName: r.TestName, Severity: string(r.Flag), Note: note})
	}

	summary := "All provided values are within reference ranges."
	if len(flagged) > 0 {
		lines := make([]string, 0, len(flagged))
		for _, r := range flagged {
			lines = append(lines, formatRow(r))
			if len(lines) == 24 {
				break
			}
		}
		summary = strings.Join(lines, "\n")
	}

	var perTest []PerTestItem
	for i, r := range flagged {
		if i == 10 {
			break
		}
		val := valueText(r.Value)
		if r.Unit != "" {
			val += " " + r.Unit
		}
		if r.ReferenceRange != "" {
			val += " (ref: " + r.ReferenceRange + ")"
		}
		interp := "This result is provided for discussion with your clinician."
		switch r.Flag {
		case domain.FlagHigh:
			interp = "Above the reference range."
		case domain.FlagLow:
			interp = "Below the reference range."
		case domain.FlagAbnormal:
			interp = "This result is reported as abnormal (e.g., positive/reactive)."
		}
		perTest = append(perTest, PerTestItem{
			TestName: r.TestName,
			Explanation: "Reported value: " + val + ". " + interp +
				" Review alongside symptoms, history, and current medications.",
		})
	}

	var highs, lows, abns []string
	for _, r := range sorted {
		switch r.Flag {
		case domain.FlagHigh:
			highs = append(highs, r.TestName)
		case domain.FlagLow:
			lows = append(lows, r.TestName)
		case domain.FlagAbnormal:
			abns = append(abns, r.TestName)
		}
	}

	steps := []string{firstNextStep}
	if len(highs)+len(lows)+len(abns) > 0 {
		steps = append(steps, "Review flagged results together: "+joinNames(append(append(append([]string{}, highs...), lows...), abns...))+".")
		if len(highs) > 0 {
			steps = append(steps, "Discuss factors that can raise "+joinNames(highs)+" and whether lifestyle changes or retesting are needed.")
		}
		if len(lows) > 0 {
			steps = append(steps, "Discuss causes of low "+joinNames(lows)+" (e.g., nutrition, absorption) and whether supplements or retesting are appropriate.")
		}
		if len(abns) > 0 {
			steps = append(steps, "Clarify what an abnormal/positive result for "+joinNames(abns)+" means and what confirmatory tests are recommended.")
		}
		steps = append(steps,
			"Ask about recommended follow-up tests and timelines.",
			"Share any symptoms, medications, or recent changes that could affect results.")
	} else {
		steps = append(steps,
			"Review these results with your clinician at your next visit.",
			"Ask which values are most important for you and how to maintain them.",
			"Share symptoms, medications, and recent changes that could affect labs.",
			"Ask if any routine monitoring is recommended and how often.",
			"Request guidance on nutrition, exercise, sleep, and other supportive habits.")
	}
	if len(steps) > 6 {
		steps = steps[:6]
	}

	if len(flags) > 8 {
		flags = flags[:8]
	}
	if flags == nil {
		flags = []FlagItem{}
	}
	if perTest == nil {
		perTest = []PerTestItem{}
	}

	return &Interpretation{
		Summary:    summary,
		PerTest:    perTest,
		Flags:      flags,
		NextSteps:  steps,
		Disclaimer: disclaimer,
	}
}

// formatRow renders '<Test> <Value> <Unit> [<Reference>] <FLAG>'
func formatRow(r domain.ParsedRow) string {
	s := r.TestName + " " + valueText(r.Value)
	if r.Unit != "" {
		s += " " + r.Unit
	}
	if r.ReferenceRange != "" {
		s += " [" + r.ReferenceRange + "]"
	}
	if isFlagged(r.Flag) {
		s += " " + strings.ToUpper(string(r.Flag))
	}
	return strings.TrimSpace(s)
}

func valueText(v any) string {
	switch t := v.(type) {
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case string:
		return t
	case nil:
		return ""
	}
	return ""
}

// joinNames lists up to three unique names, then truncates
func joinNames(names []string) string {
	var unique []string
	seen := map[string]bool{}
	for _, n := range names {
		if !seen[n] {
			unique = append(unique, n)
			seen[n] = true
		}
	}
	if len(unique) <= 3 {
		return strings.Join(unique, ", ")
	}
	return strings.Join(unique[:3], ", ") + ", etc."
}
