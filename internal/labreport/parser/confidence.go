package parser

import "github.com/reportrx/reportrx-backend/internal/labreport/domain"

// confidence weights value and unit over free-text range and flag
func confidence(row *domain.ParsedRow) float64 {
	score := 0.0
	if row.TestName != "" {
		score += 0.2
	}
	if row.Value != nil {
		score += 0.4
	}
	if row.Unit != "" {
		score += 0.2
	}
	if row.ReferenceRange != "" {
		score += 0.15
	}
	if row.Flag != "" {
		score += 0.05
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
