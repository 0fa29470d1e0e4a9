package parser

import (
	"strings"

	"github.com/reportrx/reportrx-backend/internal/labreport/domain"
)

// computeFlag classifies a value against range constraints. Comparator values
// only get a flag when the bound is conclusive; qualitative results map
// Positive/Reactive to abnormal and Negative/Non-reactive to normal.
func computeFlag(value any, rng *interval, le, ge *float64) domain.Flag {
	if s, ok := value.(string); ok {
		if m := compVal.FindStringSubmatch(strings.TrimSpace(s)); m != nil {
			comp := m[1]
			bound, err := toFloat(m[2])
			if err == nil {
				return flagForComparator(comp, bound, rng, le, ge)
			}
		}

		switch strings.ToLower(s) {
		case "positive", "reactive":
			return domain.FlagAbnormal
		case "negative", "non-reactive", "non reactive", "nonreactive":
			return domain.FlagNormal
		}
		return ""
	}

	v, ok := value.(float64)
	if !ok {
		return ""
	}
	if rng != nil {
		if v < rng.low {
			return domain.FlagLow
		}
		if v > rng.high {
			return domain.FlagHigh
		}
		return domain.FlagNormal
	}
	if le != nil {
		if v <= *le {
			return domain.FlagNormal
		}
		return domain.FlagHigh
	}
	if ge != nil {
		if v >= *ge {
			return domain.FlagNormal
		}
		return domain.FlagLow
	}
	return ""
}

func flagForComparator(comp string, bound float64, rng *interval, le, ge *float64) domain.Flag {
	isLess := comp == "<" || comp == "<=" || comp == "≤"
	isGreater := comp == ">" || comp == ">=" || comp == "≥"

	if rng != nil {
		if isLess {
			if bound < rng.low {
				return domain.FlagLow
			}
			if bound <= rng.high {
				return domain.FlagNormal
			}
			return ""
		}
		if isGreater {
			if bound > rng.high {
				return domain.FlagHigh
			}
			// not decisive against the lower bound
			return ""
		}
	}
	if le != nil {
		// "< 5" against "≤ 200" is normal; "> 210" against "≤ 200" is high
		if isLess {
			if bound <= *le {
				return domain.FlagNormal
			}
			return ""
		}
		if isGreater {
			if bound > *le {
				return domain.FlagHigh
			}
			return ""
		}
	}
	if ge != nil {
		if isGreater {
			if bound >= *ge {
				return domain.FlagNormal
			}
			return ""
		}
		if isLess {
			if bound < *ge {
				return domain.FlagLow
			}
			return ""
		}
	}
	return ""
}
