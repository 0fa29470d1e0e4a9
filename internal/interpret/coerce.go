package interpret

import (
	"encoding/json"
	"fmt"
	"strings"
)

// coerceInterpretation converts common LLM JSON drift into the expected
// schema: dict-shaped per_test/flags become lists, string next_steps become
// line lists, array summary/disclaimer join into text. Well-formed output
// passes through unchanged.
func coerceInterpretation(raw []byte) (*Interpretation, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}

	if pt, ok := obj["per_test"].(map[string]any); ok {
		items := make([]any, 0, len(pt))
		for k, v := range pt {
			if m, ok := v.(map[string]any); ok {
				tn := stringOr(m["test_name"], k)
				expl := firstString(m, "explanation", "summary", "text")
				if expl == "" {
					b, _ := json.Marshal(m)
					expl = string(b)
				}
				items = append(items, map[string]any{"test_name": tn, "explanation": expl})
			} else {
				items = append(items, map[string]any{"test_name": k, "explanation": anyString(v)})
			}
		}
		obj["per_test"] = items
	}

	if fg, ok := obj["flags"].(map[string]any); ok {
		items := make([]any, 0, len(fg))
		for k, v := range fg {
			if m, ok := v.(map[string]any); ok {
				tn := stringOr(m["test_name"], k)
				sev := firstString(m, "severity", "flag", "level")
				if sev == "" {
					sev = "abnormal"
				}
				note := firstString(m, "note", "message", "reason")
				items = append(items, map[string]any{"test_name": tn, "severity": sev, "note": note})
			} else {
				items = append(items, map[string]any{"test_name": k, "severity": "abnormal", "note": anyString(v)})
			}
		}
		obj["flags"] = items
	}

	if ns, ok := obj["next_steps"].(string); ok {
		var steps []any
		for _, s := range strings.Split(ns, "\n") {
			if s = strings.TrimSpace(s); s != "" {
				steps = append(steps, s)
			}
		}
		obj["next_steps"] = steps
	}

	for _, field := range []string{"summary", "disclaimer"} {
		if v, ok := obj[field].([]any); ok {
			parts := make([]string, 0, len(v))
			for _, x := range v {
				parts = append(parts, anyString(x))
			}
			obj[field] = strings.Join(parts, "\n")
		}
	}

	normalized, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var out Interpretation
	if err := json.Unmarshal(normalized, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func anyString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
