package interpret

// PerTestItem explains a single test result
type PerTestItem struct {
	TestName    string `json:"test_name"`
	Explanation string `json:"explanation"`
}

// FlagItem highlights an out-of-range result
type FlagItem struct {
	TestName string `json:"test_name"`
	Severity string `json:"severity"`
	Note     string `json:"note"`
}

// Interpretation is the patient-facing explanation of a parsed report
type Interpretation struct {
	Summary    string        `json:"summary"`
	PerTest    []PerTestItem `json:"per_test"`
	Flags      []FlagItem    `json:"flags"`
	NextSteps  []string      `json:"next_steps"`
	Disclaimer string        `json:"disclaimer"`
}

// CallError carries upstream error details without leaking report content
type CallError struct {
	Status  int    `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// CallMeta records how an interpretation or translation was produced
type CallMeta struct {
	LLM        string     `json:"llm"`
	Attempts   int        `json:"attempts"`
	Model      string     `json:"model,omitempty"`
	Endpoint   string     `json:"endpoint,omitempty"`
	OK         bool       `json:"ok"`
	DurationMs int64      `json:"duration_ms"`
	Language   string     `json:"language,omitempty"`
	Error      *CallError `json:"error,omitempty"`
}

// Error codes surfaced in CallMeta
const (
	ErrCodeMissingAPIKey = "missing_api_key"
	ErrCodeHTTPError     = "http_error"
	ErrCodeEmptyResponse = "empty_response"
)

// Supported translation targets. English is the source language and is
// rejected to avoid no-op calls.
var SupportedLanguages = map[string]string{
	"en": "English",
	"es": "Spanish",
	"ar": "Arabic",
	"zh": "Mandarin Chinese",
	"hi": "Hindi",
	"fr": "French",
}
