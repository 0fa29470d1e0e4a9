package domain

// SourceType identifies where report text came from
type SourceType string

const (
	SourceText  SourceType = "text"
	SourcePDF   SourceType = "pdf"
	SourceImage SourceType = "image"
)

// Flag classifies a result against its reference range
type Flag string

const (
	FlagLow      Flag = "low"
	FlagHigh     Flag = "high"
	FlagNormal   Flag = "normal"
	FlagAbnormal Flag = "abnormal"
)

// ParsedRow is a single extracted test result.
// Value is either a float64 or a string (comparator values like "<5",
// qualitative results like "Positive").
type ParsedRow struct {
	TestName       string    `json:"test_name"`
	TestNameRaw    string    `json:"test_name_raw,omitempty"`
	Value          any       `json:"value"`
	ValueText      string    `json:"value_text,omitempty"`
	ValueNum       *float64  `json:"value_num,omitempty"`
	Unit           string    `json:"unit,omitempty"`
	UnitRaw        string    `json:"unit_raw,omitempty"`
	Comparator     string    `json:"comparator,omitempty"`
	ReferenceRange string    `json:"reference_range,omitempty"`
	Flag           Flag      `json:"flag,omitempty"`
	Confidence     float64   `json:"confidence"`
	Page           *int      `json:"page,omitempty"`
	BBox           []float64 `json:"bbox,omitempty"`
	RawLine        string    `json:"raw_line,omitempty"`
}

// ParseResult is the outcome of parsing one report
type ParseResult struct {
	Rows     []ParsedRow `json:"rows"`
	Unparsed []string    `json:"unparsed"`
	Source   SourceType  `json:"source,omitempty"`
}
