package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportrx/reportrx-backend/internal/labreport/domain"
)

func findRow(t *testing.T, rows []domain.ParsedRow, prefix string) domain.ParsedRow {
	t.Helper()
	for _, r := range rows {
		if strings.HasPrefix(strings.ToLower(r.TestName), prefix) {
			return r
		}
	}
	require.Failf(t, "row not found", "no row with test name prefix %q", prefix)
	return domain.ParsedRow{}
}

func TestParse_NumericRangeAndUnits(t *testing.T) {
	text := strings.Join([]string{
		"Hemoglobin 13.2 g/dL 12.0-15.5",
		"LDL Cholesterol 210 mg/dL ≤ 200",
		"WBC 5.4 10^9/L 3.5-11.0",
		"COVID-19 PCR: Positive",
	}, "\n")

	rows, _ := Parse(text)
	require.GreaterOrEqual(t, len(rows), 3)

	hgb := findRow(t, rows, "hemoglobin")
	assert.Equal(t, 13.2, hgb.Value)
	assert.Equal(t, "g/dL", hgb.Unit)
	assert.Equal(t, "12.0-15.5", hgb.ReferenceRange)
	assert.Equal(t, domain.FlagNormal, hgb.Flag)
	assert.GreaterOrEqual(t, hgb.Confidence, 0.6)
	assert.LessOrEqual(t, hgb.Confidence, 1.0)

	ldl := findRow(t, rows, "ldl")
	assert.Equal(t, 210.0, ldl.Value)
	assert.Equal(t, "mg/dL", ldl.Unit)
	assert.True(t, strings.HasPrefix(ldl.ReferenceRange, "≤"))
	assert.Equal(t, domain.FlagHigh, ldl.Flag)

	wbc := findRow(t, rows, "wbc")
	assert.Equal(t, 5.4, wbc.Value)
	assert.True(t, strings.HasPrefix(wbc.Unit, "10^"))
	assert.Equal(t, "3.5-11.0", wbc.ReferenceRange)
	assert.Equal(t, domain.FlagNormal, wbc.Flag)

	covid := findRow(t, rows, "covid")
	assert.Equal(t, "Positive", covid.Value)
	assert.Equal(t, domain.FlagAbnormal, covid.Flag)
}

func TestParse_ParentheticalAndToRangesAndFlags(t *testing.T) {
	text := strings.Join([]string{
		"Ferritin 15 ng/mL (13-150)",
		"TSH 6.0 mIU/L 0.4 to 4.0",
		"ALT 55 U/L H",
		"CRP <5 mg/L (0-10)",
		"WBC 5.4 x10^9/L 3.5-11.0",
		"Hep B Surface Antigen: Non-reactive",
	}, "\n")

	rows, _ := Parse(text)

	ferritin := findRow(t, rows, "ferritin")
	assert.Equal(t, "13.0-150.0", ferritin.ReferenceRange)
	assert.Equal(t, domain.FlagNormal, ferritin.Flag)

	tsh := findRow(t, rows, "tsh")
	assert.Equal(t, "0.4-4.0", tsh.ReferenceRange)
	assert.Equal(t, domain.FlagHigh, tsh.Flag)

	alt := findRow(t, rows, "alt")
	assert.Equal(t, domain.FlagHigh, alt.Flag)

	crp := findRow(t, rows, "crp")
	v, ok := crp.Value.(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(v, "<"))
	assert.Equal(t, "<", crp.Comparator)

	wbc := findRow(t, rows, "wbc")
	assert.True(t, strings.HasPrefix(strings.ToLower(wbc.Unit), "x10^"))
	assert.Equal(t, "3.5-11.0", wbc.ReferenceRange)
	assert.Equal(t, domain.FlagNormal, wbc.Flag)

	hbsag := findRow(t, rows, "hep b")
	assert.Equal(t, "Non-reactive", hbsag.Value)
	assert.Equal(t, domain.FlagNormal, hbsag.Flag)
}

func TestParse_NameWithNumberNotValue(t *testing.T) {
	rows, _ := Parse("Vitamin B12 600 pg/mL 200-900")
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "Vitamin B12", r.TestName)
	assert.Equal(t, 600.0, r.Value)
	assert.Equal(t, "pg/mL", r.Unit)
	assert.Equal(t, "200.0-900.0", r.ReferenceRange)
	assert.Equal(t, domain.FlagNormal, r.Flag)
	require.NotNil(t, r.ValueNum)
	assert.Equal(t, 600.0, *r.ValueNum)
	assert.Equal(t, "600.0", r.ValueText)
}

func TestParse_PendingNameJoinsNextLine(t *testing.T) {
	rows, _ := Parse("Hemoglobin A1c\n5.7 4.0-5.6")
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "Hemoglobin A1c", r.TestName)
	assert.Equal(t, 5.7, r.Value)
	assert.Equal(t, "4.0-5.6", r.ReferenceRange)
	assert.Equal(t, domain.FlagHigh, r.Flag)
}

func TestParse_OrphanRangeAttachesToPreviousRow(t *testing.T) {
	rows, unparsed := Parse("WBC 14.2 x10^9/L\n( 3.5-11.0 )")
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "WBC", r.TestName)
	assert.Equal(t, "3.5-11.0", r.ReferenceRange)
	assert.Equal(t, domain.FlagHigh, r.Flag)
	assert.Empty(t, unparsed)
}

func TestParse_NoiseAndMetadataSkipped(t *testing.T) {
	text := strings.Join([]string{
		"Laboratory Report",
		"Page 3",
		"Patient: John Doe",
		"MRN: 123456789",
		"Collected: 2024-01-05",
		"Glucose 100 mg/dL 70-99",
		"End of report",
	}, "\n")

	rows, unparsed := Parse(text)
	require.Len(t, rows, 1)
	assert.Equal(t, "Glucose", rows[0].TestName)
	// header noise is dropped, not reported as unparsed
	assert.Empty(t, unparsed)
}

func TestParse_SectionHeaderResetsPendingName(t *testing.T) {
	rows, _ := Parse("Lipid Panel\nHDL 60 mg/dL 40-60")
	require.Len(t, rows, 1)
	assert.Equal(t, "HDL Cholesterol", rows[0].TestName)
	assert.Equal(t, 60.0, rows[0].Value)
}

func TestParse_PipeDelimitedColumns(t *testing.T) {
	rows, _ := Parse("Hemoglobin | 13.2 g/dL | 12.0-15.5")
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "Hemoglobin", r.TestName)
	assert.Equal(t, 13.2, r.Value)
	assert.Equal(t, "g/dL", r.Unit)
	assert.Equal(t, "12.0-15.5", r.ReferenceRange)
	assert.Equal(t, domain.FlagNormal, r.Flag)
}

func TestParse_LabeledRanges(t *testing.T) {
	text := strings.Join([]string{
		"Glucose 100 mg/dL reference range: 70-99",
		"Calcium 8.0 mg/dL normal range: 8.5-10.5",
		"Potassium 4.1 mEq/L ref: 3.5-5.0",
	}, "\n")

	rows, _ := Parse(text)
	require.Len(t, rows, 3)

	glu := findRow(t, rows, "glucose")
	assert.Equal(t, "70.0-99.0", glu.ReferenceRange)
	assert.Equal(t, domain.FlagHigh, glu.Flag)

	ca := findRow(t, rows, "calcium")
	assert.Equal(t, "8.5-10.5", ca.ReferenceRange)
	assert.Equal(t, domain.FlagLow, ca.Flag)

	k := findRow(t, rows, "potassium")
	assert.Equal(t, "3.5-5.0", k.ReferenceRange)
	assert.Equal(t, domain.FlagNormal, k.Flag)
}

func TestParse_ThresholdRanges(t *testing.T) {
	text := strings.Join([]string{
		"Albumin 3.2 g/dL ≥ 3.5",
		"Creatinine 1.0 mg/dL >= 0.6",
		"LDL Cholesterol 210 mg/dL · 200",
	}, "\n")

	rows, _ := Parse(text)
	require.Len(t, rows, 3)

	alb := findRow(t, rows, "albumin")
	assert.Equal(t, "≥ 3.5", alb.ReferenceRange)
	assert.Equal(t, domain.FlagLow, alb.Flag)

	cre := findRow(t, rows, "creatinine")
	assert.Equal(t, "≥ 0.6", cre.ReferenceRange)
	assert.Equal(t, domain.FlagNormal, cre.Flag)

	// some PDF extractions render '≤' as a middle dot
	ldl := findRow(t, rows, "ldl")
	assert.Equal(t, "≤ 200.0", ldl.ReferenceRange)
	assert.Equal(t, domain.FlagHigh, ldl.Flag)
}

func TestParse_UnparsedLines(t *testing.T) {
	rows, unparsed := Parse("( )\n(≤ 200)")
	assert.Empty(t, rows)
	assert.Len(t, unparsed, 2)
}

func TestParse_ThousandsAndDecimalComma(t *testing.T) {
	text := strings.Join([]string{
		"Platelets 1,234 10^3/μL",
		"Glucose 5,4 mmol/L 3,9-6,1",
	}, "\n")

	rows, _ := Parse(text)
	require.Len(t, rows, 2)

	plt := findRow(t, rows, "platelets")
	assert.Equal(t, 1234.0, plt.Value)
	assert.Equal(t, "10^3/μL", plt.Unit)

	glu := findRow(t, rows, "glucose")
	assert.Equal(t, 5.4, glu.Value)
	assert.Equal(t, "mmol/L", glu.Unit)
	assert.Equal(t, "3.9-6.1", glu.ReferenceRange)
	assert.Equal(t, domain.FlagNormal, glu.Flag)
}

func TestParse_ConfidenceScoring(t *testing.T) {
	rows, _ := Parse("Glucose 100 mg/dL 70-99")
	require.Len(t, rows, 1)

	// name, value, unit, range and flag all present
	assert.GreaterOrEqual(t, rows[0].Confidence, 0.8)
	assert.LessOrEqual(t, rows[0].Confidence, 1.0)
}

func TestParse_ConfidenceWithinBounds(t *testing.T) {
	text := strings.Join([]string{
		"Hemoglobin 13.2 g/dL 12.0-15.5",
		"ALT 55",
		"CRP <5 mg/L",
		"HbsAg: Negative",
	}, "\n")

	rows, _ := Parse(text)
	require.NotEmpty(t, rows)
	for _, r := range rows {
		assert.GreaterOrEqual(t, r.Confidence, 0.0, r.TestName)
		assert.LessOrEqual(t, r.Confidence, 1.0, r.TestName)
	}
}

func TestComputeFlag_Comparators(t *testing.T) {
	le200 := 200.0
	ge50 := 50.0

	tests := []struct {
		name  string
		value any
		rng   *interval
		le    *float64
		ge    *float64
		want  domain.Flag
	}{
		{"numeric below range", 10.0, &interval{low: 12.0, high: 15.5}, nil, nil, domain.FlagLow},
		{"numeric above range", 16.0, &interval{low: 12.0, high: 15.5}, nil, nil, domain.FlagHigh},
		{"numeric inside range", 13.0, &interval{low: 12.0, high: 15.5}, nil, nil, domain.FlagNormal},
		{"numeric under threshold", 150.0, nil, &le200, nil, domain.FlagNormal},
		{"numeric over threshold", 210.0, nil, &le200, nil, domain.FlagHigh},
		{"numeric over floor", 60.0, nil, nil, &ge50, domain.FlagNormal},
		{"numeric under floor", 40.0, nil, nil, &ge50, domain.FlagLow},
		{"less-than bound under low", "<3", &interval{low: 5.0, high: 10.0}, nil, nil, domain.FlagLow},
		{"less-than bound within", "<8", &interval{low: 5.0, high: 10.0}, nil, nil, domain.FlagNormal},
		{"less-than bound above high", "<20", &interval{low: 5.0, high: 10.0}, nil, nil, ""},
		{"greater-than bound above high", ">12", &interval{low: 5.0, high: 10.0}, nil, nil, domain.FlagHigh},
		{"greater-than bound not decisive", ">6", &interval{low: 5.0, high: 10.0}, nil, nil, ""},
		{"less-than under threshold", "<5", nil, &le200, nil, domain.FlagNormal},
		{"greater-than over threshold", ">210", nil, &le200, nil, domain.FlagHigh},
		{"positive is abnormal", "Positive", nil, nil, nil, domain.FlagAbnormal},
		{"reactive is abnormal", "Reactive", nil, nil, nil, domain.FlagAbnormal},
		{"negative is normal", "Negative", nil, nil, nil, domain.FlagNormal},
		{"non-reactive is normal", "Non-reactive", nil, nil, nil, domain.FlagNormal},
		{"qualitative unknown", "Indeterminate", nil, nil, nil, ""},
		{"no constraints", 5.0, nil, nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, computeFlag(tt.value, tt.rng, tt.le, tt.ge))
		})
	}
}

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"13.2", "13.2"},
		{"1,234", "1234"},
		{"1,234.5", "1234.5"},
		{"12,345,678", "12345678"},
		{"5,4", "5.4"},
		{" 210 ", "210"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeNumber(tt.in), tt.in)
	}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{13.0, "13.0"},
		{150.0, "150.0"},
		{3.5, "3.5"},
		{0.4, "0.4"},
		{0.15, "0.15"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatFloat(tt.in))
	}
}

func TestCanonicalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HbA1c", "Hemoglobin A1c"},
		{"SGPT", "ALT"},
		{"Haemoglobin", "Hemoglobin"},
		{"LDL Cholesterol", "LDL Cholesterol"},
		{"tsh (ultrasensitive)", "TSH"},
		{"Prothrombin Time", "Prothrombin Time"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, canonicalizeName(tt.in), tt.in)
	}
}

func TestNormalizeUnit(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"mg/dl", "mg/dL"},
		{"g/dl", "g/dL"},
		{"µIU/mL", "μIU/mL"},
		{"x10^9/l", "x10^9/L"},
		{"mmol/l", "mmol/L"},
		{"mEq/l", "mEq/L"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeUnit(tt.in), tt.in)
	}
}

func TestSplitColumns(t *testing.T) {
	assert.Equal(t,
		[]string{"Hemoglobin ", " 13.2 ", " g/dL"},
		splitColumns("Hemoglobin | 13.2 | g/dL"))
	assert.Equal(t,
		[]string{"Hemoglobin", "13.2 g/dL", "12.0-15.5"},
		splitColumns("Hemoglobin    13.2 g/dL      12.0-15.5"))
}
