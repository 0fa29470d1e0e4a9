package interpret

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportrx/reportrx-backend/internal/labreport/domain"
	"github.com/reportrx/reportrx-backend/pkg/config"
	"github.com/reportrx/reportrx-backend/pkg/logger"
)

func testRows() []domain.ParsedRow {
	return []domain.ParsedRow{
		{TestName: "Hemoglobin", Value: 13.2, Unit: "g/dL", ReferenceRange: "12.0-15.5", Flag: domain.FlagNormal, Confidence: 1.0},
		{TestName: "LDL Cholesterol", Value: 210.0, Unit: "mg/dL", ReferenceRange: "≤ 200.0", Flag: domain.FlagHigh, Confidence: 1.0},
		{TestName: "Ferritin", Value: 10.0, Unit: "ng/mL", ReferenceRange: "13.0-150.0", Flag: domain.FlagLow, Confidence: 1.0},
		{TestName: "COVID-19 PCR", Value: "Positive", Flag: domain.FlagAbnormal, Confidence: 0.65},
	}
}

func newTestService(t *testing.T, baseURL, apiKey string) *Service {
	t.Helper()
	cfg := &config.OpenAIConfig{
		APIKey:          apiKey,
		BaseURL:         baseURL,
		Model:           "gpt-5",
		FallbackModels:  []string{"gpt-4.1"},
		MaxOutputTokens: 1600,
		Timeout:         5 * time.Second,
	}
	return NewService(cfg, logger.New("interpret-test", "development"))
}

func TestFallbackInterpretation_OrdersBySeverity(t *testing.T) {
	out := fallbackInterpretation(testRows())

	require.Len(t, out.Flags, 3)
	assert.Equal(t, "LDL Cholesterol", out.Flags[0].TestName)
	assert.Equal(t, "high", out.Flags[0].Severity)
	assert.Equal(t, "COVID-19 PCR", out.Flags[1].TestName)
	assert.Equal(t, "abnormal", out.Flags[1].Severity)
	assert.Equal(t, "Ferritin", out.Flags[2].TestName)
	assert.Equal(t, "low", out.Flags[2].Severity)

	// flagged rows only, most severe first
	lines := strings.Split(out.Summary, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "LDL Cholesterol 210.0 mg/dL [≤ 200.0] HIGH", lines[0])

	require.NotEmpty(t, out.NextSteps)
	assert.Equal(t, firstNextStep, out.NextSteps[0])
	assert.LessOrEqual(t, len(out.NextSteps), 6)
	assert.Contains(t, out.Disclaimer, "Educational information only")
}

func TestFallbackInterpretation_AllNormal(t *testing.T) {
	rows := []domain.ParsedRow{
		{TestName: "Glucose", Value: 90.0, Unit: "mg/dL", ReferenceRange: "70.0-99.0", Flag: domain.FlagNormal},
	}
	out := fallbackInterpretation(rows)

	assert.Equal(t, "All provided values are within reference ranges.", out.Summary)
	assert.Empty(t, out.Flags)
	assert.Empty(t, out.PerTest)
	assert.Equal(t, firstNextStep, out.NextSteps[0])
}

func TestBuildInterpretPrompt_CapsRows(t *testing.T) {
	rows := make([]domain.ParsedRow, 50)
	for i := range rows {
		rows[i] = domain.ParsedRow{TestName: "Glucose", Value: 90.0}
	}
	prompt := buildInterpretPrompt(rows)

	require.Contains(t, prompt, "ROWS:")
	payload := prompt[strings.LastIndex(prompt, "ROWS:")+len("ROWS:"):]
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(payload)), &decoded))
	assert.Len(t, decoded, maxPromptRows)
}

func TestCoerceInterpretation_DictShapes(t *testing.T) {
	raw := `{
		"summary": ["line one", "line two"],
		"per_test": {"TSH": {"explanation": "slightly high"}, "WBC": "within range"},
		"flags": {"TSH": {"severity": "high", "note": "above range"}},
		"next_steps": "See your doctor.\nRetest in 3 months.",
		"disclaimer": "Not medical advice."
	}`

	out, err := coerceInterpretation([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "line one\nline two", out.Summary)
	assert.Len(t, out.PerTest, 2)
	assert.Len(t, out.Flags, 1)
	assert.Equal(t, "TSH", out.Flags[0].TestName)
	assert.Equal(t, "high", out.Flags[0].Severity)
	assert.Equal(t, []string{"See your doctor.", "Retest in 3 months."}, out.NextSteps)
}

func TestInterpret_NoAPIKeyFallsBack(t *testing.T) {
	svc := newTestService(t, "http://localhost:0", "")

	out, meta := svc.Interpret(context.Background(), testRows())
	require.NotNil(t, out)
	assert.False(t, meta.OK)
	require.NotNil(t, meta.Error)
	assert.Equal(t, ErrCodeMissingAPIKey, meta.Error.Code)
	assert.NotEmpty(t, out.Flags)
}

func TestInterpret_PlainTextSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-5", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "ROWS:")

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "SUMMARY: Mostly normal results."}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, "test-key")
	out, meta := svc.Interpret(context.Background(), testRows())

	assert.True(t, meta.OK)
	assert.Equal(t, 1, meta.Attempts)
	assert.Equal(t, "SUMMARY: Mostly normal results.", out.Summary)
	// model text replaces the generated sections but keeps computed flags
	assert.Empty(t, out.PerTest)
	assert.Empty(t, out.NextSteps)
	assert.NotEmpty(t, out.Flags)
}

func TestInterpret_ModelFallbackOnNotFound(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		models = append(models, req.Model)

		if req.Model == "gpt-5" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{"message": "model not found", "code": "model_not_found"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "All good."}},
			},
		})
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, "test-key")
	out, meta := svc.Interpret(context.Background(), testRows())

	assert.Equal(t, []string{"gpt-5", "gpt-4.1"}, models)
	assert.True(t, meta.OK)
	assert.Equal(t, "gpt-4.1", meta.Model)
	assert.Equal(t, 2, meta.Attempts)
	assert.Equal(t, "All good.", out.Summary)
}

func TestInterpret_ServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "overloaded", "type": "server_error"},
		})
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, "test-key")
	out, meta := svc.Interpret(context.Background(), testRows())

	assert.False(t, meta.OK)
	require.NotNil(t, meta.Error)
	assert.Equal(t, http.StatusInternalServerError, meta.Error.Status)
	// only one attempt: server errors do not trigger model fallback
	assert.Equal(t, 1, meta.Attempts)
	assert.NotEmpty(t, out.Summary)
}

func TestTranslate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Messages[1].Content, "Spanish")
		assert.Contains(t, req.Messages[1].Content, "Hello world")

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Hola mundo"}},
			},
		})
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, "test-key")
	out, meta := svc.Translate(context.Background(), "Hello world", "es")

	assert.Equal(t, "Hola mundo", out)
	assert.True(t, meta.OK)
	assert.Equal(t, "es", meta.Language)
}

func TestTranslate_NoAPIKey(t *testing.T) {
	svc := newTestService(t, "http://localhost:0", "")

	out, meta := svc.Translate(context.Background(), "Hello world", "es")
	assert.Empty(t, out)
	assert.False(t, meta.OK)
	require.NotNil(t, meta.Error)
	assert.Equal(t, ErrCodeMissingAPIKey, meta.Error.Code)
}
