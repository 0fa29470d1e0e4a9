// Package interpret turns parsed lab rows into patient-friendly
// interpretations and translates summaries. It calls the OpenAI chat
// completions API when a key is configured and otherwise degrades to a
// deterministic local interpretation.
package interpret

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/reportrx/reportrx-backend/internal/labreport/domain"
	"github.com/reportrx/reportrx-backend/pkg/config"
	"github.com/reportrx/reportrx-backend/pkg/logger"
)

// Service produces interpretations and translations
type Service struct {
	cfg    *config.OpenAIConfig
	client *http.Client
	logger *logger.Logger
}

// NewService creates an interpretation service
func NewService(cfg *config.OpenAIConfig, log *logger.Logger) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: log,
	}
}

// Interpret explains the given rows. The LLM output is preferred; any
// failure falls back to the local interpretation, with the cause recorded
// in the returned meta.
func (s *Service) Interpret(ctx context.Context, rows []domain.ParsedRow) (*Interpretation, *CallMeta) {
	start := time.Now()
	meta := &CallMeta{LLM: "none", Model: s.cfg.Model, Endpoint: "chat.completions"}

	if s.cfg.APIKey == "" {
		meta.Error = &CallError{Code: ErrCodeMissingAPIKey, Message: ErrCodeMissingAPIKey}
		meta.DurationMs = time.Since(start).Milliseconds()
		return fallbackInterpretation(rows), meta
	}

	meta.LLM = "openai"
	content, model, attempts, callErr := s.chatComplete(ctx, buildInterpretPrompt(rows))
	meta.Model = model
	meta.Attempts = attempts
	meta.DurationMs = time.Since(start).Milliseconds()

	if callErr != nil {
		meta.Error = callErr
		s.logger.Warn().
			Str("model", model).
			Int("attempts", attempts).
			Str("code", callErr.Code).
			Msg("interpretation call failed, using local fallback")
		return fallbackInterpretation(rows), meta
	}
	meta.OK = true

	out := strings.TrimSpace(content)
	if out == "" {
		return fallbackInterpretation(rows), meta
	}

	// Some models return the whole schema as JSON; coerce known drift.
	// Otherwise the output is treated as a plain text summary on top of the
	// locally computed flags.
	if strings.HasPrefix(out, "{") {
		if parsed, err := coerceInterpretation([]byte(out)); err == nil && parsed.Summary != "" {
			if parsed.Disclaimer == "" {
				parsed.Disclaimer = disclaimer
			}
			return parsed, meta
		}
	}

	result := fallbackInterpretation(rows)
	result.Summary = out
	result.PerTest = []PerTestItem{}
	result.NextSteps = []string{}
	return result, meta
}

// Translate renders text into the target language. The empty string with a
// populated meta.Error signals failure; the caller decides the HTTP mapping.
func (s *Service) Translate(ctx context.Context, text, language string) (string, *CallMeta) {
	start := time.Now()
	meta := &CallMeta{LLM: "openai", Model: s.cfg.Model, Endpoint: "chat.completions", Language: language}

	if s.cfg.APIKey == "" {
		meta.LLM = "none"
		meta.Error = &CallError{Code: ErrCodeMissingAPIKey, Message: ErrCodeMissingAPIKey}
		meta.DurationMs = time.Since(start).Milliseconds()
		return "", meta
	}

	label := SupportedLanguages[language]
	content, model, attempts, callErr := s.chatComplete(ctx, buildTranslatePrompt(text, label))
	meta.Model = model
	meta.Attempts = attempts
	meta.DurationMs = time.Since(start).Milliseconds()

	if callErr != nil {
		meta.Error = callErr
		return "", meta
	}
	out := strings.TrimSpace(content)
	if out == "" {
		meta.Error = &CallError{Code: ErrCodeEmptyResponse, Message: "model returned no text"}
		return "", meta
	}
	meta.OK = true
	return out, meta
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// chatComplete walks the configured model then its fallbacks, moving on only
// when the API rejects the model itself.
func (s *Service) chatComplete(ctx context.Context, prompt string) (content, model string, attempts int, callErr *CallError) {
	models := make([]string, 0, 1+len(s.cfg.FallbackModels))
	if s.cfg.Model != "" {
		models = append(models, s.cfg.Model)
	}
	models = append(models, s.cfg.FallbackModels...)
	if len(models) == 0 {
		models = []string{"gpt-5"}
	}

	var lastErr *CallError
	for _, m := range models {
		attempts++
		text, err := s.callModel(ctx, m, prompt)
		if err == nil {
			return text, m, attempts, nil
		}
		lastErr = err
		if err.Status != http.StatusBadRequest && err.Status != http.StatusNotFound {
			return "", m, attempts, lastErr
		}
	}
	return "", models[len(models)-1], attempts, lastErr
}

func (s *Service) callModel(ctx context.Context, model, prompt string) (string, *CallError) {
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxCompletionTokens: s.cfg.MaxOutputTokens,
	})
	if err != nil {
		return "", &CallError{Code: "encode_error", Message: err.Error()}
	}

	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &CallError{Code: "request_error", Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &CallError{Code: "network_error", Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &CallError{Status: resp.StatusCode, Code: "read_error", Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cerr := &CallError{Status: resp.StatusCode, Code: ErrCodeHTTPError}
		var apiErr apiErrorBody
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			cerr.Message = apiErr.Error.Message
			if apiErr.Error.Code != "" {
				cerr.Code = apiErr.Error.Code
			} else if apiErr.Error.Type != "" {
				cerr.Code = apiErr.Error.Type
			}
		} else {
			cerr.Message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return "", cerr
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &CallError{Status: resp.StatusCode, Code: "decode_error", Message: err.Error()}
	}
	if len(parsed.Choices) == 0 {
		return "", &CallError{Status: resp.StatusCode, Code: ErrCodeEmptyResponse, Message: "no choices in response"}
	}
	return parsed.Choices[0].Message.Content, nil
}
