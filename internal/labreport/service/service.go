// Package service orchestrates report parsing, interpretation and
// translation, and records privacy-safe audit entries and events.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/reportrx/reportrx-backend/internal/interpret"
	"github.com/reportrx/reportrx-backend/internal/labreport/domain"
	"github.com/reportrx/reportrx-backend/internal/labreport/events"
	"github.com/reportrx/reportrx-backend/internal/labreport/extract"
	"github.com/reportrx/reportrx-backend/internal/labreport/parser"
	"github.com/reportrx/reportrx-backend/internal/labreport/repository"
	"github.com/reportrx/reportrx-backend/pkg/config"
	apperrors "github.com/reportrx/reportrx-backend/pkg/errors"
	"github.com/reportrx/reportrx-backend/pkg/logger"
	"github.com/reportrx/reportrx-backend/pkg/messaging"
)

// UploadedFile is one multipart file from a parse request
type UploadedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Service handles report parsing, interpretation and translation.
// The audit repository and event publisher may be nil when the backing
// infrastructure is not available; both are best-effort.
type Service struct {
	cfg         *config.ParseConfig
	extractor   *extract.Extractor
	interpreter *interpret.Service
	audit       *repository.AuditRepository
	events      *events.Publisher
	logger      *logger.Logger
}

// New creates a report service
func New(
	cfg *config.ParseConfig,
	extractor *extract.Extractor,
	interpreter *interpret.Service,
	audit *repository.AuditRepository,
	publisher *events.Publisher,
	log *logger.Logger,
) *Service {
	return &Service{
		cfg:         cfg,
		extractor:   extractor,
		interpreter: interpreter,
		audit:       audit,
		events:      publisher,
		logger:      log,
	}
}

// ParseText parses raw report text
func (s *Service) ParseText(ctx context.Context, text string) *domain.ParseResult {
	return s.parse(ctx, text, domain.SourceText, 0)
}

// ParseFiles extracts text from the uploads and parses the combined result.
// The extracted text is returned alongside the result for client display.
func (s *Service) ParseFiles(ctx context.Context, files []UploadedFile) (*domain.ParseResult, string, error) {
	if len(files) == 0 {
		return nil, "", apperrors.BadRequest("no files provided")
	}
	if len(files) > s.cfg.MaxFiles {
		return nil, "", apperrors.PayloadTooLarge(fmt.Sprintf("too many files (max %d)", s.cfg.MaxFiles))
	}

	source := domain.SourceImage
	var parts []string
	for _, f := range files {
		if int64(len(f.Data)) > s.cfg.MaxFileBytes {
			return nil, "", apperrors.PayloadTooLarge(
				fmt.Sprintf("%s exceeds %dMB limit", uploadName(f), s.cfg.MaxFileBytes>>20))
		}
		src, ok := extract.DetectSource(f.Data, f.ContentType, f.Filename)
		if !ok {
			return nil, "", apperrors.UnsupportedMedia(
				fmt.Sprintf("unsupported file type for %s: use PDF or image (PNG/JPEG)", uploadName(f)))
		}
		if src == domain.SourcePDF {
			source = domain.SourcePDF
		}

		text, err := s.extractor.Text(ctx, src, f.Data)
		if err != nil {
			return nil, "", apperrors.BadRequest(fmt.Sprintf("failed to read file %s: %v", uploadName(f), err))
		}
		if t := strings.TrimSpace(text); t != "" {
			parts = append(parts, t)
		}
	}

	combined := strings.Join(parts, "\n")
	return s.parse(ctx, combined, source, len(files)), combined, nil
}

// Interpret explains parsed rows, falling back to a deterministic local
// interpretation when no LLM is reachable
func (s *Service) Interpret(ctx context.Context, rows []domain.ParsedRow) (*interpret.Interpretation, *interpret.CallMeta, error) {
	if len(rows) == 0 {
		return nil, nil, apperrors.BadRequest("rows must be a non-empty array")
	}

	result, meta := s.interpreter.Interpret(ctx, rows)

	if s.events != nil {
		backend := "fallback"
		if meta.OK {
			backend = "llm"
		}
		event := &messaging.ReportInterpretedEvent{
			RowCount:   len(rows),
			Backend:    backend,
			Model:      meta.Model,
			DurationMs: meta.DurationMs,
		}
		if err := s.events.ReportInterpreted(ctx, event); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish report.interpreted event")
		}
	}
	return result, meta, nil
}

// Translate renders a summary into a supported target language
func (s *Service) Translate(ctx context.Context, text, targetLanguage string) (string, *interpret.CallMeta, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil, apperrors.BadRequest("text must be a non-empty string")
	}
	code := strings.ToLower(strings.TrimSpace(targetLanguage))
	if _, ok := interpret.SupportedLanguages[code]; !ok || code == "en" {
		return "", nil, apperrors.BadRequest("unsupported target_language")
	}

	translation, meta := s.interpreter.Translate(ctx, text, code)
	if meta.Error != nil {
		if meta.Error.Code == interpret.ErrCodeMissingAPIKey {
			return "", meta, apperrors.Unavailable("translation service unavailable")
		}
		return "", meta, apperrors.BadGateway("translation failed")
	}

	if s.events != nil {
		event := &messaging.ReportTranslatedEvent{
			Language:   code,
			DurationMs: meta.DurationMs,
		}
		if err := s.events.ReportTranslated(ctx, event); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish report.translated event")
		}
	}
	return translation, meta, nil
}

func (s *Service) parse(ctx context.Context, text string, source domain.SourceType, fileCount int) *domain.ParseResult {
	start := time.Now()
	rows, unparsed := parser.Parse(text)
	duration := time.Since(start)

	s.logger.Info().
		Str("source", string(source)).
		Int("rows", len(rows)).
		Int("unparsed", len(unparsed)).
		Dur("duration", duration).
		Msg("report parsed")

	s.recordParse(ctx, source, fileCount, len(rows), len(unparsed), duration)

	return &domain.ParseResult{Rows: rows, Unparsed: unparsed, Source: source}
}

// recordParse stores counts only; report content never leaves the request
func (s *Service) recordParse(ctx context.Context, source domain.SourceType, fileCount, rowCount, unparsedCount int, duration time.Duration) {
	if s.audit != nil {
		audit := &repository.ParseAudit{
			SourceType:    string(source),
			FileCount:     fileCount,
			RowCount:      rowCount,
			UnparsedCount: unparsedCount,
			DurationMs:    duration.Milliseconds(),
		}
		if err := s.audit.Record(ctx, audit); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record parse audit")
		}
	}
	if s.events != nil {
		event := &messaging.ReportParsedEvent{
			SourceType:    string(source),
			FileCount:     fileCount,
			RowCount:      rowCount,
			UnparsedCount: unparsedCount,
			DurationMs:    duration.Milliseconds(),
		}
		if err := s.events.ReportParsed(ctx, event); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish report.parsed event")
		}
	}
}

func uploadName(f UploadedFile) string {
	if f.Filename != "" {
		return f.Filename
	}
	return "upload"
}
