package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/reportrx/reportrx-backend/internal/interpret"
	"github.com/reportrx/reportrx-backend/internal/labreport/domain"
	"github.com/reportrx/reportrx-backend/internal/labreport/service"
	"github.com/reportrx/reportrx-backend/pkg/config"
	apperrors "github.com/reportrx/reportrx-backend/pkg/errors"
	"github.com/reportrx/reportrx-backend/pkg/httputil"
	"github.com/reportrx/reportrx-backend/pkg/logger"
	"github.com/reportrx/reportrx-backend/pkg/messaging"
)

// multipartMemory caps the in-memory part of multipart parsing
const multipartMemory = 32 << 20

// Handler handles report HTTP requests
type Handler struct {
	service *service.Service
	cfg     *config.ParseConfig
	logger  *logger.Logger
}

// New creates a report handler
func New(svc *service.Service, cfg *config.ParseConfig, log *logger.Logger) *Handler {
	return &Handler{service: svc, cfg: cfg, logger: log}
}

// Routes returns the report routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/parse", h.Parse)
	r.Post("/interpret", h.Interpret)
	r.Post("/translate", h.Translate)
	return r
}

// ParseResponse is the payload returned by the parse endpoint
type ParseResponse struct {
	Rows          []ParsedRowPayload `json:"rows"`
	UnparsedLines []string           `json:"unparsed_lines"`
	Unparsed      []UnparsedLine     `json:"unparsed"`
	ExtractedText string             `json:"extracted_text"`
	Source        domain.SourceType  `json:"source"`
}

// ParsedRowPayload is a parsed row with a client-side row ID
type ParsedRowPayload struct {
	ID string `json:"id"`
	domain.ParsedRow
}

// UnparsedLine is an unparsed line with page placement when known
type UnparsedLine struct {
	Page *int   `json:"page"`
	Text string `json:"text"`
}

// InterpretRequest carries parsed rows back for interpretation
type InterpretRequest struct {
	Rows []domain.ParsedRow `json:"rows" validate:"required,min=1"`
}

// InterpretResponse carries the interpretation and call metadata
type InterpretResponse struct {
	Interpretation *interpret.Interpretation `json:"interpretation"`
	Meta           *interpret.CallMeta       `json:"meta,omitempty"`
}

// TranslateRequest asks for a summary translation
type TranslateRequest struct {
	Text           string `json:"text" validate:"required"`
	TargetLanguage string `json:"target_language" validate:"required"`
}

// TranslateResponse carries the translated text
type TranslateResponse struct {
	Language    string              `json:"language"`
	Translation string              `json:"translation"`
	Meta        *interpret.CallMeta `json:"meta,omitempty"`
}

// Parse handles POST /parse. Multipart requests carry PDF or image files;
// JSON requests carry {"text": "..."}.
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	contentType := strings.ToLower(r.Header.Get("Content-Type"))

	if strings.HasPrefix(contentType, "multipart/form-data") {
		maxTotal := h.cfg.MaxFileBytes * int64(h.cfg.MaxFiles)
		r.Body = http.MaxBytesReader(w, r.Body, maxTotal)

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			httputil.Error(w, apperrors.PayloadTooLarge("request body too large or malformed"))
			return
		}
		defer r.MultipartForm.RemoveAll()

		files, err := h.readUploads(r.MultipartForm)
		if err != nil {
			httputil.Error(w, err)
			return
		}

		result, extracted, err := h.service.ParseFiles(ctx, files)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, buildParseResponse(result, extracted))
		return
	}

	if !strings.Contains(contentType, "application/json") {
		httputil.Error(w, apperrors.BadRequest(`send a PDF file or JSON {"text": "..."}`))
		return
	}

	var req struct {
		Text *string `json:"text"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if req.Text == nil {
		httputil.Error(w, apperrors.BadRequest("body must include 'text'"))
		return
	}

	result := h.service.ParseText(ctx, *req.Text)
	httputil.JSON(w, http.StatusOK, buildParseResponse(result, *req.Text))
}

// Interpret handles POST /interpret
func (h *Handler) Interpret(w http.ResponseWriter, r *http.Request) {
	var req InterpretRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, meta, err := h.service.Interpret(requestContext(r), req.Rows)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, InterpretResponse{Interpretation: result, Meta: meta})
}

// Translate handles POST /translate
func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	var req TranslateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	translation, meta, err := h.service.Translate(requestContext(r), req.Text, req.TargetLanguage)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, TranslateResponse{
		Language:    strings.ToLower(strings.TrimSpace(req.TargetLanguage)),
		Translation: translation,
		Meta:        meta,
	})
}

// readUploads collects files from the multi-file field and the legacy
// single-file field
func (h *Handler) readUploads(form *multipart.Form) ([]service.UploadedFile, error) {
	var uploads []service.UploadedFile
	for _, field := range []string{"files", "file"} {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, apperrors.BadRequest("failed to read upload " + fh.Filename)
			}
			data, err := io.ReadAll(io.LimitReader(f, h.cfg.MaxFileBytes+1))
			f.Close()
			if err != nil {
				return nil, apperrors.BadRequest("failed to read upload " + fh.Filename)
			}
			uploads = append(uploads, service.UploadedFile{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	if len(uploads) == 0 {
		return nil, apperrors.BadRequest("no files provided")
	}
	return uploads, nil
}

func buildParseResponse(result *domain.ParseResult, extracted string) ParseResponse {
	rows := make([]ParsedRowPayload, 0, len(result.Rows))
	for i, row := range result.Rows {
		rows = append(rows, ParsedRowPayload{
			ID:        rowID(i + 1),
			ParsedRow: row,
		})
	}
	unparsed := make([]UnparsedLine, 0, len(result.Unparsed))
	for _, line := range result.Unparsed {
		unparsed = append(unparsed, UnparsedLine{Text: line})
	}
	if result.Unparsed == nil {
		result.Unparsed = []string{}
	}
	return ParseResponse{
		Rows:          rows,
		UnparsedLines: result.Unparsed,
		Unparsed:      unparsed,
		ExtractedText: extracted,
		Source:        result.Source,
	}
}

func rowID(n int) string {
	return "r" + strconv.Itoa(n)
}

// requestContext carries the request ID into published events as the
// correlation ID
func requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	return messaging.WithCorrelationID(ctx, httputil.GetRequestID(ctx))
}
