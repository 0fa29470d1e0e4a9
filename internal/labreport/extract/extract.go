// Package extract turns uploaded report files into plain text. PDFs use the
// embedded text layer first and fall back to per-page OCR for scans; images
// go straight to OCR.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/reportrx/reportrx-backend/internal/labreport/domain"
	"github.com/reportrx/reportrx-backend/pkg/config"
	"github.com/reportrx/reportrx-backend/pkg/logger"
)

// ocrDPI renders scanned pages at a higher resolution for better OCR
const ocrDPI = 200

var (
	pdfMagic  = []byte("%PDF-")
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// Extractor extracts text from uploaded report files
type Extractor struct {
	cfg    *config.ParseConfig
	logger *logger.Logger
}

// New creates an extractor with the configured page and OCR settings
func New(cfg *config.ParseConfig, log *logger.Logger) *Extractor {
	return &Extractor{cfg: cfg, logger: log}
}

// DetectSource identifies the payload type from magic bytes first, then the
// declared content type and filename. Unrecognised payloads return false.
func DetectSource(data []byte, contentType, filename string) (domain.SourceType, bool) {
	if bytes.HasPrefix(data, pdfMagic) {
		return domain.SourcePDF, true
	}
	if bytes.HasPrefix(data, pngMagic) || bytes.HasPrefix(data, jpegMagic) {
		return domain.SourceImage, true
	}

	ctype := strings.ToLower(contentType)
	if strings.Contains(ctype, "pdf") {
		return domain.SourcePDF, true
	}
	if strings.HasPrefix(ctype, "image/") &&
		(strings.Contains(ctype, "png") || strings.Contains(ctype, "jpeg") || strings.Contains(ctype, "jpg")) {
		return domain.SourceImage, true
	}

	name := strings.ToLower(filename)
	if strings.HasSuffix(name, ".pdf") {
		return domain.SourcePDF, true
	}
	for _, ext := range []string{".png", ".jpg", ".jpeg"} {
		if strings.HasSuffix(name, ext) {
			return domain.SourceImage, true
		}
	}
	return "", false
}

// Text extracts text from a file payload of the given source type
func (e *Extractor) Text(ctx context.Context, source domain.SourceType, data []byte) (string, error) {
	switch source {
	case domain.SourcePDF:
		return e.PDFText(ctx, data)
	case domain.SourceImage:
		return e.ImageText(ctx, data)
	default:
		return "", fmt.Errorf("unsupported source type %q", source)
	}
}

// PDFText extracts the text layer of a PDF up to the configured page limit.
// When the document has no text layer, pages are rendered and OCRed.
func (e *Extractor) PDFText(ctx context.Context, data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if e.cfg.MaxPDFPages > 0 && pages > e.cfg.MaxPDFPages {
		pages = e.cfg.MaxPDFPages
	}

	var parts []string
	for i := 0; i < pages; i++ {
		text, err := doc.Text(i)
		if err != nil {
			e.logger.Warn().Err(err).Int("page", i).Msg("failed to read PDF page text")
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	if combined := strings.TrimSpace(strings.Join(parts, "\n")); combined != "" {
		return combined, nil
	}

	// Scanned document: no text layer
	if !e.ocrAvailable() {
		e.logger.Warn().Msg("PDF has no text layer and OCR is not available")
		return "", nil
	}
	parts = parts[:0]
	for i := 0; i < pages; i++ {
		img, err := doc.ImageDPI(i, ocrDPI)
		if err != nil {
			e.logger.Warn().Err(err).Int("page", i).Msg("failed to render PDF page")
			continue
		}
		text, err := e.ocrImage(ctx, img)
		if err != nil {
			e.logger.Warn().Err(err).Int("page", i).Msg("OCR failed for PDF page")
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), nil
}

// ImageText runs OCR over an image payload
func (e *Extractor) ImageText(ctx context.Context, data []byte) (string, error) {
	if !e.ocrAvailable() {
		e.logger.Warn().Msg("image upload received but OCR is not available")
		return "", nil
	}
	return e.ocrBytes(ctx, data)
}
