package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strings"
)

func (e *Extractor) ocrAvailable() bool {
	_, err := exec.LookPath(e.cfg.TesseractPath)
	return err == nil
}

func (e *Extractor) ocrImage(ctx context.Context, img image.Image) (string, error) {
	f, err := os.CreateTemp("", "reportrx-page-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to encode page image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return e.runTesseract(ctx, f.Name())
}

func (e *Extractor) ocrBytes(ctx context.Context, data []byte) (string, error) {
	f, err := os.CreateTemp("", "reportrx-upload-*.img")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return e.runTesseract(ctx, f.Name())
}

// runTesseract shells out: tesseract <file> stdout -l <lang>
func (e *Extractor) runTesseract(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.OCRLanguage}

	cmd := exec.CommandContext(ctx, e.cfg.TesseractPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
