// Package render produces page images of stored PDFs for anchor placement.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/JaimeStill/document-context/pkg/config"
	"github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/image"

	"github.com/JaimeStill/countersign/internal/files"
	"github.com/JaimeStill/countersign/pkg/storage"
)

const sourcePDF = "source.pdf"

// Errors reported by the renderer.
var (
	ErrPageOutOfRange = errors.New("page out of range")
	ErrRenderFailed   = errors.New("render failed")
)

// MapHTTPStatus maps render errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrPageOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, ErrRenderFailed):
		return http.StatusServiceUnavailable
	}
	return files.MapHTTPStatus(err)
}

// Source opens stored files.
type Source interface {
	Open(ctx context.Context, key string) (*storage.Blob, error)
}

// System renders stored PDFs.
type System interface {
	// RenderPage returns the 1-based page of the PDF at key as PNG bytes.
	RenderPage(ctx context.Context, key string, page int) ([]byte, error)
}

type renderer struct {
	source Source
	logger *slog.Logger
}

// New creates a renderer that reads PDFs from source and rasterizes them
// with ImageMagick.
func New(source Source, logger *slog.Logger) System {
	return &renderer{
		source: source,
		logger: logger.With("system", "render"),
	}
}

func (r *renderer) RenderPage(ctx context.Context, key string, page int) ([]byte, error) {
	data, err := r.read(ctx, key)
	if err != nil {
		return nil, err
	}

	count, err := files.PageCount(data)
	if err != nil {
		return nil, err
	}
	if page < 1 || page > count {
		return nil, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, count)
	}

	tempDir, err := os.MkdirTemp("", "countersign-render-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %w", ErrRenderFailed, err)
	}
	defer os.RemoveAll(tempDir)

	pdfPath := filepath.Join(tempDir, sourcePDF)
	if err := os.WriteFile(pdfPath, data, 0600); err != nil {
		return nil, fmt.Errorf("%w: write pdf: %w", ErrRenderFailed, err)
	}

	img, err := rasterize(pdfPath, page)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}

	r.logger.InfoContext(ctx, "page rendered", "key", key, "page", page, "bytes", len(img))
	return img, nil
}

func (r *renderer) read(ctx context.Context, key string) ([]byte, error) {
	blob, err := r.source.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer blob.Body.Close()

	data, err := io.ReadAll(blob.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrRenderFailed, key, err)
	}
	return data, nil
}

func rasterize(pdfPath string, page int) ([]byte, error) {
	pdfDoc, err := document.OpenPDF(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer pdfDoc.Close()

	p, err := pdfDoc.ExtractPage(page)
	if err != nil {
		return nil, fmt.Errorf("extract page %d: %w", page, err)
	}

	imgRenderer, err := image.NewImageMagickRenderer(config.DefaultImageConfig())
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}

	return p.ToImage(imgRenderer, nil)
}
