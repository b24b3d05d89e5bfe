// Package files stores source PDFs and signature artifacts in blob storage
// and reports what was stored. Callers hold only the returned storage key.
package files

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	pdfContentType = "application/pdf"
	artifactPrefix = "artifacts/"
)

// Stored describes a file written to blob storage.
type Stored struct {
	Key         string `json:"key"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	PageCount   int    `json:"page_count,omitempty"`
}

var imageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/bmp":  "bmp",
}

// IsPDF reports whether data carries a PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// DetectImage sniffs data and returns its image content type.
func DetectImage(data []byte) (string, error) {
	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, ct)
	}
	return ct, nil
}

// PageCount returns the number of pages in a PDF.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: document has no pages", ErrInvalidFile)
	}
	return n, nil
}

// DecodeDataURL decodes a base64 data URL such as those produced by an
// HTML canvas.
func DecodeDataURL(raw string) ([]byte, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: not a data url", ErrInvalidFile)
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: data url has no payload", ErrInvalidFile)
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: data url must be base64 encoded", ErrInvalidFile)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return data, nil
}

// IsArtifactKey reports whether key names a captured signature image.
func IsArtifactKey(key string) bool {
	rest, ok := strings.CutPrefix(key, artifactPrefix)
	return ok && rest != "" && !strings.Contains(rest, "/")
}

func sourceKey(id uuid.UUID, filename string) string {
	return fmt.Sprintf("sources/%s/%s", id, filename)
}

func artifactKey(id uuid.UUID, contentType string) string {
	ext, ok := imageExtensions[contentType]
	if !ok {
		ext = "img"
	}
	return fmt.Sprintf("%s%s.%s", artifactPrefix, id, ext)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		name = "document.pdf"
	}
	return url.PathEscape(name)
}
