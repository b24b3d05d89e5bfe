package files

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/JaimeStill/countersign/pkg/handlers"
	"github.com/JaimeStill/countersign/pkg/routes"
)

// Handler provides HTTP endpoints for signature capture and file download.
type Handler struct {
	sys           System
	logger        *slog.Logger
	maxUploadSize int64
}

// DataURLRequest carries a canvas-drawn signature.
type DataURLRequest struct {
	DataURL string `json:"data_url"`
}

// NewHandler creates a Handler with the given system, logger, and upload size limit.
func NewHandler(sys System, logger *slog.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "files"),
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route groups for artifact capture and file download.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Children: []routes.Group{
			{
				Prefix: "/artifacts",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "", Handler: h.Capture},
				},
			},
			{
				Prefix: "/files",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "/{key...}", Handler: h.Download},
				},
			},
		},
	}
}

// Capture stores a signature artifact from either a multipart "file" field
// or a JSON body with a data URL.
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		stored *Stored
		err    error
	)

	switch {
	case mediaType == "application/json":
		var req DataURLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidFile, err))
			return
		}
		stored, err = h.sys.CaptureDataURL(r.Context(), req.DataURL)
	case strings.HasPrefix(mediaType, "multipart/"):
		var data []byte
		var filename string
		data, filename, err = ReadFormFile(r, "file", h.maxUploadSize)
		if err != nil {
			handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
			return
		}
		stored, err = h.sys.CaptureArtifact(r.Context(), filename, data)
	default:
		handlers.RespondError(
			w, h.logger,
			http.StatusUnsupportedMediaType,
			fmt.Errorf("%w: unsupported content type %q", ErrInvalidFile, mediaType),
		)
		return
	}

	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, stored)
}

// Download streams a stored file inline.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	blob, err := h.sys.Open(r.Context(), key)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer blob.Body.Close()

	w.Header().Set("Content-Type", blob.ContentType)
	if blob.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(blob.ContentLength, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", path.Base(key)))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, blob.Body); err != nil {
		h.logger.Warn("download interrupted", "key", key, "error", err)
	}
}

// ReadFormFile parses a multipart request and reads the named file field.
func ReadFormFile(r *http.Request, field string, maxSize int64) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFileTooLarge, err)
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	return data, header.Filename, nil
}
