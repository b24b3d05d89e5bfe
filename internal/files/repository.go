package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/countersign/pkg/formatting"
	"github.com/JaimeStill/countersign/pkg/storage"
)

type repo struct {
	storage       storage.System
	logger        *slog.Logger
	maxSourceSize int64
}

// New creates a file system over blob storage. Source uploads larger than
// maxSourceSize are rejected; artifacts are bounded only by the HTTP limit.
func New(store storage.System, logger *slog.Logger, maxSourceSize int64) System {
	return &repo{
		storage:       store,
		logger:        logger.With("system", "files"),
		maxSourceSize: maxSourceSize,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, maxUploadSize)
}

func (r *repo) UploadSource(ctx context.Context, filename string, data []byte) (*Stored, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidFile)
	}
	if r.maxSourceSize > 0 && int64(len(data)) > r.maxSourceSize {
		return nil, fmt.Errorf(
			"%w: %s exceeds %s",
			ErrFileTooLarge,
			formatting.FormatBytes(int64(len(data)), 1),
			formatting.FormatBytes(r.maxSourceSize, 1),
		)
	}
	if !IsPDF(data) {
		return nil, ErrNotPDF
	}

	pages, err := PageCount(data)
	if err != nil {
		return nil, err
	}

	name := sanitizeFilename(filename)
	stored := &Stored{
		Key:         sourceKey(uuid.New(), name),
		Filename:    name,
		ContentType: pdfContentType,
		Size:        int64(len(data)),
		PageCount:   pages,
	}

	if err := r.put(ctx, stored, data); err != nil {
		return nil, err
	}

	r.logger.Info("source stored", "key", stored.Key, "pages", pages)
	return stored, nil
}

func (r *repo) CaptureArtifact(ctx context.Context, filename string, data []byte) (*Stored, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidFile)
	}

	ct, err := DetectImage(data)
	if err != nil {
		return nil, err
	}

	stored := &Stored{
		Key:         artifactKey(uuid.New(), ct),
		Filename:    filename,
		ContentType: ct,
		Size:        int64(len(data)),
	}

	if err := r.put(ctx, stored, data); err != nil {
		return nil, err
	}

	r.logger.Info("artifact captured", "key", stored.Key, "content_type", ct)
	return stored, nil
}

func (r *repo) CaptureDataURL(ctx context.Context, dataURL string) (*Stored, error) {
	data, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	return r.CaptureArtifact(ctx, "signature", data)
}

func (r *repo) Open(ctx context.Context, key string) (*storage.Blob, error) {
	blob, err := r.storage.Download(ctx, key)
	if err != nil {
		return nil, r.mapStorageError(err)
	}
	return blob, nil
}

func (r *repo) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := r.storage.Exists(ctx, key)
	if err != nil {
		return false, r.mapStorageError(err)
	}
	return ok, nil
}

func (r *repo) Delete(ctx context.Context, key string) error {
	if err := r.storage.Delete(ctx, key); err != nil {
		return r.mapStorageError(err)
	}
	r.logger.Info("file deleted", "key", key)
	return nil
}

func (r *repo) put(ctx context.Context, stored *Stored, data []byte) error {
	if err := r.storage.Upload(ctx, stored.Key, bytes.NewReader(data), stored.ContentType); err != nil {
		return r.mapStorageError(err)
	}
	return nil
}

func (r *repo) mapStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrEmptyKey), errors.Is(err, storage.ErrInvalidKey):
		return fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
