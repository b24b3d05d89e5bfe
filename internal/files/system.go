package files

import (
	"context"

	"github.com/JaimeStill/countersign/pkg/storage"
)

// System defines the public contract for file storage and signature capture.
type System interface {
	Handler(maxUploadSize int64) *Handler

	// UploadSource stores a PDF source document and reports its page count.
	UploadSource(ctx context.Context, filename string, data []byte) (*Stored, error)
	// CaptureArtifact stores an uploaded signature image.
	CaptureArtifact(ctx context.Context, filename string, data []byte) (*Stored, error)
	// CaptureDataURL stores a signature image encoded as a data URL.
	CaptureDataURL(ctx context.Context, dataURL string) (*Stored, error)

	Open(ctx context.Context, key string) (*storage.Blob, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}
