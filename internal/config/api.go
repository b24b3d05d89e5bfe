package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/countersign/pkg/formatting"
	"github.com/JaimeStill/countersign/pkg/middleware"
	"github.com/JaimeStill/countersign/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "COUNTERSIGN_CORS_ENABLED",
	Origins:          "COUNTERSIGN_CORS_ORIGINS",
	AllowedMethods:   "COUNTERSIGN_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "COUNTERSIGN_CORS_ALLOWED_HEADERS",
	AllowCredentials: "COUNTERSIGN_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "COUNTERSIGN_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "COUNTERSIGN_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "COUNTERSIGN_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, upload limits, CORS, and pagination settings.
// MaxUploadSize caps any multipart request body; MaxSourceSize caps
// the PDF attached to a draft.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	MaxSourceSize string                `toml:"max_source_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
}

// MaxUploadSizeBytes returns MaxUploadSize in bytes.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return 10 * 1024 * 1024
	}
	return size
}

// MaxSourceSizeBytes returns MaxSourceSize in bytes.
func (c *APIConfig) MaxSourceSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxSourceSize)
	if err != nil {
		return 5 * 1024 * 1024
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS and pagination configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}
	if overlay.MaxSourceSize != "" {
		c.MaxSourceSize = overlay.MaxSourceSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "10MB"
	}
	if c.MaxSourceSize == "" {
		c.MaxSourceSize = "5MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("COUNTERSIGN_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("COUNTERSIGN_API_MAX_UPLOAD_SIZE"); v != "" {
		c.MaxUploadSize = v
	}
	if v := os.Getenv("COUNTERSIGN_API_MAX_SOURCE_SIZE"); v != "" {
		c.MaxSourceSize = v
	}
}

func (c *APIConfig) validate() error {
	upload, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	source, err := formatting.ParseBytes(c.MaxSourceSize)
	if err != nil {
		return fmt.Errorf("invalid max_source_size: %w", err)
	}
	if source > upload {
		return fmt.Errorf("max_source_size cannot exceed max_upload_size")
	}
	return nil
}
