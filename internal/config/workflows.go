package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	EnvWorkflowsStore            = "COUNTERSIGN_WORKFLOWS_STORE"
	EnvWorkflowsDraftTTL         = "COUNTERSIGN_WORKFLOWS_DRAFT_TTL"
	EnvWorkflowsArtifactRequired = "COUNTERSIGN_WORKFLOWS_ARTIFACT_REQUIRED"
)

// Workflow store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// WorkflowsConfig selects the workflow store backend, the draft expiry,
// and the workflow kinds whose sign/approve actions must carry a signature artifact.
type WorkflowsConfig struct {
	Store            string   `toml:"store"`
	DraftTTL         string   `toml:"draft_ttl"`
	ArtifactRequired []string `toml:"artifact_required"`
}

// DraftTTLDuration returns DraftTTL as a time.Duration.
func (c *WorkflowsConfig) DraftTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.DraftTTL)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *WorkflowsConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *WorkflowsConfig) Merge(overlay *WorkflowsConfig) {
	if overlay.Store != "" {
		c.Store = overlay.Store
	}
	if overlay.DraftTTL != "" {
		c.DraftTTL = overlay.DraftTTL
	}
	if overlay.ArtifactRequired != nil {
		c.ArtifactRequired = overlay.ArtifactRequired
	}
}

func (c *WorkflowsConfig) loadDefaults() {
	if c.Store == "" {
		c.Store = StorePostgres
	}
	if c.DraftTTL == "" {
		c.DraftTTL = "24h"
	}
	if c.ArtifactRequired == nil {
		c.ArtifactRequired = []string{"project", "contract", "purchase"}
	}
}

func (c *WorkflowsConfig) loadEnv() {
	if v := os.Getenv(EnvWorkflowsStore); v != "" {
		c.Store = v
	}
	if v := os.Getenv(EnvWorkflowsDraftTTL); v != "" {
		c.DraftTTL = v
	}
	if v, ok := os.LookupEnv(EnvWorkflowsArtifactRequired); ok {
		kinds := strings.Split(v, ",")
		c.ArtifactRequired = make([]string, 0, len(kinds))
		for _, kind := range kinds {
			if trimmed := strings.TrimSpace(kind); trimmed != "" {
				c.ArtifactRequired = append(c.ArtifactRequired, trimmed)
			}
		}
	}
}

func (c *WorkflowsConfig) validate() error {
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("invalid store: %q", c.Store)
	}
	d, err := time.ParseDuration(c.DraftTTL)
	if err != nil {
		return fmt.Errorf("invalid draft_ttl: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("draft_ttl must be positive")
	}
	return nil
}
