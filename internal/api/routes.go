package api

import (
	"net/http"

	"github.com/JaimeStill/countersign/internal/config"
	"github.com/JaimeStill/countersign/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
) {
	maxUpload := cfg.API.MaxUploadSizeBytes()

	routes.Register(
		mux,
		domain.Workflows.Handler(maxUpload).Routes(),
		domain.Files.Handler(maxUpload).Routes(),
		domain.Notifications.Handler().Routes(),
	)
}
