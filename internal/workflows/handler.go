package workflows

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/countersign/internal/files"
	"github.com/JaimeStill/countersign/pkg/handlers"
	"github.com/JaimeStill/countersign/pkg/pagination"
	"github.com/JaimeStill/countersign/pkg/routes"
)

// Handler provides HTTP endpoints for templates, drafts, and workflows.
type Handler struct {
	sys           System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler with the given system, logger, pagination config, and upload size limit.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "workflows"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route groups for templates, drafts, and workflows.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Children: []routes.Group{
			{
				Prefix: "/templates",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.Templates},
				},
			},
			{
				Prefix: "/drafts",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "", Handler: h.CreateDraft},
					{Method: "GET", Pattern: "/{id}", Handler: h.FindDraft},
					{Method: "DELETE", Pattern: "/{id}", Handler: h.DeleteDraft},
					{Method: "POST", Pattern: "/{id}/file", Handler: h.AttachFile},
					{Method: "PUT", Pattern: "/{id}/template", Handler: h.SelectTemplate},
					{Method: "PUT", Pattern: "/{id}/roster", Handler: h.SetCustomRoster},
					{Method: "PUT", Pattern: "/{id}/anchors/{slot}", Handler: h.PlaceAnchor},
					{Method: "GET", Pattern: "/{id}/pages/{page}", Handler: h.RenderPage},
					{Method: "POST", Pattern: "/{id}/submit", Handler: h.Submit},
				},
			},
			{
				Prefix: "/workflows",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.List},
					{Method: "POST", Pattern: "/search", Handler: h.Search},
					{Method: "GET", Pattern: "/stats", Handler: h.Stats},
					{Method: "GET", Pattern: "/{id}", Handler: h.Find},
					{Method: "POST", Pattern: "/{id}/slots/{slot}/act", Handler: h.Act},
				},
			},
		},
	}
}

// Templates lists the roster templates.
func (h *Handler) Templates(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, h.sys.Templates())
}

// CreateDraft starts a draft from a JSON CreateDraftCommand.
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var cmd CreateDraftCommand
	if !h.decode(w, r, &cmd) {
		return
	}

	d, err := h.sys.CreateDraft(r.Context(), cmd)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, d)
}

// FindDraft returns a draft by its UUID path parameter.
func (h *Handler) FindDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	d, err := h.sys.FindDraft(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, d)
}

// DeleteDraft discards a draft and its uploaded source.
func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.sys.DeleteDraft(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AttachFile accepts a multipart "file" field holding the source PDF.
func (h *Handler) AttachFile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	data, filename, err := files.ReadFormFile(r, "file", h.maxUploadSize)
	if err != nil {
		handlers.RespondError(w, h.logger, files.MapHTTPStatus(err), err)
		return
	}

	d, err := h.sys.AttachFile(r.Context(), id, filename, data)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, d)
}

// SelectTemplate switches the draft to another kind's roster.
func (h *Handler) SelectTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd SelectTemplateCommand
	if !h.decode(w, r, &cmd) {
		return
	}

	d, err := h.sys.SelectTemplate(r.Context(), id, cmd)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, d)
}

// SetCustomRoster replaces the roster of an "other" draft.
func (h *Handler) SetCustomRoster(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var cmd SetRosterCommand
	if !h.decode(w, r, &cmd) {
		return
	}

	d, err := h.sys.SetCustomRoster(r.Context(), id, cmd)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, d)
}

// PlaceAnchor sets the anchor for the slot in the path.
func (h *Handler) PlaceAnchor(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	slot, ok := h.pathInt(w, r, "slot")
	if !ok {
		return
	}

	var anchor Anchor
	if !h.decode(w, r, &anchor) {
		return
	}

	d, err := h.sys.PlaceAnchor(r.Context(), id, slot, anchor)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, d)
}

// RenderPage writes the requested source page as a PNG.
func (h *Handler) RenderPage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	page, ok := h.pathInt(w, r, "page")
	if !ok {
		return
	}

	img, err := h.sys.RenderPage(r.Context(), id, page)
	if err != nil {
		h.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

// Submit freezes a draft into a pending workflow.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	wf, err := h.sys.Submit(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, wf)
}

// List returns a paginated list of workflows with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Search accepts a JSON body with pagination and filter criteria and returns matching workflows.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !h.decode(w, r, &req) {
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Stats returns workflow counts per status.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sys.Stats(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, stats)
}

// Find returns a single workflow by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	wf, err := h.sys.Find(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, wf)
}

// Act applies a decision to the slot in the path.
func (h *Handler) Act(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	slot, ok := h.pathInt(w, r, "slot")
	if !ok {
		return
	}

	var cmd ActCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	cmd.Slot = slot

	wf, err := h.sys.Act(r.Context(), id, cmd)
	if err != nil {
		h.fail(w, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, wf)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.fail(w, &ValidationError{Field: "body", Reason: err.Error()})
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.fail(w, &ValidationError{Field: "id", Reason: "must be a uuid"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) pathInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		h.fail(w, &ValidationError{Field: name, Reason: fmt.Sprintf("%q is not an integer", r.PathValue(name))})
		return 0, false
	}
	return n, true
}
