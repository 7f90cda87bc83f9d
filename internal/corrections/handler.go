package corrections

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/handlers"
	"github.com/JaimeStill/triage/pkg/pagination"
	"github.com/JaimeStill/triage/pkg/routes"
)

// Handler provides HTTP endpoints for corrections.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// CorrectCommand is the body of a correction request.
type CorrectCommand struct {
	Zone  string `json:"zone"`
	Actor string `json:"actor"`
}

// NewHandler creates a Handler over sys.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "corrections"),
		pagination: pagination,
	}
}

// Routes returns the route group for correction endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/corrections",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "/{vectorId}", Handler: h.Apply},
		},
	}
}

// List pages through corrections, optionally for ?vector_id=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromQuery(r.URL.Query(), h.pagination)

	var vectorID *uuid.UUID
	if raw := r.URL.Query().Get("vector_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest,
				&triage.ValidationError{Field: "vector_id", Reason: "is not a UUID"})
			return
		}
		vectorID = &id
	}

	result, err := h.sys.List(r.Context(), page, vectorID)
	if err != nil {
		handlers.RespondError(w, h.logger, triage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Apply corrects the zone of the {vectorId} vector.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	vectorID, err := uuid.Parse(r.PathValue("vectorId"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			&triage.ValidationError{Field: "vectorId", Reason: "is not a UUID"})
		return
	}

	cmd, err := handlers.DecodeJSON[CorrectCommand](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	zone, err := triage.ParseZone(cmd.Zone)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	applied, err := h.sys.Apply(r.Context(), vectorID, zone, cmd.Actor)
	if err != nil {
		handlers.RespondError(w, h.logger, triage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, applied)
}
