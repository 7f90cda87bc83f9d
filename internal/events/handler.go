package events

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/handlers"
	"github.com/JaimeStill/triage/pkg/routes"
)

// Handler provides HTTP endpoints for vector histories.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler over sys.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "events"),
	}
}

// Routes returns the route group for event endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/events",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/vector/{id}", Handler: h.History},
		},
	}
}

// History returns every event recorded for the vector.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			&triage.ValidationError{Field: "id", Reason: "is not a UUID"})
		return
	}

	events, err := h.sys.History(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, triage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, events)
}
