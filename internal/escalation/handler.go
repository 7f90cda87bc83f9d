package escalation

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/handlers"
	"github.com/JaimeStill/triage/pkg/routes"
)

// Handler exposes on-demand sweeps.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler over sys.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "escalation"),
	}
}

// Routes returns the route group for escalation endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/escalation",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/tick", Handler: h.Tick},
		},
	}
}

// Tick runs one sweep and reports its outcome.
func (h *Handler) Tick(w http.ResponseWriter, r *http.Request) {
	result, err := h.sys.Tick(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, triage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
