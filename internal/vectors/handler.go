package vectors

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/triage/internal/triage"
	"github.com/JaimeStill/triage/pkg/handlers"
	"github.com/JaimeStill/triage/pkg/pagination"
	"github.com/JaimeStill/triage/pkg/routes"
)

// Handler provides HTTP endpoints for state vectors.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// AcknowledgeCommand is the body of an acknowledge request.
type AcknowledgeCommand struct {
	Owner string `json:"owner"`
}

// NewHandler creates a Handler over sys.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "vectors"),
		pagination: pagination,
	}
}

// Routes returns the route group for state-vector endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/vectors",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Ingest},
			{Method: "GET", Pattern: "", Handler: h.ListActive},
			{Method: "GET", Pattern: "/stats", Handler: h.Stats},
			{Method: "GET", Pattern: "/owner/{role}", Handler: h.ListByOwner},
			{Method: "GET", Pattern: "/deck/{role}", Handler: h.Deck},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "POST", Pattern: "/{id}/acknowledge", Handler: h.Acknowledge},
			{Method: "POST", Pattern: "/{id}/complete", Handler: h.Complete},
		},
	}
}

// Ingest classifies and persists a message. It answers 201 when a vector was
// created and 200 when the message had already been ingested.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	msg, err := handlers.DecodeJSON[triage.Message](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	out, err := h.sys.Ingest(r.Context(), msg)
	if err != nil {
		handlers.RespondError(w, h.logger, triage.MapHTTPStatus(err), err)
		return
	}

	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	handlers.RespondJSON(w, status, out)
}

// ListActive pages through active vectors, filtered by the optional ?zone= parameter.
func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromQuery(r.URL.Query(), h.pagination)

	var zone *triage.Zone
	if raw := r.URL.Query().Get("zone"); raw != "" {
		z, err := triage.ParseZone(raw)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
			return
		}
		zone = &z
	}

	result, err := h.sys.ListActive(r.Context(), page, zone)
	if err != nil {
		handlers.RespondError(w, h.logger, triage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// ListByOwner pages through the active vectors owned by the {role} path parameter.
func (h *Handler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	page := pagination.FromQuery(r.URL.Query(), h.pagination)

	result, err := h.sys.ListByOwner(r.Context(), page, r.PathValue("role"))
	if err != nil {
		handlers.RespondError(w, h.logger, triage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Deck returns the riskiest active vectors for the {role} path parameter.
func (h *Handler) Deck(w http.ResponseWriter, r *http.Request) {
	deck, err := h.sys.Deck(r.Context(), r.PathValue("role"))
	if err != nil {
		handlers.RespondError(w, h.logger, triage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, deck)
}

// Find returns one vector.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	v, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, triage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, v)
}

// Acknowledge assigns the vector to the owner in the optional JSON body.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	cmd, err := handlers.DecodeJSON[AcknowledgeCommand](r)
	if err != nil && !errors.Is(err, handlers.ErrEmptyBody) {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	v, err := h.sys.Acknowledge(r.Context(), id, cmd.Owner)
	if err != nil {
		handlers.RespondError(w, h.logger, triage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, v)
}

// Complete resolves the vector. Repeating it is harmless.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	v, err := h.sys.Complete(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, triage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, v)
}

// Stats returns active counts per zone, overdue count, and correction total.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sys.Stats(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, triage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest,
			&triage.ValidationError{Field: "id", Reason: "is not a UUID"})
		return uuid.Nil, false
	}
	return id, true
}
