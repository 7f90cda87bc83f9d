package api

import (
	"net/http"

	"github.com/JaimeStill/triage/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain) {
	routes.Register(
		mux,
		domain.Vectors.Handler().Routes(),
		domain.Events.Handler().Routes(),
		domain.Corrections.Handler().Routes(),
		domain.Rules.Handler().Routes(),
		domain.Escalation.Handler().Routes(),
	)
}
