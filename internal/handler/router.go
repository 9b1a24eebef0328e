// Package handler wires HTTP routes to core services for both binaries.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/wolffbe/real-time-agents/internal/handler/chat"
	"github.com/wolffbe/real-time-agents/internal/handler/gateway"
	"github.com/wolffbe/real-time-agents/internal/middleware"
	"github.com/wolffbe/real-time-agents/pkg/utils"
)

// NewAgentRouter assembles the agent service routes.
func NewAgentRouter(chatHandler *chat.Handler) http.Handler {
	r := newRouter()

	r.Get("/health", healthHandler("agent"))
	chatHandler.RegisterRoutes(r)

	return r
}

// NewGatewayRouter assembles the gateway service routes.
func NewGatewayRouter(gatewayHandler *gateway.Handler) http.Handler {
	r := newRouter()

	r.Get("/health", healthHandler("gateway"))
	gatewayHandler.RegisterRoutes(r)

	return r
}

func newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)
	return r
}

// healthHandler answers liveness probes. No deep checks: a responding
// process is a live process.
func healthHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": service,
		})
	}
}
