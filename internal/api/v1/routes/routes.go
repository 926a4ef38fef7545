package routes

import (
	"net/http"

	"github.com/deepgram/aiproxy/internal/api/v1/handlers/chat"
	v1websocket "github.com/deepgram/aiproxy/internal/api/v1/handlers/websocket"
	v1mware "github.com/deepgram/aiproxy/internal/api/v1/middleware"
	"github.com/deepgram/aiproxy/internal/metrics"
	"github.com/deepgram/aiproxy/internal/services"
	"github.com/deepgram/aiproxy/pkg/httpext"
	"github.com/gorilla/mux"
)

// NewRouter builds the gateway: the v1 relay routes, /metrics and /healthz.
func NewRouter(services *services.Services) *mux.Router {
	router := mux.NewRouter()

	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods("GET")

	RegisterV1Routes(router, services)
	return router
}

func RegisterV1Routes(router *mux.Router, services *services.Services) {
	v1 := router.PathPrefix("/v1").Subrouter()
	v1.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpext.JsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
	cfg := services.GetConfig()
	rateLimit := v1mware.RateLimit("relay", services.GetRateLimiter(), cfg.Gateway.TrustForwardedFor)
	dispatcher := services.GetDispatcher()

	v1.Handle("/ai-proxy", rateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chat.HandleAIProxy(dispatcher, w, r)
	}))).Methods("POST")

	upgrader := v1websocket.NewUpgrader(cfg.Gateway.AllowedOrigins)
	v1.Handle("/ws", rateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v1websocket.HandleRelayWebSocket(dispatcher, services.GetConnectionsManager(), upgrader, w, r)
	}))).Methods("GET")
}
