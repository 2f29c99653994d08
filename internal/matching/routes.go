package matching

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/imadgeboyega/movienight-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, hub *Hub, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Events
	api.HandleFunc("/events/{id:[0-9]+}/match", handler.FormGroups).Methods("POST")
	api.HandleFunc("/events/{id:[0-9]+}/groups", handler.GetEventGroups).Methods("GET")
	api.HandleFunc("/events/{id:[0-9]+}/groups/me", handler.GetMyGroup).Methods("GET")

	// Pairs
	api.HandleFunc("/compatibility/{userId:[0-9]+}", handler.GetCompatibility).Methods("GET")
	api.HandleFunc("/recommendations/pair/{userId:[0-9]+}", handler.GetPairRecommendations).Methods("GET")

	if hub != nil {
		router.Handle("/ws", authMiddleware.Authenticate(http.HandlerFunc(hub.ServeWS))).Methods("GET")
	}
}
