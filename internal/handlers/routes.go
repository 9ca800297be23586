package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes attaches all application routes to the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	// Scan job control
	r.HandleFunc("/scan/start", h.StartScan).Methods(http.MethodPost)
	r.HandleFunc("/scan/status", h.ScanStatus).Methods(http.MethodGet)

	// Gallery
	r.HandleFunc("/gallery/", h.ListGallery).Methods(http.MethodGet)
	r.HandleFunc("/gallery/search", h.SearchGallery).Methods(http.MethodPost)
	r.HandleFunc("/gallery/filters", h.GetFilters).Methods(http.MethodGet)
	r.HandleFunc("/gallery/chat", h.Chat).Methods(http.MethodPost)

	// Media content
	r.HandleFunc("/media/{id:[0-9]+}/thumbnail", h.GetThumbnail).Methods(http.MethodGet)
	r.HandleFunc("/media/{id:[0-9]+}/original", h.GetOriginal).Methods(http.MethodGet, http.MethodHead)

	// Operational
	r.HandleFunc("/api/stats", h.GetStats).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
}
