package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mattermost/mattermost/server/public/plugin"

	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

// maxBodyBytes bounds request bodies accepted by the API.
const maxBodyBytes = 1 << 20

// transitionRequest is the body of POST /transitions.
type transitionRequest struct {
	EventType  string   `json:"eventType"`
	AreaIDs    []string `json:"areaIds"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	OccurredAt string   `json:"occurredAt"`
}

// entryRequest is the body of POST /entries.
type entryRequest struct {
	ID  string   `json:"id"`
	Geo *geo.Geo `json:"geo"`
}

// ServeHTTP handles HTTP requests for the plugin.
// The root URL is currently <siteUrl>/plugins/com.mattermost.plugin-geofence/api/v1/.
func (p *Plugin) ServeHTTP(c *plugin.Context, w http.ResponseWriter, r *http.Request) {
	router := mux.NewRouter()

	// Middleware to require that the user is logged in
	router.Use(p.MattermostAuthorizationRequired)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(p.EngineRequired)

	apiRouter.HandleFunc("/transitions", p.handleTransition).Methods(http.MethodPost)
	apiRouter.HandleFunc("/regions/unavailable", p.handleRegionsUnavailable).Methods(http.MethodPost)
	apiRouter.HandleFunc("/entries", p.handleAddEntry).Methods(http.MethodPost)
	apiRouter.HandleFunc("/status", p.handleStatus).Methods(http.MethodGet)

	router.ServeHTTP(w, r)
}

func (p *Plugin) MattermostAuthorizationRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("Mattermost-User-ID")
		if userID == "" {
			http.Error(w, "Not authorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// EngineRequired rejects requests while the engine is not running.
func (p *Plugin) EngineRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.activeGeofence() == nil {
			http.Error(w, "Geofence engine is not running", http.StatusServiceUnavailable)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (p *Plugin) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	et, err := geo.ParseEventType(req.EventType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.AreaIDs) == 0 {
		http.Error(w, "areaIds is required", http.StatusBadRequest)
		return
	}

	t := geo.Transition{
		EventType: et,
		AreaIDs:   req.AreaIDs,
		Location:  geo.Location{Latitude: req.Latitude, Longitude: req.Longitude},
	}
	if req.OccurredAt != "" {
		occurredAt, err := time.Parse(time.RFC3339Nano, req.OccurredAt)
		if err != nil {
			http.Error(w, "occurredAt must be an RFC 3339 timestamp", http.StatusBadRequest)
			return
		}
		t.OccurredAt = occurredAt
	}

	g := p.activeGeofence()
	if g == nil {
		http.Error(w, "Geofence engine is not running", http.StatusServiceUnavailable)
		return
	}
	if err := g.HandleTransition(r.Context(), t); err != nil {
		p.API.LogError("Failed to handle transition", "error", err.Error())
		http.Error(w, "Failed to handle transition", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (p *Plugin) handleRegionsUnavailable(w http.ResponseWriter, r *http.Request) {
	g := p.activeGeofence()
	if g == nil {
		http.Error(w, "Geofence engine is not running", http.StatusServiceUnavailable)
		return
	}
	if err := g.HandleRegionsUnavailable(r.Context()); err != nil {
		p.API.LogError("Failed to re-register regions", "error", err.Error())
		http.Error(w, "Failed to re-register regions", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (p *Plugin) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ID == "" || req.Geo == nil {
		http.Error(w, "id and geo are required", http.StatusBadRequest)
		return
	}

	g := p.activeGeofence()
	if g == nil {
		http.Error(w, "Geofence engine is not running", http.StatusServiceUnavailable)
		return
	}
	if err := g.AddEntry(r.Context(), geo.Entry{ID: req.ID, Geo: req.Geo}); err != nil {
		p.API.LogError("Failed to add entry", "id", req.ID, "error", err.Error())
		http.Error(w, "Failed to add entry", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (p *Plugin) handleStatus(w http.ResponseWriter, r *http.Request) {
	g := p.activeGeofence()
	if g == nil {
		http.Error(w, "Geofence engine is not running", http.StatusServiceUnavailable)
		return
	}

	status, err := g.Status()
	if err != nil {
		p.API.LogError("Failed to read engine status", "error", err.Error())
		http.Error(w, "Failed to read engine status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		p.API.LogWarn("Failed to write status response", "error", err.Error())
	}
}
