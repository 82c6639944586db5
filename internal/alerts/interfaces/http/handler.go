package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	alertapp "solarwatch/internal/alerts/application"
	alerts "solarwatch/internal/alerts/domain"
)

const defaultListLimit = 50

// Handler serves the alert history API.
type Handler struct {
	store *alertapp.WatchedStore
}

// NewHandler constructs an alert handler.
func NewHandler(store *alertapp.WatchedStore) (*Handler, error) {
	if store == nil {
		return nil, errors.New("alert handler: nil store")
	}
	return &Handler{store: store}, nil
}

// ServeHTTP handles GET /api/v1/alerts and GET /api/v1/alerts/active.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/alerts":
		h.list(w, r)
	case "/api/v1/alerts/active":
		h.active(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	result, err := h.store.List(r.Context(), limit)
	if err != nil {
		http.Error(w, "list alerts failed", http.StatusInternalServerError)
		return
	}
	if result == nil {
		result = []alerts.VoltageAlert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": result})
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	alert, err := h.store.FindActive(r.Context())
	if err != nil {
		http.Error(w, "active alert lookup failed", http.StatusInternalServerError)
		return
	}
	if alert == nil {
		http.Error(w, "no active alert", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
