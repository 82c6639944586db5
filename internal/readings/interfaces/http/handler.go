package http

import (
	"encoding/json"
	"log"
	"net/http"

	"solarwatch/internal/readings/application"
)

// Handler serves the live reading endpoints backed by the rolling window.
type Handler struct {
	window *application.Window
	logger *log.Logger
}

// NewHandler constructs a readings handler.
func NewHandler(window *application.Window, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{window: window, logger: logger}
}

// Latest handles GET /api/v1/readings/latest.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reading, ok := h.window.Latest()
	if !ok {
		http.Error(w, "no readings yet", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, reading)
}

// Recent handles GET /api/v1/readings/recent.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, http.StatusOK, h.window.Snapshot())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Printf("readings http: encode response: %v", err)
	}
}
