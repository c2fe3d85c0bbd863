package http

import (
	"encoding/json"
	"log"
	"net/http"

	"quiz-game-service/internal/app"
)

// APIHandler serves the read-only JSON endpoints next to the websocket.
type APIHandler struct {
	service *app.GameService
}

func NewAPIHandler(service *app.GameService) *APIHandler {
	return &APIHandler{service: service}
}

// Register mounts every route, including /ws, on mux.
func (h *APIHandler) Register(mux *http.ServeMux, ws *WSHandler) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /categories", h.Categories)
	mux.HandleFunc("GET /leaderboard", h.Leaderboard)
	mux.HandleFunc("/ws", ws.ServeWS)
}

func (h *APIHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		log.Printf("list categories failed: %v", err)
		http.Error(w, "categories unavailable", http.StatusServiceUnavailable)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSON(w, categories)
}

func (h *APIHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		http.Error(w, "missing category", http.StatusBadRequest)
		return
	}
	writeJSON(w, h.service.Leaderboard(r.Context(), category))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response failed: %v", err)
	}
}
