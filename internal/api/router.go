package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter sets up the gorilla/mux router and defines all routes: the
// webhook intake and the health probe.
func NewRouter(webhook *WebhookHandler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/webhook", webhook.Receive).Methods(http.MethodPost)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	return r
}
