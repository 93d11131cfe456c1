package server

import "net/http"

// SetupRoutes registers every endpoint on a new ServeMux. The login API is
// wrapped in the CORS middleware; /ws enforces origins during the upgrade.
func SetupRoutes(h *Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Health)
	mux.HandleFunc("/ws", h.WebSocket)
	mux.Handle("/api/auth/login", h.origins.CORS(http.HandlerFunc(h.Login)))
	mux.HandleFunc("GET /test", h.TestPage)
	return mux
}
