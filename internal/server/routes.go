package server

import "net/http"

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Browser widget
	mux.HandleFunc("GET /ui", s.handleUI)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return mux
}
