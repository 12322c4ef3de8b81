package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter wires middleware and routes.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Route("/songs", func(r chi.Router) {
			r.Get("/", s.handleListSongs)
			r.Post("/{name}/play", s.handlePlaySong)
		})

		r.Post("/playback/stop", s.handleStop)

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleListHistory)
			r.Get("/stats", s.handleHistoryStats)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}
