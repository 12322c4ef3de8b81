package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/billy-core/internal/history"
	"github.com/nerrad567/billy-core/internal/playback"
	"github.com/nerrad567/billy-core/internal/song"
)

// healthCheckTimeout bounds each component check in /health.
const healthCheckTimeout = 2 * time.Second

// handleHealth reports the version and the health of each component.
// It answers 503 when any component is unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	components := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.health[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.player.Status())
}

func (s *Server) handleListSongs(w http.ResponseWriter, _ *http.Request) {
	songs, err := s.songs.List()
	if err != nil {
		s.logger.Error("listing songs failed", "error", err)
		writeInternalError(w, "failed to list songs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"songs": songs,
		"count": len(songs),
	})
}

// handlePlaySong starts a song and answers 202 with the new session.
func (s *Server) handlePlaySong(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := song.ValidateName(name); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if !s.songs.Exists(name) {
		writeNotFound(w, "song not found: "+name)
		return
	}

	sess, err := s.player.Play(name)
	switch {
	case errors.Is(err, playback.ErrSessionActive):
		writeConflict(w, err.Error())
		return
	case errors.Is(err, playback.ErrServiceClosed):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
		return
	case err != nil:
		s.logger.Error("starting song failed", "song", name, "error", err)
		writeInternalError(w, "failed to start song")
		return
	}

	writeJSON(w, http.StatusAccepted, sess)
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	sess, err := s.player.Stop()
	if errors.Is(err, playback.ErrNoSession) {
		writeConflict(w, err.Error())
		return
	}
	if err != nil {
		writeInternalError(w, "failed to stop playback")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "play history is disabled")
		return
	}

	q := r.URL.Query()
	f := history.Filter{
		Song:    q.Get("song"),
		Outcome: q.Get("outcome"),
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "invalid limit")
		return
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "invalid offset")
		return
	}

	res, err := s.history.List(r.Context(), f)
	if err != nil {
		s.logger.Error("listing history failed", "error", err)
		writeInternalError(w, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "play history is disabled")
		return
	}
	stats, err := s.history.Stats(r.Context())
	if err != nil {
		s.logger.Error("history stats failed", "error", err)
		writeInternalError(w, "failed to compute history stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": stats})
}

// intParam parses an optional non-negative integer query parameter.
func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}
