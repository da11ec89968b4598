package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Raulcadiz/Carnavalix/internal/livechannel"
)

// handleLiveState serves GET /live/estado. When the channel has never played
// anything it auto-starts; an empty catalog yields 404 so the live page shows
// its "no active video" state.
func (s *Server) handleLiveState(w http.ResponseWriter, r *http.Request) {
	state, err := s.live.CurrentState(r.Context())
	if errors.Is(err, livechannel.ErrNoVideos) {
		writeError(w, http.StatusNotFound, "Sin contenido. Añade vídeos desde el Admin.")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to read live state")
		writeError(w, http.StatusInternalServerError, "Error iniciando el canal")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleLiveAdvance serves POST /live/siguiente.
func (s *Server) handleLiveAdvance(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	youtubeID, err := s.live.Advance(r.Context())
	if errors.Is(err, livechannel.ErrNoVideos) {
		writeError(w, http.StatusNotFound, "No hay vídeos disponibles en el catálogo")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to advance live channel")
		writeError(w, http.StatusInternalServerError, "No se pudo avanzar el canal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"youtube_id": youtubeID,
	})
}

// handleLiveSchedule serves POST /live/programar.
func (s *Server) handleLiveSchedule(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}

	var req struct {
		YoutubeID string `json:"youtube_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.YoutubeID == "" {
		writeError(w, http.StatusBadRequest, "Falta youtube_id")
		return
	}

	youtubeID, err := s.live.Schedule(r.Context(), req.YoutubeID)
	if err != nil {
		log.Error().Err(err).Str("raw", req.YoutubeID).Msg("failed to schedule video")
		writeError(w, http.StatusBadRequest, "No se pudo programar el vídeo")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"youtube_id": youtubeID,
	})
}
