package httpapi

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

// handleChatHistory serves GET /api/chat/historial?sala&limit: the recent
// transcript of a room, oldest first.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("sala")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := s.chat.History(r.Context(), room, limit)
	if err != nil {
		log.Error().Err(err).Str("room", room).Msg("failed to load chat history")
		writeError(w, http.StatusInternalServerError, "No se pudo cargar el historial")
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// handleChatPresence serves GET /api/chat/presencia?sala: how many sessions
// are currently in a room.
func (s *Server) handleChatPresence(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("sala")
	if room == "" {
		room = "general"
	}

	count, err := s.presence.Count(r.Context(), room)
	if err != nil {
		log.Error().Err(err).Str("room", room).Msg("failed to count presence")
		writeError(w, http.StatusInternalServerError, "No se pudo consultar la presencia")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sala":       room,
		"conectados": count,
	})
}
