package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/Raulcadiz/Carnavalix/internal/auth"
	"github.com/Raulcadiz/Carnavalix/internal/chat"
	"github.com/Raulcadiz/Carnavalix/internal/gateway"
	"github.com/Raulcadiz/Carnavalix/internal/livechannel"
	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// SessionCookie carries the signed session token.
const SessionCookie = "carnavalix_session"

// PresenceCounter reports room occupancy for the presence endpoint.
type PresenceCounter interface {
	Count(ctx context.Context, room string) (int, error)
}

// Server wires every HTTP surface of CarnavalPlay: the live channel, chat
// history and presence, auth, and the WebSocket feed.
type Server struct {
	live     *livechannel.Service
	chat     *chat.Service
	presence PresenceCounter
	auth     *auth.Service
	ws       *gateway.WebSocketHandler

	allowedOrigins []string
}

// NewServer creates the HTTP server facade.
func NewServer(
	live *livechannel.Service,
	chatService *chat.Service,
	presence PresenceCounter,
	authService *auth.Service,
	ws *gateway.WebSocketHandler,
	allowedOrigins []string,
) *Server {
	return &Server{
		live:           live,
		chat:           chatService,
		presence:       presence,
		auth:           authService,
		ws:             ws,
		allowedOrigins: allowedOrigins,
	}
}

// Router builds the chi router with all routes registered.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/live", func(r chi.Router) {
		r.Get("/estado", s.handleLiveState)
		r.Post("/siguiente", s.handleLiveAdvance)
		r.Post("/programar", s.handleLiveSchedule)
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/chat", func(r chi.Router) {
			r.Get("/historial", s.handleChatHistory)
			r.Get("/presencia", s.handleChatPresence)
		})
		r.Route("/auth", func(r chi.Router) {
			r.Post("/registro", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.Get("/yo", s.handleWhoami)
			r.Patch("/perfil", s.handleUpdateProfile)
		})
	})

	r.Get("/ws", s.ws.HandleFeedConnection)
	r.Get("/ws/stats", s.ws.HandleConnectionStats)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// currentUser resolves the session cookie to a user, nil when anonymous.
func (s *Server) currentUser(r *http.Request) *models.User {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil
	}
	user, err := s.auth.Verify(r.Context(), cookie.Value)
	if err != nil {
		log.Error().Err(err).Msg("failed to verify session")
		return nil
	}
	return user
}

// requireAdmin enforces the admin gate. During initial setup, while no
// account exists, access is open so the first operator can drive the channel.
func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	setup, err := s.auth.SetupMode(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "error interno")
		return false
	}
	if setup {
		return true
	}

	user := s.currentUser(r)
	if user == nil || !user.IsAdmin {
		writeError(w, http.StatusForbidden, "Se requiere cuenta de administrador")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
