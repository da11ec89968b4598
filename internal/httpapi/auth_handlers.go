package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Raulcadiz/Carnavalix/internal/auth"
	"github.com/Raulcadiz/Carnavalix/internal/models"
)

type userPayload struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarColor string `json:"avatar_color"`
	AvatarEmoji string `json:"avatar_emoji"`
	IsAdmin     bool   `json:"es_admin"`
}

func presentUser(u *models.User) userPayload {
	return userPayload{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.VisibleName(),
		AvatarColor: u.AvatarColor,
		AvatarEmoji: u.AvatarEmoji,
		IsAdmin:     u.IsAdmin,
	}
}

func (s *Server) setSession(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleRegister serves POST /api/auth/registro.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo inválido")
		return
	}

	user, err := s.auth.Register(r.Context(), req)
	if errors.Is(err, auth.ErrValidation) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, auth.ErrUsernameTaken) {
		writeError(w, http.StatusConflict, "Ese nombre de usuario ya está en uso")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to register user")
		writeError(w, http.StatusInternalServerError, "No se pudo crear la cuenta")
		return
	}

	token, err := s.auth.Token(user)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue session token")
		writeError(w, http.StatusInternalServerError, "No se pudo iniciar sesión")
		return
	}
	s.setSession(w, token, 30*24*time.Hour)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"usuario": presentUser(user),
	})
}

// handleLogin serves POST /api/auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Usuario y contraseña requeridos")
		return
	}

	user, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Usuario o contraseña incorrectos")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to log in user")
		writeError(w, http.StatusInternalServerError, "No se pudo iniciar sesión")
		return
	}

	token, err := s.auth.Token(user)
	if err != nil {
		log.Error().Err(err).Msg("failed to issue session token")
		writeError(w, http.StatusInternalServerError, "No se pudo iniciar sesión")
		return
	}
	s.setSession(w, token, 30*24*time.Hour)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"usuario": presentUser(user),
	})
}

// handleLogout serves POST /api/auth/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.setSession(w, "", -time.Second)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleWhoami serves GET /api/auth/yo. Anonymous callers get
// {autenticado:false}; the client uses es_admin to decide whether to show
// admin affordances, the server still enforces them.
func (s *Server) handleWhoami(w http.ResponseWriter, r *http.Request) {
	user := s.currentUser(r)
	if user == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"autenticado": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"autenticado": true,
		"usuario":     presentUser(user),
	})
}

// handleUpdateProfile serves PATCH /api/auth/perfil.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := s.currentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "No autenticado")
		return
	}

	var req struct {
		DisplayName *string `json:"display_name"`
		AvatarEmoji *string `json:"avatar_emoji"`
		AvatarColor *string `json:"avatar_color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Cuerpo inválido")
		return
	}

	updated, err := s.auth.UpdateProfile(r.Context(), user.ID, req.DisplayName, req.AvatarEmoji, req.AvatarColor)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to update profile")
		writeError(w, http.StatusInternalServerError, "No se pudo actualizar el perfil")
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "No encontrado")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"usuario": presentUser(updated),
	})
}
