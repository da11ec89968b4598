package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// Limits applied to inbound chat sends.
const (
	MaxContentLen  = 500
	MaxUsernameLen = 50
	DefaultRoom    = "general"
)

// Service normalizes, persists and shapes chat messages.
type Service struct {
	repo  *Repository
	clock clockwork.Clock
}

// NewService creates a chat service.
func NewService(repo *Repository, clock clockwork.Clock) *Service {
	return &Service{repo: repo, clock: clock}
}

// UserMessage turns a raw send into a broadcastable message. Empty content is
// dropped (nil, nil). Persistence is best-effort: a failed insert is logged
// and the message still goes out.
func (s *Service) UserMessage(ctx context.Context, room, user, content string) (*models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}
	content = truncateRunes(content, MaxContentLen)

	user = strings.TrimSpace(user)
	if user == "" {
		user = "Anónimo"
	}
	user = truncateRunes(user, MaxUsernameLen)

	if room == "" {
		room = DefaultRoom
	}

	now := s.clock.Now().UTC()
	msg := &models.ChatMessage{
		Room:      room,
		User:      user,
		Content:   content,
		Type:      models.MessageTypeUser,
		Time:      models.FormatHour(now),
		CreatedAt: now,
	}

	if err := s.repo.SaveMessage(ctx, msg); err != nil {
		log.Error().Err(err).Str("room", room).Msg("failed to persist chat message, broadcasting anyway")
	}

	return msg, nil
}

// History returns the recent transcript of a room, oldest first. The limit is
// clamped to HistoryCap.
func (s *Service) History(ctx context.Context, room string, limit int) ([]models.ChatMessage, error) {
	if room == "" {
		room = DefaultRoom
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > HistoryCap {
		limit = HistoryCap
	}

	messages, err := s.repo.History(ctx, room, limit)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	return messages, nil
}

// HistoryCap bounds how much transcript one request may fetch.
const HistoryCap = 200

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
