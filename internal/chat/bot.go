package chat

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// BotName is the display name of the resident carnival bot.
const BotName = "Bot Carnaval 🎭"

// Broadcaster is where the bot drops its messages.
type Broadcaster interface {
	BroadcastToRoom(room string, frame []byte)
}

// FrameBuilder turns a chat message into a wire frame. Wired to
// gateway.ChatFrame; split out so the bot can be tested without the gateway.
type FrameBuilder func(msg *models.ChatMessage) ([]byte, error)

var carnivalFacts = []string{
	"¿Sabías que el COAC se celebra en el Gran Teatro Falla desde 1905? 🏛️",
	"Las chirigotas son el tipo más popular del Carnaval de Cádiz por su humor ácido y crítica social 😂",
	"Una comparsa puede tener entre 10 y 20 componentes, mientras un cuarteto solo tiene 4 🎭",
	"El Carnaval de Cádiz es el único del mundo donde la competición oficial se llama COAC 🏆",
	"Las letras del carnaval gaditano llevan más de 140 años recogiendo la historia de España 📜",
}

// Bot posts ambient carnival content to the general room on a fixed interval.
type Bot struct {
	service     *Service
	broadcaster Broadcaster
	frame       FrameBuilder
	clock       clockwork.Clock
	interval    time.Duration
	rng         *rand.Rand
}

// NewBot creates the carnival bot.
func NewBot(service *Service, broadcaster Broadcaster, frame FrameBuilder, clock clockwork.Clock, interval time.Duration) *Bot {
	return &Bot{
		service:     service,
		broadcaster: broadcaster,
		frame:       frame,
		clock:       clock,
		interval:    interval,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run posts a message every interval until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	log.Info().Dur("interval", b.interval).Msg("carnival bot started")

	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("carnival bot stopped")
			return
		case <-ticker.Chan():
			b.post(ctx)
		}
	}
}

func (b *Bot) post(ctx context.Context) {
	msg := b.compose(ctx)
	if msg == nil {
		return
	}

	if err := b.service.repo.SaveMessage(ctx, msg); err != nil {
		log.Error().Err(err).Msg("failed to persist bot message, broadcasting anyway")
	}

	frame, err := b.frame(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to build bot frame")
		return
	}
	b.broadcaster.BroadcastToRoom(msg.Room, frame)
}

// compose picks a random lyric, video or fact. Falls back to a fact when the
// catalog tables are empty.
func (b *Bot) compose(ctx context.Context) *models.ChatMessage {
	now := b.clock.Now().UTC()
	base := models.ChatMessage{
		Room:      DefaultRoom,
		User:      BotName,
		Type:      models.MessageTypeBot,
		Time:      models.FormatHour(now),
		CreatedAt: now,
	}

	switch b.rng.Intn(3) {
	case 0:
		lyric, err := b.service.repo.RandomLyric(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to pick lyric for bot")
		} else if lyric != nil {
			group := lyric.GroupName
			if group == "" {
				group = "Grupo desconocido"
			}
			year := "?"
			if lyric.Year > 0 {
				year = fmt.Sprintf("%d", lyric.Year)
			}
			base.Content = fmt.Sprintf("🎶 *%s* (%s)\n\n_%s_", group, year, truncateRunes(lyric.Content, 280))
			return &base
		}
	case 1:
		video, err := b.service.repo.RandomVideo(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to pick video for bot")
		} else if video != nil {
			base.Content = fmt.Sprintf("📺 *%s*\n🗓 %d | %s | %s\nhttps://www.youtube.com/watch?v=%s",
				video.Title, video.Year, video.Modality, video.Phase, video.YoutubeID)
			return &base
		}
	}

	base.Content = carnivalFacts[b.rng.Intn(len(carnivalFacts))]
	return &base
}
