package viewer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// Error messages shown by the live page.
const (
	MsgNoActiveVideo  = "El canal no tiene vídeo activo. Vuelve más tarde."
	MsgServerUnreach  = "No se pudo conectar con el servidor del canal."
	DefaultRoom       = "live"
	DefaultHistoryLen = 50
)

// InfoPanel is the live page's info area: current title, source channel, and
// the error state shown when the channel is unavailable.
type InfoPanel interface {
	ShowNowPlaying(title, sourceChannel string)
	ShowError(message string)
	SetAdminVisible(visible bool)
}

// SessionConfig configures a viewer session.
type SessionConfig struct {
	API     *APIClient
	Surface Surface
	Panel   InfoPanel

	// FeedURL is the WebSocket endpoint; empty disables chat and live-change
	// hints, leaving the interval poll as the only sync path.
	FeedURL string

	Room         string
	DisplayName  string
	PollInterval time.Duration
	HistoryLimit int
	Clock        clockwork.Clock
}

// Session is the per-page controller owning the live page's state: the
// cached LiveState, the poll timer, the playback surface and the realtime
// feed. Everything module-global in spirit lives here instead.
type Session struct {
	config     SessionConfig
	presenter  *Presenter
	poller     *Poller
	feed       *Feed
	transcript *Transcript

	mu   sync.Mutex
	room string
}

// NewSession builds a session around the page's surface and panel.
func NewSession(config SessionConfig) *Session {
	if config.Room == "" {
		config.Room = DefaultRoom
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = DefaultHistoryLen
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}

	s := &Session{
		config:     config,
		presenter:  NewPresenter(config.Surface),
		transcript: NewTranscript(),
		room:       config.Room,
	}

	s.poller = NewPoller(PollerConfig{
		Fetch:    config.API.FetchState,
		Interval: config.PollInterval,
		Clock:    config.Clock,
		KeyOf:    func(state *models.LiveState) string { return state.YoutubeID },
		OnChange: s.applyState,
	})

	if config.FeedURL != "" {
		s.feed = NewFeed(config.FeedURL, FeedHandlers{
			OnMessage:     s.onMessage,
			OnSystem:      s.onSystem,
			OnLiveChanged: s.poller.Sync,
		})
	}

	return s
}

// Run starts the session: initial state fetch, poll loop, realtime feed and
// chat. It blocks until the context is cancelled. When the initial fetch
// fails the session shows its error state and returns without ever starting
// the poll loop.
func (s *Session) Run(ctx context.Context) error {
	if s.feed != nil {
		go s.feed.Run(ctx)
	}

	if err := s.poller.Start(ctx); err != nil {
		if errors.Is(err, ErrNoActiveVideo) {
			s.config.Panel.ShowError(MsgNoActiveVideo)
		} else {
			s.config.Panel.ShowError(MsgServerUnreach)
		}
		return err
	}

	s.refreshAdminVisibility(ctx)

	if s.feed != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.feed.Ready():
		}
		if err := s.enterRoom(ctx, s.config.Room); err != nil {
			log.Error().Err(err).Str("room", s.config.Room).Msg("failed to enter room")
		}
	}

	<-ctx.Done()
	return ctx.Err()
}

// applyState is the hard-transition handler: re-render the info panel and
// rebuild the playback surface from scratch. Same-id polls never reach it,
// so a continuing video is never reloaded.
func (s *Session) applyState(state *models.LiveState) {
	title := state.Title
	if title == "" {
		title = state.YoutubeID
	}
	channel := state.SourceChannel
	if channel == "" {
		channel = models.DefaultSourceChannel
	}
	s.config.Panel.ShowNowPlaying(title, channel)
	s.presenter.Present(state.YoutubeID, state.ElapsedSeconds)
}

// refreshAdminVisibility asks who the viewer is and toggles the advance
// affordance. The server still enforces authorization; this only hides the
// button.
func (s *Session) refreshAdminVisibility(ctx context.Context) {
	identity, err := s.config.API.Whoami(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("whoami failed, hiding admin controls")
		s.config.Panel.SetAdminVisible(false)
		return
	}
	s.config.Panel.SetAdminVisible(identity.Authenticated && identity.User != nil && identity.User.IsAdmin)
}

// enterRoom loads the room transcript and joins it on the feed.
func (s *Session) enterRoom(ctx context.Context, room string) error {
	history, err := s.config.API.History(ctx, room, s.config.HistoryLimit)
	if err != nil {
		log.Error().Err(err).Str("room", room).Msg("failed to load chat history")
	} else {
		s.transcript.Reset()
		for _, msg := range history {
			s.transcript.Append(msg)
		}
	}

	return s.feed.Join(room, s.config.DisplayName)
}

// SwitchRoom moves the chat widget to another room. The old room is left
// strictly before the new one is joined so server presence never
// double-counts.
func (s *Session) SwitchRoom(ctx context.Context, newRoom string) error {
	if s.feed == nil {
		return ErrNotConnected
	}

	s.mu.Lock()
	oldRoom := s.room
	s.mu.Unlock()

	if newRoom == oldRoom {
		return nil
	}

	if err := s.feed.Leave(oldRoom, s.config.DisplayName); err != nil {
		return err
	}

	// Track the new room as soon as the old one is left so messages arriving
	// for it during the join handshake are not filtered out.
	s.mu.Lock()
	s.room = newRoom
	s.mu.Unlock()

	return s.enterRoom(ctx, newRoom)
}

// Send fires a chat message into the current room.
func (s *Session) Send(content string) error {
	if s.feed == nil {
		return ErrNotConnected
	}
	s.mu.Lock()
	room := s.room
	s.mu.Unlock()
	return s.feed.Send(room, s.config.DisplayName, content)
}

// Sync nudges the poller to re-fetch now, used by the admin bridge's delayed
// refresh.
func (s *Session) Sync() {
	s.poller.Sync()
}

// Room returns the currently joined chat room.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Transcript exposes the session's chat transcript.
func (s *Session) Transcript() *Transcript {
	return s.transcript
}

// CurrentState returns the last fetched live state.
func (s *Session) CurrentState() *models.LiveState {
	return s.poller.Current()
}

// SurfaceURL returns the URL currently assigned to the playback surface.
func (s *Session) SurfaceURL() string {
	return s.presenter.CurrentURL()
}

func (s *Session) onMessage(msg models.ChatMessage) {
	s.mu.Lock()
	room := s.room
	s.mu.Unlock()

	// Room-less messages are broadcasts; everything else must match the
	// joined room.
	if msg.Room != "" && msg.Room != room {
		return
	}
	s.transcript.Append(msg)
}

func (s *Session) onSystem(message string) {
	s.transcript.AppendSystem(message)
}
