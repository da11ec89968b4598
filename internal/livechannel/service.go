package livechannel

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Raulcadiz/Carnavalix/internal/events"
	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// youtubeIDPattern extracts the 11-character video ID from watch, short and
// embed URLs. A bare ID is accepted as-is.
var youtubeIDPattern = regexp.MustCompile(`(?:v=|youtu\.be/|/embed/|/shorts/)([a-zA-Z0-9_-]{11})`)

// Service drives the 24/7 live channel: what is playing, for how long, and
// what comes next.
type Service struct {
	repo      *Repository
	publisher events.Publisher
	clock     clockwork.Clock
}

// NewService creates a live channel service.
func NewService(repo *Repository, publisher events.Publisher, clock clockwork.Clock) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		clock:     clock,
	}
}

// CurrentState returns what a freshly-arriving viewer should see right now.
// When the channel has never started it attempts to auto-start from the
// catalog; ErrNoVideos propagates when there is nothing to play.
func (s *Service) CurrentState(ctx context.Context) (*models.LiveState, error) {
	state, err := s.repo.State(ctx)
	if errors.Is(err, ErrNoState) || (err == nil && state.YoutubeID == "") {
		if _, err := s.Advance(ctx); err != nil {
			return nil, err
		}
		state, err = s.repo.State(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to reread state after auto-start: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	return s.presentState(state), nil
}

// Advance commits the next randomly-selected video as the channel state and
// notifies viewers. Returns the new youtube ID.
func (s *Service) Advance(ctx context.Context) (string, error) {
	video, err := s.repo.NextVideo(ctx)
	if err != nil {
		return "", err
	}

	source := video.GroupName
	if source == "" {
		source = models.DefaultSourceChannel
	}

	state := channelState{
		YoutubeID:     video.YoutubeID,
		Title:         video.Title,
		Duration:      video.Duration,
		StartedAt:     s.clock.Now().UTC(),
		SourceChannel: source,
	}
	if err := s.repo.SetState(ctx, state); err != nil {
		return "", err
	}

	log.Info().
		Str("youtube_id", video.YoutubeID).
		Str("title", video.Title).
		Msg("live channel advanced")

	s.notifyChanged(ctx, state)
	return video.YoutubeID, nil
}

// Schedule commits a specific video as the channel state. Accepts a bare
// 11-character ID or a full YouTube URL. Metadata comes from the catalog when
// the video is known; otherwise the ID doubles as the title.
func (s *Service) Schedule(ctx context.Context, raw string) (string, error) {
	youtubeID := ExtractYoutubeID(raw)
	if youtubeID == "" {
		return "", fmt.Errorf("missing youtube_id")
	}

	title := youtubeID
	duration := 0
	source := models.DefaultSourceChannel

	video, err := s.repo.VideoByYoutubeID(ctx, youtubeID)
	if err != nil {
		log.Warn().Err(err).Str("youtube_id", youtubeID).Msg("catalog lookup failed, scheduling without metadata")
	} else if video != nil {
		title = video.Title
		duration = video.Duration
		if video.GroupName != "" {
			source = video.GroupName
		}
	}

	state := channelState{
		YoutubeID:     youtubeID,
		Title:         title,
		Duration:      duration,
		StartedAt:     s.clock.Now().UTC(),
		SourceChannel: source,
	}
	if err := s.repo.SetState(ctx, state); err != nil {
		return "", err
	}

	log.Info().
		Str("youtube_id", youtubeID).
		Str("title", title).
		Msg("live channel video scheduled")

	s.notifyChanged(ctx, state)
	return youtubeID, nil
}

// notifyChanged publishes the change hint. Delivery is best-effort: viewers
// that miss it still converge on the next poll.
func (s *Service) notifyChanged(ctx context.Context, state channelState) {
	if s.publisher == nil {
		return
	}
	payload := events.LiveChangedPayload{
		YoutubeID:     state.YoutubeID,
		Title:         state.Title,
		SourceChannel: state.SourceChannel,
		ChangedAt:     state.StartedAt,
	}
	if err := s.publisher.PublishLiveChanged(ctx, payload); err != nil {
		log.Error().Err(err).Str("youtube_id", state.YoutubeID).Msg("failed to publish live change")
	}
}

func (s *Service) presentState(state channelState) *models.LiveState {
	startedAt := state.StartedAt
	return &models.LiveState{
		YoutubeID:      state.YoutubeID,
		Title:          state.Title,
		Duration:       state.Duration,
		StartedAt:      &startedAt,
		ElapsedSeconds: models.ElapsedSince(state.StartedAt, state.Duration, s.clock.Now().UTC()),
		SourceChannel:  state.SourceChannel,
	}
}

// ExtractYoutubeID pulls the video ID out of a raw admin input, which may be
// a bare ID or any common YouTube URL form.
func ExtractYoutubeID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if m := youtubeIDPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}
