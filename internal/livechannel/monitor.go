package livechannel

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// MonitorConfig holds timings for the channel monitor.
type MonitorConfig struct {
	Interval time.Duration // how often the channel state is checked
	EndGrace time.Duration // margin past the video duration before advancing
}

// DefaultMonitorConfig returns the monitor timings the channel runs with.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval: 30 * time.Second,
		EndGrace: 15 * time.Second,
	}
}

// Monitor advances the channel automatically when the current video has
// finished playing. One instance runs per deployment.
type Monitor struct {
	service *Service
	repo    *Repository
	clock   clockwork.Clock
	config  MonitorConfig
}

// NewMonitor creates a channel monitor.
func NewMonitor(service *Service, repo *Repository, clock clockwork.Clock, config MonitorConfig) *Monitor {
	return &Monitor{
		service: service,
		repo:    repo,
		clock:   clock,
		config:  config,
	}
}

// Run checks the channel on a fixed interval until the context is cancelled.
// A failing check aborts that cycle only; the ticker keeps firing.
func (m *Monitor) Run(ctx context.Context) {
	log.Info().
		Dur("interval", m.config.Interval).
		Msg("live channel monitor started")

	ticker := m.clock.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("live channel monitor stopped")
			return
		case <-ticker.Chan():
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	state, err := m.repo.State(ctx)
	if errors.Is(err, ErrNoState) || (err == nil && (state.YoutubeID == "" || state.Duration <= 0)) {
		// Nothing playing or no usable duration: try to start the channel.
		if _, err := m.service.Advance(ctx); err != nil && !errors.Is(err, ErrNoVideos) {
			log.Error().Err(err).Msg("monitor failed to start channel")
		}
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("monitor failed to read channel state")
		return
	}

	elapsed := m.clock.Now().UTC().Sub(state.StartedAt)
	deadline := time.Duration(state.Duration)*time.Second + m.config.EndGrace
	if elapsed < deadline {
		return
	}

	log.Info().
		Str("youtube_id", state.YoutubeID).
		Dur("elapsed", elapsed).
		Int("duration_sec", state.Duration).
		Msg("video finished, advancing")

	if _, err := m.service.Advance(ctx); err != nil {
		log.Error().Err(err).Msg("monitor failed to advance channel")
	}
}
