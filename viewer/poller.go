package viewer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// DefaultPollInterval is how often the live state is re-fetched.
const DefaultPollInterval = 30 * time.Second

// FetchFunc obtains the current live state from the server.
type FetchFunc func(ctx context.Context) (*models.LiveState, error)

// PollerConfig parameterizes the poll-and-diff loop: how to fetch, what makes
// two states "the same video", and what to do on each outcome.
type PollerConfig struct {
	Fetch    FetchFunc
	Interval time.Duration
	Clock    clockwork.Clock

	// KeyOf extracts the equality key; states with equal keys only refresh
	// the cache, differing keys trigger OnChange.
	KeyOf func(*models.LiveState) string

	// OnChange runs for the initial state and for every hard transition.
	OnChange func(*models.LiveState)

	// OnRefresh runs when a poll returns the same key; the cache has already
	// been replaced wholesale. Optional.
	OnRefresh func(*models.LiveState)
}

// Poller periodically re-fetches the live state and applies the change rule.
// It never starts unless the initial fetch succeeds, and a failed poll cycle
// is abandoned without affecting the next tick.
type Poller struct {
	config PollerConfig

	mu      sync.Mutex
	current *models.LiveState
	started bool

	syncCh chan struct{}
}

// NewPoller creates a poller. Zero-value config fields get defaults; Fetch,
// KeyOf and OnChange are required.
func NewPoller(config PollerConfig) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultPollInterval
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	return &Poller{
		config: config,
		syncCh: make(chan struct{}, 1),
	}
}

// Start performs the initial fetch and, on success, begins the interval loop.
// On failure no timer starts and the error describes why; the caller shows
// its error state and gives up.
func (p *Poller) Start(ctx context.Context) error {
	state, err := p.config.Fetch(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.current = state
	p.started = true
	p.mu.Unlock()

	p.config.OnChange(state)

	go p.loop(ctx)
	return nil
}

// Sync nudges the poller to run a fetch-and-apply cycle now instead of
// waiting for the next tick. No-op before Start or when a nudge is already
// pending.
func (p *Poller) Sync() {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return
	}

	select {
	case p.syncCh <- struct{}{}:
	default:
	}
}

// Current returns the last fetched state.
func (p *Poller) Current() *models.LiveState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Poller) loop(ctx context.Context) {
	ticker := p.config.Clock.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.poll(ctx)
		case <-p.syncCh:
			p.poll(ctx)
		}
	}
}

// poll runs one fetch-and-apply cycle. Errors abort this cycle only.
func (p *Poller) poll(ctx context.Context) {
	state, err := p.config.Fetch(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("poll cycle failed")
		return
	}

	p.mu.Lock()
	previous := p.current
	p.current = state
	p.mu.Unlock()

	if previous == nil || p.config.KeyOf(previous) != p.config.KeyOf(state) {
		p.config.OnChange(state)
		return
	}
	if p.config.OnRefresh != nil {
		p.config.OnRefresh(state)
	}
}
