package livechannel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// syncQuerier wraps fakeQuerier with the locking the monitor goroutine needs.
type syncQuerier struct {
	mu sync.Mutex
	fakeQuerier
}

func (s *syncQuerier) GetChannelState(ctx context.Context) (channelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fakeQuerier.GetChannelState(ctx)
}

func (s *syncQuerier) UpsertChannelState(ctx context.Context, state channelState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fakeQuerier.UpsertChannelState(ctx, state)
}

func (s *syncQuerier) PickRandomVideo(ctx context.Context, phases []models.Phase) (*models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fakeQuerier.PickRandomVideo(ctx, phases)
}

func (s *syncQuerier) currentState(t *testing.T) channelState {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		t.Fatal("channel has no state")
	}
	return *s.state
}

// waitForVideo keeps ticking the fake clock until the channel plays wantID.
func (s *syncQuerier) waitForVideo(t *testing.T, clock *clockwork.FakeClock, wantID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		ok := s.state != nil && s.state.YoutubeID == wantID
		s.mu.Unlock()
		if ok {
			return
		}
		clock.Advance(30 * time.Second)
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("channel never advanced to %q", wantID)
}

func TestMonitorAdvancesWhenVideoEnds(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := &syncQuerier{fakeQuerier: fakeQuerier{preferred: finalVideo()}}
	q.state = &channelState{
		YoutubeID: "aaaaaaaaaaa",
		Title:     "Pasodoble",
		Duration:  300,
		StartedAt: clock.Now().UTC(),
	}

	svc := NewService(NewRepository(q), nil, clock)
	m := NewMonitor(svc, NewRepository(q), clock, MonitorConfig{
		Interval: 30 * time.Second,
		EndGrace: 15 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)
	clock.BlockUntil(1)

	// Ten checks pass while the video plays; nothing advances.
	for i := 0; i < 10; i++ {
		clock.Advance(30 * time.Second)
		clock.BlockUntil(1)
	}
	if got := q.currentState(t).YoutubeID; got != "aaaaaaaaaaa" {
		t.Fatalf("channel advanced early to %q", got)
	}

	// 300s elapsed so far; the next tick crosses duration+grace (315s).
	q.waitForVideo(t, clock, "dQw4w9WgXcQ")
}

func TestMonitorStartsEmptyChannel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := &syncQuerier{fakeQuerier: fakeQuerier{preferred: finalVideo()}}

	svc := NewService(NewRepository(q), nil, clock)
	m := NewMonitor(svc, NewRepository(q), clock, DefaultMonitorConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)
	clock.BlockUntil(1)

	q.waitForVideo(t, clock, "dQw4w9WgXcQ")
}

func TestMonitorIgnoresZeroDurationUntilRestarted(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := &syncQuerier{fakeQuerier: fakeQuerier{preferred: finalVideo()}}
	// A manually scheduled video with no catalog entry has duration 0; the
	// monitor treats it as unplayable and replaces it.
	q.state = &channelState{
		YoutubeID: "bbbbbbbbbbb",
		Title:     "bbbbbbbbbbb",
		Duration:  0,
		StartedAt: clock.Now().UTC(),
	}

	svc := NewService(NewRepository(q), nil, clock)
	m := NewMonitor(svc, NewRepository(q), clock, DefaultMonitorConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)
	clock.BlockUntil(1)

	q.waitForVideo(t, clock, "dQw4w9WgXcQ")
}
