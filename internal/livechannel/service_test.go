package livechannel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Raulcadiz/Carnavalix/internal/events"
	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// fakeQuerier keeps channel state in memory and serves scripted videos.
type fakeQuerier struct {
	state    *channelState
	stateErr error

	preferred *models.Video
	fallback  *models.Video
	byID      map[string]*models.Video

	pickCalls [][]models.Phase
}

func (f *fakeQuerier) GetChannelState(ctx context.Context) (channelState, error) {
	if f.stateErr != nil {
		return channelState{}, f.stateErr
	}
	if f.state == nil {
		return channelState{}, ErrNoState
	}
	return *f.state, nil
}

func (f *fakeQuerier) UpsertChannelState(ctx context.Context, state channelState) error {
	f.state = &state
	return nil
}

func (f *fakeQuerier) PickRandomVideo(ctx context.Context, phases []models.Phase) (*models.Video, error) {
	f.pickCalls = append(f.pickCalls, phases)
	if len(phases) > 0 {
		if f.preferred == nil {
			return nil, ErrNoVideos
		}
		return f.preferred, nil
	}
	if f.fallback == nil {
		return nil, ErrNoVideos
	}
	return f.fallback, nil
}

func (f *fakeQuerier) GetVideoByYoutubeID(ctx context.Context, youtubeID string) (*models.Video, error) {
	return f.byID[youtubeID], nil
}

type recordingPublisher struct {
	payloads []events.LiveChangedPayload
	err      error
}

func (p *recordingPublisher) PublishLiveChanged(ctx context.Context, payload events.LiveChangedPayload) error {
	p.payloads = append(p.payloads, payload)
	return p.err
}

func finalVideo() *models.Video {
	return &models.Video{
		ID:        1,
		YoutubeID: "dQw4w9WgXcQ",
		Title:     "Los Millonarios - Final",
		Duration:  300,
		Year:      2025,
		Phase:     models.PhaseFinal,
		GroupName: "Los Millonarios",
	}
}

func TestAdvancePrefersFinalPhases(t *testing.T) {
	q := &fakeQuerier{preferred: finalVideo()}
	pub := &recordingPublisher{}
	svc := NewService(NewRepository(q), pub, clockwork.NewFakeClock())

	id, err := svc.Advance(context.Background())
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if id != "dQw4w9WgXcQ" {
		t.Errorf("Advance() = %q", id)
	}

	if len(q.pickCalls) != 1 {
		t.Fatalf("PickRandomVideo called %d times, want 1", len(q.pickCalls))
	}
	if len(q.pickCalls[0]) != 2 {
		t.Errorf("preferred phases = %v, want final and semifinal", q.pickCalls[0])
	}
	if q.state == nil || q.state.SourceChannel != "Los Millonarios" {
		t.Errorf("state = %+v, want group name as source channel", q.state)
	}
	if len(pub.payloads) != 1 || pub.payloads[0].YoutubeID != "dQw4w9WgXcQ" {
		t.Errorf("published payloads = %+v", pub.payloads)
	}
}

func TestAdvanceFallsBackToFullCatalog(t *testing.T) {
	q := &fakeQuerier{fallback: &models.Video{YoutubeID: "aaaaaaaaaaa", Title: "Popurrí", Duration: 240}}
	svc := NewService(NewRepository(q), nil, clockwork.NewFakeClock())

	id, err := svc.Advance(context.Background())
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if id != "aaaaaaaaaaa" {
		t.Errorf("Advance() = %q", id)
	}
	if len(q.pickCalls) != 2 {
		t.Errorf("PickRandomVideo called %d times, want preferred then fallback", len(q.pickCalls))
	}
	// No group name on the video: the default source channel applies.
	if q.state.SourceChannel != models.DefaultSourceChannel {
		t.Errorf("SourceChannel = %q, want default", q.state.SourceChannel)
	}
}

func TestAdvanceEmptyCatalog(t *testing.T) {
	q := &fakeQuerier{}
	svc := NewService(NewRepository(q), nil, clockwork.NewFakeClock())

	if _, err := svc.Advance(context.Background()); !errors.Is(err, ErrNoVideos) {
		t.Errorf("Advance() error = %v, want ErrNoVideos", err)
	}
}

func TestAdvanceBroadcastsEvenWhenPublishFails(t *testing.T) {
	q := &fakeQuerier{preferred: finalVideo()}
	pub := &recordingPublisher{err: errors.New("nats unavailable")}
	svc := NewService(NewRepository(q), pub, clockwork.NewFakeClock())

	// A hint that never reaches viewers is recovered by the next poll; the
	// state change itself must not fail.
	if _, err := svc.Advance(context.Background()); err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if q.state == nil {
		t.Error("state was not committed")
	}
}

func TestCurrentStateAutoStartsChannel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	q := &fakeQuerier{preferred: finalVideo()}
	svc := NewService(NewRepository(q), nil, clock)

	state, err := svc.CurrentState(context.Background())
	if err != nil {
		t.Fatalf("CurrentState() error = %v", err)
	}
	if state.YoutubeID != "dQw4w9WgXcQ" {
		t.Errorf("YoutubeID = %q", state.YoutubeID)
	}
	if state.ElapsedSeconds != 0 {
		t.Errorf("ElapsedSeconds = %d, want 0 right after start", state.ElapsedSeconds)
	}
}

func TestCurrentStateRecomputesElapsed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	started := clock.Now().UTC()
	q := &fakeQuerier{state: &channelState{
		YoutubeID:     "dQw4w9WgXcQ",
		Title:         "Final",
		Duration:      300,
		StartedAt:     started,
		SourceChannel: models.DefaultSourceChannel,
	}}
	svc := NewService(NewRepository(q), nil, clock)

	clock.Advance(90 * time.Second)
	state, err := svc.CurrentState(context.Background())
	if err != nil {
		t.Fatalf("CurrentState() error = %v", err)
	}
	if state.ElapsedSeconds != 90 {
		t.Errorf("ElapsedSeconds = %d, want 90", state.ElapsedSeconds)
	}

	// Past the end the value caps at duration-1, never at or beyond it.
	clock.Advance(time.Hour)
	state, err = svc.CurrentState(context.Background())
	if err != nil {
		t.Fatalf("CurrentState() error = %v", err)
	}
	if state.ElapsedSeconds != 299 {
		t.Errorf("ElapsedSeconds = %d, want 299", state.ElapsedSeconds)
	}
}

func TestScheduleKnownVideoUsesCatalogMetadata(t *testing.T) {
	q := &fakeQuerier{byID: map[string]*models.Video{
		"dQw4w9WgXcQ": finalVideo(),
	}}
	svc := NewService(NewRepository(q), nil, clockwork.NewFakeClock())

	id, err := svc.Schedule(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if id != "dQw4w9WgXcQ" {
		t.Errorf("Schedule() = %q", id)
	}
	if q.state.Title != "Los Millonarios - Final" || q.state.Duration != 300 {
		t.Errorf("state = %+v, want catalog metadata", q.state)
	}
}

func TestScheduleUnknownVideoUsesIDAsTitle(t *testing.T) {
	q := &fakeQuerier{}
	svc := NewService(NewRepository(q), nil, clockwork.NewFakeClock())

	if _, err := svc.Schedule(context.Background(), "bbbbbbbbbbb"); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if q.state.Title != "bbbbbbbbbbb" {
		t.Errorf("Title = %q, want the id itself", q.state.Title)
	}
	if q.state.Duration != 0 {
		t.Errorf("Duration = %d, want 0 for unknown video", q.state.Duration)
	}
	if q.state.SourceChannel != models.DefaultSourceChannel {
		t.Errorf("SourceChannel = %q, want default", q.state.SourceChannel)
	}
}

func TestScheduleRejectsEmptyInput(t *testing.T) {
	svc := NewService(NewRepository(&fakeQuerier{}), nil, clockwork.NewFakeClock())

	if _, err := svc.Schedule(context.Background(), "   "); err == nil {
		t.Error("Schedule() should reject blank input")
	}
}

func TestExtractYoutubeID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"  dQw4w9WgXcQ  ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := ExtractYoutubeID(tc.in); got != tc.want {
			t.Errorf("ExtractYoutubeID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
