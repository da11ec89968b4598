package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

type fakeQuerier struct {
	inserted  []models.ChatMessage
	insertErr error
	nextID    int64

	history    []models.ChatMessage
	historyErr error
	listCalls  []int

	lyric *models.Lyric
	video *models.Video
}

func (f *fakeQuerier) InsertMessage(ctx context.Context, msg *models.ChatMessage) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.nextID++
	f.inserted = append(f.inserted, *msg)
	return f.nextID, nil
}

func (f *fakeQuerier) ListRecentMessages(ctx context.Context, room string, limit int) ([]models.ChatMessage, error) {
	f.listCalls = append(f.listCalls, limit)
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeQuerier) PickRandomLyric(ctx context.Context) (*models.Lyric, error) {
	return f.lyric, nil
}

func (f *fakeQuerier) PickRandomVideo(ctx context.Context) (*models.Video, error) {
	return f.video, nil
}

func TestUserMessageNormalizes(t *testing.T) {
	q := &fakeQuerier{}
	svc := NewService(NewRepository(q), clockwork.NewFakeClock())

	msg, err := svc.UserMessage(context.Background(), "general", "  Paco  ", "  ¡Viva Cádiz!  ")
	if err != nil {
		t.Fatalf("UserMessage() error = %v", err)
	}
	if msg.Content != "¡Viva Cádiz!" {
		t.Errorf("Content = %q, want trimmed", msg.Content)
	}
	if msg.User != "Paco" {
		t.Errorf("User = %q, want trimmed", msg.User)
	}
	if msg.Type != models.MessageTypeUser {
		t.Errorf("Type = %q", msg.Type)
	}
	if msg.ID == 0 {
		t.Error("ID should be filled from the insert")
	}
	if len(q.inserted) != 1 {
		t.Errorf("inserted %d messages, want 1", len(q.inserted))
	}
}

func TestUserMessageDropsEmptyContent(t *testing.T) {
	q := &fakeQuerier{}
	svc := NewService(NewRepository(q), clockwork.NewFakeClock())

	msg, err := svc.UserMessage(context.Background(), "general", "Paco", "   ")
	if err != nil {
		t.Fatalf("UserMessage() error = %v", err)
	}
	if msg != nil {
		t.Errorf("msg = %+v, want nil for blank content", msg)
	}
	if len(q.inserted) != 0 {
		t.Error("blank content must not be persisted")
	}
}

func TestUserMessageTruncatesByRunes(t *testing.T) {
	q := &fakeQuerier{}
	svc := NewService(NewRepository(q), clockwork.NewFakeClock())

	content := strings.Repeat("ñ", MaxContentLen+100)
	name := strings.Repeat("é", MaxUsernameLen+10)
	msg, err := svc.UserMessage(context.Background(), "general", name, content)
	if err != nil {
		t.Fatalf("UserMessage() error = %v", err)
	}
	if got := len([]rune(msg.Content)); got != MaxContentLen {
		t.Errorf("content runes = %d, want %d", got, MaxContentLen)
	}
	if got := len([]rune(msg.User)); got != MaxUsernameLen {
		t.Errorf("user runes = %d, want %d", got, MaxUsernameLen)
	}
}

func TestUserMessageDefaults(t *testing.T) {
	q := &fakeQuerier{}
	svc := NewService(NewRepository(q), clockwork.NewFakeClock())

	msg, err := svc.UserMessage(context.Background(), "", "", "hola")
	if err != nil {
		t.Fatalf("UserMessage() error = %v", err)
	}
	if msg.User != "Anónimo" {
		t.Errorf("User = %q, want Anónimo", msg.User)
	}
	if msg.Room != DefaultRoom {
		t.Errorf("Room = %q, want %q", msg.Room, DefaultRoom)
	}
}

func TestUserMessageBroadcastsDespiteInsertFailure(t *testing.T) {
	q := &fakeQuerier{insertErr: errors.New("connection lost")}
	svc := NewService(NewRepository(q), clockwork.NewFakeClock())

	msg, err := svc.UserMessage(context.Background(), "general", "Paco", "hola")
	if err != nil {
		t.Fatalf("UserMessage() error = %v", err)
	}
	if msg == nil {
		t.Fatal("message must still broadcast when persistence fails")
	}
	if msg.ID != 0 {
		t.Errorf("ID = %d, want 0 for unpersisted message", msg.ID)
	}
}

func TestHistoryClampsLimit(t *testing.T) {
	q := &fakeQuerier{}
	svc := NewService(NewRepository(q), clockwork.NewFakeClock())

	if _, err := svc.History(context.Background(), "general", 10000); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if _, err := svc.History(context.Background(), "general", 0); err != nil {
		t.Fatalf("History() error = %v", err)
	}

	if len(q.listCalls) != 2 {
		t.Fatalf("ListRecentMessages called %d times", len(q.listCalls))
	}
	if q.listCalls[0] != HistoryCap {
		t.Errorf("oversized limit clamped to %d, want %d", q.listCalls[0], HistoryCap)
	}
	if q.listCalls[1] != 50 {
		t.Errorf("zero limit defaulted to %d, want 50", q.listCalls[1])
	}
}

func TestHistoryEmptyRoomReturnsEmptySlice(t *testing.T) {
	q := &fakeQuerier{}
	svc := NewService(NewRepository(q), clockwork.NewFakeClock())

	messages, err := svc.History(context.Background(), "vacía", 50)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if messages == nil {
		t.Error("History() should return an empty slice, not nil")
	}
	if len(messages) != 0 {
		t.Errorf("got %d messages", len(messages))
	}
}
