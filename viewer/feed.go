package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Raulcadiz/Carnavalix/internal/gateway"
	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// ErrNotConnected is returned when a frame cannot be sent because the feed
// has no transport right now.
var ErrNotConnected = errors.New("feed is not connected")

// FeedHandlers receive inbound realtime events. Nil handlers are skipped.
type FeedHandlers struct {
	OnMessage     func(models.ChatMessage)
	OnSystem      func(string)
	OnLiveChanged func()
}

// Feed is the one realtime connection a page holds: chat and live-change
// hints multiplex over it. It reconnects on its own and re-asserts room
// membership after each reconnect.
type Feed struct {
	url           string
	dialer        *websocket.Dialer
	handlers      FeedHandlers
	reconnectWait time.Duration

	readyOnce sync.Once
	readyCh   chan struct{}

	mu     sync.Mutex
	conn   *websocket.Conn
	joined map[string]string // room -> display name

	sendMu sync.Mutex
}

// NewFeed creates a feed for the given WebSocket URL. Run must be called to
// connect.
func NewFeed(url string, handlers FeedHandlers) *Feed {
	return &Feed{
		url:           url,
		dialer:        websocket.DefaultDialer,
		handlers:      handlers,
		reconnectWait: 2 * time.Second,
		readyCh:       make(chan struct{}),
		joined:        make(map[string]string),
	}
}

// Ready is closed once the transport has connected for the first time.
// Feed-dependent features await it once instead of retrying on a timer.
func (f *Feed) Ready() <-chan struct{} {
	return f.readyCh
}

// Run dials and serves the connection until the context is cancelled,
// redialing after a fixed wait whenever the transport drops.
func (f *Feed) Run(ctx context.Context) {
	for {
		if err := f.connectAndServe(ctx); err != nil {
			log.Debug().Err(err).Msg("feed connection ended")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(f.reconnectWait):
		}
	}
}

func (f *Feed) connectAndServe(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}

	f.mu.Lock()
	f.conn = conn
	rejoin := make(map[string]string, len(f.joined))
	for room, name := range f.joined {
		rejoin[room] = name
	}
	f.mu.Unlock()

	f.readyOnce.Do(func() { close(f.readyCh) })

	// Membership is server-side state that died with the old connection;
	// re-assert it so the server's presence does not go stale.
	for room, name := range rejoin {
		if err := f.writeFrame(gateway.EventJoin, gateway.JoinPayload{Room: room, Name: name}); err != nil {
			log.Error().Err(err).Str("room", room).Msg("failed to rejoin room")
		}
	}

	defer func() {
		f.mu.Lock()
		f.conn = nil
		f.mu.Unlock()
		conn.Close()
	}()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read feed frame: %w", err)
		}
		f.dispatch(frame)
	}
}

func (f *Feed) dispatch(frame []byte) {
	var env gateway.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		log.Debug().Err(err).Msg("discarding malformed feed frame")
		return
	}

	switch env.Event {
	case gateway.EventMessage:
		var msg models.ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return
		}
		if f.handlers.OnMessage != nil {
			f.handlers.OnMessage(msg)
		}

	case gateway.EventSystem:
		var payload gateway.SystemPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return
		}
		if f.handlers.OnSystem != nil {
			f.handlers.OnSystem(payload.Message)
		}

	case gateway.EventLiveChanged:
		if f.handlers.OnLiveChanged != nil {
			f.handlers.OnLiveChanged()
		}
	}
}

// Join enters a room. Membership is remembered so it survives reconnects.
func (f *Feed) Join(room, name string) error {
	f.mu.Lock()
	f.joined[room] = name
	f.mu.Unlock()
	return f.writeFrame(gateway.EventJoin, gateway.JoinPayload{Room: room, Name: name})
}

// Leave exits a room. Always called before joining a replacement room so the
// server never double-counts presence.
func (f *Feed) Leave(room, name string) error {
	f.mu.Lock()
	delete(f.joined, room)
	f.mu.Unlock()
	return f.writeFrame(gateway.EventLeave, gateway.JoinPayload{Room: room, Name: name})
}

// Send fires a chat message into a room. No delivery acknowledgement is
// awaited; the echo arrives asynchronously as a "mensaje" event.
func (f *Feed) Send(room, user, content string) error {
	return f.writeFrame(gateway.EventMessage, gateway.MessagePayload{
		Room:    room,
		User:    user,
		Content: content,
	})
}

func (f *Feed) writeFrame(event string, data interface{}) error {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(gateway.Envelope{Event: event, Data: raw})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}

	f.sendMu.Lock()
	defer f.sendMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write %s frame: %w", event, err)
	}
	return nil
}
