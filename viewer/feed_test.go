package viewer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Raulcadiz/Carnavalix/internal/gateway"
	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// feedServer is a scriptable WebSocket endpoint standing in for the gateway.
type feedServer struct {
	server *httptest.Server

	mu          sync.Mutex
	inbound     []gateway.Envelope
	connections int
	received    chan gateway.Envelope
	connected   chan *websocket.Conn
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	fs := &feedServer{
		received:  make(chan gateway.Envelope, 16),
		connected: make(chan *websocket.Conn, 4),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.mu.Lock()
		fs.connections++
		fs.mu.Unlock()
		fs.connected <- conn

		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env gateway.Envelope
			if err := json.Unmarshal(frame, &env); err != nil {
				continue
			}
			fs.mu.Lock()
			fs.inbound = append(fs.inbound, env)
			fs.mu.Unlock()
			fs.received <- env
		}
	})

	fs.server = httptest.NewServer(mux)
	t.Cleanup(fs.server.Close)
	return fs
}

func (fs *feedServer) url() string {
	return "ws" + strings.TrimPrefix(fs.server.URL, "http") + "/ws"
}

func (fs *feedServer) awaitConnection(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-fs.connected:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed to connect")
		return nil
	}
}

func (fs *feedServer) awaitFrame(t *testing.T) gateway.Envelope {
	t.Helper()
	select {
	case env := <-fs.received:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound frame")
		return gateway.Envelope{}
	}
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		raw = b
	}
	frame, err := json.Marshal(gateway.Envelope{Event: event, Data: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func TestFeedReadyAndDispatch(t *testing.T) {
	fs := newFeedServer(t)

	messages := make(chan models.ChatMessage, 4)
	systems := make(chan string, 4)
	liveChanges := make(chan struct{}, 4)

	feed := NewFeed(fs.url(), FeedHandlers{
		OnMessage:     func(m models.ChatMessage) { messages <- m },
		OnSystem:      func(s string) { systems <- s },
		OnLiveChanged: func() { liveChanges <- struct{}{} },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	select {
	case <-feed.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("Ready() never closed")
	}

	conn := fs.awaitConnection(t)
	sendEnvelope(t, conn, gateway.EventSystem, gateway.SystemPayload{Message: "Conectado al chat del Carnaval 🎭"})
	sendEnvelope(t, conn, gateway.EventMessage, models.ChatMessage{Room: "live", User: "Paco", Content: "hola"})
	sendEnvelope(t, conn, gateway.EventLiveChanged, nil)

	select {
	case s := <-systems:
		if !strings.Contains(s, "Conectado") {
			t.Errorf("system notice = %q", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("system notice never dispatched")
	}
	select {
	case m := <-messages:
		if m.User != "Paco" || m.Content != "hola" {
			t.Errorf("message = %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("chat message never dispatched")
	}
	select {
	case <-liveChanges:
	case <-time.After(2 * time.Second):
		t.Fatal("live change hint never dispatched")
	}
}

func TestFeedSendBeforeConnect(t *testing.T) {
	feed := NewFeed("ws://127.0.0.1:1/ws", FeedHandlers{})
	if err := feed.Send("live", "Paco", "hola"); err != ErrNotConnected {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
	if err := feed.Join("live", "Paco"); err != ErrNotConnected {
		t.Errorf("Join() error = %v, want ErrNotConnected", err)
	}
}

func TestFeedRejoinsRoomsAfterReconnect(t *testing.T) {
	fs := newFeedServer(t)

	feed := NewFeed(fs.url(), FeedHandlers{})
	feed.reconnectWait = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	first := fs.awaitConnection(t)
	select {
	case <-feed.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("Ready() never closed")
	}
	if err := feed.Join("live", "Paco"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	env := fs.awaitFrame(t)
	if env.Event != gateway.EventJoin {
		t.Fatalf("evento = %q, want join", env.Event)
	}

	// Drop the transport; the feed must redial and re-assert membership.
	first.Close()
	fs.awaitConnection(t)

	env = fs.awaitFrame(t)
	if env.Event != gateway.EventJoin {
		t.Fatalf("rejoin evento = %q, want join", env.Event)
	}
	var payload gateway.JoinPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("datos is not a join payload: %v", err)
	}
	if payload.Room != "live" || payload.Name != "Paco" {
		t.Errorf("rejoin payload = %+v", payload)
	}
}

func TestFeedLeaveForgetsRoom(t *testing.T) {
	fs := newFeedServer(t)

	feed := NewFeed(fs.url(), FeedHandlers{})
	feed.reconnectWait = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	first := fs.awaitConnection(t)
	select {
	case <-feed.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("Ready() never closed")
	}
	if err := feed.Join("live", "Paco"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	fs.awaitFrame(t) // join
	if err := feed.Leave("live", "Paco"); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	fs.awaitFrame(t) // leave

	// A left room is not re-asserted on reconnect.
	first.Close()
	fs.awaitConnection(t)

	select {
	case env := <-fs.received:
		t.Errorf("unexpected frame after reconnect: %+v", env)
	case <-time.After(300 * time.Millisecond):
	}
}
