package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Raulcadiz/Carnavalix/internal/models"
)

// ChatService is what the gateway needs to turn an inbound "mensaje" frame
// into a persisted, broadcastable chat message.
type ChatService interface {
	UserMessage(ctx context.Context, room, user, content string) (*models.ChatMessage, error)
}

// Presence tracks room occupancy across gateway instances.
type Presence interface {
	Join(ctx context.Context, room, sessionID string) error
	Leave(ctx context.Context, room, sessionID string) error
}

// ConnectionManager manages WebSocket connections grouped by room.
type ConnectionManager struct {
	// Connection pools organized by room name
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	chat     ChatService
	presence Presence

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a viewer.
type Connection struct {
	ID      string
	Name    string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	// rooms this connection has joined and the closed flag are guarded by
	// the manager mutex
	rooms  map[string]bool
	closed bool

	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a frame to broadcast to a room.
type BroadcastMessage struct {
	Room    string
	Frame   []byte
	Exclude *Connection // optional: skip this connection (sender already echoed)
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager.
func NewConnectionManager(config ConnectionConfig, chat ChatService, presence Presence) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		chat:        chat,
		presence:    presence,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start begins processing broadcast messages.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket. When room is
// non-empty the connection joins it immediately (the live page connects with
// ?sala=live).
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, room string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		rooms:       make(map[string]bool),
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	go connection.writePump()
	go connection.readPump()

	// Greeting matches what the chat widget expects on connect.
	if frame, err := SystemFrame("Conectado al chat del Carnaval 🎭"); err == nil {
		cm.trySend(connection, frame)
	}

	if room != "" {
		cm.join(r.Context(), connection, room, "")
	}

	log.Info().
		Str("connection_id", connection.ID).
		Str("room", room).
		Msg("WebSocket connection established")

	return nil
}

// join adds a connection to a room, records presence, and announces it.
func (cm *ConnectionManager) join(ctx context.Context, conn *Connection, room, name string) {
	cm.mu.Lock()
	if cm.roomConnections[room] == nil {
		cm.roomConnections[room] = make(map[*Connection]bool)
	}
	cm.roomConnections[room][conn] = true
	conn.rooms[room] = true
	if name != "" {
		conn.Name = name
	}
	total := len(cm.roomConnections[room])
	cm.mu.Unlock()

	if cm.presence != nil {
		if err := cm.presence.Join(ctx, room, conn.ID); err != nil {
			log.Error().Err(err).Str("room", room).Msg("failed to record presence")
		}
	}

	if name != "" {
		if frame, err := SystemFrame(fmt.Sprintf("%s se ha unido a #%s", name, room)); err == nil {
			cm.BroadcastToRoom(room, frame)
		}
	}

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room", room).
		Int("total_connections", total).
		Msg("connection joined room")
}

// leave removes a connection from a room, clears presence, and announces it.
func (cm *ConnectionManager) leave(ctx context.Context, conn *Connection, room, name string) {
	cm.mu.Lock()
	if connections, exists := cm.roomConnections[room]; exists {
		delete(connections, conn)
		if len(connections) == 0 {
			delete(cm.roomConnections, room)
		}
	}
	delete(conn.rooms, room)
	cm.mu.Unlock()

	if cm.presence != nil {
		if err := cm.presence.Leave(ctx, room, conn.ID); err != nil {
			log.Error().Err(err).Str("room", room).Msg("failed to clear presence")
		}
	}

	if name != "" {
		if frame, err := SystemFrame(fmt.Sprintf("%s ha salido de #%s", name, room)); err == nil {
			cm.BroadcastToRoom(room, frame)
		}
	}
}

// unregisterConnection removes a connection from every room it joined and
// closes its send channel. Safe to call more than once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if conn.closed {
		cm.mu.Unlock()
		return
	}
	conn.closed = true

	rooms := make([]string, 0, len(conn.rooms))
	for room := range conn.rooms {
		rooms = append(rooms, room)
		if connections, exists := cm.roomConnections[room]; exists {
			delete(connections, conn)
			if len(connections) == 0 {
				delete(cm.roomConnections, room)
			}
		}
	}
	conn.rooms = make(map[string]bool)
	close(conn.Send)
	cm.mu.Unlock()

	if cm.presence != nil {
		for _, room := range rooms {
			if err := cm.presence.Leave(context.Background(), room, conn.ID); err != nil {
				log.Error().Err(err).Str("room", room).Msg("failed to clear presence on disconnect")
			}
		}
	}

	log.Info().
		Str("connection_id", conn.ID).
		Msg("connection unregistered")
}

// BroadcastToRoom queues a frame for every connection in a room.
func (cm *ConnectionManager) BroadcastToRoom(room string, frame []byte) {
	select {
	case cm.broadcastCh <- BroadcastMessage{Room: room, Frame: frame}:
	default:
		log.Warn().Str("room", room).Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast delivers a queued frame to a room's connections.
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.roomConnections[message.Room]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	var targets []*Connection
	for conn := range connections {
		if message.Exclude != nil && conn == message.Exclude {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		if !cm.trySend(conn, message.Frame) {
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("room", message.Room).
		Int("connections", len(targets)).
		Msg("frame broadcast")
}

// trySend queues a frame on a connection's send buffer. The manager mutex is
// held for the duration so the channel cannot be closed mid-send; reports
// false when the connection is already closed or its buffer is full.
func (cm *ConnectionManager) trySend(conn *Connection, frame []byte) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if conn.closed {
		return false
	}
	select {
	case conn.Send <- frame:
		return true
	default:
		return false
	}
}

// Stats returns statistics about active connections per room.
func (cm *ConnectionManager) Stats() map[string]int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	counts := make(map[string]int, len(cm.roomConnections))
	for room, connections := range cm.roomConnections {
		counts[room] = len(connections)
	}
	return counts
}

// writePump handles sending frames to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles frames arriving from the WebSocket connection.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientFrame(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientFrame routes an inbound frame to the matching handler.
func (c *Connection) handleClientFrame(frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		log.Debug().
			Str("connection_id", c.ID).
			Err(err).
			Msg("discarding malformed frame")
		return
	}

	ctx := context.Background()

	switch env.Event {
	case EventJoin:
		var payload JoinPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Room == "" {
			return
		}
		c.Manager.join(ctx, c, payload.Room, displayName(payload.Name))

	case EventLeave:
		var payload JoinPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Room == "" {
			return
		}
		c.Manager.leave(ctx, c, payload.Room, displayName(payload.Name))

	case EventMessage:
		var payload MessagePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return
		}
		c.Manager.handleUserMessage(ctx, c, payload)

	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("event", env.Event).
			Msg("unknown client event")
	}
}

// handleUserMessage persists a chat send and fans it out: the sender gets a
// direct echo so they always see their own message, the rest of the room gets
// the broadcast.
func (cm *ConnectionManager) handleUserMessage(ctx context.Context, sender *Connection, payload MessagePayload) {
	room := payload.Room
	if room == "" {
		room = "general"
	}

	msg, err := cm.chat.UserMessage(ctx, room, displayName(payload.User), payload.Content)
	if err != nil {
		log.Error().Err(err).Str("room", room).Msg("failed to handle chat message")
		return
	}
	if msg == nil {
		return // empty content, dropped
	}

	frame, err := ChatFrame(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to build chat frame")
		return
	}

	cm.trySend(sender, frame)

	select {
	case cm.broadcastCh <- BroadcastMessage{Room: room, Frame: frame, Exclude: sender}:
	default:
		log.Warn().Str("room", room).Msg("broadcast channel full, dropping chat message")
	}
}

func displayName(name string) string {
	if name == "" {
		return "Anónimo"
	}
	if len([]rune(name)) > 50 {
		return string([]rune(name)[:50])
	}
	return name
}
