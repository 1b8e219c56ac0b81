package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidroom/go/internal/events"
)

// lobby is the pool key of connections that have not joined a room yet.
const lobby = ""

// IntentHandler receives raw client messages and connection lifecycle
// notifications.
type IntentHandler interface {
	HandleIntent(conn *Connection, message []byte)
	Disconnected(conn *Connection)
}

// ConnectionManager manages WebSocket connections grouped by room
type ConnectionManager struct {
	// Connection pools organized by room code
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  IntentHandler

	// Single FIFO for all outgoing events, which keeps per-room order
	broadcastCh chan BroadcastMessage
	dropped     atomic.Int64

	// Rooms that lost a queued message get a fresh snapshot once the queue
	// has drained.
	resyncMu sync.Mutex
	resync   map[string]struct{}
	resyncFn func(roomCode string)
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	// Guarded by Manager.mu
	roomCode      string
	participantID string

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	BroadcastBuffer int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage is one queued delivery. Target narrows it to a single
// connection, ParticipantID to one participant of the room.
type BroadcastMessage struct {
	RoomCode      string
	Event         *events.Event
	ParticipantID string
	Target        *Connection
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  512 * 1024, // catalogs are uploaded over the socket
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		SendBufferSize:  256,
		BroadcastBuffer: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	if config.BroadcastBuffer <= 0 {
		config.BroadcastBuffer = 4096
	}
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, config.BroadcastBuffer),
		resync:      make(map[string]struct{}),
	}
}

// SetHandler installs the handler for client messages. It must be called
// before connections are accepted.
func (cm *ConnectionManager) SetHandler(h IntentHandler) {
	cm.handler = h
}

// SetResync installs the callback that re-broadcasts a room's snapshot after
// one of its messages was dropped. It must be called before Start.
func (cm *ConnectionManager) SetResync(fn func(roomCode string)) {
	cm.resyncFn = fn
}

// Start processes queued broadcasts until ctx is done
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
			if len(cm.broadcastCh) == 0 {
				cm.flushResync()
			}
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.addToPool(lobby, conn)
}

func (cm *ConnectionManager) addToPool(roomCode string, conn *Connection) {
	if cm.roomConnections[roomCode] == nil {
		cm.roomConnections[roomCode] = make(map[*Connection]bool)
	}
	cm.roomConnections[roomCode][conn] = true
}

func (cm *ConnectionManager) removeFromPool(roomCode string, conn *Connection) bool {
	pool, ok := cm.roomConnections[roomCode]
	if !ok || !pool[conn] {
		return false
	}
	delete(pool, conn)
	if len(pool) == 0 {
		delete(cm.roomConnections, roomCode)
	}
	return true
}

// Attach moves a connection into a room's pool under a participant id.
func (cm *ConnectionManager) Attach(conn *Connection, roomCode, participantID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.removeFromPool(conn.roomCode, conn) {
		return
	}
	conn.roomCode = roomCode
	conn.participantID = participantID
	cm.addToPool(roomCode, conn)

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_code", roomCode).
		Str("participant_id", participantID).
		Int("room_connections", len(cm.roomConnections[roomCode])).
		Msg("connection attached to room")
}

// Binding returns the room and participant a connection is attached to.
func (cm *ConnectionManager) Binding(conn *Connection) (roomCode, participantID string) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return conn.roomCode, conn.participantID
}

// HasParticipant reports whether another live connection serves the
// participant.
func (cm *ConnectionManager) HasParticipant(roomCode, participantID string, except *Connection) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for c := range cm.roomConnections[roomCode] {
		if c != except && c.participantID == participantID {
			return true
		}
	}
	return false
}

// unregisterConnection removes a connection and reports whether it was
// still registered.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) bool {
	cm.mu.Lock()
	removed := cm.removeFromPool(conn.roomCode, conn)
	if removed {
		close(conn.Send)
	}
	roomCode := conn.roomCode
	cm.mu.Unlock()

	if !removed {
		return false
	}
	log.Info().
		Str("connection_id", conn.ID).
		Str("room_code", roomCode).
		Msg("connection unregistered")

	if cm.handler != nil {
		cm.handler.Disconnected(conn)
	}
	return true
}

// Broadcast queues an event for every connection of a room.
func (cm *ConnectionManager) Broadcast(roomCode string, event *events.Event) {
	cm.enqueue(BroadcastMessage{RoomCode: roomCode, Event: event})
}

// SendTo queues an event for the connections of one participant.
func (cm *ConnectionManager) SendTo(roomCode, participantID string, event *events.Event) {
	cm.enqueue(BroadcastMessage{RoomCode: roomCode, Event: event, ParticipantID: participantID})
}

// Reply queues an event for a single connection.
func (cm *ConnectionManager) Reply(conn *Connection, event *events.Event) {
	cm.enqueue(BroadcastMessage{Event: event, Target: conn})
}

func (cm *ConnectionManager) enqueue(message BroadcastMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		cm.dropped.Add(1)
		roomCode := message.RoomCode
		if roomCode == lobby {
			roomCode = message.Event.RoomCode
		}
		log.Error().
			Str("room_code", roomCode).
			Str("event_type", string(message.Event.Type)).
			Msg("broadcast channel full, dropping message")
		if roomCode != lobby {
			cm.resyncMu.Lock()
			cm.resync[roomCode] = struct{}{}
			cm.resyncMu.Unlock()
		}
	}
}

// flushResync asks every room that lost a message to re-broadcast its
// current snapshot. Runs on the broadcast goroutine.
func (cm *ConnectionManager) flushResync() {
	cm.resyncMu.Lock()
	if len(cm.resync) == 0 {
		cm.resyncMu.Unlock()
		return
	}
	pending := cm.resync
	cm.resync = make(map[string]struct{})
	cm.resyncMu.Unlock()

	if cm.resyncFn == nil {
		return
	}
	for roomCode := range pending {
		log.Info().Str("room_code", roomCode).Msg("resyncing room after dropped broadcast")
		cm.resyncFn(roomCode)
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// Sends happen under the read lock so a connection cannot be closed
	// mid-send; slow connections are dropped after releasing it.
	var slow []*Connection
	delivered := 0

	cm.mu.RLock()
	deliver := func(conn *Connection) {
		select {
		case conn.Send <- eventData:
			delivered++
		default:
			slow = append(slow, conn)
		}
	}
	if message.Target != nil {
		if cm.roomConnections[message.Target.roomCode][message.Target] {
			deliver(message.Target)
		}
	} else {
		for conn := range cm.roomConnections[message.RoomCode] {
			if message.ParticipantID != "" && conn.participantID != message.ParticipantID {
				continue
			}
			deliver(conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("room_code", message.RoomCode).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Str("room_code", message.RoomCode).
		Int("connections", delivered).
		Msg("event broadcasted")
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	total := 0
	roomCounts := make(map[string]int)
	for code, connections := range cm.roomConnections {
		total += len(connections)
		if code != lobby {
			roomCounts[code] = len(connections)
		}
	}

	return map[string]interface{}{
		"total_connections":  total,
		"active_rooms":       len(roomCounts),
		"room_connections":   roomCounts,
		"queued_broadcasts":  len(cm.broadcastCh),
		"dropped_broadcasts": cm.dropped.Load(),
	}
}

// CloseAll closes every connection.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, pool := range cm.roomConnections {
		for conn := range pool {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		conn.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Conn.Close()
	}
}

// writePump handles sending messages to the WebSocket connection
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
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
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

		if c.Manager.handler != nil {
			c.Manager.handler.HandleIntent(c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
