package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MessageType defines the type of feed message.
type MessageType string

const (
	// MessageTypeRecord indicates a record was created, updated, or deleted.
	MessageTypeRecord MessageType = "record_update"

	// MessageTypeSync indicates a sync push completed.
	MessageTypeSync MessageType = "sync_complete"
)

// Message is one feed broadcast.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// RecordChangeData describes a single record mutation.
type RecordChangeData struct {
	Table  string `json:"table"`
	Action string `json:"action"` // created, updated, deleted
	ID     string `json:"id"`
}

// Feed broadcasts state changes to connected WebSocket clients. It
// satisfies state.EventSink so the collections can publish through it
// without knowing about the transport.
type Feed struct {
	logger *log.Logger

	clients   map[*websocket.Conn]struct{}
	clientsMu sync.Mutex

	broadcast chan Message
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewFeed creates a stopped feed; call Start before publishing.
func NewFeed(logger *log.Logger) *Feed {
	return &Feed{
		logger:    logger,
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan Message, 64),
		done:      make(chan struct{}),
	}
}

// Start launches the broadcast loop.
func (f *Feed) Start() {
	f.wg.Add(1)
	go f.run()
}

// Stop closes every client and ends the broadcast loop.
func (f *Feed) Stop() {
	close(f.done)
	f.wg.Wait()

	f.clientsMu.Lock()
	for conn := range f.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	f.clients = make(map[*websocket.Conn]struct{})
	f.clientsMu.Unlock()
}

// RecordChanged implements state.EventSink.
func (f *Feed) RecordChanged(table, action, id string) {
	data, err := json.Marshal(RecordChangeData{Table: table, Action: action, ID: id})
	if err != nil {
		return
	}
	f.Publish(Message{Type: MessageTypeRecord, Timestamp: time.Now(), Data: data})
}

// Publish queues a message for broadcast; drops it when the feed is
// saturated rather than blocking a mutation.
func (f *Feed) Publish(msg Message) {
	select {
	case f.broadcast <- msg:
	default:
		f.logger.Printf("feed saturated, dropped %s message", msg.Type)
	}
}

// AddClient registers a connection and blocks reading it until it closes.
func (f *Feed) AddClient(ctx context.Context, conn *websocket.Conn) {
	f.clientsMu.Lock()
	f.clients[conn] = struct{}{}
	count := len(f.clients)
	f.clientsMu.Unlock()
	f.logger.Printf("feed client connected (%d total)", count)

	// Clients only listen; read until error to notice the close.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	f.clientsMu.Lock()
	delete(f.clients, conn)
	f.clientsMu.Unlock()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (f *Feed) run() {
	defer f.wg.Done()
	for {
		select {
		case <-f.done:
			return
		case msg := <-f.broadcast:
			f.send(msg)
		}
	}
}

func (f *Feed) send(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		f.logger.Printf("failed to marshal feed message: %v", err)
		return
	}

	f.clientsMu.Lock()
	conns := make([]*websocket.Conn, 0, len(f.clients))
	for conn := range f.clients {
		conns = append(conns, conn)
	}
	f.clientsMu.Unlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			f.clientsMu.Lock()
			delete(f.clients, conn)
			f.clientsMu.Unlock()
			_ = conn.Close(websocket.StatusAbnormalClosure, "write failed")
		}
		cancel()
	}
}
