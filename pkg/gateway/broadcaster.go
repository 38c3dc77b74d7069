package gateway

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// EventBroadcaster fans events out to authenticated clients. Every event
// carries the next sequence number. The latest session event is kept so a
// client that authenticates later starts from the current state.
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
	seq     atomic.Int64

	mu          sync.Mutex
	lastSession []byte
}

// NewEventBroadcaster creates a broadcaster over clients
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{clients: clients, logger: logger}
}

// Broadcast sends an untyped event
func (b *EventBroadcaster) Broadcast(event string, data interface{}) {
	b.Publish(EventMessage{Event: event, Data: data})
}

// Publish stamps msg with type, sequence and timestamp and sends it.
func (b *EventBroadcaster) Publish(msg EventMessage) {
	msg.Type = "event"
	if msg.Seq == 0 {
		msg.Seq = b.seq.Add(1)
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().Err(err).Str("event", msg.Event).Int64("seq", msg.Seq).Msg("Failed to marshal event")
		return
	}

	if msg.Stream == StreamTypeSession {
		b.mu.Lock()
		b.lastSession = frame
		b.mu.Unlock()
	}

	sent := 0
	for _, client := range b.clients.Recipients() {
		if err := client.WriteMessage(websocket.TextMessage, frame); err != nil {
			// The read loop notices the closed conn and unregisters the client
			b.logger.Warn().Err(err).Str("clientId", client.ID).Str("event", msg.Event).Msg("Dropping client after failed write")
			_ = client.Conn.Close()
			continue
		}
		sent++
	}

	b.logger.Debug().
		Str("event", msg.Event).
		Str("stream", string(msg.Stream)).
		Int64("seq", msg.Seq).
		Int("recipients", sent).
		Msg("Event broadcast")
}

// Replay sends the latest session event to one client, if there is one.
func (b *EventBroadcaster) Replay(client *Client) error {
	b.mu.Lock()
	frame := b.lastSession
	b.mu.Unlock()

	if frame == nil {
		return nil
	}
	return client.WriteMessage(websocket.TextMessage, frame)
}
