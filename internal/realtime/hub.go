package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/connect-hub/backend/internal/capacity"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second

	// EventCapacityChanged is sent after every change to an event's signups.
	EventCapacityChanged = "capacity_changed"
	// EventCapacitySnapshot is sent once to a client right after it connects.
	EventCapacitySnapshot = "capacity_snapshot"
)

// CapacityMessage is the payload of capacity events.
type CapacityMessage struct {
	EventID   uuid.UUID `json:"event_id"`
	Taken     int       `json:"taken"`
	Capacity  *int      `json:"capacity,omitempty"`
	Available int       `json:"available"`
	Unbounded bool      `json:"unbounded"`
	IsFull    bool      `json:"is_full"`
}

// NewCapacityMessage builds the wire form of a.
func NewCapacityMessage(eventID uuid.UUID, a capacity.Availability) CapacityMessage {
	return CapacityMessage{
		EventID:   eventID,
		Taken:     a.Taken,
		Capacity:  a.Capacity,
		Available: a.Available,
		Unbounded: a.Unbounded,
		IsFull:    a.IsFull,
	}
}

// Hub maintains event_id -> set of connections and broadcasts messages.
// With Redis configured every message goes through the event's channel so
// all instances, this one included, deliver it exactly once.
type Hub struct {
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func()
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishEventMessage(eventID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to event channels and invokes handler for incoming messages.
type RedisSubscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. redisPub and redisSub may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to an event room. Starts the Redis subscription for the event on first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.EventID] == nil {
		h.rooms[c.EventID] = make(map[string]*Client)
		if h.redisSub != nil {
			eventID := c.EventID
			cancel, err := h.redisSub.SubscribeEvent(eventID, func(event string, payload []byte) {
				h.Broadcast(eventID, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("redis subscribe failed", zap.Error(err), zap.String("event_id", eventID.String()))
			} else {
				h.subs[eventID] = cancel
			}
		}
	}
	h.rooms[c.EventID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined event feed", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Unregister removes a client from its room. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.EventID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.EventID)
			if cancel, ok := h.subs[c.EventID]; ok {
				cancel()
				delete(h.subs, c.EventID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left event feed", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()))
}

// Broadcast sends a message to all local clients watching an event.
func (h *Hub) Broadcast(eventID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			// slow consumer; drop
		}
	}
}

// Publish delivers a message to every instance. Without Redis it broadcasts locally.
func (h *Hub) Publish(eventID uuid.UUID, event string, payload interface{}) {
	if h.redis == nil {
		h.Broadcast(eventID, event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := h.redis.PublishEventMessage(eventID, event, data); err != nil {
		h.logger.Warn("redis publish failed, broadcasting locally", zap.Error(err), zap.String("event_id", eventID.String()))
		h.Broadcast(eventID, event, json.RawMessage(data))
	}
}

// PublishCapacity implements capacity.Publisher.
func (h *Hub) PublishCapacity(eventID uuid.UUID, a capacity.Availability) {
	h.Publish(eventID, EventCapacityChanged, NewCapacityMessage(eventID, a))
}

// Watchers returns the number of local clients watching an event.
func (h *Hub) Watchers(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}
