package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connect-hub/backend/internal/capacity"
)

func testClient(eventID uuid.UUID) *Client {
	return &Client{ID: uuid.NewString(), EventID: eventID, send: make(chan WSMessage, 4)}
}

func decodeCapacity(t *testing.T, msg WSMessage) CapacityMessage {
	t.Helper()
	var out CapacityMessage
	require.NoError(t, json.Unmarshal(msg.Data, &out))
	return out
}

func TestPublishCapacityLocal(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	watcher := testClient(eventID)
	other := testClient(uuid.New())
	hub.Register(watcher)
	hub.Register(other)

	limit := 3
	hub.PublishCapacity(eventID, capacity.Availability{Taken: 3, Capacity: &limit, IsFull: true})

	require.Len(t, watcher.send, 1)
	msg := <-watcher.send
	assert.Equal(t, EventCapacityChanged, msg.Event)
	got := decodeCapacity(t, msg)
	assert.Equal(t, eventID, got.EventID)
	assert.True(t, got.IsFull)
	assert.Empty(t, other.send)
}

func TestUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	c := testClient(eventID)
	hub.Register(c)
	assert.Equal(t, 1, hub.Watchers(eventID))
	hub.Unregister(c)
	assert.Zero(t, hub.Watchers(eventID))

	hub.PublishCapacity(eventID, capacity.Availability{Unbounded: true})
	assert.Empty(t, c.send)
}

func TestBroadcastDropsForSlowClient(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	c := testClient(eventID)
	hub.Register(c)
	for i := 0; i < cap(c.send)+3; i++ {
		hub.Broadcast(eventID, EventCapacityChanged, map[string]int{"i": i})
	}
	assert.Len(t, c.send, cap(c.send))
}

type fakeRedis struct {
	mu       sync.Mutex
	handlers map[uuid.UUID]func(string, []byte)
	fail     bool
}

func (f *fakeRedis) PublishEventMessage(eventID uuid.UUID, event string, payload []byte) error {
	if f.fail {
		return errors.New("redis down")
	}
	f.mu.Lock()
	h := f.handlers[eventID]
	f.mu.Unlock()
	if h != nil {
		h(event, payload)
	}
	return nil
}

func (f *fakeRedis) SubscribeEvent(eventID uuid.UUID, handler func(string, []byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[uuid.UUID]func(string, []byte))
	}
	f.handlers[eventID] = handler
	return func() {
		f.mu.Lock()
		delete(f.handlers, eventID)
		f.mu.Unlock()
	}, nil
}

func TestPublishThroughRedisDeliversOnce(t *testing.T) {
	r := &fakeRedis{}
	hub := NewHub(nil, r, r)
	eventID := uuid.New()
	c := testClient(eventID)
	hub.Register(c)

	hub.PublishCapacity(eventID, capacity.Availability{Taken: 1, Unbounded: true})
	require.Len(t, c.send, 1)
	assert.Equal(t, 1, decodeCapacity(t, <-c.send).Taken)

	hub.Unregister(c)
	r.mu.Lock()
	assert.Empty(t, r.handlers)
	r.mu.Unlock()
}

func TestPublishFallsBackToLocalWhenRedisFails(t *testing.T) {
	r := &fakeRedis{fail: true}
	hub := NewHub(nil, r, r)
	eventID := uuid.New()
	c := testClient(eventID)
	hub.Register(c)

	hub.PublishCapacity(eventID, capacity.Availability{Taken: 2, Unbounded: true})
	require.Len(t, c.send, 1)
	assert.Equal(t, 2, decodeCapacity(t, <-c.send).Taken)
}
