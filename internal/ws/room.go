package ws

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const broadcastBufferSize = 256

// Subscriber is one receiver of a room's update stream. Dropped counts
// messages lost while the buffer was full; the reader drains it and keeps
// going rather than disconnecting.
type Subscriber struct {
	C       chan Update
	dropped atomic.Uint64
}

// Lagged returns and resets the number of updates dropped since the last
// call.
func (s *Subscriber) Lagged() uint64 {
	return s.dropped.Swap(0)
}

// Room is the broadcast fan-out for one canvas.
type Room struct {
	mu              sync.Mutex
	subscribers     map[*Subscriber]struct{}
	connectionCount atomic.Int64
	maxConnections  int64
}

func NewRoom(maxConnections int) *Room {
	return &Room{
		subscribers:    make(map[*Subscriber]struct{}),
		maxConnections: int64(maxConnections),
	}
}

func (r *Room) ConnectionCount() int {
	return int(r.connectionCount.Load())
}

// Subscribe reserves a connection slot via compare-and-swap and returns a
// fresh receiver, or nil when the room is full.
func (r *Room) Subscribe() *Subscriber {
	for {
		count := r.connectionCount.Load()
		if count >= r.maxConnections {
			return nil
		}
		if r.connectionCount.CompareAndSwap(count, count+1) {
			break
		}
		// Another connection raced us; retry against the new count.
	}

	sub := &Subscriber{C: make(chan Update, broadcastBufferSize)}
	r.mu.Lock()
	r.subscribers[sub] = struct{}{}
	r.mu.Unlock()
	return sub
}

// Unsubscribe releases the slot. Safe to call exactly once per Subscribe on
// any exit path.
func (r *Room) Unsubscribe(sub *Subscriber) {
	r.mu.Lock()
	delete(r.subscribers, sub)
	r.mu.Unlock()
	r.connectionCount.Add(-1)
}

// Broadcast delivers update to every subscriber without blocking; a full
// buffer records a drop instead of stalling the sender.
func (r *Room) Broadcast(update Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.subscribers {
		select {
		case sub.C <- update:
		default:
			sub.dropped.Add(1)
		}
	}
}

// Manager owns the per-canvas rooms, creating them lazily and removing them
// when the last subscriber leaves.
type Manager struct {
	mu             sync.RWMutex
	rooms          map[uuid.UUID]*Room
	maxConnections int
}

func NewManager(maxConnectionsPerRoom int) *Manager {
	return &Manager{
		rooms:          make(map[uuid.UUID]*Room),
		maxConnections: maxConnectionsPerRoom,
	}
}

func (m *Manager) GetOrCreateRoom(canvasID uuid.UUID) *Room {
	m.mu.RLock()
	room, ok := m.rooms[canvasID]
	m.mu.RUnlock()
	if ok {
		return room
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[canvasID]; ok {
		return room
	}
	room = NewRoom(m.maxConnections)
	m.rooms[canvasID] = room
	return room
}

// Broadcast sends update to the canvas's room if one exists. No subscribers
// means no room and nothing to do.
func (m *Manager) Broadcast(canvasID uuid.UUID, update Update) {
	m.mu.RLock()
	room, ok := m.rooms[canvasID]
	m.mu.RUnlock()
	if ok {
		room.Broadcast(update)
	}
}

// RemoveRoomIfEmpty drops the room once its connection count is back to zero.
// Checked under the write lock so a racing Subscribe cannot be orphaned.
func (m *Manager) RemoveRoomIfEmpty(canvasID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[canvasID]; ok && room.ConnectionCount() == 0 {
		delete(m.rooms, canvasID)
	}
}
