package ws

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestRoom_SubscribeBoundedByMaxConnections(t *testing.T) {
	room := NewRoom(2)

	first := room.Subscribe()
	second := room.Subscribe()
	if first == nil || second == nil {
		t.Fatal("First two subscriptions should succeed")
	}

	if sub := room.Subscribe(); sub != nil {
		t.Error("Third subscription should be rejected when the room is full")
	}

	// Releasing a slot reopens the room.
	room.Unsubscribe(first)
	if sub := room.Subscribe(); sub == nil {
		t.Error("Subscription after release should succeed")
	}
}

func TestRoom_ConcurrentSubscribeNeverOvershoots(t *testing.T) {
	// 50 goroutines race for 10 slots; the CAS loop must hand out exactly 10.
	room := NewRoom(10)

	var wg sync.WaitGroup
	results := make(chan *Subscriber, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- room.Subscribe()
		}()
	}
	wg.Wait()
	close(results)

	granted := 0
	for sub := range results {
		if sub != nil {
			granted++
		}
	}
	if granted != 10 {
		t.Errorf("Expected exactly 10 granted slots. Got: %d", granted)
	}
	if room.ConnectionCount() != 10 {
		t.Errorf("Expected connection count 10. Got: %d", room.ConnectionCount())
	}
}

func TestRoom_BroadcastDropsInsteadOfBlocking(t *testing.T) {
	room := NewRoom(5)
	sub := room.Subscribe()

	// Overfill the buffer: the excess must be counted, not block the sender.
	for i := 0; i < broadcastBufferSize+7; i++ {
		room.Broadcast(ConnectionCount(i))
	}

	if lagged := sub.Lagged(); lagged != 7 {
		t.Errorf("Expected 7 dropped updates. Got: %d", lagged)
	}
	// Lagged resets after reading.
	if lagged := sub.Lagged(); lagged != 0 {
		t.Errorf("Lagged should reset to 0. Got: %d", lagged)
	}
	if len(sub.C) != broadcastBufferSize {
		t.Errorf("Buffer should hold %d updates. Got: %d", broadcastBufferSize, len(sub.C))
	}
}

func TestRoom_UnsubscribedReceiverGetsNothing(t *testing.T) {
	room := NewRoom(5)
	sub := room.Subscribe()
	room.Unsubscribe(sub)

	room.Broadcast(Finalized())

	if len(sub.C) != 0 {
		t.Error("Unsubscribed receiver should not receive broadcasts")
	}
}

func TestManager_RemoveRoomIfEmpty(t *testing.T) {
	manager := NewManager(5)
	canvasID := uuid.New()

	room := manager.GetOrCreateRoom(canvasID)
	sub := room.Subscribe()

	// Occupied rooms survive removal attempts.
	manager.RemoveRoomIfEmpty(canvasID)
	if got := manager.GetOrCreateRoom(canvasID); got != room {
		t.Error("Occupied room should not be removed")
	}

	room.Unsubscribe(sub)
	manager.RemoveRoomIfEmpty(canvasID)
	if got := manager.GetOrCreateRoom(canvasID); got == room {
		t.Error("Empty room should have been removed and recreated fresh")
	}
}

func TestManager_BroadcastWithoutRoomIsNoop(t *testing.T) {
	manager := NewManager(5)
	// Must not panic or create a room.
	manager.Broadcast(uuid.New(), Finalized())

	if len(manager.rooms) != 0 {
		t.Errorf("Broadcast without a room should not create one. Got %d rooms", len(manager.rooms))
	}
}
