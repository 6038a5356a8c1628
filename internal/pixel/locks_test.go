package pixel

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/internal/apperr"
)

type fakeStore struct {
	values map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: make(map[string]string)}
}

func (f *fakeStore) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	raw, ok := f.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(raw), dst)
}

func (f *fakeStore) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.values[key] = string(raw)
	return nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = "true"
	return true, nil
}

func (f *fakeStore) SetNXValue(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value
	return true, nil
}

func (f *fakeStore) GetString(_ context.Context, key string) (string, bool, error) {
	val, ok := f.values[key]
	return val, ok, nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	delete(f.values, key)
	return nil
}

func TestPixelLock_ExactlyOneWinner(t *testing.T) {
	// Two bidders race for (0,0); the SETNX semantics guarantee a single
	// winner and the loser sees the lock held.
	store := newFakeStore()
	ctx := context.Background()
	canvasID := uuid.New()
	alice, bob := uuid.New(), uuid.New()

	acquired, err := acquirePixelLock(ctx, store, canvasID, 0, 0, alice, time.Second)
	if err != nil || !acquired {
		t.Fatalf("Alice should acquire the lock. acquired=%v err=%v", acquired, err)
	}

	acquired, err = acquirePixelLock(ctx, store, canvasID, 0, 0, bob, time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if acquired {
		t.Error("Bob should lose the race on a held lock")
	}

	// Bob's state checks see Alice's lock.
	if err := assertNotLockedByOther(ctx, store, canvasID, 0, 0, bob); !errors.Is(err, apperr.PixelLocked) {
		t.Errorf("Expected PixelLocked for Bob. Got: %v", err)
	}
	if err := assertNotLockedByOther(ctx, store, canvasID, 0, 0, alice); err != nil {
		t.Errorf("Holder should pass the lock check. Got: %v", err)
	}
}

func TestAssertLockOwned(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	canvasID := uuid.New()
	alice, bob := uuid.New(), uuid.New()

	// No lock at all: no pending bid.
	err := assertLockOwned(ctx, store, canvasID, 3, 4, alice)
	if err == nil {
		t.Fatal("Expected an error with no lock present")
	}

	if _, err := acquirePixelLock(ctx, store, canvasID, 3, 4, alice, time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := assertLockOwned(ctx, store, canvasID, 3, 4, alice); err != nil {
		t.Errorf("Holder should own the lock. Got: %v", err)
	}
	if err := assertLockOwned(ctx, store, canvasID, 3, 4, bob); err == nil {
		t.Error("Non-holder should not own the lock")
	}

	// After release, the pending bid is gone.
	if err := releasePixelLock(ctx, store, canvasID, 3, 4); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := assertLockOwned(ctx, store, canvasID, 3, 4, alice); err == nil {
		t.Error("Released lock should no longer be owned")
	}
}

func TestCooldown_RemainingWithinBound(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	userID := uuid.New()
	const cooldownMs = 5000

	// No prior paint: free to go.
	if err := checkCooldown(ctx, store, userID, cooldownMs); err != nil {
		t.Fatalf("Fresh user should have no cooldown: %v", err)
	}

	if err := recordCooldown(ctx, store, userID, cooldownMs); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	err := checkCooldown(ctx, store, userID, cooldownMs)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindCooldownActive {
		t.Fatalf("Expected CooldownActive. Got: %v", err)
	}

	remaining, ok := appErr.Data["remaining_ms"].(uint64)
	if !ok {
		t.Fatalf("Expected remaining_ms in error data. Got: %+v", appErr.Data)
	}
	if remaining == 0 || remaining > cooldownMs {
		t.Errorf("remaining_ms must be in (0, %d]. Got: %d", cooldownMs, remaining)
	}
}

func TestCooldown_DistinctUsersIndependent(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	if err := recordCooldown(ctx, store, alice, 5000); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := checkCooldown(ctx, store, bob, 5000); err != nil {
		t.Errorf("Bob should be unaffected by Alice's cooldown: %v", err)
	}
}
