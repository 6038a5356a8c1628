package pixel

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/internal/apperr"
	"github.com/rawblock/pixel-archives/internal/cache"
)

// Pixel locks are SETNX keys whose value is the holder's user id; cooldowns
// are the user's last-paint time in ms since epoch. Both self-expire.

func nowMs() uint64 {
	return uint64(time.Now().UnixMilli())
}

// assertNotLockedByOther passes when the pixel is unlocked or locked by the
// caller themselves.
func assertNotLockedByOther(ctx context.Context, remote cache.RemoteStore, canvasID uuid.UUID, x, y int16, userID uuid.UUID) error {
	holder, held, err := remote.GetString(ctx, cache.PixelLockKey(canvasID, x, y))
	if err != nil {
		return err
	}
	if held && holder != userID.String() {
		return apperr.PixelLocked
	}
	return nil
}

// assertLockOwned requires an existing lock held by the caller.
func assertLockOwned(ctx context.Context, remote cache.RemoteStore, canvasID uuid.UUID, x, y int16, userID uuid.UUID) error {
	holder, held, err := remote.GetString(ctx, cache.PixelLockKey(canvasID, x, y))
	if err != nil {
		return err
	}
	if !held {
		return apperr.InvalidParams("No pending bid for this pixel")
	}
	if holder != userID.String() {
		return apperr.InvalidParams("This pixel is locked by another user")
	}
	return nil
}

func acquirePixelLock(ctx context.Context, remote cache.RemoteStore, canvasID uuid.UUID, x, y int16, userID uuid.UUID, ttl time.Duration) (bool, error) {
	return remote.SetNXValue(ctx, cache.PixelLockKey(canvasID, x, y), userID.String(), ttl)
}

func releasePixelLock(ctx context.Context, remote cache.RemoteStore, canvasID uuid.UUID, x, y int16) error {
	return remote.Delete(ctx, cache.PixelLockKey(canvasID, x, y))
}

// checkCooldown fails with the remaining wait when the user painted less
// than cooldownMs ago.
func checkCooldown(ctx context.Context, remote cache.RemoteStore, userID uuid.UUID, cooldownMs uint64) error {
	var last uint64
	found, err := remote.GetJSON(ctx, cache.CooldownKey(userID), &last)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	now := nowMs()
	if now < last {
		// Clock skew across replicas; treat as freshly painted.
		return apperr.CooldownActive(cooldownMs)
	}
	elapsed := now - last
	if elapsed < cooldownMs {
		return apperr.CooldownActive(cooldownMs - elapsed)
	}
	return nil
}

// recordCooldown stamps the user's last paint time with TTL = cooldown.
func recordCooldown(ctx context.Context, remote cache.RemoteStore, userID uuid.UUID, cooldownMs uint64) error {
	ttl := time.Duration(cooldownMs) * time.Millisecond
	return remote.SetJSON(ctx, cache.CooldownKey(userID), nowMs(), ttl)
}
