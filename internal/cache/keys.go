package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// Key builders for every remote-KV entry the service writes. Keeping them in
// one place is what makes the cascade deletes on canvas removal auditable.

func CanvasPixelsKey(canvasID uuid.UUID) string {
	return fmt.Sprintf("canvas:%s:pixels", canvasID)
}

func CanvasLockKey(canvasID uuid.UUID) string {
	return fmt.Sprintf("lock:canvas:%s", canvasID)
}

func PixelLockKey(canvasID uuid.UUID, x, y int16) string {
	return fmt.Sprintf("lock:pixel:%s:%d:%d", canvasID, x, y)
}

func CooldownKey(userID uuid.UUID) string {
	return fmt.Sprintf("cooldown:%s", userID)
}

func UserSessionKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:session:%s", userID)
}

func TokenBlacklistKey(jti string) string {
	return fmt.Sprintf("token:blacklist:%s", jti)
}

func AuthNonceKey(wallet, nonce string) string {
	return fmt.Sprintf("auth:nonce:%s:%s", wallet, nonce)
}
