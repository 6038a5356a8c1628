package ws

import "github.com/google/uuid"

// Update is the tagged envelope sent to room subscribers:
// {"type": Variant, "data": ...}. Variants with no payload omit data.
type Update struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type PixelData struct {
	X             int16      `json:"x"`
	Y             int16      `json:"y"`
	Color         int16      `json:"color"`
	OwnerID       *uuid.UUID `json:"owner_id"`
	PriceLamports *uint64    `json:"price_lamports"`
}

func PixelUpdate(data PixelData) Update {
	return Update{Type: "Pixel", Data: data}
}

func PixelLocked(x, y int16, userID uuid.UUID) Update {
	return Update{Type: "PixelLocked", Data: map[string]any{"x": x, "y": y, "user_id": userID}}
}

func PixelUnlocked(x, y int16) Update {
	return Update{Type: "PixelUnlocked", Data: map[string]any{"x": x, "y": y}}
}

func PublishingStarted() Update {
	return Update{Type: "PublishingStarted"}
}

func Published(pda string) Update {
	return Update{Type: "Published", Data: map[string]any{"pda": pda}}
}

func PublishingFailed(reason string) Update {
	return Update{Type: "PublishingFailed", Data: map[string]any{"reason": reason}}
}

func MintingStarted() Update {
	return Update{Type: "MintingStarted"}
}

func Minted(mintAddress string) Update {
	return Update{Type: "Minted", Data: map[string]any{"mint_address": mintAddress}}
}

func MintingFailed(reason string) Update {
	return Update{Type: "MintingFailed", Data: map[string]any{"reason": reason}}
}

func MintCountdown(seconds uint8) Update {
	return Update{Type: "MintCountdown", Data: map[string]any{"seconds": seconds}}
}

func MintCountdownCancelled() Update {
	return Update{Type: "MintCountdownCancelled"}
}

func UserJoined(userID uuid.UUID) Update {
	return Update{Type: "UserJoined", Data: map[string]any{"user_id": userID}}
}

func UserLeft(userID uuid.UUID) Update {
	return Update{Type: "UserLeft", Data: map[string]any{"user_id": userID}}
}

func ConnectionCount(count int) Update {
	return Update{Type: "ConnectionCount", Data: map[string]any{"count": count}}
}

func Finalized() Update {
	return Update{Type: "Finalized"}
}

// ClientMessage is what subscribers may send upstream; only Ping is acted on.
type ClientMessage struct {
	Type string `json:"type"`
}
