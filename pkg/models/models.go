package models

import (
	"time"

	"github.com/google/uuid"
)

// CanvasState is the lifecycle state of a canvas. Transitions are validated
// by ValidTransition and enforced under a row lock in the canvas repository.
type CanvasState string

const (
	CanvasDraft       CanvasState = "draft"
	CanvasPublishing  CanvasState = "publishing"
	CanvasPublished   CanvasState = "published"
	CanvasMintPending CanvasState = "mint_pending"
	CanvasMinting     CanvasState = "minting"
	CanvasMinted      CanvasState = "minted"
)

// ValidTransition reports whether moving from s to target is a legal edge of
// the lifecycle state machine.
func (s CanvasState) ValidTransition(target CanvasState) bool {
	switch s {
	case CanvasDraft:
		return target == CanvasPublishing
	case CanvasPublishing:
		// Forward on confirmed publish, back to draft on failure/cancel.
		return target == CanvasPublished || target == CanvasDraft
	case CanvasPublished:
		return target == CanvasMintPending
	case CanvasMintPending:
		return target == CanvasMinting || target == CanvasPublished
	case CanvasMinting:
		return target == CanvasMinted || target == CanvasPublished
	}
	return false
}

type User struct {
	ID            uuid.UUID `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	Username      *string   `json:"username"`
	CreatedAt     time.Time `json:"created_at"`
}

type Canvas struct {
	ID            uuid.UUID   `json:"id"`
	OwnerID       uuid.UUID   `json:"owner_id"`
	Name          string      `json:"name"`
	InviteCode    string      `json:"invite_code"`
	State         CanvasState `json:"state"`
	CanvasPDA     *string     `json:"canvas_pda"`
	MintAddress   *string     `json:"mint_address"`
	TotalEscrowed int64       `json:"total_escrowed"`
	CreatedAt     time.Time   `json:"created_at"`
	PublishedAt   *time.Time  `json:"published_at"`
	MintedAt      *time.Time  `json:"minted_at"`
}

type Pixel struct {
	CanvasID      uuid.UUID  `json:"canvas_id"`
	X             int16      `json:"x"`
	Y             int16      `json:"y"`
	Color         int16      `json:"color"`
	OwnerID       *uuid.UUID `json:"owner_id"`
	PriceLamports int64      `json:"price_lamports"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Collaborator struct {
	CanvasID uuid.UUID `json:"canvas_id"`
	UserID   uuid.UUID `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// PixelOwnerTotal is one row of the top-claimers aggregate used for NFT
// creator share computation.
type PixelOwnerTotal struct {
	OwnerID       uuid.UUID
	TotalLamports int64
}
