package canvas

import (
	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/pkg/models"
)

type Info struct {
	ID            uuid.UUID          `json:"id"`
	Name          string             `json:"name"`
	InviteCode    string             `json:"invite_code"`
	State         models.CanvasState `json:"state"`
	OwnerID       uuid.UUID          `json:"owner_id"`
	CanvasPDA     *string            `json:"canvas_pda"`
	MintAddress   *string            `json:"mint_address"`
	TotalEscrowed int64              `json:"total_escrowed"`
}

func InfoFrom(c models.Canvas) Info {
	return Info{
		ID:            c.ID,
		Name:          c.Name,
		InviteCode:    c.InviteCode,
		State:         c.State,
		OwnerID:       c.OwnerID,
		CanvasPDA:     c.CanvasPDA,
		MintAddress:   c.MintAddress,
		TotalEscrowed: c.TotalEscrowed,
	}
}

type OwnedPixelInfo struct {
	X             int16  `json:"x"`
	Y             int16  `json:"y"`
	OwnerID       string `json:"owner_id"`
	PriceLamports int64  `json:"price_lamports"`
}

// CachedPixelData is the remote-KV snapshot: the full color buffer base64
// encoded plus the owned-pixel list.
type CachedPixelData struct {
	PixelColors string           `json:"pixel_colors"`
	OwnedPixels []OwnedPixelInfo `json:"owned_pixels"`
}

type WithPixels struct {
	Canvas      Info             `json:"canvas"`
	PixelColors string           `json:"pixel_colors"`
	OwnedPixels []OwnedPixelInfo `json:"owned_pixels"`
}

type UserCanvases struct {
	Owned         []Info `json:"owned"`
	Collaborating []Info `json:"collaborating"`
}

type JoinResult struct {
	CanvasID      uuid.UUID `json:"canvas_id"`
	AlreadyMember bool      `json:"already_member"`
}

// PublishTransactionInfo is the envelope the owner signs and submits
// on-chain to create the canvas account.
type PublishTransactionInfo struct {
	CanvasID          uuid.UUID `json:"canvas_id"`
	CanvasPDA         string    `json:"canvas_pda"`
	ConfigPDA         string    `json:"config_pda"`
	ProgramID         string    `json:"program_id"`
	Blockhash         string    `json:"blockhash"`
	CanvasIDBytes     [16]byte  `json:"canvas_id_bytes"`
	PixelColorsPacked string    `json:"pixel_colors_packed"`
}
