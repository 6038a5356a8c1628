package nft

import (
	"math"

	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/pkg/models"
)

type Creator struct {
	Address string `json:"address"`
	Share   uint8  `json:"share"`
}

const (
	ownerFullShare = 100
	ownerBaseShare = 10
	topClaimers    = 4
)

// ComputeCreatorShares splits the royalty between the canvas owner and the
// top pixel claimers. The owner takes everything when nobody claimed pixels,
// otherwise a 10-point base. Each other claimer gets round(stake / total * 90),
// where total sums every top claimer's stake, the owner's included. Whatever
// those entries do not use (the owner's own proportion, claimers without a
// known wallet, rounding residual) lands on the owner so the shares always
// sum to exactly 100.
func ComputeCreatorShares(ownerID uuid.UUID, ownerWallet string, top []models.PixelOwnerTotal, wallets map[uuid.UUID]string) []Creator {
	base := uint8(ownerFullShare)
	if len(top) > 0 {
		base = ownerBaseShare
	}
	remaining := ownerFullShare - base

	var totalInvested int64
	for _, t := range top {
		totalInvested += t.TotalLamports
	}

	creators := []Creator{{Address: ownerWallet, Share: base}}

	for _, t := range top {
		if t.OwnerID == ownerID {
			continue
		}
		wallet, ok := wallets[t.OwnerID]
		if !ok {
			continue
		}
		var share uint8
		if totalInvested > 0 {
			share = uint8(math.Round(float64(t.TotalLamports) / float64(totalInvested) * float64(remaining)))
		}
		if share > 0 {
			creators = append(creators, Creator{Address: wallet, Share: share})
		}
	}

	var total int
	for _, c := range creators {
		total += int(c.Share)
	}
	if total != ownerFullShare {
		adjusted := int(creators[0].Share) + (ownerFullShare - total)
		if adjusted < 1 {
			adjusted = 1
		}
		creators[0].Share = uint8(adjusted)
	}
	return creators
}
