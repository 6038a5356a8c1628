package nft

import (
	"testing"

	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/pkg/models"
)

func sumShares(creators []Creator) int {
	total := 0
	for _, c := range creators {
		total += int(c.Share)
	}
	return total
}

func TestComputeCreatorShares_NoClaimers(t *testing.T) {
	ownerID := uuid.New()

	creators := ComputeCreatorShares(ownerID, "owner_wallet", nil, nil)

	if len(creators) != 1 {
		t.Fatalf("Expected only the owner. Got %d creators", len(creators))
	}
	if creators[0].Share != 100 {
		t.Errorf("Owner should take the full 100. Got: %d", creators[0].Share)
	}
}

func TestComputeCreatorShares_ProportionalSplit(t *testing.T) {
	ownerID := uuid.New()
	a, b := uuid.New(), uuid.New()

	// A staked 3x what B did; 90 points split 3:1.
	top := []models.PixelOwnerTotal{
		{OwnerID: a, TotalLamports: 3_000_000},
		{OwnerID: b, TotalLamports: 1_000_000},
	}
	wallets := map[uuid.UUID]string{a: "wallet_a", b: "wallet_b"}

	creators := ComputeCreatorShares(ownerID, "owner_wallet", top, wallets)

	if len(creators) != 3 {
		t.Fatalf("Expected owner + 2 claimers. Got %d", len(creators))
	}
	if creators[0].Address != "owner_wallet" {
		t.Errorf("Owner must be the first creator. Got: %s", creators[0].Address)
	}
	if creators[1].Share != 68 { // round(0.75*90) = 68
		t.Errorf("Expected 68 for the dominant claimer. Got: %d", creators[1].Share)
	}
	if creators[2].Share != 23 { // round(0.25*90) = 23
		t.Errorf("Expected 23 for the minor claimer. Got: %d", creators[2].Share)
	}
	// 68+23 = 91, so the owner absorbs -1: 10-1 = 9.
	if creators[0].Share != 9 {
		t.Errorf("Owner should absorb the rounding residual (9). Got: %d", creators[0].Share)
	}
	if sumShares(creators) != 100 {
		t.Errorf("Shares must sum to exactly 100. Got: %d", sumShares(creators))
	}
}

func TestComputeCreatorShares_OwnerIsTopClaimer(t *testing.T) {
	ownerID := uuid.New()

	// The owner outbidding on their own canvas gets no extra creator entry;
	// their stake still dilutes the others' proportion.
	other := uuid.New()
	top := []models.PixelOwnerTotal{
		{OwnerID: ownerID, TotalLamports: 1_000_000},
		{OwnerID: other, TotalLamports: 1_000_000},
	}
	wallets := map[uuid.UUID]string{other: "wallet_other"}

	creators := ComputeCreatorShares(ownerID, "owner_wallet", top, wallets)

	if len(creators) != 2 {
		t.Fatalf("Expected owner + 1 claimer. Got %d", len(creators))
	}
	if sumShares(creators) != 100 {
		t.Errorf("Shares must sum to exactly 100. Got: %d", sumShares(creators))
	}
}

func TestComputeCreatorShares_OwnerOnlyClaimer(t *testing.T) {
	ownerID := uuid.New()
	top := []models.PixelOwnerTotal{{OwnerID: ownerID, TotalLamports: 5_000_000}}

	creators := ComputeCreatorShares(ownerID, "owner_wallet", top, nil)

	// Base drops to 10 but the adjustment hands the 90 back.
	if len(creators) != 1 || creators[0].Share != 100 {
		t.Errorf("Sole-claimer owner should end at 100. Got: %+v", creators)
	}
}
