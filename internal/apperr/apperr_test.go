package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindCodes_Stable(t *testing.T) {
	// These codes are the wire contract; changing one breaks every client.
	cases := map[Kind]int{
		KindInvalidParams:                -32602,
		KindInternal:                     -32603,
		KindMethodNotFound:               -32601,
		KindDatabase:                     -32070,
		KindCache:                        -32071,
		KindSerialization:                -32072,
		KindIO:                           -32080,
		KindRateLimit:                    -32081,
		KindUnauthorized:                 -32020,
		KindTokenExpired:                 -32021,
		KindInvalidSignature:             -32012,
		KindUserNotFound:                 -32011,
		KindUserExists:                   -32010,
		KindUsernameExists:               -32013,
		KindCanvasNotFound:               -32030,
		KindInvalidCanvasStateTransition: -32031,
		KindNotCanvasOwner:               -32034,
		KindNotCanvasCollaborator:        -32035,
		KindCanvasNameExists:             -32037,
		KindPixelLocked:                  -32040,
		KindBidTooLow:                    -32041,
		KindCooldownActive:               -32042,
		KindTransactionFailed:            -32060,
		KindSolanaRpc:                    -32061,
	}
	for kind, want := range cases {
		if got := kind.Code(); got != want {
			t.Errorf("Kind %d: code %d, want %d", kind, got, want)
		}
	}
}

func TestDatabase_ReclassifiesNameConflict(t *testing.T) {
	err := Database(fmt.Errorf(`duplicate key value violates unique constraint "canvases_name_key"`))
	if !errors.Is(err, CanvasNameExists) {
		t.Errorf("Expected CanvasNameExists. Got: %v", err)
	}

	plain := Database(fmt.Errorf("connection refused"))
	if plain.Kind != KindDatabase {
		t.Errorf("Unrelated DB errors keep their kind. Got: %d", plain.Kind)
	}
}

func TestUserMessage_NeverLeaksInternals(t *testing.T) {
	internal := Internalf("pgx: %s", "password authentication failed for user postgres")
	if msg := UserMessage(internal); msg != "Internal server error" {
		t.Errorf("Internal diagnostics leaked: %q", msg)
	}

	dbErr := Database(fmt.Errorf("relation does not exist"))
	if msg := UserMessage(dbErr); msg != "Database error" {
		t.Errorf("DB diagnostics leaked: %q", msg)
	}
}

func TestStructuredData(t *testing.T) {
	bid := BidTooLow(1_500_001)
	if bid.Data["min_lamports"] != uint64(1_500_001) {
		t.Errorf("BidTooLow data wrong: %+v", bid.Data)
	}

	cd := CooldownActive(3200)
	if cd.Data["remaining_ms"] != uint64(3200) {
		t.Errorf("CooldownActive data wrong: %+v", cd.Data)
	}
}

func TestFrom_WrapsUnknownErrors(t *testing.T) {
	wrapped := From(fmt.Errorf("boom"))
	if wrapped.Kind != KindInternal {
		t.Errorf("Unknown errors become internal. Got kind %d", wrapped.Kind)
	}

	// A wrapped *Error passes through unchanged.
	original := CanvasNotFound
	if got := From(fmt.Errorf("context: %w", original)); got.Kind != KindCanvasNotFound {
		t.Errorf("Wrapped app error lost its kind: %d", got.Kind)
	}
}
