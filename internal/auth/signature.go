package auth

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rawblock/pixel-archives/internal/apperr"
	"github.com/rawblock/pixel-archives/internal/cache"
)

// MessageValiditySecs bounds the clock skew accepted on auth messages.
const MessageValiditySecs = 300

// nonceTTL keeps consumed nonces around past the validity window so a replay
// at the edge of the window still hits the key.
const nonceTTL = (MessageValiditySecs + 60) * time.Second

// AuthMessage is the parsed form of "pixel:{wallet}:{timestamp}:{nonce}".
type AuthMessage struct {
	Wallet    string
	Timestamp uint64
	Nonce     string
}

// ParseAuthMessage validates the message shape and timestamp freshness.
func ParseAuthMessage(message string) (*AuthMessage, error) {
	parts := strings.Split(message, ":")
	if len(parts) != 4 || parts[0] != "pixel" {
		return nil, apperr.InvalidSignature
	}

	timestamp, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return nil, apperr.InvalidSignature
	}

	now := uint64(time.Now().Unix())
	diff := now - timestamp
	if timestamp > now {
		diff = timestamp - now
	}
	if diff > MessageValiditySecs {
		return nil, apperr.InvalidSignature
	}

	return &AuthMessage{Wallet: parts[1], Timestamp: timestamp, Nonce: parts[3]}, nil
}

// ValidateWalletAddress checks the wallet is base58 of a 32-byte key.
func ValidateWalletAddress(wallet string) error {
	key, err := solana.PublicKeyFromBase58(wallet)
	if err != nil || key.IsZero() {
		return apperr.InvalidParams("Invalid wallet address format")
	}
	return nil
}

// VerifySignature checks the ed25519 signature of the message bytes against
// the wallet's public key. Every failure mode maps to InvalidSignature.
func VerifySignature(wallet, message, signature string) error {
	pubkey, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return apperr.InvalidSignature
	}
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return apperr.InvalidSignature
	}
	if !sig.Verify(pubkey, []byte(message)) {
		return apperr.InvalidSignature
	}
	return nil
}

// CheckAndConsumeNonce burns the nonce via SETNX; an already-present key
// means a replay.
func CheckAndConsumeNonce(ctx context.Context, remote cache.RemoteStore, wallet, nonce string) error {
	key := cache.AuthNonceKey(wallet, nonce)
	fresh, err := remote.SetNX(ctx, key, nonceTTL)
	if err != nil {
		return err
	}
	if !fresh {
		return apperr.InvalidSignature
	}
	return nil
}

// RemainingTTL returns the duration until exp, or false if it already
// passed.
func RemainingTTL(exp time.Time) (time.Duration, bool) {
	remaining := time.Until(exp)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}
