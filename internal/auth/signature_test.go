package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"

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

func signedAuthMessage(t *testing.T) (wallet, message, signature string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("key generation failed: %v", err)
	}
	wallet = solana.PublicKeyFromBytes(pub).String()
	message = fmt.Sprintf("pixel:%s:%d:nonce-123", wallet, time.Now().Unix())

	var sig solana.Signature
	copy(sig[:], ed25519.Sign(priv, []byte(message)))
	return wallet, message, sig.String()
}

func TestParseAuthMessage_ValidShape(t *testing.T) {
	now := time.Now().Unix()
	msg, err := ParseAuthMessage(fmt.Sprintf("pixel:some_wallet:%d:abc", now))
	if err != nil {
		t.Fatalf("Expected valid message. Got error: %v", err)
	}
	if msg.Wallet != "some_wallet" || msg.Nonce != "abc" {
		t.Errorf("Parsed fields wrong: %+v", msg)
	}
}

func TestParseAuthMessage_RejectsBadShapes(t *testing.T) {
	now := time.Now().Unix()
	bad := []string{
		"",
		"pixel:wallet:123",                               // missing nonce
		fmt.Sprintf("paint:wallet:%d:abc", now),          // wrong prefix
		"pixel:wallet:notatime:abc",                      // bad timestamp
		fmt.Sprintf("pixel:wallet:%d:abc:extra", now),    // too many parts
		fmt.Sprintf("pixel:wallet:%d:abc", now-301),      // stale
		fmt.Sprintf("pixel:wallet:%d:abc", now+400),      // from the future
	}
	for _, message := range bad {
		if _, err := ParseAuthMessage(message); !errors.Is(err, apperr.InvalidSignature) {
			t.Errorf("Expected InvalidSignature for %q. Got: %v", message, err)
		}
	}
}

func TestVerifySignature_RoundTrip(t *testing.T) {
	wallet, message, signature := signedAuthMessage(t)

	if err := VerifySignature(wallet, message, signature); err != nil {
		t.Errorf("Valid signature rejected: %v", err)
	}

	// Any tampering with the message must fail verification.
	if err := VerifySignature(wallet, message+"x", signature); !errors.Is(err, apperr.InvalidSignature) {
		t.Errorf("Tampered message accepted: %v", err)
	}
}

func TestVerifySignature_WrongKey(t *testing.T) {
	_, message, signature := signedAuthMessage(t)
	otherWallet, _, _ := signedAuthMessage(t)

	if err := VerifySignature(otherWallet, message, signature); !errors.Is(err, apperr.InvalidSignature) {
		t.Errorf("Signature verified against the wrong key: %v", err)
	}
}

func TestCheckAndConsumeNonce_Replay(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()

	if err := CheckAndConsumeNonce(ctx, store, "wallet", "nonce-1"); err != nil {
		t.Fatalf("First consumption should succeed: %v", err)
	}

	// Second use of the same nonce is a replay.
	if err := CheckAndConsumeNonce(ctx, store, "wallet", "nonce-1"); !errors.Is(err, apperr.InvalidSignature) {
		t.Errorf("Expected InvalidSignature on replay. Got: %v", err)
	}

	// A different nonce for the same wallet is fine.
	if err := CheckAndConsumeNonce(ctx, store, "wallet", "nonce-2"); err != nil {
		t.Errorf("Fresh nonce should succeed: %v", err)
	}
}

func TestValidateWalletAddress(t *testing.T) {
	wallet, _, _ := signedAuthMessage(t)
	if err := ValidateWalletAddress(wallet); err != nil {
		t.Errorf("Valid wallet rejected: %v", err)
	}
	if err := ValidateWalletAddress("not-base58-!!!"); err == nil {
		t.Error("Invalid wallet accepted")
	}
}
