// Package solana wraps the RPC connection to the chain: PDA derivation,
// blockhash caching, transaction verification and account fetches.
package solana

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/internal/config"
	"github.com/rawblock/pixel-archives/internal/logging"
)

type cachedBlockhash struct {
	hash      solana.Hash
	fetchedAt time.Time
}

type Client struct {
	rpc          *rpc.Client
	programID    solana.PublicKey
	commitment   rpc.CommitmentType
	blockhashTTL time.Duration

	mu        sync.RWMutex
	blockhash *cachedBlockhash
}

func NewClient(cfg *config.SolanaConfig) (*Client, error) {
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program ID %q: %w", cfg.ProgramID, err)
	}

	var commitment rpc.CommitmentType
	switch cfg.Commitment {
	case "processed":
		commitment = rpc.CommitmentProcessed
	case "finalized":
		commitment = rpc.CommitmentFinalized
	default:
		commitment = rpc.CommitmentConfirmed
	}

	logging.GetComponentLogger("solana").Info("connecting to Solana RPC", "url", cfg.RpcURL)
	return &Client{
		rpc:          rpc.New(cfg.RpcURL),
		programID:    programID,
		commitment:   commitment,
		blockhashTTL: time.Duration(cfg.BlockhashTTLSecs) * time.Second,
	}, nil
}

func (c *Client) ProgramID() solana.PublicKey { return c.programID }

// DeriveCanvasPDA derives the canvas account address from the 16 raw bytes of
// the canvas id.
func (c *Client) DeriveCanvasPDA(canvasID uuid.UUID) (solana.PublicKey, uint8, error) {
	idBytes := canvasID[:]
	addr, bump, err := solana.FindProgramAddress([][]byte{[]byte("canvas"), idBytes}, c.programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("canvas PDA derivation: %w", err)
	}
	return addr, bump, nil
}

func (c *Client) DeriveConfigPDA() (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{[]byte("config")}, c.programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("config PDA derivation: %w", err)
	}
	return addr, bump, nil
}

// RecentBlockhash returns the cached blockhash while it is fresh; otherwise a
// single writer refetches and replaces it.
func (c *Client) RecentBlockhash(ctx context.Context) (solana.Hash, error) {
	c.mu.RLock()
	if c.blockhash != nil && time.Since(c.blockhash.fetchedAt) < c.blockhashTTL {
		hash := c.blockhash.hash
		c.mu.RUnlock()
		return hash, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another caller may have refreshed the hash while we waited.
	if c.blockhash != nil && time.Since(c.blockhash.fetchedAt) < c.blockhashTTL {
		return c.blockhash.hash, nil
	}

	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return solana.Hash{}, err
	}
	hash := out.Value.Blockhash
	c.blockhash = &cachedBlockhash{hash: hash, fetchedAt: time.Now()}

	return hash, nil
}

// AccountData fetches the raw account bytes for addr.
func (c *Client) AccountData(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	out, err := c.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		return nil, err
	}
	if out.Value == nil {
		return nil, fmt.Errorf("account %s not found", addr)
	}
	return out.Value.Data.GetBinary(), nil
}
