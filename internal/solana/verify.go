package solana

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/rawblock/pixel-archives/internal/apperr"
)

const (
	confirmAttempts = 30
	confirmInterval = time.Second
)

// TxVerifier is the slice of the chain client the services need for
// confirming user-submitted transactions.
type TxVerifier interface {
	VerifyProgramTransaction(ctx context.Context, signature string) (bool, error)
}

// VerifyProgramTransaction polls the signature status once a second for up to
// 30 seconds, then confirms the transaction actually touches our program.
// Returns false when the chain reports the transaction itself failed.
func (c *Client) VerifyProgramTransaction(ctx context.Context, signature string) (bool, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return false, apperr.InvalidParams("Invalid transaction signature")
	}

	var lastStatusErr error
	confirmed := false

poll:
	for i := 0; i < confirmAttempts; i++ {
		out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			lastStatusErr = err
		} else if len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return false, nil
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusProcessed,
				rpc.ConfirmationStatusConfirmed,
				rpc.ConfirmationStatusFinalized:
				confirmed = true
				break poll
			}
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(confirmInterval):
		}
	}

	if !confirmed && lastStatusErr != nil {
		return false, apperr.SolanaRpc(fmt.Errorf("transaction not confirmed after 30s: %w", lastStatusErr))
	}

	maxVersion := uint64(0)
	txResp, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return false, apperr.SolanaRpc(fmt.Errorf("failed to fetch transaction: %w", err))
	}

	tx, err := txResp.Transaction.GetTransaction()
	if err != nil {
		return false, apperr.SolanaRpc(fmt.Errorf("failed to decode transaction: %w", err))
	}

	for _, key := range tx.Message.AccountKeys {
		if key.Equals(c.programID) {
			return true, nil
		}
	}
	return false, apperr.InvalidParams("Transaction does not involve our program")
}
