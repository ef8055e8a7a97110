package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AlexZinkM/spl-deploy/internal/config"
	"github.com/AlexZinkM/spl-deploy/internal/workflow"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"
)

// rpcAPI is the subset of *rpc.Client used by SolanaClient
type rpcAPI interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
}

// SolanaClient is the ledger client used by the token creation workflow
type SolanaClient struct {
	rpcClient      rpcAPI
	commitment     rpc.CommitmentType
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

var _ workflow.Ledger = (*SolanaClient)(nil)

// NewSolanaClient creates a Solana client from the global configuration
func NewSolanaClient() *SolanaClient {
	cfg := config.Get()
	return newSolanaClient(
		rpc.New(cfg.SolanaRPCURL),
		rpc.CommitmentType(cfg.Commitment),
		cfg.ConfirmTimeout,
		cfg.ConfirmPollInterval,
	)
}

func newSolanaClient(api rpcAPI, commitment rpc.CommitmentType, confirmTimeout, pollInterval time.Duration) *SolanaClient {
	return &SolanaClient{
		rpcClient:      api,
		commitment:     commitment,
		confirmTimeout: confirmTimeout,
		pollInterval:   pollInterval,
	}
}

// LatestBlockhash gets the latest blockhash and its last valid block height
// (GetRecentBlockhash is deprecated, use GetLatestBlockhash)
func (c *SolanaClient) LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	recent, err := c.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, 0, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	if recent == nil || recent.Value == nil {
		return solana.Hash{}, 0, errors.New("failed to get recent blockhash: empty response")
	}
	return recent.Value.Blockhash, recent.Value.LastValidBlockHeight, nil
}

// MinimumBalanceForRentExemption gets the lamports an account of size bytes needs to be rent exempt
func (c *SolanaClient) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	lamports, err := c.rpcClient.GetMinimumBalanceForRentExemption(ctx, size, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("failed to get rent exemption for %d bytes: %w", size, err)
	}
	return lamports, nil
}

// Balance gets SOL balance in lamports
func (c *SolanaClient) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	balance, err := c.rpcClient.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get SOL balance: %w", err)
	}
	return balance.Value, nil
}

// Send submits a signed transaction with preflight checks
func (c *SolanaClient) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpcClient.SendTransactionWithOpts(
		ctx,
		tx,
		rpc.TransactionOpts{
			SkipPreflight:       false, // Transaction validation before node
			PreflightCommitment: c.commitment,
		},
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// Confirm polls the signature status until it reaches the configured
// commitment. It gives up with workflow.ErrConfirmationTimeout once the
// blockhash expired or the confirm timeout elapsed.
func (c *SolanaClient) Confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		done, err := c.signatureStatus(ctx, sig)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		height, err := c.rpcClient.GetBlockHeight(ctx, c.commitment)
		if err == nil && height > lastValidBlockHeight {
			return fmt.Errorf("transaction %s expired at block height %d: %w", sig, lastValidBlockHeight, workflow.ErrConfirmationTimeout)
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("transaction %s not %s after %s: %w", sig, c.commitment, c.confirmTimeout, workflow.ErrConfirmationTimeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// signatureStatus reports whether sig reached the configured commitment.
// RPC errors while polling are not fatal; the next tick retries.
func (c *SolanaClient) signatureStatus(ctx context.Context, sig solana.Signature) (bool, error) {
	res, err := c.rpcClient.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		log.Debug().Err(err).Str("signature", sig.String()).Msg("signature status poll failed")
		return false, nil
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return false, nil
	}

	status := res.Value[0]
	if status.Err != nil {
		return false, fmt.Errorf("transaction %s failed: %v", sig, status.Err)
	}
	return c.reached(status.ConfirmationStatus), nil
}

// reached reports whether a confirmation status satisfies the configured commitment
func (c *SolanaClient) reached(status rpc.ConfirmationStatusType) bool {
	switch status {
	case rpc.ConfirmationStatusFinalized:
		return true
	case rpc.ConfirmationStatusConfirmed:
		return c.commitment != rpc.CommitmentFinalized
	}
	return false
}

// TransactionStatus looks up sig in the full status history. The block
// height is read first: a signature still unknown after its blockhash
// expired can no longer land.
func (c *SolanaClient) TransactionStatus(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) (workflow.TxStatus, error) {
	height, err := c.rpcClient.GetBlockHeight(ctx, c.commitment)
	if err != nil {
		return workflow.TxPending, fmt.Errorf("failed to get block height: %w", err)
	}

	res, err := c.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return workflow.TxPending, fmt.Errorf("failed to get signature status: %w", err)
	}
	if res != nil && len(res.Value) > 0 && res.Value[0] != nil {
		status := res.Value[0]
		if status.Err != nil {
			return workflow.TxFailed, nil
		}
		if c.reached(status.ConfirmationStatus) {
			return workflow.TxLanded, nil
		}
		return workflow.TxPending, nil
	}

	if height > lastValidBlockHeight {
		return workflow.TxExpired, nil
	}
	return workflow.TxPending, nil
}

// AccountExists reports whether account is allocated at the configured commitment
func (c *SolanaClient) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	_, err := c.rpcClient.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: c.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get account info: %w", err)
	}
	return true, nil
}
