package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AlexZinkM/spl-deploy/internal/workflow"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRPC replays signature statuses in order, repeating the last one
type stubRPC struct {
	statuses    []*rpc.SignatureStatusesResult
	statusErr   error
	blockHeight uint64
	polls       int
	sent        *solana.Transaction
	sendOpts    rpc.TransactionOpts
	accounts    map[solana.PublicKey]bool
	searched    bool
}

func (s *stubRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{
			Blockhash:            solana.Hash{9},
			LastValidBlockHeight: 150,
		},
	}, nil
}

func (s *stubRPC) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64, commitment rpc.CommitmentType) (uint64, error) {
	return dataSize * 10, nil
}

func (s *stubRPC) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return &rpc.GetBalanceResult{Value: 42}, nil
}

func (s *stubRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	s.sent = tx
	s.sendOpts = opts
	return solana.Signature{1}, nil
}

func (s *stubRPC) GetSignatureStatuses(ctx context.Context, search bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	s.polls++
	s.searched = search
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	if len(s.statuses) == 0 {
		return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{nil}}, nil
	}
	i := min(s.polls-1, len(s.statuses)-1)
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{s.statuses[i]}}, nil
}

func (s *stubRPC) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	return s.blockHeight, nil
}

func (s *stubRPC) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	if !s.accounts[account] {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{Lamports: 1}}, nil
}

func newTestClient(stub *stubRPC, commitment rpc.CommitmentType) *SolanaClient {
	return newSolanaClient(stub, commitment, time.Second, time.Millisecond)
}

func TestConfirmWaitsForCommitment(t *testing.T) {
	stub := &stubRPC{
		statuses: []*rpc.SignatureStatusesResult{
			nil,
			{ConfirmationStatus: rpc.ConfirmationStatusProcessed},
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
		},
		blockHeight: 100,
	}
	c := newTestClient(stub, rpc.CommitmentConfirmed)

	require.NoError(t, c.Confirm(context.Background(), solana.Signature{1}, 150))
	assert.Equal(t, 3, stub.polls)
}

func TestConfirmFinalizedIgnoresConfirmed(t *testing.T) {
	stub := &stubRPC{
		statuses: []*rpc.SignatureStatusesResult{
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
			{ConfirmationStatus: rpc.ConfirmationStatusFinalized},
		},
		blockHeight: 100,
	}
	c := newTestClient(stub, rpc.CommitmentFinalized)

	require.NoError(t, c.Confirm(context.Background(), solana.Signature{1}, 150))
	assert.Equal(t, 3, stub.polls)
}

func TestConfirmReportsFailedTransaction(t *testing.T) {
	stub := &stubRPC{
		statuses: []*rpc.SignatureStatusesResult{
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed, Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
		},
	}
	c := newTestClient(stub, rpc.CommitmentConfirmed)

	err := c.Confirm(context.Background(), solana.Signature{1}, 150)
	require.Error(t, err)
	assert.False(t, errors.Is(err, workflow.ErrConfirmationTimeout))
	assert.Contains(t, err.Error(), "failed")
}

func TestConfirmExpiresWithBlockhash(t *testing.T) {
	stub := &stubRPC{blockHeight: 151}
	c := newTestClient(stub, rpc.CommitmentConfirmed)

	err := c.Confirm(context.Background(), solana.Signature{1}, 150)
	assert.ErrorIs(t, err, workflow.ErrConfirmationTimeout)
}

func TestConfirmTimesOut(t *testing.T) {
	stub := &stubRPC{statusErr: errors.New("node is behind"), blockHeight: 100}
	c := newSolanaClient(stub, rpc.CommitmentConfirmed, 20*time.Millisecond, time.Millisecond)

	err := c.Confirm(context.Background(), solana.Signature{1}, 150)
	assert.ErrorIs(t, err, workflow.ErrConfirmationTimeout)
	assert.Greater(t, stub.polls, 1)
}

func TestLatestBlockhashAndRent(t *testing.T) {
	stub := &stubRPC{}
	c := newTestClient(stub, rpc.CommitmentConfirmed)

	hash, lastValid, err := c.LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, solana.Hash{9}, hash)
	assert.Equal(t, uint64(150), lastValid)

	rent, err := c.MinimumBalanceForRentExemption(context.Background(), workflow.MintAccountSize)
	require.NoError(t, err)
	assert.Equal(t, uint64(820), rent)

	balance, err := c.Balance(context.Background(), solana.PublicKey{})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), balance)
}

func TestSendUsesPreflight(t *testing.T) {
	stub := &stubRPC{}
	c := newTestClient(stub, rpc.CommitmentConfirmed)

	tx := &solana.Transaction{}
	sig, err := c.Send(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, solana.Signature{1}, sig)
	assert.Same(t, tx, stub.sent)
	assert.False(t, stub.sendOpts.SkipPreflight)
	assert.Equal(t, rpc.CommitmentConfirmed, stub.sendOpts.PreflightCommitment)
}

func TestTransactionStatus(t *testing.T) {
	tests := map[string]struct {
		status      *rpc.SignatureStatusesResult
		blockHeight uint64
		commitment  rpc.CommitmentType
		want        workflow.TxStatus
	}{
		"landed": {
			status:      &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
			blockHeight: 200,
			commitment:  rpc.CommitmentConfirmed,
			want:        workflow.TxLanded,
		},
		"confirmed below finalized commitment": {
			status:      &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
			blockHeight: 200,
			commitment:  rpc.CommitmentFinalized,
			want:        workflow.TxPending,
		},
		"failed on chain": {
			status:      &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusFinalized, Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
			blockHeight: 100,
			commitment:  rpc.CommitmentConfirmed,
			want:        workflow.TxFailed,
		},
		"unknown with valid blockhash": {
			blockHeight: 150,
			commitment:  rpc.CommitmentConfirmed,
			want:        workflow.TxPending,
		},
		"unknown after blockhash expired": {
			blockHeight: 151,
			commitment:  rpc.CommitmentConfirmed,
			want:        workflow.TxExpired,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			stub := &stubRPC{blockHeight: tc.blockHeight}
			if tc.status != nil {
				stub.statuses = []*rpc.SignatureStatusesResult{tc.status}
			}
			c := newTestClient(stub, tc.commitment)

			got, err := c.TransactionStatus(context.Background(), solana.Signature{1}, 150)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.True(t, stub.searched, "history search covers transactions older than the status cache")
		})
	}
}

func TestTransactionStatusPropagatesRPCErrors(t *testing.T) {
	stub := &stubRPC{statusErr: errors.New("node is behind")}
	c := newTestClient(stub, rpc.CommitmentConfirmed)

	_, err := c.TransactionStatus(context.Background(), solana.Signature{1}, 150)
	assert.ErrorContains(t, err, "node is behind")
}

func TestAccountExists(t *testing.T) {
	existing := solana.NewWallet().PublicKey()
	stub := &stubRPC{accounts: map[solana.PublicKey]bool{existing: true}}
	c := newTestClient(stub, rpc.CommitmentConfirmed)

	ok, err := c.AccountExists(context.Background(), existing)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.AccountExists(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.False(t, ok)
}
