package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/AlexZinkM/spl-deploy/internal/model"
	"github.com/AlexZinkM/spl-deploy/internal/workflow"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLedger struct {
	balance    uint64
	confirmErr error
	rentErr    error
}

func (l *stubLedger) LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	return solana.Hash{1}, 1000, nil
}

func (l *stubLedger) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	if l.rentErr != nil {
		return 0, l.rentErr
	}
	if size == workflow.MintAccountSize {
		return 1_461_600, nil
	}
	return 2_039_280, nil
}

func (l *stubLedger) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	return l.balance, nil
}

func (l *stubLedger) Confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error {
	return l.confirmErr
}

func (l *stubLedger) TransactionStatus(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) (workflow.TxStatus, error) {
	return workflow.TxExpired, nil
}

func (l *stubLedger) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	return false, nil
}

type stubWallet struct {
	mu        sync.Mutex
	owner     solana.PublicKey
	connected bool
	submitted int
}

func (w *stubWallet) PublicKey() (solana.PublicKey, bool) {
	return w.owner, w.connected
}

func (w *stubWallet) SignAndSubmit(ctx context.Context, tx *solana.Transaction, extraSigners ...solana.PrivateKey) (solana.Signature, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitted++
	return solana.Signature{byte(w.submitted)}, nil
}

func newTokenHandler(ledger *stubLedger, wallet *stubWallet) *TokenHandler {
	wf := workflow.New(ledger, wallet, workflow.NewStore(), workflow.Options{
		FeeRecipient: solana.MustPublicKeyFromBase58("DmgYp2piRKfpKC1edWWCCqYGMhiSmiPy7nTVjZurre4y"),
		FeeLamports:  200_000_000,
	}, zerolog.Nop())
	return NewTokenHandler(wf)
}

func connectedWallet() *stubWallet {
	return &stubWallet{owner: solana.NewWallet().PublicKey(), connected: true}
}

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateToken(t *testing.T) {
	wallet := connectedWallet()
	h := newTokenHandler(&stubLedger{balance: 1_000_000_000}, wallet)

	rec := do(h.Create, http.MethodPost, "/token/create",
		`{"name":"Gopher","symbol":"GOPH","decimals":"6","initialSupply":"1000"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[model.RunResponse](t, rec)
	assert.Equal(t, string(workflow.StatusSuccess), resp.Status)
	assert.Equal(t, string(workflow.StateMinted), resp.State)
	assert.Equal(t, "1000000000", resp.MintedAmount)
	assert.Equal(t, "1000.000000", resp.MintedUIAmount)
	assert.NotEmpty(t, resp.MintAddress)
	assert.NotEmpty(t, resp.TokenAccountAddress)
	assert.NotEmpty(t, resp.Signatures.Fee)
	assert.NotEmpty(t, resp.Signatures.MintTo)
	assert.Equal(t, 4, wallet.submitted)

	list := decode[model.RunListResponse](t, do(h.Runs, http.MethodGet, "/token/runs", ""))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, resp.ID, list.Runs[0].ID)

	one := do(h.Runs, http.MethodGet, "/token/runs?id="+resp.ID, "")
	assert.Equal(t, http.StatusOK, one.Code)
}

func TestCreateTokenErrors(t *testing.T) {
	tests := map[string]struct {
		wallet *stubWallet
		ledger *stubLedger
		body   string
		status int
		code   workflow.Kind
	}{
		"malformed body": {
			wallet: connectedWallet(),
			ledger: &stubLedger{balance: 1_000_000_000},
			body:   `{`,
			status: http.StatusBadRequest,
			code:   workflow.KindValidation,
		},
		"invalid decimals": {
			wallet: connectedWallet(),
			ledger: &stubLedger{balance: 1_000_000_000},
			body:   `{"name":"Gopher","symbol":"GOPH","decimals":"12"}`,
			status: http.StatusBadRequest,
			code:   workflow.KindValidation,
		},
		"wallet not connected": {
			wallet: &stubWallet{},
			ledger: &stubLedger{balance: 1_000_000_000},
			body:   `{"name":"Gopher","symbol":"GOPH","decimals":"6"}`,
			status: http.StatusPreconditionFailed,
			code:   workflow.KindWalletNotConnected,
		},
		"insufficient funds": {
			wallet: connectedWallet(),
			ledger: &stubLedger{balance: 1000},
			body:   `{"name":"Gopher","symbol":"GOPH","decimals":"6"}`,
			status: http.StatusPaymentRequired,
			code:   workflow.KindInsufficientFunds,
		},
		"submission failure": {
			wallet: connectedWallet(),
			ledger: &stubLedger{balance: 1_000_000_000, confirmErr: errors.New("custom program error: 0x1")},
			body:   `{"name":"Gopher","symbol":"GOPH","decimals":"6"}`,
			status: http.StatusBadGateway,
			code:   workflow.KindLedgerSubmission,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			h := newTokenHandler(tc.ledger, tc.wallet)
			rec := do(h.Create, http.MethodPost, "/token/create", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, string(tc.code), decode[model.ErrorResponse](t, rec).Code)
		})
	}
}

func TestCreateTokenFailureReportsStep(t *testing.T) {
	ledger := &stubLedger{balance: 1_000_000_000, confirmErr: errors.New("blockhash not found")}
	h := newTokenHandler(ledger, connectedWallet())

	rec := do(h.Create, http.MethodPost, "/token/create", `{"name":"Gopher","symbol":"GOPH","decimals":"6"}`)
	resp := decode[model.ErrorResponse](t, rec)
	assert.Equal(t, "blockhash not found", resp.Error)
	assert.Equal(t, string(workflow.StepFee), resp.Step)
	require.NotEmpty(t, resp.RunID)

	run := decode[model.RunResponse](t, do(h.Runs, http.MethodGet, "/token/runs?id="+resp.RunID, ""))
	assert.Equal(t, string(workflow.StatusFailed), run.Status)
	assert.Equal(t, string(workflow.StepFee), run.FailedAt)

	// ledger recovers, the run continues from where it stopped
	ledger.confirmErr = nil
	rec = do(h.Resume, http.MethodPost, "/token/resume", `{"id":"`+resp.RunID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(workflow.StatusSuccess), decode[model.RunResponse](t, rec).Status)
}

func TestResumeUnknownRun(t *testing.T) {
	h := newTokenHandler(&stubLedger{balance: 1_000_000_000}, connectedWallet())

	rec := do(h.Resume, http.MethodPost, "/token/resume", `{"id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h.Resume, http.MethodPost, "/token/resume", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h.Runs, http.MethodGet, "/token/runs?id=missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTokenHandler(&stubLedger{}, connectedWallet())

	assert.Equal(t, http.StatusMethodNotAllowed, do(h.Create, http.MethodGet, "/token/create", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h.Runs, http.MethodPost, "/token/runs", "").Code)
}

func TestEstimate(t *testing.T) {
	h := newTokenHandler(&stubLedger{}, connectedWallet())

	rec := do(h.Estimate, http.MethodGet, "/token/estimate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[model.EstimateResponse](t, rec)
	assert.Equal(t, "0.200000000", resp.Fee)
	assert.Equal(t, "DmgYp2piRKfpKC1edWWCCqYGMhiSmiPy7nTVjZurre4y", resp.FeeRecipient)
	assert.Equal(t, "0.001461600", resp.MintRent)
	assert.Equal(t, "0.002039280", resp.AccountRent)
	assert.Equal(t, "0.000025000", resp.SignatureFees)
	assert.Equal(t, "0.203525880", resp.Total)
}

func TestEstimateLedgerError(t *testing.T) {
	h := newTokenHandler(&stubLedger{rentErr: errors.New("connection refused")}, connectedWallet())

	rec := do(h.Estimate, http.MethodGet, "/token/estimate", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[model.ErrorResponse](t, rec)
	assert.Equal(t, string(workflow.KindLedgerSubmission), resp.Code)
	assert.Contains(t, resp.Error, "connection refused")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(workflow.KindConfirmationTimeout))
	assert.Equal(t, http.StatusConflict, statusFor(workflow.KindRunInProgress))
	assert.Equal(t, http.StatusInternalServerError, statusFor(""))
}
