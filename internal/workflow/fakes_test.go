package workflow

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// scriptedLedger answers ledger calls from fixed values. confirmErrs is
// keyed by the 1-based number of the Confirm call.
type scriptedLedger struct {
	mu          sync.Mutex
	balance     uint64
	mintRent    uint64
	accountRent uint64
	confirmErrs map[int]error
	gate        chan struct{} // when set, Confirm waits for it to close

	// txStatus answers TransactionStatus; unknown signatures expired
	txStatus map[solana.Signature]TxStatus
	accounts map[solana.PublicKey]bool

	balanceCalls int
	confirms     []solana.Signature
	lookups      []uint64 // lastValidBlockHeight of each TransactionStatus call
}

func newScriptedLedger() *scriptedLedger {
	return &scriptedLedger{
		balance:     10_000_000_000,
		mintRent:    1_461_600,
		accountRent: 2_039_280,
		confirmErrs: make(map[int]error),
		txStatus:    make(map[solana.Signature]TxStatus),
		accounts:    make(map[solana.PublicKey]bool),
	}
}

func (l *scriptedLedger) LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error) {
	var h solana.Hash
	h[0] = 1
	return h, 1000, nil
}

func (l *scriptedLedger) MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	if size == MintAccountSize {
		return l.mintRent, nil
	}
	return l.accountRent, nil
}

func (l *scriptedLedger) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balanceCalls++
	return l.balance, nil
}

func (l *scriptedLedger) Confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error {
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirms = append(l.confirms, sig)
	return l.confirmErrs[len(l.confirms)]
}

func (l *scriptedLedger) TransactionStatus(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) (TxStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookups = append(l.lookups, lastValidBlockHeight)
	if status, ok := l.txStatus[sig]; ok {
		return status, nil
	}
	return TxExpired, nil
}

func (l *scriptedLedger) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[account], nil
}

func (l *scriptedLedger) setTxStatus(sig solana.Signature, status TxStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txStatus[sig] = status
}

func (l *scriptedLedger) setAccountExists(account solana.PublicKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[account] = true
}

func (l *scriptedLedger) failConfirm(call int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirmErrs[call] = err
}

func (l *scriptedLedger) clearFailures() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirmErrs = make(map[int]error)
}

type submission struct {
	tx           *solana.Transaction
	extraSigners []solana.PublicKey
}

// recordingWallet records transactions instead of signing them
type recordingWallet struct {
	mu        sync.Mutex
	owner     solana.PublicKey
	connected bool
	submitted []submission
}

func newRecordingWallet() *recordingWallet {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		panic(err)
	}
	return &recordingWallet{owner: key.PublicKey(), connected: true}
}

func (w *recordingWallet) PublicKey() (solana.PublicKey, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.owner, w.connected
}

func (w *recordingWallet) SignAndSubmit(ctx context.Context, tx *solana.Transaction, extraSigners ...solana.PrivateKey) (solana.Signature, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	signers := make([]solana.PublicKey, 0, len(extraSigners))
	for _, k := range extraSigners {
		signers = append(signers, k.PublicKey())
	}
	w.submitted = append(w.submitted, submission{tx: tx, extraSigners: signers})

	var sig solana.Signature
	binary.BigEndian.PutUint64(sig[:8], uint64(len(w.submitted)))
	return sig, nil
}

func (w *recordingWallet) submissions() []submission {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]submission(nil), w.submitted...)
}

// instruction returns program id and data of the i-th instruction of tx
func instruction(tx *solana.Transaction, i int) (solana.PublicKey, []byte) {
	ci := tx.Message.Instructions[i]
	return tx.Message.AccountKeys[ci.ProgramIDIndex], []byte(ci.Data)
}

// instructionAccount returns the j-th account of the i-th instruction of tx
func instructionAccount(tx *solana.Transaction, i, j int) solana.PublicKey {
	ci := tx.Message.Instructions[i]
	return tx.Message.AccountKeys[ci.Accounts[j]]
}
