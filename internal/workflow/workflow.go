// Package workflow creates SPL tokens in four dependent ledger steps:
// fee payment, mint creation, associated token account creation and an
// optional initial mint.
//
// Steps are submitted as separate transactions and each must reach the
// ledger client's commitment level before the next one is built. The
// workflow is therefore not atomic: a failure leaves earlier steps on
// the ledger, nothing is rolled back and the fee is never refunded. The
// run records the last confirmed state so it can be inspected or
// explicitly resumed.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AlexZinkM/spl-deploy/internal/observability"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	MintAccountSize       = 82  // SPL Token mint account size in bytes
	TokenAccountSize      = 165 // SPL Token account size in bytes
	SignatureFeeLamports  = 5000
	feeStepSignatures     = 1
	mintStepSignatures    = 2 // wallet + fresh mint keypair
	accountStepSignatures = 1
	mintToStepSignatures  = 1
)

// Ledger is the ledger client contract the workflow depends on.
type Ledger interface {
	// LatestBlockhash returns a recent blockhash and the last block height at which it is valid
	LatestBlockhash(ctx context.Context) (solana.Hash, uint64, error)
	MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
	// Confirm blocks until sig reaches the configured commitment. It wraps
	// ErrConfirmationTimeout when lastValidBlockHeight passes first.
	Confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error
	// TransactionStatus looks up a transaction submitted earlier, including
	// ones older than the recent status cache.
	TransactionStatus(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) (TxStatus, error)
	// AccountExists reports whether account is allocated on the ledger
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
}

// TxStatus is where a submitted transaction stands on the ledger.
type TxStatus int

const (
	TxPending TxStatus = iota // below the commitment, may still land
	TxLanded                  // reached the commitment without error
	TxFailed                  // executed with an error
	TxExpired                 // never landed and its blockhash expired
)

// Wallet is the connected wallet contract.
type Wallet interface {
	// PublicKey returns the wallet address; ok is false when disconnected
	PublicKey() (pubkey solana.PublicKey, ok bool)
	// SignAndSubmit signs tx with the wallet key and extraSigners and submits it
	SignAndSubmit(ctx context.Context, tx *solana.Transaction, extraSigners ...solana.PrivateKey) (solana.Signature, error)
}

// Options are the service constants of the workflow.
type Options struct {
	FeeRecipient    solana.PublicKey
	FeeLamports     uint64
	FreezeAuthority bool // also make the owner freeze authority of new mints
}

// Estimate is the lamport cost of the steps still to run.
type Estimate struct {
	FeeLamports   uint64
	FeeRecipient  solana.PublicKey
	MintRent      uint64
	AccountRent   uint64
	SignatureFees uint64
	Total         uint64
}

// Workflow runs token creation against a ledger on behalf of a wallet.
type Workflow struct {
	ledger Ledger
	wallet Wallet
	store  *Store
	opts   Options
	logger zerolog.Logger

	// inFlight admits one run at a time so a double submit cannot pay the fee twice
	inFlight sync.Mutex

	newMintKey func() (solana.PrivateKey, error)
	newID      func() string
	now        func() time.Time
}

// New creates a Workflow. store receives every registered run.
func New(ledger Ledger, wallet Wallet, store *Store, opts Options, logger zerolog.Logger) *Workflow {
	return &Workflow{
		ledger:     ledger,
		wallet:     wallet,
		store:      store,
		opts:       opts,
		logger:     logger.With().Str("component", "workflow").Logger(),
		newMintKey: solana.NewRandomPrivateKey,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// Store returns the run registry
func (w *Workflow) Store() *Store {
	return w.store
}

// Create validates req, checks the wallet balance and runs all steps to
// completion or first failure. The returned run is a snapshot of the
// final state; on failure it is returned together with an *Error.
func (w *Workflow) Create(ctx context.Context, req TokenRequest) (Run, error) {
	run, err := w.prepare(ctx, req)
	if err != nil {
		return Run{}, err
	}
	defer w.inFlight.Unlock()
	return w.execute(ctx, run)
}

// Start is Create without waiting: it returns once the run is registered
// and continues the steps in the background, detached from ctx
// cancellation.
func (w *Workflow) Start(ctx context.Context, req TokenRequest) (Run, error) {
	run, err := w.prepare(ctx, req)
	if err != nil {
		return Run{}, err
	}
	snapshot := w.store.update(run, func(*Run) {})

	go func() {
		defer w.inFlight.Unlock()
		w.execute(context.WithoutCancel(ctx), run)
	}()
	return snapshot, nil
}

// Resume continues a failed run from the step it failed at. Confirmed
// steps are not repeated.
func (w *Workflow) Resume(ctx context.Context, id string) (Run, error) {
	run, err := w.prepareResume(ctx, id)
	if err != nil {
		return Run{}, err
	}
	defer w.inFlight.Unlock()
	return w.execute(ctx, run)
}

// ResumeAsync is Resume without waiting for the remaining steps.
func (w *Workflow) ResumeAsync(ctx context.Context, id string) (Run, error) {
	run, err := w.prepareResume(ctx, id)
	if err != nil {
		return Run{}, err
	}
	snapshot := w.store.update(run, func(*Run) {})

	go func() {
		defer w.inFlight.Unlock()
		w.execute(context.WithoutCancel(ctx), run)
	}()
	return snapshot, nil
}

// Estimate returns the cost of a complete run with an initial mint.
func (w *Workflow) Estimate(ctx context.Context) (Estimate, error) {
	est, err := w.estimate(ctx, StateIdle, true)
	if err != nil {
		return Estimate{}, &Error{Kind: KindLedgerSubmission, Err: err}
	}
	return est, nil
}

// prepare performs every check that must precede the fee payment and
// registers the run. On success the caller owns w.inFlight.
func (w *Workflow) prepare(ctx context.Context, req TokenRequest) (*Run, error) {
	owner, ok := w.wallet.PublicKey()
	if !ok {
		return nil, &Error{Kind: KindWalletNotConnected, Err: ErrWalletNotConnected}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !w.inFlight.TryLock() {
		return nil, &Error{Kind: KindRunInProgress, Err: ErrRunInProgress}
	}

	if err := w.checkBalance(ctx, owner, StateIdle, req.WithMintTo()); err != nil {
		w.inFlight.Unlock()
		return nil, err
	}

	now := w.now()
	run := &Run{
		ID:         w.newID(),
		Request:    req,
		Owner:      owner,
		State:      StateIdle,
		Checkpoint: StateIdle,
		Status:     StatusIdle,
		Signatures: make(map[Step]solana.Signature),
		validUntil: make(map[Step]uint64),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	w.store.add(run)

	w.logger.Info().
		Str("run", run.ID).
		Str("owner", owner.String()).
		Str("name", req.Name).
		Str("symbol", req.Symbol).
		Uint8("decimals", req.Decimals).
		Uint64("initial_supply", req.InitialSupply).
		Msg("token creation started")
	return run, nil
}

func (w *Workflow) prepareResume(ctx context.Context, id string) (*Run, error) {
	owner, ok := w.wallet.PublicKey()
	if !ok {
		return nil, &Error{Kind: KindWalletNotConnected, RunID: id, Err: ErrWalletNotConnected}
	}
	if !w.inFlight.TryLock() {
		return nil, &Error{Kind: KindRunInProgress, RunID: id, Err: ErrRunInProgress}
	}

	run, err := w.resumable(id, owner)
	if err == nil {
		err = w.checkBalance(ctx, owner, run.Checkpoint, run.Request.WithMintTo())
	}
	if err != nil {
		w.inFlight.Unlock()
		return nil, err
	}

	w.logger.Info().
		Str("run", run.ID).
		Str("checkpoint", string(run.Checkpoint)).
		Str("failed_at", string(run.FailedAt)).
		Msg("token creation resumed")
	return run, nil
}

func (w *Workflow) resumable(id string, owner solana.PublicKey) (*Run, error) {
	run, ok := w.store.lookup(id)
	if !ok {
		return nil, &Error{Kind: KindRunNotFound, RunID: id, Err: fmt.Errorf("run %s not found", id)}
	}
	if run.State != StateFailed {
		return nil, &Error{Kind: KindNotResumable, RunID: id, Err: fmt.Errorf("run %s is %s, only failed runs can be resumed", id, run.State)}
	}
	if !run.Owner.Equals(owner) {
		return nil, &Error{Kind: KindNotResumable, RunID: id, Err: fmt.Errorf("run %s belongs to %s, connected wallet is %s", id, run.Owner, owner)}
	}
	return run, nil
}

func (w *Workflow) checkBalance(ctx context.Context, owner solana.PublicKey, from State, withMintTo bool) error {
	est, err := w.estimate(ctx, from, withMintTo)
	if err != nil {
		return &Error{Kind: KindLedgerSubmission, Err: err}
	}
	balance, err := w.ledger.Balance(ctx, owner)
	if err != nil {
		return &Error{Kind: KindLedgerSubmission, Err: fmt.Errorf("failed to get balance: %w", err)}
	}
	if balance < est.Total {
		return &Error{
			Kind: KindInsufficientFunds,
			Err:  fmt.Errorf("insufficient SOL balance: need %d lamports, have %d", est.Total, balance),
		}
	}
	return nil
}

func (w *Workflow) estimate(ctx context.Context, from State, withMintTo bool) (Estimate, error) {
	est := Estimate{FeeRecipient: w.opts.FeeRecipient}

	for _, t := range remaining(from, withMintTo) {
		switch t.step {
		case StepFee:
			est.FeeLamports = w.opts.FeeLamports
			est.SignatureFees += feeStepSignatures * SignatureFeeLamports
		case StepMint:
			rent, err := w.ledger.MinimumBalanceForRentExemption(ctx, MintAccountSize)
			if err != nil {
				return Estimate{}, fmt.Errorf("failed to get mint rent exemption: %w", err)
			}
			est.MintRent = rent
			est.SignatureFees += mintStepSignatures * SignatureFeeLamports
		case StepAccount:
			rent, err := w.ledger.MinimumBalanceForRentExemption(ctx, TokenAccountSize)
			if err != nil {
				return Estimate{}, fmt.Errorf("failed to get token account rent exemption: %w", err)
			}
			est.AccountRent = rent
			est.SignatureFees += accountStepSignatures * SignatureFeeLamports
		case StepMintTo:
			est.SignatureFees += mintToStepSignatures * SignatureFeeLamports
		}
	}

	est.Total = est.FeeLamports + est.MintRent + est.AccountRent + est.SignatureFees
	return est, nil
}

// execute runs the remaining transitions of run in order and stops at the first failure.
func (w *Workflow) execute(ctx context.Context, run *Run) (Run, error) {
	resumedAt := run.FailedAt
	for _, t := range remaining(run.Checkpoint, run.Request.WithMintTo()) {
		w.store.update(run, func(r *Run) {
			r.State = r.Checkpoint
			r.Status = t.status
			r.FailedAt = ""
			r.Err = ""
			r.UpdatedAt = w.now()
		})
		w.logger.Info().Str("run", run.ID).Str("step", string(t.step)).Msg("step started")

		started := w.now()
		var (
			landed bool
			err    error
		)
		if t.step == resumedAt {
			landed, err = w.recoverStep(ctx, run, t.step)
		}
		if err == nil && !landed {
			err = w.runStep(ctx, run, t.step)
		}
		if err != nil {
			observability.RecordStep(string(t.step), observability.OutcomeFailed, w.now().Sub(started))
			return w.fail(run, t.step, err)
		}
		observability.RecordStep(string(t.step), observability.OutcomeConfirmed, w.now().Sub(started))

		snapshot := w.store.update(run, func(r *Run) {
			r.State = t.to
			r.Checkpoint = t.to
			r.UpdatedAt = w.now()
		})
		w.logger.Info().
			Str("run", run.ID).
			Str("step", string(t.step)).
			Str("signature", snapshot.Signatures[t.step].String()).
			Str("state", string(t.to)).
			Msg("step confirmed")
	}

	snapshot := w.store.update(run, func(r *Run) {
		r.Status = StatusSuccess
		r.UpdatedAt = w.now()
	})
	observability.RecordRun(string(StatusSuccess))
	w.logger.Info().
		Str("run", run.ID).
		Str("mint", snapshot.Mint.String()).
		Str("token_account", snapshot.TokenAccount.String()).
		Msg("token created")
	return snapshot, nil
}

func (w *Workflow) fail(run *Run, step Step, err error) (Run, error) {
	var werr *Error
	if !errors.As(err, &werr) {
		werr = &Error{Kind: KindLedgerSubmission, Err: err}
	}
	werr.Step = step
	werr.RunID = run.ID

	snapshot := w.store.update(run, func(r *Run) {
		r.State = StateFailed
		r.Checkpoint = checkpointBefore(step)
		r.Status = StatusFailed
		r.FailedAt = step
		r.Err = werr.Error()
		r.UpdatedAt = w.now()
	})

	observability.RecordRun(string(StatusFailed))
	w.logger.Error().
		Err(werr.Err).
		Str("run", run.ID).
		Str("step", string(step)).
		Str("kind", string(werr.Kind)).
		Str("checkpoint", string(snapshot.Checkpoint)).
		Msg("step failed")
	return snapshot, werr
}

// recoverStep checks whether the transaction submitted for step before the
// run failed reached the ledger after all. A landed transaction is adopted
// and must not be submitted again.
func (w *Workflow) recoverStep(ctx context.Context, run *Run, step Step) (bool, error) {
	sig, ok := run.Signatures[step]
	if !ok {
		return false, nil
	}

	status, err := w.ledger.TransactionStatus(ctx, sig, run.validUntil[step])
	if err != nil {
		return false, fmt.Errorf("failed to look up %s transaction %s: %w", step, sig, err)
	}

	switch status {
	case TxPending:
		return false, &Error{
			Kind: KindConfirmationTimeout,
			Err:  fmt.Errorf("%s transaction %s is still pending, resume again later: %w", step, sig, ErrConfirmationTimeout),
		}
	case TxFailed, TxExpired:
		w.logger.Info().
			Str("run", run.ID).
			Str("step", string(step)).
			Str("signature", sig.String()).
			Msg("previous transaction did not land, submitting again")
		return false, nil
	}

	var amount uint64
	if step == StepMintTo {
		if amount, err = run.Request.BaseUnits(); err != nil {
			return false, validationError(err)
		}
	}
	var ata solana.PublicKey
	if step == StepAccount {
		if ata, _, err = solana.FindAssociatedTokenAddress(run.Owner, run.Mint); err != nil {
			return false, fmt.Errorf("failed to find associated token account address: %w", err)
		}
	}

	w.store.update(run, func(r *Run) {
		switch step {
		case StepMint:
			r.Mint = r.pendingMint
		case StepAccount:
			r.TokenAccount = ata
		case StepMintTo:
			r.MintedAmount = amount
		}
	})
	w.logger.Info().
		Str("run", run.ID).
		Str("step", string(step)).
		Str("signature", sig.String()).
		Msg("previous transaction landed, not submitting again")
	return true, nil
}

func (w *Workflow) runStep(ctx context.Context, run *Run, step Step) error {
	switch step {
	case StepFee:
		return w.payFee(ctx, run)
	case StepMint:
		return w.createMint(ctx, run)
	case StepAccount:
		return w.createTokenAccount(ctx, run)
	case StepMintTo:
		return w.mintInitialSupply(ctx, run)
	}
	return fmt.Errorf("unknown step %q", step)
}

// payFee transfers the service fee to the fee recipient
func (w *Workflow) payFee(ctx context.Context, run *Run) error {
	transfer := system.NewTransferInstruction(
		w.opts.FeeLamports,
		run.Owner,
		w.opts.FeeRecipient,
	).Build()

	return w.submit(ctx, run, StepFee, []solana.Instruction{transfer})
}

// createMint creates a rent-exempt mint account for a fresh keypair and initializes it
func (w *Workflow) createMint(ctx context.Context, run *Run) error {
	mintKey, err := w.newMintKey()
	if err != nil {
		return fmt.Errorf("failed to generate mint keypair: %w", err)
	}
	defer clear(mintKey)
	mint := mintKey.PublicKey()

	rent, err := w.ledger.MinimumBalanceForRentExemption(ctx, MintAccountSize)
	if err != nil {
		return fmt.Errorf("failed to get mint rent exemption: %w", err)
	}

	createAccount := system.NewCreateAccountInstruction(
		rent,
		MintAccountSize,
		solana.TokenProgramID,
		run.Owner, // funding account
		mint,      // new account
	).Build()

	initMint := token.NewInitializeMintInstruction(
		run.Request.Decimals,
		run.Owner, // mint authority
		run.Owner, // freeze authority
		mint,
		solana.SysVarRentPubkey,
	)
	if !w.opts.FreezeAuthority {
		initMint.FreezeAuthority = nil
	}

	w.store.update(run, func(r *Run) {
		r.pendingMint = mint
	})

	if err := w.submit(ctx, run, StepMint, []solana.Instruction{createAccount, initMint.Build()}, mintKey); err != nil {
		return err
	}

	w.store.update(run, func(r *Run) {
		r.Mint = mint
	})
	return nil
}

// createTokenAccount creates the owner's associated token account for the new mint
func (w *Workflow) createTokenAccount(ctx context.Context, run *Run) error {
	ata, _, err := solana.FindAssociatedTokenAddress(run.Owner, run.Mint)
	if err != nil {
		return fmt.Errorf("failed to find associated token account address: %w", err)
	}

	exists, err := w.ledger.AccountExists(ctx, ata)
	if err != nil {
		return fmt.Errorf("failed to look up token account %s: %w", ata, err)
	}
	if exists {
		w.logger.Info().Str("run", run.ID).Str("token_account", ata.String()).Msg("token account already exists")
		w.store.update(run, func(r *Run) {
			r.TokenAccount = ata
		})
		return nil
	}

	createATA := associatedtokenaccount.NewCreateInstruction(
		run.Owner, // payer
		run.Owner, // owner
		run.Mint,
	).Build()

	if err := w.submit(ctx, run, StepAccount, []solana.Instruction{createATA}); err != nil {
		return err
	}

	w.store.update(run, func(r *Run) {
		r.TokenAccount = ata
	})
	return nil
}

// mintInitialSupply mints InitialSupply × 10^Decimals base units into the token account
func (w *Workflow) mintInitialSupply(ctx context.Context, run *Run) error {
	amount, err := run.Request.BaseUnits()
	if err != nil {
		return validationError(err)
	}

	mintTo := token.NewMintToInstruction(
		amount,
		run.Mint,
		run.TokenAccount,
		run.Owner, // mint authority
		[]solana.PublicKey{},
	).Build()

	if err := w.submit(ctx, run, StepMintTo, []solana.Instruction{mintTo}); err != nil {
		return err
	}

	w.store.update(run, func(r *Run) {
		r.MintedAmount = amount
	})
	return nil
}

// submit builds a transaction paid by the run owner, has the wallet sign
// and send it, then waits for confirmation.
func (w *Workflow) submit(ctx context.Context, run *Run, step Step, instructions []solana.Instruction, extraSigners ...solana.PrivateKey) error {
	blockhash, lastValidBlockHeight, err := w.ledger.LatestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(run.Owner),
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	sig, err := w.wallet.SignAndSubmit(ctx, tx, extraSigners...)
	if err != nil {
		return err
	}
	w.store.update(run, func(r *Run) {
		r.Signatures[step] = sig
		r.validUntil[step] = lastValidBlockHeight
	})
	w.logger.Debug().Str("run", run.ID).Str("step", string(step)).Str("signature", sig.String()).Msg("transaction submitted")

	if err := w.ledger.Confirm(ctx, sig, lastValidBlockHeight); err != nil {
		kind := KindLedgerSubmission
		if errors.Is(err, ErrConfirmationTimeout) {
			kind = KindConfirmationTimeout
		}
		return &Error{Kind: kind, Err: err}
	}
	return nil
}
