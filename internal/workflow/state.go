package workflow

// State is the checkpoint a run has reached. Every state except Failed
// means all steps up to and including it are confirmed on-ledger.
type State string

const (
	StateIdle           State = "Idle"
	StateFeePaid        State = "FeePaid"
	StateMintCreated    State = "MintCreated"
	StateAccountCreated State = "AccountCreated"
	StateMinted         State = "Minted"
	StateFailed         State = "Failed"
)

// Status is the user-facing progress of a run.
type Status string

const (
	StatusIdle            Status = "Idle"
	StatusPayingFee       Status = "PayingFee"
	StatusCreatingMint    Status = "CreatingMint"
	StatusCreatingAccount Status = "CreatingAccount"
	StatusMinting         Status = "Minting"
	StatusSuccess         Status = "Success"
	StatusFailed          Status = "Failed"
)

// Step names one ledger submission of the workflow.
type Step string

const (
	StepFee     Step = "fee"
	StepMint    Step = "mint"
	StepAccount Step = "account"
	StepMintTo  Step = "mint_to"
)

type transition struct {
	step   Step
	from   State
	to     State
	status Status
}

// transitions are strictly ordered; step N+1 starts only from step N's target state.
var transitions = []transition{
	{step: StepFee, from: StateIdle, to: StateFeePaid, status: StatusPayingFee},
	{step: StepMint, from: StateFeePaid, to: StateMintCreated, status: StatusCreatingMint},
	{step: StepAccount, from: StateMintCreated, to: StateAccountCreated, status: StatusCreatingAccount},
	{step: StepMintTo, from: StateAccountCreated, to: StateMinted, status: StatusMinting},
}

// next returns the transition leaving checkpoint s. withMintTo=false ends
// the machine at AccountCreated.
func next(s State, withMintTo bool) (transition, bool) {
	for _, t := range transitions {
		if t.from != s {
			continue
		}
		if t.step == StepMintTo && !withMintTo {
			return transition{}, false
		}
		return t, true
	}
	return transition{}, false
}

// remaining lists the transitions still to run from checkpoint s
func remaining(s State, withMintTo bool) []transition {
	var out []transition
	for t, ok := next(s, withMintTo); ok; t, ok = next(t.to, withMintTo) {
		out = append(out, t)
	}
	return out
}

// checkpointBefore returns the state a run is left in when step fails
func checkpointBefore(step Step) State {
	for _, t := range transitions {
		if t.step == step {
			return t.from
		}
	}
	return StateIdle
}
