package workflow

import (
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Run is one token creation attempt. Runs live only in memory.
type Run struct {
	ID      string
	Request TokenRequest
	Owner   solana.PublicKey

	State      State
	Checkpoint State // last confirmed state; equals State unless State is Failed
	Status     Status
	FailedAt   Step
	Err        string

	Mint         solana.PublicKey // zero until the mint step is confirmed
	TokenAccount solana.PublicKey // zero until the account step is confirmed
	MintedAmount uint64           // base units

	// Signatures are recorded on submission, so a step that failed to
	// confirm still shows what was sent.
	Signatures map[Step]solana.Signature

	validUntil  map[Step]uint64  // last valid block height of each submitted transaction
	pendingMint solana.PublicKey // mint of the last submitted mint step

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Done reports whether every step of the run is confirmed
func (r Run) Done() bool {
	_, more := next(r.Checkpoint, r.Request.WithMintTo())
	return r.State != StateFailed && !more
}

func (r *Run) clone() Run {
	out := *r
	out.Signatures = maps.Clone(r.Signatures)
	out.validUntil = maps.Clone(r.validUntil)
	return out
}

// Store is the process-local run registry.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func NewStore() *Store {
	return &Store{runs: make(map[string]*Run)}
}

// Get returns a snapshot of the run with the given id
func (s *Store) Get(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return run.clone(), true
}

// List returns snapshots of all runs, newest first
func (s *Store) List() []Run {
	s.mu.RLock()
	out := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Store) add(run *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

// update applies fn to the stored run under the write lock and returns a snapshot
func (s *Store) update(run *Run, fn func(r *Run)) Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(run)
	return run.clone()
}

// lookup returns the live run for mutation by the workflow
func (s *Store) lookup(id string) (*Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	return run, ok
}
