package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"crowdvault/core/events"
	"crowdvault/core/types"
	"crowdvault/native/common"
)

var (
	errNilState    = errors.New("escrow engine: state not configured")
	errNilTransfer = errors.New("escrow engine: token transferer not configured")
	errNilVault    = errors.New("escrow engine: vault not configured")

	// ErrEscrowNotFound marks lookups for unknown projects.
	ErrEscrowNotFound = errors.New("escrow: escrow not found")
	// ErrMilestoneNotFound marks lookups for unknown milestones.
	ErrMilestoneNotFound = errors.New("escrow: milestone not found")
	// ErrAlreadyInitialized marks repeated project initialization.
	ErrAlreadyInitialized = errors.New("escrow: already initialized")
	// ErrUnauthorized marks calls from a principal other than the required one.
	ErrUnauthorized = errors.New("escrow: unauthorized")
	// ErrInvalidAmount marks zero or negative monetary inputs.
	ErrInvalidAmount = errors.New("escrow: amount must be positive")
	// ErrInvalidStatus marks operations illegal in the current milestone status.
	ErrInvalidStatus = errors.New("escrow: invalid milestone status")
	// ErrNotValidator marks votes from addresses outside the validator set.
	ErrNotValidator = errors.New("escrow: voter is not a validator")
	// ErrAlreadyVoted marks duplicate votes within one submission round.
	ErrAlreadyVoted = errors.New("escrow: validator already voted")
	// ErrMilestoneDisputed freezes validator voting while a dispute against
	// the milestone has not reached final resolution.
	ErrMilestoneDisputed = errors.New("escrow: milestone is under dispute")
	// ErrInsufficientEscrowBalance guards the release invariant: released
	// funds can never exceed the total deposited.
	ErrInsufficientEscrowBalance = errors.New("escrow: insufficient escrow balance")
	// ErrBatchEmpty marks empty batch requests.
	ErrBatchEmpty = errors.New("escrow: batch must not be empty")
	// ErrBatchTooLarge marks batches above the fixed capacity.
	ErrBatchTooLarge = errors.New("escrow: batch exceeds capacity")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Transferer moves fungible value between accounts. Calls are assumed atomic
// with the enclosing operation.
type Transferer interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// AdminView exposes the control-plane admin used for validator updates.
type AdminView interface {
	Admin() ([20]byte, bool, error)
}

// DisputeView reports whether a milestone has a dispute that has not reached
// final resolution. Validator voting is frozen while one is open.
type DisputeView interface {
	HasOpenDispute(projectID, milestoneID uint64) (bool, error)
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine wires the escrow and milestone business logic with external state,
// the token transfer service and the pause guard.
type Engine struct {
	state    engineState
	transfer Transferer
	admin    AdminView
	disputes DisputeView
	pauses   common.PauseView
	emitter  events.Emitter
	nowFn    func() int64
	vault    [20]byte
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransferer configures the token transfer service.
func (e *Engine) SetTransferer(t Transferer) { e.transfer = t }

// SetAdminView wires the control-plane admin lookup.
func (e *Engine) SetAdminView(view AdminView) { e.admin = view }

// SetDisputeView wires the open-dispute lookup consulted by milestone voting.
// Leaving it unset disables the interlock.
func (e *Engine) SetDisputeView(view DisputeView) { e.disputes = view }

// SetPauseView wires the pause guard consulted by mutating operations.
func (e *Engine) SetPauseView(view common.PauseView) { e.pauses = view }

// SetVault configures the address holding escrowed project funds.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) guard() error {
	return common.Guard(e.pauses, common.ModuleEscrow)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// --- storage keys ---

func escrowKey(projectID uint64) []byte {
	return []byte(fmt.Sprintf("escrow/info/%d", projectID))
}

func milestoneKey(projectID, milestoneID uint64) []byte {
	return []byte(fmt.Sprintf("escrow/milestone/%d/%d", projectID, milestoneID))
}

func milestoneCounterKey(projectID uint64) []byte {
	return []byte(fmt.Sprintf("escrow/mcounter/%d", projectID))
}

func milestoneTotalKey(projectID uint64) []byte {
	return []byte(fmt.Sprintf("escrow/mtotal/%d", projectID))
}

func voteRecordKey(projectID, milestoneID, round uint64, voter [20]byte) []byte {
	return []byte(fmt.Sprintf("escrow/vote/%d/%d/%d/%x", projectID, milestoneID, round, voter))
}

func (e *Engine) loadEscrow(projectID uint64) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var stored Escrow
	ok, err := e.state.KVGet(escrowKey(projectID), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEscrowNotFound
	}
	return &stored, nil
}

func (e *Engine) storeEscrow(esc *Escrow) error {
	sanitized, err := SanitizeEscrow(esc)
	if err != nil {
		return err
	}
	return e.state.KVPut(escrowKey(sanitized.ProjectID), sanitized)
}

func (e *Engine) loadMilestone(projectID, milestoneID uint64) (*Milestone, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var stored Milestone
	ok, err := e.state.KVGet(milestoneKey(projectID, milestoneID), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMilestoneNotFound
	}
	return &stored, nil
}

func (e *Engine) storeMilestone(m *Milestone) error {
	return e.state.KVPut(milestoneKey(m.ProjectID, m.ID), m)
}

func (e *Engine) milestoneCounter(projectID uint64) (uint64, error) {
	var counter uint64
	if _, err := e.state.KVGet(milestoneCounterKey(projectID), &counter); err != nil {
		return 0, err
	}
	return counter, nil
}

func (e *Engine) milestoneTotal(projectID uint64) (*big.Int, error) {
	total := new(big.Int)
	ok, err := e.state.KVGet(milestoneTotalKey(projectID), total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return total, nil
}

func (e *Engine) hasVoted(projectID uint64, m *Milestone, voter [20]byte) (bool, error) {
	var voted bool
	ok, err := e.state.KVGet(voteRecordKey(projectID, m.ID, m.Round, voter), &voted)
	if err != nil {
		return false, err
	}
	return ok && voted, nil
}

func (e *Engine) recordVote(projectID uint64, m *Milestone, voter [20]byte) error {
	return e.state.KVPut(voteRecordKey(projectID, m.ID, m.Round, voter), true)
}

// --- operations ---

// Initialize creates the escrow for a project with zero balances and a zero
// milestone counter. A zero thresholdBps selects the default threshold.
func (e *Engine) Initialize(projectID uint64, creator [20]byte, token string, validators [][20]byte, thresholdBps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard(); err != nil {
		return err
	}
	var existing Escrow
	ok, err := e.state.KVGet(escrowKey(projectID), &existing)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyInitialized
	}
	if thresholdBps == 0 {
		thresholdBps = DefaultApprovalThresholdBps
	}
	esc := &Escrow{
		ProjectID:            projectID,
		Creator:              creator,
		Token:                strings.ToUpper(strings.TrimSpace(token)),
		TotalDeposited:       big.NewInt(0),
		ReleasedAmount:       big.NewInt(0),
		Validators:           validators,
		ApprovalThresholdBps: thresholdBps,
	}
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	if err := e.state.KVPut(milestoneCounterKey(projectID), uint64(0)); err != nil {
		return err
	}
	e.emit(newInitializedEvent(esc))
	return nil
}

// Deposit adds funds to the escrow, moving tokens from the depositor into the
// module vault. Deposits are purely additive.
func (e *Engine) Deposit(projectID uint64, from [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	esc, err := e.loadEscrow(projectID)
	if err != nil {
		return err
	}
	if err := e.moveTokens(esc.Token, from, e.vault, amount); err != nil {
		return err
	}
	esc.TotalDeposited = new(big.Int).Add(esc.TotalDeposited, amount)
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(newDepositedEvent(esc, amount))
	return nil
}

// CreateMilestone registers a new milestone for the project and returns its
// identifier. The running sum of milestone amounts may never exceed the total
// deposited at creation time.
func (e *Engine) CreateMilestone(projectID uint64, caller [20]byte, descriptionHash [32]byte, amount *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := e.guard(); err != nil {
		return 0, err
	}
	esc, err := e.loadEscrow(projectID)
	if err != nil {
		return 0, err
	}
	if caller != esc.Creator {
		return 0, ErrUnauthorized
	}
	milestoneID, err := e.createMilestoneLocked(esc, descriptionHash, amount)
	if err != nil {
		return 0, err
	}
	return milestoneID, nil
}

// createMilestoneLocked performs the per-item creation work shared with the
// batch path. The caller has already authenticated the creator.
func (e *Engine) createMilestoneLocked(esc *Escrow, descriptionHash [32]byte, amount *big.Int) (uint64, error) {
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	total, err := e.milestoneTotal(esc.ProjectID)
	if err != nil {
		return 0, err
	}
	newTotal := new(big.Int).Add(total, amount)
	if newTotal.Cmp(esc.TotalDeposited) > 0 {
		return 0, ErrInsufficientEscrowBalance
	}
	milestoneID, err := e.milestoneCounter(esc.ProjectID)
	if err != nil {
		return 0, err
	}
	milestone := &Milestone{
		ID:              milestoneID,
		ProjectID:       esc.ProjectID,
		DescriptionHash: descriptionHash,
		Amount:          cloneBigInt(amount),
		Status:          MilestonePending,
		CreatedAt:       uint64(e.now()),
	}
	if err := e.storeMilestone(milestone); err != nil {
		return 0, err
	}
	if err := e.state.KVPut(milestoneCounterKey(esc.ProjectID), milestoneID+1); err != nil {
		return 0, err
	}
	if err := e.state.KVPut(milestoneTotalKey(esc.ProjectID), newTotal); err != nil {
		return 0, err
	}
	e.emit(newMilestoneCreatedEvent(milestone))
	return milestoneID, nil
}

// SubmitMilestone attaches proof to a pending milestone and opens a fresh
// voting round. Counters and voter history are reset by bumping the round.
func (e *Engine) SubmitMilestone(projectID, milestoneID uint64, caller [20]byte, proofHash [32]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard(); err != nil {
		return err
	}
	esc, err := e.loadEscrow(projectID)
	if err != nil {
		return err
	}
	if caller != esc.Creator {
		return ErrUnauthorized
	}
	milestone, err := e.loadMilestone(projectID, milestoneID)
	if err != nil {
		return err
	}
	if milestone.Status != MilestonePending {
		return fmt.Errorf("%w: cannot submit in status %d", ErrInvalidStatus, milestone.Status)
	}
	milestone.Status = MilestoneSubmitted
	milestone.ProofHash = proofHash
	milestone.ApprovalCount = 0
	milestone.RejectionCount = 0
	milestone.Round++
	if err := e.storeMilestone(milestone); err != nil {
		return err
	}
	e.emit(newMilestoneSubmittedEvent(milestone))
	return nil
}

// VoteMilestone records an approval or rejection from a validator and
// finalises the milestone once either outcome becomes unavoidable. The
// threshold arithmetic uses integer floor division and is evaluated
// identically regardless of vote order.
func (e *Engine) VoteMilestone(projectID, milestoneID uint64, voter [20]byte, approve bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard(); err != nil {
		return err
	}
	esc, err := e.loadEscrow(projectID)
	if err != nil {
		return err
	}
	if !esc.IsValidator(voter) {
		return ErrNotValidator
	}
	return e.voteOnce(esc, milestoneID, voter, approve)
}

// finalizeVote applies the threshold evaluation after a vote has been counted
// and persists both records.
func (e *Engine) finalizeVote(esc *Escrow, milestone *Milestone) error {
	required := esc.RequiredApprovals()
	validators := uint32(len(esc.Validators))
	switch {
	case milestone.ApprovalCount >= required:
		milestone.Status = MilestoneApproved
		if err := e.releaseMilestoneFunds(esc, milestone); err != nil {
			return err
		}
		if err := e.storeEscrow(esc); err != nil {
			return err
		}
		if err := e.storeMilestone(milestone); err != nil {
			return err
		}
		e.emit(newMilestoneApprovedEvent(milestone))
		e.emit(newFundsReleasedEvent(esc, milestone.ID, milestone.Amount))
	case milestone.RejectionCount > validators-required:
		// Rejection can no longer be outvoted by the remaining ballots.
		milestone.Status = MilestoneRejected
		if err := e.storeMilestone(milestone); err != nil {
			return err
		}
		e.emit(newMilestoneRejectedEvent(milestone))
	default:
		if err := e.storeMilestone(milestone); err != nil {
			return err
		}
	}
	return nil
}

// releaseMilestoneFunds moves amount from deposited headroom into the released
// total and pays the creator. Double release is impossible: the updated
// released amount may never exceed the total deposited.
func (e *Engine) releaseMilestoneFunds(esc *Escrow, milestone *Milestone) error {
	return e.releaseFunds(esc, milestone.Amount)
}

func (e *Engine) releaseFunds(esc *Escrow, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	newReleased := new(big.Int).Add(esc.ReleasedAmount, amount)
	if newReleased.Cmp(esc.TotalDeposited) > 0 {
		return ErrInsufficientEscrowBalance
	}
	if err := e.moveTokens(esc.Token, e.vault, esc.Creator, amount); err != nil {
		return err
	}
	esc.ReleasedAmount = newReleased
	return nil
}

func (e *Engine) moveTokens(token string, from, to [20]byte, amount *big.Int) error {
	if e.transfer == nil {
		return errNilTransfer
	}
	if e.vault == ([20]byte{}) {
		return errNilVault
	}
	return e.transfer.Transfer(token, from, to, amount)
}

// UpdateValidators replaces the validator set. Admin only.
func (e *Engine) UpdateValidators(projectID uint64, caller [20]byte, validators [][20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard(); err != nil {
		return err
	}
	if e.admin == nil {
		return ErrUnauthorized
	}
	admin, ok, err := e.admin.Admin()
	if err != nil {
		return err
	}
	if !ok || admin != caller {
		return ErrUnauthorized
	}
	esc, err := e.loadEscrow(projectID)
	if err != nil {
		return err
	}
	esc.Validators = validators
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(newValidatorsUpdatedEvent(esc))
	return nil
}

// --- queries ---

// GetEscrow returns the stored escrow for the project.
func (e *Engine) GetEscrow(projectID uint64) (*Escrow, error) {
	esc, err := e.loadEscrow(projectID)
	if err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}

// GetMilestone returns the stored milestone.
func (e *Engine) GetMilestone(projectID, milestoneID uint64) (*Milestone, error) {
	milestone, err := e.loadMilestone(projectID, milestoneID)
	if err != nil {
		return nil, err
	}
	return milestone.Clone(), nil
}

// TotalMilestoneAmount returns the running sum of all milestone amounts for
// the project.
func (e *Engine) TotalMilestoneAmount(projectID uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.loadEscrow(projectID); err != nil {
		return nil, err
	}
	return e.milestoneTotal(projectID)
}

// AvailableBalance returns the deposited headroom not yet released.
func (e *Engine) AvailableBalance(projectID uint64) (*big.Int, error) {
	esc, err := e.loadEscrow(projectID)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(esc.TotalDeposited, esc.ReleasedAmount), nil
}
