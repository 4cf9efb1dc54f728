package dispute

import (
	"crypto/rand"
	"encoding/binary"
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
	errNilState    = errors.New("dispute engine: state not configured")
	errNilTransfer = errors.New("dispute engine: token transferer not configured")
	errNilVault    = errors.New("dispute engine: vault not configured")
	errNilBridge   = errors.New("dispute engine: escrow bridge not configured")
	errNilFunding  = errors.New("dispute engine: funding verifier not configured")

	// ErrDisputeNotFound marks lookups for unknown disputes.
	ErrDisputeNotFound = errors.New("dispute: dispute not found")
	// ErrJurorNotFound marks lookups for unregistered jurors.
	ErrJurorNotFound = errors.New("dispute: juror not registered")
	// ErrAlreadyRegistered marks repeated juror registration.
	ErrAlreadyRegistered = errors.New("dispute: juror already registered")
	// ErrInsufficientStake marks registrations below the minimum stake.
	ErrInsufficientStake = errors.New("dispute: stake below minimum")
	// ErrJurorBusy blocks deregistration while the juror sits on a panel.
	ErrJurorBusy = errors.New("dispute: juror has active disputes")
	// ErrUnauthorized marks calls from a principal other than the required one.
	ErrUnauthorized = errors.New("dispute: unauthorized")
	// ErrTokenNotConfigured marks staking operations before ConfigureToken.
	ErrTokenNotConfigured = errors.New("dispute: token not configured")
	// ErrMilestoneNotContestable marks disputes against milestones that are
	// neither submitted nor rejected.
	ErrMilestoneNotContestable = errors.New("dispute: milestone not contestable")
	// ErrDisputeExists marks a second dispute against a milestone whose first
	// dispute has not reached final resolution.
	ErrDisputeExists = errors.New("dispute: open dispute already exists")
	// ErrInsufficientContribution marks initiations by backers below the
	// funding threshold.
	ErrInsufficientContribution = errors.New("dispute: contribution below minimum")
	// ErrInvalidStatus marks operations illegal in the dispute's current status.
	ErrInvalidStatus = errors.New("dispute: invalid dispute status")
	// ErrInsufficientJurors marks jury selection over a pool smaller than the
	// required panel after conflict exclusion.
	ErrInsufficientJurors = errors.New("dispute: insufficient eligible jurors")
	// ErrNotJuror marks votes from addresses outside the current panel.
	ErrNotJuror = errors.New("dispute: not a juror on this panel")
	// ErrAlreadyCommitted marks duplicate commitments within one round.
	ErrAlreadyCommitted = errors.New("dispute: vote already committed")
	// ErrAlreadyRevealed marks duplicate reveals within one round.
	ErrAlreadyRevealed = errors.New("dispute: vote already revealed")
	// ErrCommitClosed marks commitments after the commit window.
	ErrCommitClosed = errors.New("dispute: commit window closed")
	// ErrRevealNotOpen marks reveals before the commit window closes.
	ErrRevealNotOpen = errors.New("dispute: reveal window not open")
	// ErrRevealClosed marks reveals after the reveal window.
	ErrRevealClosed = errors.New("dispute: reveal window closed")
	// ErrRevealOpen marks tallies before the reveal window closes.
	ErrRevealOpen = errors.New("dispute: reveal window still open")
	// ErrCommitmentMismatch marks reveals whose preimage does not reproduce
	// the committed hash.
	ErrCommitmentMismatch = errors.New("dispute: reveal does not match commitment")
	// ErrNoCommitment marks reveals without a prior commitment.
	ErrNoCommitment = errors.New("dispute: no commitment to reveal")
	// ErrInvalidResolution marks reveals of an unknown or empty resolution.
	ErrInvalidResolution = errors.New("dispute: invalid resolution")
	// ErrAppealWindowClosed marks appeals after the appeal window.
	ErrAppealWindowClosed = errors.New("dispute: appeal window closed")
	// ErrAppealWindowOpen marks enforcement before the appeal window closes.
	ErrAppealWindowOpen = errors.New("dispute: appeal window still open")
	// ErrAppealCapReached marks appeals past the appeal cap.
	ErrAppealCapReached = errors.New("dispute: appeal cap reached")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

// Transferer moves fungible value between accounts. Calls are assumed atomic
// with the enclosing operation.
type Transferer interface {
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// EscrowBridge is the narrow escrow surface the dispute engine consumes:
// admission data for a contested milestone and enforcement of a final outcome.
type EscrowBridge interface {
	MilestoneForDispute(projectID, milestoneID uint64) ([20]byte, *big.Int, bool, error)
	EnforceResolution(projectID, milestoneID uint64, releaseBps uint32) error
}

// FundingVerifier reports how much an address contributed to a project's
// funding round. Backers below the dispute threshold cannot initiate.
type FundingVerifier interface {
	Contribution(projectID uint64, addr [20]byte) (*big.Int, error)
}

// AdminView exposes the control-plane admin used for token configuration.
type AdminView interface {
	Admin() ([20]byte, bool, error)
}

type disputeEvent struct {
	evt *types.Event
}

func (e disputeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e disputeEvent) Event() *types.Event { return e.evt }

// Engine wires dispute resolution with external state, the staking token
// service, the escrow bridge and the pause guard.
type Engine struct {
	state    engineState
	transfer Transferer
	bridge   EscrowBridge
	funding  FundingVerifier
	admin    AdminView
	pauses   common.PauseView
	emitter  events.Emitter
	nowFn    func() int64
	randFn   func(max uint64) (uint64, error)
	vault    [20]byte

	commitWindow uint64
	revealWindow uint64
	appealWindow uint64
}

// NewEngine creates a dispute engine with a no-op emitter, crypto/rand driven
// jury sampling and the default phase windows.
func NewEngine() *Engine {
	return &Engine{
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
		randFn:       cryptoRandUint64,
		commitWindow: DefaultCommitWindowSeconds,
		revealWindow: DefaultRevealWindowSeconds,
		appealWindow: DefaultAppealWindowSeconds,
	}
}

func cryptoRandUint64(max uint64) (uint64, error) {
	if max == 0 {
		return 0, errors.New("dispute: rand upper bound must be positive")
	}
	n, err := rand.Int(rand.Reader, new(big.Int).SetUint64(max))
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransferer configures the token transfer service.
func (e *Engine) SetTransferer(t Transferer) { e.transfer = t }

// SetEscrowBridge wires the escrow surface used for admission and enforcement.
func (e *Engine) SetEscrowBridge(b EscrowBridge) { e.bridge = b }

// SetFundingVerifier wires the contribution lookup consulted when a
// non-creator initiates a dispute.
func (e *Engine) SetFundingVerifier(v FundingVerifier) { e.funding = v }

// SetAdminView wires the control-plane admin lookup.
func (e *Engine) SetAdminView(view AdminView) { e.admin = view }

// SetPauseView wires the pause guard consulted by mutating operations.
func (e *Engine) SetPauseView(view common.PauseView) { e.pauses = view }

// SetVault configures the address holding juror stakes and the fee pool.
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

// SetRandFunc overrides the randomness source used for jury sampling. The
// function must return a uniform value in [0, max).
func (e *Engine) SetRandFunc(fn func(max uint64) (uint64, error)) {
	if fn == nil {
		e.randFn = cryptoRandUint64
		return
	}
	e.randFn = fn
}

// SetWindows overrides the commit, reveal and appeal phase windows in seconds.
// Zero values keep the current setting.
func (e *Engine) SetWindows(commit, reveal, appeal uint64) {
	if commit > 0 {
		e.commitWindow = commit
	}
	if reveal > 0 {
		e.revealWindow = reveal
	}
	if appeal > 0 {
		e.appealWindow = appeal
	}
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(disputeEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) guard() error {
	return common.Guard(e.pauses, common.ModuleDispute)
}

// --- storage keys ---

func tokenKey() []byte { return []byte("dispute/token") }

func nextIDKey() []byte { return []byte("dispute/nextid") }

func feePoolKey() []byte { return []byte("dispute/feepool") }

func jurorPoolKey() []byte { return []byte("dispute/pool") }

func disputeKey(disputeID uint64) []byte {
	return []byte(fmt.Sprintf("dispute/info/%d", disputeID))
}

func jurorKey(addr [20]byte) []byte {
	return []byte(fmt.Sprintf("dispute/juror/%x", addr))
}

func panelKey(disputeID uint64, round uint32) []byte {
	return []byte(fmt.Sprintf("dispute/panel/%d/%d", disputeID, round))
}

func commitmentKey(disputeID uint64, round uint32, juror [20]byte) []byte {
	return []byte(fmt.Sprintf("dispute/commit/%d/%d/%x", disputeID, round, juror))
}

func openDisputeKey(projectID, milestoneID uint64) []byte {
	return []byte(fmt.Sprintf("dispute/open/%d/%d", projectID, milestoneID))
}

func projectDisputesKey(projectID uint64) []byte {
	return []byte(fmt.Sprintf("dispute/project/%d", projectID))
}

func encodeDisputeID(disputeID uint64) []byte {
	encoded := make([]byte, 8)
	binary.BigEndian.PutUint64(encoded, disputeID)
	return encoded
}

// --- storage helpers ---

func (e *Engine) token() (string, error) {
	var token string
	ok, err := e.state.KVGet(tokenKey(), &token)
	if err != nil {
		return "", err
	}
	if !ok || token == "" {
		return "", ErrTokenNotConfigured
	}
	return token, nil
}

func (e *Engine) loadDispute(disputeID uint64) (*Dispute, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var stored Dispute
	ok, err := e.state.KVGet(disputeKey(disputeID), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDisputeNotFound
	}
	return &stored, nil
}

func (e *Engine) storeDispute(d *Dispute) error {
	return e.state.KVPut(disputeKey(d.ID), d)
}

func (e *Engine) loadJuror(addr [20]byte) (*JurorInfo, error) {
	var stored JurorInfo
	ok, err := e.state.KVGet(jurorKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok || !stored.Registered {
		return nil, ErrJurorNotFound
	}
	return &stored, nil
}

func (e *Engine) storeJuror(j *JurorInfo) error {
	return e.state.KVPut(jurorKey(j.Address), j)
}

func (e *Engine) jurorPool() ([][20]byte, error) {
	pool := make([][20]byte, 0)
	if _, err := e.state.KVGet(jurorPoolKey(), &pool); err != nil {
		return nil, err
	}
	return pool, nil
}

func (e *Engine) panel(disputeID uint64, round uint32) ([][20]byte, error) {
	members := make([][20]byte, 0)
	if _, err := e.state.KVGet(panelKey(disputeID, round), &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (e *Engine) feePool() (*big.Int, error) {
	pool := new(big.Int)
	ok, err := e.state.KVGet(feePoolKey(), pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return pool, nil
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

// --- operations ---

// ConfigureToken sets the staking and fee token for the dispute module.
// Admin only.
func (e *Engine) ConfigureToken(caller [20]byte, token string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	normalized := strings.ToUpper(strings.TrimSpace(token))
	if normalized == "" {
		return fmt.Errorf("%w: empty token", ErrTokenNotConfigured)
	}
	if err := e.state.KVPut(tokenKey(), normalized); err != nil {
		return err
	}
	e.emit(newTokenConfiguredEvent(normalized))
	return nil
}

func (e *Engine) requireAdmin(caller [20]byte) error {
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
	return nil
}

// RegisterJuror stakes the caller into the juror pool. The stake moves into
// the module vault and stays locked until deregistration.
func (e *Engine) RegisterJuror(caller [20]byte, stake *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard(); err != nil {
		return err
	}
	if stake == nil || stake.Cmp(big.NewInt(MinJurorStake)) < 0 {
		return ErrInsufficientStake
	}
	token, err := e.token()
	if err != nil {
		return err
	}
	var existing JurorInfo
	ok, err := e.state.KVGet(jurorKey(caller), &existing)
	if err != nil {
		return err
	}
	if ok && existing.Registered {
		return ErrAlreadyRegistered
	}
	if err := e.moveTokens(token, caller, e.vault, stake); err != nil {
		return err
	}
	juror := &JurorInfo{
		Address:      caller,
		StakedAmount: new(big.Int).Set(stake),
		Registered:   true,
	}
	if ok {
		// Returning juror keeps their voting history.
		juror.SuccessfulVotes = existing.SuccessfulVotes
		juror.MissedVotes = existing.MissedVotes
	}
	if err := e.storeJuror(juror); err != nil {
		return err
	}
	pool, err := e.jurorPool()
	if err != nil {
		return err
	}
	pool = append(pool, caller)
	if err := e.state.KVPut(jurorPoolKey(), pool); err != nil {
		return err
	}
	e.emit(newJurorRegisteredEvent(juror))
	return nil
}

// DeregisterJuror refunds the remaining stake and removes the caller from the
// pool. Jurors sitting on an active panel cannot leave.
func (e *Engine) DeregisterJuror(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard(); err != nil {
		return err
	}
	juror, err := e.loadJuror(caller)
	if err != nil {
		return err
	}
	if juror.ActiveDisputes > 0 {
		return ErrJurorBusy
	}
	token, err := e.token()
	if err != nil {
		return err
	}
	refund := juror.StakedAmount
	if refund != nil && refund.Sign() > 0 {
		if err := e.moveTokens(token, e.vault, caller, refund); err != nil {
			return err
		}
	}
	juror.Registered = false
	juror.StakedAmount = big.NewInt(0)
	if err := e.storeJuror(juror); err != nil {
		return err
	}
	pool, err := e.jurorPool()
	if err != nil {
		return err
	}
	filtered := pool[:0]
	for _, member := range pool {
		if member != caller {
			filtered = append(filtered, member)
		}
	}
	if err := e.state.KVPut(jurorPoolKey(), filtered); err != nil {
		return err
	}
	e.emit(newJurorDeregisteredEvent(caller, refund))
	return nil
}

// InitiateDispute opens a dispute against a submitted or rejected milestone
// and returns its identifier. Non-creators must have contributed at least the
// minimum funding amount to the project.
func (e *Engine) InitiateDispute(projectID, milestoneID uint64, initiator [20]byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := e.guard(); err != nil {
		return 0, err
	}
	if e.bridge == nil {
		return 0, errNilBridge
	}
	creator, _, contestable, err := e.bridge.MilestoneForDispute(projectID, milestoneID)
	if err != nil {
		return 0, err
	}
	if !contestable {
		return 0, ErrMilestoneNotContestable
	}
	if initiator != creator {
		if e.funding == nil {
			return 0, errNilFunding
		}
		contribution, err := e.funding.Contribution(projectID, initiator)
		if err != nil {
			return 0, err
		}
		if contribution == nil || contribution.Cmp(big.NewInt(MinDisputeContribution)) < 0 {
			return 0, ErrInsufficientContribution
		}
	}
	open, err := e.hasOpenDispute(projectID, milestoneID)
	if err != nil {
		return 0, err
	}
	if open {
		return 0, ErrDisputeExists
	}
	var disputeID uint64
	if _, err := e.state.KVGet(nextIDKey(), &disputeID); err != nil {
		return 0, err
	}
	d := &Dispute{
		ID:          disputeID,
		ProjectID:   projectID,
		MilestoneID: milestoneID,
		Initiator:   initiator,
		Status:      StatusPending,
		CreatedAt:   uint64(e.now()),
	}
	if err := e.storeDispute(d); err != nil {
		return 0, err
	}
	if err := e.state.KVPut(nextIDKey(), disputeID+1); err != nil {
		return 0, err
	}
	if err := e.state.KVPut(openDisputeKey(projectID, milestoneID), disputeID); err != nil {
		return 0, err
	}
	if err := e.state.KVAppend(projectDisputesKey(projectID), encodeDisputeID(disputeID)); err != nil {
		return 0, err
	}
	e.emit(newDisputeInitiatedEvent(d))
	return disputeID, nil
}

func (e *Engine) hasOpenDispute(projectID, milestoneID uint64) (bool, error) {
	var openID uint64
	ok, err := e.state.KVGet(openDisputeKey(projectID, milestoneID), &openID)
	if err != nil || !ok {
		return false, err
	}
	existing, err := e.loadDispute(openID)
	if err != nil {
		return false, err
	}
	return existing.Status != StatusFinalResolved, nil
}

// HasOpenDispute reports whether the milestone has a dispute that has not yet
// reached final resolution. The escrow engine consults this before counting
// validator votes so milestone finalisation cannot race a running dispute.
func (e *Engine) HasOpenDispute(projectID, milestoneID uint64) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.hasOpenDispute(projectID, milestoneID)
}

// SelectJury draws the panel for the dispute's current round from the active
// juror pool, excluding the project creator, the initiator and jurors from
// earlier rounds of the same dispute. Selection is without replacement. The
// dispute moves to Voting and the commit window opens.
func (e *Engine) SelectJury(disputeID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard(); err != nil {
		return err
	}
	if e.bridge == nil {
		return errNilBridge
	}
	d, err := e.loadDispute(disputeID)
	if err != nil {
		return err
	}
	if d.Status != StatusPending && d.Status != StatusAppealed {
		return fmt.Errorf("%w: cannot select jury in status %d", ErrInvalidStatus, d.Status)
	}
	creator, _, _, err := e.bridge.MilestoneForDispute(d.ProjectID, d.MilestoneID)
	if err != nil {
		return err
	}
	candidates, err := e.eligibleCandidates(d, creator)
	if err != nil {
		return err
	}
	return e.drawPanel(d, candidates)
}

// eligibleCandidates filters the juror pool down to addresses without a
// conflict of interest for the dispute's current round: the project creator,
// the initiator and jurors from earlier rounds are excluded.
func (e *Engine) eligibleCandidates(d *Dispute, creator [20]byte) ([][20]byte, error) {
	excluded := map[[20]byte]struct{}{
		creator:     {},
		d.Initiator: {},
	}
	for round := uint32(0); round < d.AppealCount; round++ {
		prior, err := e.panel(d.ID, round)
		if err != nil {
			return nil, err
		}
		for _, member := range prior {
			excluded[member] = struct{}{}
		}
	}
	pool, err := e.jurorPool()
	if err != nil {
		return nil, err
	}
	candidates := make([][20]byte, 0, len(pool))
	for _, member := range pool {
		if _, conflicted := excluded[member]; conflicted {
			continue
		}
		candidates = append(candidates, member)
	}
	return candidates, nil
}

// drawPanel samples the round's panel from the candidates without replacement,
// locks the drawn jurors, moves the dispute to Voting and opens the commit
// window.
func (e *Engine) drawPanel(d *Dispute, candidates [][20]byte) error {
	size := d.PanelSize()
	if len(candidates) < size {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientJurors, size, len(candidates))
	}
	selected := make([][20]byte, 0, size)
	for len(selected) < size {
		idx, err := e.randFn(uint64(len(candidates)))
		if err != nil {
			return err
		}
		if idx >= uint64(len(candidates)) {
			return fmt.Errorf("dispute: rand index %d out of range %d", idx, len(candidates))
		}
		selected = append(selected, candidates[idx])
		candidates[idx] = candidates[len(candidates)-1]
		candidates = candidates[:len(candidates)-1]
	}
	for _, member := range selected {
		juror, err := e.loadJuror(member)
		if err != nil {
			return err
		}
		juror.ActiveDisputes++
		if err := e.storeJuror(juror); err != nil {
			return err
		}
	}
	if err := e.state.KVPut(panelKey(d.ID, d.AppealCount), selected); err != nil {
		return err
	}
	d.Status = StatusVoting
	d.CreatedAt = uint64(e.now())
	if err := e.storeDispute(d); err != nil {
		return err
	}
	e.emit(newJurySelectedEvent(d, selected))
	return nil
}

// JurorAssignments returns the panel for the dispute's current round.
func (e *Engine) JurorAssignments(disputeID uint64) ([][20]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	d, err := e.loadDispute(disputeID)
	if err != nil {
		return nil, err
	}
	members, err := e.panel(disputeID, d.AppealCount)
	if err != nil {
		return nil, err
	}
	out := make([][20]byte, len(members))
	copy(out, members)
	return out, nil
}

// --- queries ---

// GetDispute returns the stored dispute record.
func (e *Engine) GetDispute(disputeID uint64) (*Dispute, error) {
	d, err := e.loadDispute(disputeID)
	if err != nil {
		return nil, err
	}
	return d.Clone(), nil
}

// GetJuror returns the stored record for a registered juror.
func (e *Engine) GetJuror(addr [20]byte) (*JurorInfo, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	juror, err := e.loadJuror(addr)
	if err != nil {
		return nil, err
	}
	return juror.Clone(), nil
}

// FeePool returns the current balance of the slash and fee pool.
func (e *Engine) FeePool() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.feePool()
}

// ProjectDisputes returns the identifiers of every dispute opened against the
// project's milestones, in initiation order.
func (e *Engine) ProjectDisputes(projectID uint64) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var raw [][]byte
	if err := e.state.KVGetList(projectDisputesKey(projectID), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			return nil, fmt.Errorf("dispute: malformed project index entry")
		}
		ids = append(ids, binary.BigEndian.Uint64(entry))
	}
	return ids, nil
}
