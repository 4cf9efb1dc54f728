package system

import (
	"errors"
	"time"

	"crowdvault/core/events"
	"crowdvault/core/types"
)

var (
	errNilState = errors.New("system engine: state not configured")

	// ErrNotInitialized marks calls made before the admin bootstrap.
	ErrNotInitialized = errors.New("system: admin not initialized")
	// ErrAlreadyInitialized marks repeated admin bootstrap attempts.
	ErrAlreadyInitialized = errors.New("system: admin already initialized")
	// ErrUnauthorized marks calls from a principal other than the admin.
	ErrUnauthorized = errors.New("system: unauthorized")
	// ErrAlreadyPaused marks pause attempts while already paused.
	ErrAlreadyPaused = errors.New("system: already paused")
	// ErrNotPaused marks resume or upgrade attempts without an active pause.
	ErrNotPaused = errors.New("system: not paused")
	// ErrResumeLocked marks resume attempts before the pause delay elapsed.
	ErrResumeLocked = errors.New("system: resume time lock not elapsed")
	// ErrUpgradePending marks schedule attempts while a proposal exists.
	ErrUpgradePending = errors.New("system: upgrade already pending")
	// ErrNoPendingUpgrade marks execute/cancel without a proposal.
	ErrNoPendingUpgrade = errors.New("system: no pending upgrade")
	// ErrUpgradeLocked marks execute attempts before the notice period ends.
	ErrUpgradeLocked = errors.New("system: upgrade time lock not elapsed")
)

var (
	adminKey   = []byte("system/admin")
	pauseKey   = []byte("system/pause")
	upgradeKey = []byte("system/upgrade")
	versionKey = []byte("system/version")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

type systemEvent struct {
	evt *types.Event
}

func (e systemEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e systemEvent) Event() *types.Event { return e.evt }

// Engine owns the admin/pause/upgrade control plane consulted by every
// mutating operation in the escrow and dispute engines.
type Engine struct {
	state        engineState
	emitter      events.Emitter
	nowFn        func() int64
	resumeDelay  uint64
	upgradeDelay uint64
}

// NewEngine creates a control-plane engine with a no-op emitter and the
// default time locks.
func NewEngine() *Engine {
	return &Engine{
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
		resumeDelay:  ResumeDelaySeconds,
		upgradeDelay: UpgradeDelaySeconds,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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

// SetDelays overrides the resume and upgrade time locks. Zero values keep the
// current settings.
func (e *Engine) SetDelays(resumeDelay, upgradeDelay uint64) {
	if resumeDelay > 0 {
		e.resumeDelay = resumeDelay
	}
	if upgradeDelay > 0 {
		e.upgradeDelay = upgradeDelay
	}
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(systemEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// InitializeAdmin records the control-plane admin. It may be called exactly
// once.
func (e *Engine) InitializeAdmin(admin [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	var existing [20]byte
	ok, err := e.state.KVGet(adminKey, &existing)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyInitialized
	}
	if err := e.state.KVPut(adminKey, admin); err != nil {
		return err
	}
	e.emit(newAdminInitializedEvent(admin))
	return nil
}

// Admin returns the configured admin address.
func (e *Engine) Admin() ([20]byte, bool, error) {
	var admin [20]byte
	if e == nil || e.state == nil {
		return admin, false, errNilState
	}
	ok, err := e.state.KVGet(adminKey, &admin)
	return admin, ok, err
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	admin, ok, err := e.Admin()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInitialized
	}
	if admin != caller {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) pauseState() (*PauseState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var stored PauseState
	ok, err := e.state.KVGet(pauseKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &PauseState{}, nil
	}
	return &stored, nil
}

// Pause halts all value-affecting entry points immediately.
func (e *Engine) Pause(caller [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	pause, err := e.pauseState()
	if err != nil {
		return err
	}
	if pause.Paused {
		return ErrAlreadyPaused
	}
	now := uint64(e.now())
	pause.Paused = true
	pause.PausedAt = now
	pause.ResumeNotBefore = now + e.resumeDelay
	if err := e.state.KVPut(pauseKey, pause); err != nil {
		return err
	}
	e.emit(newPausedEvent(pause))
	return nil
}

// Resume lifts an active pause once the time lock has elapsed.
func (e *Engine) Resume(caller [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	pause, err := e.pauseState()
	if err != nil {
		return err
	}
	if !pause.Paused {
		return ErrNotPaused
	}
	if uint64(e.now()) < pause.ResumeNotBefore {
		return ErrResumeLocked
	}
	pause.Paused = false
	pause.PausedAt = 0
	pause.ResumeNotBefore = 0
	if err := e.state.KVPut(pauseKey, pause); err != nil {
		return err
	}
	e.emit(newResumedEvent())
	return nil
}

// IsPaused implements the pause guard consulted by the engines. The flag is
// global; the module argument exists to satisfy the guard interface.
func (e *Engine) IsPaused(string) bool {
	pause, err := e.pauseState()
	if err != nil {
		return false
	}
	return pause.Paused
}

// PauseInfo returns the stored pause record.
func (e *Engine) PauseInfo() (*PauseState, error) {
	pause, err := e.pauseState()
	if err != nil {
		return nil, err
	}
	return pause.Clone(), nil
}

// ScheduleUpgrade records a proposed code replacement executable only after
// the notice period. Only one proposal may be outstanding.
func (e *Engine) ScheduleUpgrade(caller [20]byte, codeHash [32]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	var existing PendingUpgrade
	ok, err := e.state.KVGet(upgradeKey, &existing)
	if err != nil {
		return err
	}
	if ok && existing.ExecuteNotBefore > 0 {
		return ErrUpgradePending
	}
	pending := &PendingUpgrade{
		CodeHash:         codeHash,
		ExecuteNotBefore: uint64(e.now()) + e.upgradeDelay,
	}
	if err := e.state.KVPut(upgradeKey, pending); err != nil {
		return err
	}
	e.emit(newUpgradeScheduledEvent(pending))
	return nil
}

// ExecuteUpgrade applies the pending proposal. The contract must be paused and
// the notice period elapsed. The stored version is bumped and the proposal
// cleared.
func (e *Engine) ExecuteUpgrade(caller [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	var pending PendingUpgrade
	ok, err := e.state.KVGet(upgradeKey, &pending)
	if err != nil {
		return err
	}
	if !ok || pending.ExecuteNotBefore == 0 {
		return ErrNoPendingUpgrade
	}
	pause, err := e.pauseState()
	if err != nil {
		return err
	}
	if !pause.Paused {
		return ErrNotPaused
	}
	if uint64(e.now()) < pending.ExecuteNotBefore {
		return ErrUpgradeLocked
	}
	version, err := e.Version()
	if err != nil {
		return err
	}
	if err := e.state.KVPut(versionKey, version+1); err != nil {
		return err
	}
	if err := e.state.KVPut(upgradeKey, &PendingUpgrade{}); err != nil {
		return err
	}
	e.emit(newUpgradeExecutedEvent(&pending, version+1))
	return nil
}

// CancelUpgrade clears the pending proposal.
func (e *Engine) CancelUpgrade(caller [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	var pending PendingUpgrade
	ok, err := e.state.KVGet(upgradeKey, &pending)
	if err != nil {
		return err
	}
	if !ok || pending.ExecuteNotBefore == 0 {
		return ErrNoPendingUpgrade
	}
	if err := e.state.KVPut(upgradeKey, &PendingUpgrade{}); err != nil {
		return err
	}
	e.emit(newUpgradeCancelledEvent(&pending))
	return nil
}

// PendingUpgrade returns the outstanding proposal, if any.
func (e *Engine) PendingUpgrade() (*PendingUpgrade, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	var pending PendingUpgrade
	ok, err := e.state.KVGet(upgradeKey, &pending)
	if err != nil {
		return nil, false, err
	}
	if !ok || pending.ExecuteNotBefore == 0 {
		return nil, false, nil
	}
	return pending.Clone(), true, nil
}

// Version reports the number of executed upgrades.
func (e *Engine) Version() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	var version uint64
	if _, err := e.state.KVGet(versionKey, &version); err != nil {
		return 0, err
	}
	return version, nil
}
