package system

// Default time locks applied by the control plane. Pausing is instantaneous;
// resuming and executing an upgrade are delayed.
const (
	// ResumeDelaySeconds is the minimum time a pause must stay in effect.
	ResumeDelaySeconds uint64 = 24 * 60 * 60
	// UpgradeDelaySeconds is the minimum notice period before a scheduled
	// code replacement may be executed.
	UpgradeDelaySeconds uint64 = 48 * 60 * 60
)

// PauseState is the global singleton pause record. Resume is disallowed before
// ResumeNotBefore.
type PauseState struct {
	Paused          bool
	PausedAt        uint64
	ResumeNotBefore uint64
}

// Clone returns a copy safe for modification.
func (p *PauseState) Clone() *PauseState {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// PendingUpgrade records a proposed code replacement. At most one proposal is
// outstanding at a time.
type PendingUpgrade struct {
	CodeHash         [32]byte
	ExecuteNotBefore uint64
}

// Clone returns a copy safe for modification.
func (u *PendingUpgrade) Clone() *PendingUpgrade {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}
