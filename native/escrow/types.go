package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// MinValidators is the smallest validator set accepted at initialization.
	MinValidators = 3
	// MinApprovalThresholdBps enforces a strict majority wherever custom
	// thresholds are enabled.
	MinApprovalThresholdBps uint32 = 5100
	// MaxApprovalThresholdBps is full unanimity.
	MaxApprovalThresholdBps uint32 = 10_000
	// DefaultApprovalThresholdBps is applied when callers pass zero.
	DefaultApprovalThresholdBps uint32 = 6700
	// MaxBatchSize bounds batch milestone creation and batch voting.
	MaxBatchSize = 10
)

// MilestoneStatus represents the lifecycle of a funded milestone.
type MilestoneStatus uint8

const (
	// MilestonePending marks milestones created but not yet submitted for
	// validator review.
	MilestonePending MilestoneStatus = iota
	// MilestoneSubmitted marks milestones awaiting validator votes.
	MilestoneSubmitted
	// MilestoneApproved marks milestones whose funds have been released.
	MilestoneApproved
	// MilestoneRejected marks milestones turned down by the validator set.
	// A rejected milestone can only move again through dispute enforcement.
	MilestoneRejected
)

// Valid reports whether the status value is within the supported range.
func (s MilestoneStatus) Valid() bool {
	switch s {
	case MilestonePending, MilestoneSubmitted, MilestoneApproved, MilestoneRejected:
		return true
	default:
		return false
	}
}

// ErrInvalidEscrow describes malformed escrow definitions.
var ErrInvalidEscrow = errors.New("escrow: invalid escrow definition")

// Escrow captures the funds and governance configuration of a single project.
// The released amount never exceeds the total deposited.
type Escrow struct {
	ProjectID            uint64
	Creator              [20]byte
	Token                string
	TotalDeposited       *big.Int
	ReleasedAmount       *big.Int
	Validators           [][20]byte
	ApprovalThresholdBps uint32
}

// Clone returns a deep copy of the escrow object so callers can safely mutate
// the copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.TotalDeposited != nil {
		clone.TotalDeposited = new(big.Int).Set(e.TotalDeposited)
	} else {
		clone.TotalDeposited = big.NewInt(0)
	}
	if e.ReleasedAmount != nil {
		clone.ReleasedAmount = new(big.Int).Set(e.ReleasedAmount)
	} else {
		clone.ReleasedAmount = big.NewInt(0)
	}
	if len(e.Validators) > 0 {
		clone.Validators = make([][20]byte, len(e.Validators))
		copy(clone.Validators, e.Validators)
	}
	return &clone
}

// IsValidator reports whether addr belongs to the validator set.
func (e *Escrow) IsValidator(addr [20]byte) bool {
	if e == nil {
		return false
	}
	for _, v := range e.Validators {
		if v == addr {
			return true
		}
	}
	return false
}

// RequiredApprovals returns the approval count needed to finalise a milestone,
// using integer floor division so the result is order independent.
func (e *Escrow) RequiredApprovals() uint32 {
	if e == nil {
		return 0
	}
	return uint32(uint64(len(e.Validators)) * uint64(e.ApprovalThresholdBps) / 10_000)
}

// SanitizeEscrow validates and normalises the supplied escrow definition,
// returning a cloned instance with canonical token casing and non-nil amount
// fields. The function does not mutate the original value.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil escrow", ErrInvalidEscrow)
	}
	clone := e.Clone()
	token := strings.ToUpper(strings.TrimSpace(clone.Token))
	if token == "" {
		return nil, fmt.Errorf("%w: token required", ErrInvalidEscrow)
	}
	clone.Token = token
	if len(clone.Validators) < MinValidators {
		return nil, fmt.Errorf("%w: at least %d validators required", ErrInvalidEscrow, MinValidators)
	}
	seen := make(map[[20]byte]struct{}, len(clone.Validators))
	for _, v := range clone.Validators {
		if v == ([20]byte{}) {
			return nil, fmt.Errorf("%w: zero validator address", ErrInvalidEscrow)
		}
		if _, dup := seen[v]; dup {
			return nil, fmt.Errorf("%w: duplicate validator address", ErrInvalidEscrow)
		}
		seen[v] = struct{}{}
	}
	if clone.ApprovalThresholdBps < MinApprovalThresholdBps || clone.ApprovalThresholdBps > MaxApprovalThresholdBps {
		return nil, fmt.Errorf("%w: approval threshold out of range", ErrInvalidEscrow)
	}
	if clone.TotalDeposited.Sign() < 0 || clone.ReleasedAmount.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative balance", ErrInvalidEscrow)
	}
	if clone.ReleasedAmount.Cmp(clone.TotalDeposited) > 0 {
		return nil, fmt.Errorf("%w: released exceeds deposited", ErrInvalidEscrow)
	}
	return clone, nil
}

// Milestone is a funded, independently approvable unit of project work. Round
// counts submissions; vote records are keyed by round so a resubmission starts
// with a clean voter history without touching old records.
type Milestone struct {
	ID              uint64
	ProjectID       uint64
	DescriptionHash [32]byte
	Amount          *big.Int
	Status          MilestoneStatus
	ProofHash       [32]byte
	ApprovalCount   uint32
	RejectionCount  uint32
	Round           uint64
	CreatedAt       uint64
}

// Clone returns a deep copy of the milestone.
func (m *Milestone) Clone() *Milestone {
	if m == nil {
		return nil
	}
	clone := *m
	if m.Amount != nil {
		clone.Amount = new(big.Int).Set(m.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// MilestoneDraft is a single entry in a batch milestone creation request.
type MilestoneDraft struct {
	DescriptionHash [32]byte
	Amount          *big.Int
}

// BatchVote is a single entry in a batch voting request.
type BatchVote struct {
	MilestoneID uint64
	Approve     bool
}

// BatchResult reports the per-item outcome of a batch operation. Failing items
// are skipped without aborting the batch.
type BatchResult struct {
	Total      uint32
	Successful uint32
	Failed     uint32
}
