package escrow

import (
	"fmt"
	"math/big"
)

// MilestoneForDispute returns the data the dispute engine needs to admit a
// dispute: the project creator, the contested amount and whether the milestone
// is in a contestable status (Submitted or Rejected).
func (e *Engine) MilestoneForDispute(projectID, milestoneID uint64) ([20]byte, *big.Int, bool, error) {
	esc, err := e.loadEscrow(projectID)
	if err != nil {
		return [20]byte{}, nil, false, err
	}
	milestone, err := e.loadMilestone(projectID, milestoneID)
	if err != nil {
		return [20]byte{}, nil, false, err
	}
	contestable := milestone.Status == MilestoneSubmitted || milestone.Status == MilestoneRejected
	return esc.Creator, cloneBigInt(milestone.Amount), contestable, nil
}

// EnforceResolution applies a final dispute outcome against the escrow.
// releaseBps selects how much of the milestone amount is paid out: 0 rejects
// the milestone without any release, 10000 is a full release, anything in
// between is a partial release whose payout floors down. A payout of zero is
// treated as a rejection. Values above 10000 are clamped. The release applies
// the same double-release guard as normal approval.
func (e *Engine) EnforceResolution(projectID, milestoneID uint64, releaseBps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	esc, err := e.loadEscrow(projectID)
	if err != nil {
		return err
	}
	milestone, err := e.loadMilestone(projectID, milestoneID)
	if err != nil {
		return err
	}
	if milestone.Status != MilestoneSubmitted && milestone.Status != MilestoneRejected {
		return fmt.Errorf("%w: cannot enforce in status %d", ErrInvalidStatus, milestone.Status)
	}
	if releaseBps > 10_000 {
		releaseBps = 10_000
	}
	payout := new(big.Int).Mul(milestone.Amount, new(big.Int).SetUint64(uint64(releaseBps)))
	payout.Div(payout, big.NewInt(10_000))
	if payout.Sign() == 0 {
		// A payout that floors to zero is a rejection: no funds move, so no
		// release is reported.
		milestone.Status = MilestoneRejected
		if err := e.storeMilestone(milestone); err != nil {
			return err
		}
		e.emit(newMilestoneRejectedEvent(milestone))
		return nil
	}
	if err := e.releaseFunds(esc, payout); err != nil {
		return err
	}
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	milestone.Status = MilestoneApproved
	if err := e.storeMilestone(milestone); err != nil {
		return err
	}
	e.emit(newMilestoneApprovedEvent(milestone))
	e.emit(newFundsReleasedEvent(esc, milestone.ID, payout))
	return nil
}
