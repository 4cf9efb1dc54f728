package dispute

import (
	"fmt"
	"math/big"
)

// FileAppeal escalates a resolved dispute to a fresh, larger jury round. Only
// the project creator or the dispute initiator may appeal, the appeal window
// must still be open and the cap must not be reached. The appeal fee goes to
// the fee pool and the larger panel is drawn immediately, so an appealed
// dispute is back in Voting when the call returns. Appeals over a pool that
// cannot fill the panel are refused before the fee is taken.
func (e *Engine) FileAppeal(disputeID uint64, caller [20]byte) error {
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
	if d.Status != StatusResolved {
		return fmt.Errorf("%w: cannot appeal in status %d", ErrInvalidStatus, d.Status)
	}
	if uint64(e.now()) >= d.CreatedAt+e.appealWindow {
		return ErrAppealWindowClosed
	}
	if d.AppealCount >= MaxAppeals {
		return ErrAppealCapReached
	}
	creator, _, _, err := e.bridge.MilestoneForDispute(d.ProjectID, d.MilestoneID)
	if err != nil {
		return err
	}
	if caller != creator && caller != d.Initiator {
		return ErrUnauthorized
	}
	d.AppealCount++
	d.Status = StatusAppealed
	candidates, err := e.eligibleCandidates(d, creator)
	if err != nil {
		return err
	}
	if len(candidates) < d.PanelSize() {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientJurors, d.PanelSize(), len(candidates))
	}
	token, err := e.token()
	if err != nil {
		return err
	}
	fee := big.NewInt(AppealFee)
	if err := e.moveTokens(token, caller, e.vault, fee); err != nil {
		return err
	}
	pool, err := e.feePool()
	if err != nil {
		return err
	}
	pool.Add(pool, fee)
	if err := e.state.KVPut(feePoolKey(), pool); err != nil {
		return err
	}
	e.emit(newDisputeAppealedEvent(d, caller))
	return e.drawPanel(d, candidates)
}

// ExecuteResolution enforces a resolved dispute against the escrow once the
// appeal window has closed without an appeal. The dispute becomes final.
func (e *Engine) ExecuteResolution(disputeID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.guard(); err != nil {
		return err
	}
	d, err := e.loadDispute(disputeID)
	if err != nil {
		return err
	}
	if d.Status != StatusResolved {
		return fmt.Errorf("%w: cannot execute in status %d", ErrInvalidStatus, d.Status)
	}
	if uint64(e.now()) < d.CreatedAt+e.appealWindow {
		return ErrAppealWindowOpen
	}
	if err := e.enforce(d); err != nil {
		return err
	}
	return e.storeDispute(d)
}
