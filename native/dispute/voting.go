package dispute

import "fmt"

// CommitVote records a sealed vote from a panel juror. Commitments are only
// accepted while the commit window anchored at jury selection is open, and
// each juror commits at most once per round.
func (e *Engine) CommitVote(disputeID uint64, juror [20]byte, commitment [32]byte) error {
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
	if d.Status != StatusVoting {
		return fmt.Errorf("%w: cannot commit in status %d", ErrInvalidStatus, d.Status)
	}
	now := uint64(e.now())
	if now >= d.CreatedAt+e.commitWindow {
		return ErrCommitClosed
	}
	onPanel, err := e.onCurrentPanel(d, juror)
	if err != nil {
		return err
	}
	if !onPanel {
		return ErrNotJuror
	}
	key := commitmentKey(disputeID, d.AppealCount, juror)
	var existing VoteCommitment
	ok, err := e.state.KVGet(key, &existing)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyCommitted
	}
	if err := e.state.KVPut(key, &VoteCommitment{Hash: commitment}); err != nil {
		return err
	}
	e.emit(newVoteCommittedEvent(d, juror))
	return nil
}

// RevealVote opens a sealed vote. The reveal is accepted only after the
// commit window closes and before the reveal window ends, and the revealed
// choice must reproduce the committed hash byte for byte.
func (e *Engine) RevealVote(disputeID uint64, juror [20]byte, res Resolution, releaseBps uint32, salt [32]byte) error {
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
	if d.Status != StatusVoting {
		return fmt.Errorf("%w: cannot reveal in status %d", ErrInvalidStatus, d.Status)
	}
	now := uint64(e.now())
	if now < d.CreatedAt+e.commitWindow {
		return ErrRevealNotOpen
	}
	if now >= d.CreatedAt+e.commitWindow+e.revealWindow {
		return ErrRevealClosed
	}
	if !res.Valid() {
		return ErrInvalidResolution
	}
	if res == ResolutionPartial {
		if releaseBps == 0 || releaseBps >= 10_000 {
			return fmt.Errorf("%w: partial release bps out of range", ErrInvalidResolution)
		}
	} else if releaseBps != 0 {
		return fmt.Errorf("%w: release bps only valid for partial release", ErrInvalidResolution)
	}
	key := commitmentKey(disputeID, d.AppealCount, juror)
	var commitment VoteCommitment
	ok, err := e.state.KVGet(key, &commitment)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoCommitment
	}
	if commitment.Revealed {
		return ErrAlreadyRevealed
	}
	if CommitmentHash(res, releaseBps, salt) != commitment.Hash {
		return ErrCommitmentMismatch
	}
	commitment.Revealed = true
	commitment.Kind = res
	commitment.ReleaseBps = releaseBps
	if err := e.state.KVPut(key, &commitment); err != nil {
		return err
	}
	e.emit(newVoteRevealedEvent(d, juror, res, releaseBps))
	return nil
}

func (e *Engine) onCurrentPanel(d *Dispute, juror [20]byte) (bool, error) {
	members, err := e.panel(d.ID, d.AppealCount)
	if err != nil {
		return false, err
	}
	for _, member := range members {
		if member == juror {
			return true, nil
		}
	}
	return false, nil
}
