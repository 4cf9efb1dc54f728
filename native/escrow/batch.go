package escrow

import (
	"fmt"
)

// BatchCreateMilestones creates up to MaxBatchSize milestones in one call.
// Items are validated independently; a failing item is counted and skipped
// while the rest of the batch still commits.
func (e *Engine) BatchCreateMilestones(projectID uint64, caller [20]byte, drafts []MilestoneDraft) (*BatchResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, ErrBatchEmpty
	}
	if len(drafts) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	esc, err := e.loadEscrow(projectID)
	if err != nil {
		return nil, err
	}
	if caller != esc.Creator {
		return nil, ErrUnauthorized
	}
	result := &BatchResult{Total: uint32(len(drafts))}
	for i, draft := range drafts {
		if _, err := e.createMilestoneLocked(esc, draft.DescriptionHash, draft.Amount); err != nil {
			result.Failed++
			e.emit(newBatchItemFailedEvent(projectID, uint64(i), err))
			continue
		}
		result.Successful++
	}
	e.emit(newBatchCompletedEvent(projectID, result))
	return result, nil
}

// BatchVoteMilestones casts up to MaxBatchSize votes from one validator. Per
// item failures (unknown milestone, wrong status, duplicate vote) are counted
// and skipped without aborting the batch.
func (e *Engine) BatchVoteMilestones(projectID uint64, voter [20]byte, votes []BatchVote) (*BatchResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	if len(votes) == 0 {
		return nil, ErrBatchEmpty
	}
	if len(votes) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	esc, err := e.loadEscrow(projectID)
	if err != nil {
		return nil, err
	}
	if !esc.IsValidator(voter) {
		return nil, ErrNotValidator
	}
	result := &BatchResult{Total: uint32(len(votes))}
	for _, vote := range votes {
		if err := e.voteOnce(esc, vote.MilestoneID, voter, vote.Approve); err != nil {
			result.Failed++
			e.emit(newBatchItemFailedEvent(projectID, vote.MilestoneID, err))
			continue
		}
		result.Successful++
	}
	e.emit(newBatchCompletedEvent(projectID, result))
	return result, nil
}

// voteOnce counts a single authenticated vote. Both VoteMilestone and the
// batch path land here; the caller has already checked the validator set and
// the pause guard. Voting is frozen while a dispute is open on the milestone.
func (e *Engine) voteOnce(esc *Escrow, milestoneID uint64, voter [20]byte, approve bool) error {
	milestone, err := e.loadMilestone(esc.ProjectID, milestoneID)
	if err != nil {
		return err
	}
	if milestone.Status != MilestoneSubmitted {
		return fmt.Errorf("%w: cannot vote in status %d", ErrInvalidStatus, milestone.Status)
	}
	if e.disputes != nil {
		open, err := e.disputes.HasOpenDispute(esc.ProjectID, milestoneID)
		if err != nil {
			return err
		}
		if open {
			return ErrMilestoneDisputed
		}
	}
	voted, err := e.hasVoted(esc.ProjectID, milestone, voter)
	if err != nil {
		return err
	}
	if voted {
		return ErrAlreadyVoted
	}
	if approve {
		milestone.ApprovalCount++
	} else {
		milestone.RejectionCount++
	}
	if err := e.recordVote(esc.ProjectID, milestone, voter); err != nil {
		return err
	}
	return e.finalizeVote(esc, milestone)
}
