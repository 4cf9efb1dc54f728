package dispute

import (
	"fmt"
	"math/big"
)

type voteVariant struct {
	kind Resolution
	bps  uint32
}

// TallyVotes settles the dispute's current round once the reveal window has
// closed. The winning resolution is the strict plurality over revealed votes,
// with ties broken in favour of the variant counted earliest in panel order;
// zero reveals default to refunding the backers. Jurors on the winning side
// split the fee pool evenly, everyone else is slashed into it. Each juror is
// settled exactly once per round. If the appeal cap is already reached the
// outcome is enforced immediately.
func (e *Engine) TallyVotes(disputeID uint64) error {
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
		return fmt.Errorf("%w: cannot tally in status %d", ErrInvalidStatus, d.Status)
	}
	now := uint64(e.now())
	if now < d.CreatedAt+e.commitWindow+e.revealWindow {
		return ErrRevealOpen
	}
	members, err := e.panel(disputeID, d.AppealCount)
	if err != nil {
		return err
	}
	votes := make(map[[20]byte]voteVariant, len(members))
	counts := make(map[voteVariant]int, len(members))
	order := make([]voteVariant, 0, len(members))
	for _, member := range members {
		var commitment VoteCommitment
		ok, err := e.state.KVGet(commitmentKey(disputeID, d.AppealCount, member), &commitment)
		if err != nil {
			return err
		}
		if !ok || !commitment.Revealed {
			continue
		}
		variant := voteVariant{kind: commitment.Kind, bps: commitment.ReleaseBps}
		votes[member] = variant
		if _, seen := counts[variant]; !seen {
			order = append(order, variant)
		}
		counts[variant]++
	}
	winner := voteVariant{kind: ResolutionRefund}
	best := 0
	for _, variant := range order {
		if counts[variant] > best {
			winner = variant
			best = counts[variant]
		}
	}
	if err := e.settleJurors(d, members, votes, winner); err != nil {
		return err
	}
	d.Resolution = winner.kind
	d.ResolutionBps = winner.bps
	d.Status = StatusResolved
	d.CreatedAt = now
	// The Resolved transition is persisted before any enforcement attempt so
	// a failed enforcement can never re-enter settlement: a retried tally
	// fails the status check above.
	if err := e.storeDispute(d); err != nil {
		return err
	}
	e.emit(newDisputeTalliedEvent(d, len(votes), len(members)))
	if d.AppealCount < MaxAppeals {
		return nil
	}
	if err := e.enforce(d); err != nil {
		return err
	}
	return e.storeDispute(d)
}

// settleJurors applies the per-round settlement: winners collect an even share
// of the fee pool and a success mark, everyone else is slashed into the pool
// and marked as missed. Active dispute counts drop for the whole panel.
func (e *Engine) settleJurors(d *Dispute, members [][20]byte, votes map[[20]byte]voteVariant, winner voteVariant) error {
	slash := new(big.Int).Div(
		new(big.Int).Mul(big.NewInt(MinJurorStake), big.NewInt(int64(SlashBps))),
		big.NewInt(10_000),
	)
	pool, err := e.feePool()
	if err != nil {
		return err
	}
	winners := make([][20]byte, 0, len(members))
	for _, member := range members {
		juror, err := e.loadJuror(member)
		if err != nil {
			return err
		}
		if juror.ActiveDisputes > 0 {
			juror.ActiveDisputes--
		}
		if variant, revealed := votes[member]; revealed && variant == winner {
			juror.SuccessfulVotes++
			winners = append(winners, member)
		} else {
			juror.MissedVotes++
			if juror.StakedAmount == nil {
				juror.StakedAmount = big.NewInt(0)
			}
			penalty := new(big.Int).Set(slash)
			if juror.StakedAmount.Cmp(penalty) < 0 {
				penalty.Set(juror.StakedAmount)
			}
			juror.StakedAmount = new(big.Int).Sub(juror.StakedAmount, penalty)
			pool.Add(pool, penalty)
			e.emit(newJurorSlashedEvent(d, member, penalty))
		}
		if err := e.storeJuror(juror); err != nil {
			return err
		}
	}
	if len(winners) > 0 && pool.Sign() > 0 {
		token, err := e.token()
		if err != nil {
			return err
		}
		share := new(big.Int).Div(pool, big.NewInt(int64(len(winners))))
		if share.Sign() > 0 {
			for _, member := range winners {
				if err := e.moveTokens(token, e.vault, member, share); err != nil {
					return err
				}
				pool.Sub(pool, share)
				e.emit(newJurorRewardedEvent(d, member, share))
			}
		}
	}
	return e.state.KVPut(feePoolKey(), pool)
}

func (e *Engine) enforce(d *Dispute) error {
	if e.bridge == nil {
		return errNilBridge
	}
	if err := e.bridge.EnforceResolution(d.ProjectID, d.MilestoneID, releaseBpsFor(d.Resolution, d.ResolutionBps)); err != nil {
		return err
	}
	d.Status = StatusFinalResolved
	e.emit(newDisputeExecutedEvent(d))
	return nil
}
