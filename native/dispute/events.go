package dispute

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"crowdvault/core/types"
)

const (
	EventTypeTokenConfigured   = "dispute.token.configured"
	EventTypeJurorRegistered   = "dispute.juror.registered"
	EventTypeJurorDeregistered = "dispute.juror.deregistered"
	EventTypeInitiated         = "dispute.initiated"
	EventTypeJurySelected      = "dispute.jury.selected"
	EventTypeVoteCommitted     = "dispute.vote.committed"
	EventTypeVoteRevealed      = "dispute.vote.revealed"
	EventTypeTallied           = "dispute.tallied"
	EventTypeJurorSlashed      = "dispute.juror.slashed"
	EventTypeJurorRewarded     = "dispute.juror.rewarded"
	EventTypeAppealed          = "dispute.appealed"
	EventTypeExecuted          = "dispute.executed"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func disputeAttrs(d *Dispute) map[string]string {
	attrs := make(map[string]string)
	if d != nil {
		attrs["disputeId"] = strconv.FormatUint(d.ID, 10)
		attrs["projectId"] = strconv.FormatUint(d.ProjectID, 10)
		attrs["milestoneId"] = strconv.FormatUint(d.MilestoneID, 10)
		attrs["round"] = strconv.FormatUint(uint64(d.AppealCount), 10)
	}
	return attrs
}

func newTokenConfiguredEvent(token string) *types.Event {
	return &types.Event{Type: EventTypeTokenConfigured, Attributes: map[string]string{
		"token": token,
	}}
}

func newJurorRegisteredEvent(j *JurorInfo) *types.Event {
	attrs := make(map[string]string)
	if j != nil {
		attrs["juror"] = hex.EncodeToString(j.Address[:])
		attrs["stake"] = amountString(j.StakedAmount)
	}
	return &types.Event{Type: EventTypeJurorRegistered, Attributes: attrs}
}

func newJurorDeregisteredEvent(addr [20]byte, refund *big.Int) *types.Event {
	return &types.Event{Type: EventTypeJurorDeregistered, Attributes: map[string]string{
		"juror":  hex.EncodeToString(addr[:]),
		"refund": amountString(refund),
	}}
}

func newDisputeInitiatedEvent(d *Dispute) *types.Event {
	attrs := disputeAttrs(d)
	if d != nil {
		attrs["initiator"] = hex.EncodeToString(d.Initiator[:])
	}
	return &types.Event{Type: EventTypeInitiated, Attributes: attrs}
}

func newJurySelectedEvent(d *Dispute, panel [][20]byte) *types.Event {
	attrs := disputeAttrs(d)
	attrs["panelSize"] = strconv.Itoa(len(panel))
	return &types.Event{Type: EventTypeJurySelected, Attributes: attrs}
}

func newVoteCommittedEvent(d *Dispute, juror [20]byte) *types.Event {
	attrs := disputeAttrs(d)
	attrs["juror"] = hex.EncodeToString(juror[:])
	return &types.Event{Type: EventTypeVoteCommitted, Attributes: attrs}
}

func newVoteRevealedEvent(d *Dispute, juror [20]byte, res Resolution, releaseBps uint32) *types.Event {
	attrs := disputeAttrs(d)
	attrs["juror"] = hex.EncodeToString(juror[:])
	attrs["resolution"] = strconv.FormatUint(uint64(res), 10)
	if res == ResolutionPartial {
		attrs["releaseBps"] = strconv.FormatUint(uint64(releaseBps), 10)
	}
	return &types.Event{Type: EventTypeVoteRevealed, Attributes: attrs}
}

func newDisputeTalliedEvent(d *Dispute, revealed, panelSize int) *types.Event {
	attrs := disputeAttrs(d)
	if d != nil {
		attrs["resolution"] = strconv.FormatUint(uint64(d.Resolution), 10)
		attrs["releaseBps"] = strconv.FormatUint(uint64(d.ResolutionBps), 10)
	}
	attrs["revealed"] = strconv.Itoa(revealed)
	attrs["panelSize"] = strconv.Itoa(panelSize)
	return &types.Event{Type: EventTypeTallied, Attributes: attrs}
}

func newJurorSlashedEvent(d *Dispute, juror [20]byte, amount *big.Int) *types.Event {
	attrs := disputeAttrs(d)
	attrs["juror"] = hex.EncodeToString(juror[:])
	attrs["amount"] = amountString(amount)
	return &types.Event{Type: EventTypeJurorSlashed, Attributes: attrs}
}

func newJurorRewardedEvent(d *Dispute, juror [20]byte, amount *big.Int) *types.Event {
	attrs := disputeAttrs(d)
	attrs["juror"] = hex.EncodeToString(juror[:])
	attrs["amount"] = amountString(amount)
	return &types.Event{Type: EventTypeJurorRewarded, Attributes: attrs}
}

func newDisputeAppealedEvent(d *Dispute, caller [20]byte) *types.Event {
	attrs := disputeAttrs(d)
	attrs["appellant"] = hex.EncodeToString(caller[:])
	return &types.Event{Type: EventTypeAppealed, Attributes: attrs}
}

func newDisputeExecutedEvent(d *Dispute) *types.Event {
	attrs := disputeAttrs(d)
	if d != nil {
		attrs["resolution"] = strconv.FormatUint(uint64(d.Resolution), 10)
		attrs["releaseBps"] = strconv.FormatUint(uint64(releaseBpsFor(d.Resolution, d.ResolutionBps)), 10)
	}
	return &types.Event{Type: EventTypeExecuted, Attributes: attrs}
}
