package escrow

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"crowdvault/core/types"
)

const (
	EventTypeInitialized        = "escrow.initialized"
	EventTypeDeposited          = "escrow.deposited"
	EventTypeMilestoneCreated   = "escrow.milestone.created"
	EventTypeMilestoneSubmitted = "escrow.milestone.submitted"
	EventTypeMilestoneApproved  = "escrow.milestone.approved"
	EventTypeMilestoneRejected  = "escrow.milestone.rejected"
	EventTypeFundsReleased      = "escrow.funds.released"
	EventTypeValidatorsUpdated  = "escrow.validators.updated"
	EventTypeBatchItemFailed    = "escrow.batch.item_failed"
	EventTypeBatchCompleted     = "escrow.batch.completed"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newInitializedEvent(e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e != nil {
		attrs["projectId"] = strconv.FormatUint(e.ProjectID, 10)
		attrs["creator"] = hex.EncodeToString(e.Creator[:])
		attrs["token"] = e.Token
		attrs["validators"] = strconv.Itoa(len(e.Validators))
		attrs["thresholdBps"] = strconv.FormatUint(uint64(e.ApprovalThresholdBps), 10)
	}
	return &types.Event{Type: EventTypeInitialized, Attributes: attrs}
}

func newDepositedEvent(e *Escrow, amount *big.Int) *types.Event {
	attrs := make(map[string]string)
	if e != nil {
		attrs["projectId"] = strconv.FormatUint(e.ProjectID, 10)
		attrs["amount"] = formatAmount(amount)
		attrs["totalDeposited"] = formatAmount(e.TotalDeposited)
	}
	return &types.Event{Type: EventTypeDeposited, Attributes: attrs}
}

func newMilestoneCreatedEvent(m *Milestone) *types.Event {
	attrs := make(map[string]string)
	if m != nil {
		attrs["projectId"] = strconv.FormatUint(m.ProjectID, 10)
		attrs["milestoneId"] = strconv.FormatUint(m.ID, 10)
		attrs["amount"] = formatAmount(m.Amount)
		attrs["descriptionHash"] = hex.EncodeToString(m.DescriptionHash[:])
	}
	return &types.Event{Type: EventTypeMilestoneCreated, Attributes: attrs}
}

func newMilestoneSubmittedEvent(m *Milestone) *types.Event {
	attrs := make(map[string]string)
	if m != nil {
		attrs["projectId"] = strconv.FormatUint(m.ProjectID, 10)
		attrs["milestoneId"] = strconv.FormatUint(m.ID, 10)
		attrs["proofHash"] = hex.EncodeToString(m.ProofHash[:])
		attrs["round"] = strconv.FormatUint(m.Round, 10)
	}
	return &types.Event{Type: EventTypeMilestoneSubmitted, Attributes: attrs}
}

func newMilestoneApprovedEvent(m *Milestone) *types.Event {
	attrs := make(map[string]string)
	if m != nil {
		attrs["projectId"] = strconv.FormatUint(m.ProjectID, 10)
		attrs["milestoneId"] = strconv.FormatUint(m.ID, 10)
		attrs["approvals"] = strconv.FormatUint(uint64(m.ApprovalCount), 10)
	}
	return &types.Event{Type: EventTypeMilestoneApproved, Attributes: attrs}
}

func newMilestoneRejectedEvent(m *Milestone) *types.Event {
	attrs := make(map[string]string)
	if m != nil {
		attrs["projectId"] = strconv.FormatUint(m.ProjectID, 10)
		attrs["milestoneId"] = strconv.FormatUint(m.ID, 10)
		attrs["rejections"] = strconv.FormatUint(uint64(m.RejectionCount), 10)
	}
	return &types.Event{Type: EventTypeMilestoneRejected, Attributes: attrs}
}

func newFundsReleasedEvent(e *Escrow, milestoneID uint64, amount *big.Int) *types.Event {
	attrs := make(map[string]string)
	if e != nil {
		attrs["projectId"] = strconv.FormatUint(e.ProjectID, 10)
		attrs["milestoneId"] = strconv.FormatUint(milestoneID, 10)
		attrs["amount"] = formatAmount(amount)
		attrs["releasedAmount"] = formatAmount(e.ReleasedAmount)
	}
	return &types.Event{Type: EventTypeFundsReleased, Attributes: attrs}
}

func newValidatorsUpdatedEvent(e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e != nil {
		attrs["projectId"] = strconv.FormatUint(e.ProjectID, 10)
		attrs["validators"] = strconv.Itoa(len(e.Validators))
	}
	return &types.Event{Type: EventTypeValidatorsUpdated, Attributes: attrs}
}

func newBatchItemFailedEvent(projectID, item uint64, err error) *types.Event {
	attrs := map[string]string{
		"projectId": strconv.FormatUint(projectID, 10),
		"item":      strconv.FormatUint(item, 10),
	}
	if err != nil {
		attrs["reason"] = err.Error()
	}
	return &types.Event{Type: EventTypeBatchItemFailed, Attributes: attrs}
}

func newBatchCompletedEvent(projectID uint64, result *BatchResult) *types.Event {
	attrs := map[string]string{
		"projectId": strconv.FormatUint(projectID, 10),
	}
	if result != nil {
		attrs["total"] = strconv.FormatUint(uint64(result.Total), 10)
		attrs["successful"] = strconv.FormatUint(uint64(result.Successful), 10)
		attrs["failed"] = strconv.FormatUint(uint64(result.Failed), 10)
	}
	return &types.Event{Type: EventTypeBatchCompleted, Attributes: attrs}
}
