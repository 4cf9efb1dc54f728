package system

import (
	"encoding/hex"
	"strconv"

	"crowdvault/core/types"
)

const (
	EventTypeAdminInitialized = "system.admin.initialized"
	EventTypePaused           = "system.paused"
	EventTypeResumed          = "system.resumed"
	EventTypeUpgradeScheduled = "system.upgrade.scheduled"
	EventTypeUpgradeExecuted  = "system.upgrade.executed"
	EventTypeUpgradeCancelled = "system.upgrade.cancelled"
)

func newAdminInitializedEvent(admin [20]byte) *types.Event {
	return &types.Event{Type: EventTypeAdminInitialized, Attributes: map[string]string{
		"admin": hex.EncodeToString(admin[:]),
	}}
}

func newPausedEvent(p *PauseState) *types.Event {
	attrs := make(map[string]string)
	if p != nil {
		attrs["pausedAt"] = strconv.FormatUint(p.PausedAt, 10)
		attrs["resumeNotBefore"] = strconv.FormatUint(p.ResumeNotBefore, 10)
	}
	return &types.Event{Type: EventTypePaused, Attributes: attrs}
}

func newResumedEvent() *types.Event {
	return &types.Event{Type: EventTypeResumed, Attributes: map[string]string{}}
}

func newUpgradeScheduledEvent(u *PendingUpgrade) *types.Event {
	attrs := make(map[string]string)
	if u != nil {
		attrs["codeHash"] = hex.EncodeToString(u.CodeHash[:])
		attrs["executeNotBefore"] = strconv.FormatUint(u.ExecuteNotBefore, 10)
	}
	return &types.Event{Type: EventTypeUpgradeScheduled, Attributes: attrs}
}

func newUpgradeExecutedEvent(u *PendingUpgrade, version uint64) *types.Event {
	attrs := map[string]string{
		"version": strconv.FormatUint(version, 10),
	}
	if u != nil {
		attrs["codeHash"] = hex.EncodeToString(u.CodeHash[:])
	}
	return &types.Event{Type: EventTypeUpgradeExecuted, Attributes: attrs}
}

func newUpgradeCancelledEvent(u *PendingUpgrade) *types.Event {
	attrs := make(map[string]string)
	if u != nil {
		attrs["codeHash"] = hex.EncodeToString(u.CodeHash[:])
	}
	return &types.Event{Type: EventTypeUpgradeCancelled, Attributes: attrs}
}
