package common

import "errors"

// ErrModulePaused is returned by mutating entry points while the control plane
// has the module paused.
var ErrModulePaused = errors.New("module paused")

// Module names recognised by the pause control plane.
const (
	ModuleEscrow  = "escrow"
	ModuleDispute = "dispute"
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
