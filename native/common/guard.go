package common

import "errors"

// ErrModulePaused rejects operations while a module's pause switch is on.
var ErrModulePaused = errors.New("module paused")

// PauseView reports per-module pause switches. Engines consult it ahead of
// every state-mutating operation.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the named module is paused. A nil view
// or an empty module name means no pause control applies.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
