package tui

import "github.com/mmcdole/pickflix/internal/picker"

// Message types for the TUI

// StateMsg carries a picker snapshot
type StateMsg struct {
	State picker.State
}

// PickDoneMsg signals that a generate trigger finished
type PickDoneMsg struct {
	Result picker.Result
	Err    error
}

// ClearDoneMsg signals that a clear trigger finished
type ClearDoneMsg struct {
	Cleared bool
	Err     error
}

// RefreshDoneMsg signals that an explicit refresh finished
type RefreshDoneMsg struct {
	Err error
}

// statesClosedMsg means the observer channel was closed
type statesClosedMsg struct{}
