package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/pickflix/internal/picker"
)

// commandTimeout bounds every store round trip started from a key press.
const commandTimeout = 30 * time.Second

// Command factories for async operations

// PickCmd runs one generate trigger
func PickCmd(p *picker.Picker) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		res, err := p.Pick(ctx)
		return PickDoneMsg{Result: res, Err: err}
	}
}

// ClearCmd clears history. The model asks for confirmation before issuing it.
func ClearCmd(p *picker.Picker) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		cleared, err := p.Clear(ctx, picker.Confirmed)
		return ClearDoneMsg{Cleared: cleared, Err: err}
	}
}

// RefreshCmd runs an explicit refresh whose errors are shown
func RefreshCmd(r Refresher) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		_, err := r.RefreshNow(ctx)
		return RefreshDoneMsg{Err: err}
	}
}

// WaitForStateCmd blocks until the picker publishes the next state
func WaitForStateCmd(states <-chan picker.State) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-states
		if !ok {
			return statesClosedMsg{}
		}
		return StateMsg{State: state}
	}
}
