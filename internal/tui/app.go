package tui

import (
	"context"
	"errors"
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/pickflix/internal/picker"
	"github.com/mmcdole/pickflix/internal/tui/styles"
)

// Refresher runs the user-triggered refresh. Implemented by sync.Controller.
type Refresher interface {
	RefreshNow(ctx context.Context) (bool, error)
}

// Model is the main Bubble Tea model for the application
type Model struct {
	Picker    *picker.Picker
	Refresher Refresher
	states    <-chan picker.State
	logger    *slog.Logger

	// Latest picker snapshot
	State picker.State

	// highlightID is the movie this client just picked; it stays
	// highlighted until the head of history changes.
	highlightID int
	// Notice is a transient line for outcomes the picker does not report
	// as status (contention, quit hints).
	Notice string

	Confirming bool
	Spinner    spinner.Model

	Width  int
	Height int
}

// NewModel creates a new application model. obs must be the observer the
// picker was built with.
func NewModel(p *picker.Picker, r Refresher, obs *ChannelObserver, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.AccentStyle

	return Model{
		Picker:    p,
		Refresher: r,
		states:    obs.States(),
		logger:    logger,
		State:     p.Peek(),
		Spinner:   sp,
	}
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		WaitForStateCmd(m.states),
		m.Spinner.Tick,
	)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case StateMsg:
		m.applyState(msg.State)
		return m, WaitForStateCmd(m.states)

	case statesClosedMsg:
		return m, nil

	case PickDoneMsg:
		switch {
		case errors.Is(msg.Err, picker.ErrContended):
			m.Notice = "Too many simultaneous picks. Try again."
		case msg.Err != nil:
			m.logger.Debug("pick failed", "error", msg.Err)
		case msg.Result.Outcome == picker.OutcomePicked:
			m.logger.Debug("picked", "movie_id", msg.Result.Movie.ID, "attempts", msg.Result.Attempts)
		}
		return m, nil

	case ClearDoneMsg:
		if msg.Err != nil {
			m.logger.Debug("clear failed", "error", msg.Err)
		}
		return m, nil

	case RefreshDoneMsg:
		if msg.Err != nil {
			m.logger.Debug("refresh failed", "error", msg.Err)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) applyState(state picker.State) {
	if state.Fresh && state.Current != nil {
		m.highlightID = state.Current.ID
	} else if state.Current == nil || state.Current.ID != m.highlightID {
		m.highlightID = 0
	}
	if !state.CanClear {
		m.Confirming = false
	}
	m.State = state
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.Confirming {
		switch {
		case key.Matches(msg, Keys.Confirm):
			m.Confirming = false
			return m, ClearCmd(m.Picker)
		case key.Matches(msg, Keys.Deny):
			m.Confirming = false
		}
		return m, nil
	}

	m.Notice = ""
	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, Keys.Generate):
		if m.State.CanPick && !m.Picker.Busy() {
			return m, PickCmd(m.Picker)
		}
	case key.Matches(msg, Keys.Clear):
		if m.State.CanClear && !m.Picker.Busy() {
			m.Confirming = true
		}
	case key.Matches(msg, Keys.Refresh):
		if m.Refresher != nil && !m.Picker.Busy() {
			return m, RefreshCmd(m.Refresher)
		}
	}
	return m, nil
}
