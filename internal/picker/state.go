package picker

import (
	"fmt"

	"github.com/mmcdole/pickflix/internal/domain"
)

// Phase is the step an operation is in.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRefreshing
	PhaseSelecting
	PhaseCommitting
	PhaseReconciling
	PhaseClearing
)

func (p Phase) String() string {
	switch p {
	case PhaseRefreshing:
		return "refreshing"
	case PhaseSelecting:
		return "selecting"
	case PhaseCommitting:
		return "committing"
	case PhaseReconciling:
		return "reconciling"
	case PhaseClearing:
		return "clearing"
	default:
		return "idle"
	}
}

// StatusKind categorizes the single status line.
type StatusKind int

const (
	StatusReady StatusKind = iota
	StatusSyncing
	StatusError
	StatusExhausted
	StatusEmpty
	StatusUnavailable
)

func (k StatusKind) String() string {
	switch k {
	case StatusSyncing:
		return "syncing"
	case StatusError:
		return "error"
	case StatusExhausted:
		return "exhausted"
	case StatusEmpty:
		return "empty"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "ready"
	}
}

// State is an immutable snapshot of a picker session for rendering.
type State struct {
	Mode        domain.StoreMode
	Phase       Phase
	Total       int
	Remaining   int
	HistorySize int

	Status  StatusKind
	Message string

	// Current is the head of History, nil when History is empty.
	Current *domain.Movie
	// Fresh is set on the one snapshot where Current is the pick this
	// client just committed.
	Fresh   bool
	History []domain.Movie

	Busy     bool
	CanPick  bool
	CanClear bool
	// WeakRandom is set once draws have fallen back to the seeded source.
	WeakRandom bool
}

// Observer receives a snapshot after every state change.
type Observer interface {
	OnState(State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(State)

func (f ObserverFunc) OnState(s State) { f(s) }

// Status messages
const (
	msgCatalogMissing  = "Movie data is missing. Run pickflix catalog build."
	msgNotConfigured   = "History store is not configured. Set remote.url or use local mode."
	msgSchemaMissing   = "History table not found. Create the picks table (pickflix serve creates it)."
	msgSyncingShared   = "Syncing shared history..."
	msgSavingLocal     = "Saving history..."
	msgExhaustedShared = "All movies have been selected globally. Clear history to start over."
	msgExhaustedLocal  = "All movies have been selected. Clear history to start over."
	msgEmptyShared     = "No shared picks yet. Generate to pick the first movie."
	msgEmptyLocal      = "Generate to pick a random movie from the list."
)

// FormatStoreError turns a store failure into the one-line status message.
func FormatStoreError(err error) string {
	if err == nil {
		return "Unexpected error."
	}
	switch domain.KindOf(err) {
	case domain.KindSchemaMissing:
		return msgSchemaMissing
	case domain.KindNotConfigured:
		return msgNotConfigured
	}
	return fmt.Sprintf("Store error: %s", err.Error())
}

func remainingMessage(mode domain.StoreMode, remaining int) string {
	if mode == domain.ModeShared {
		return fmt.Sprintf("%d movies left globally.", remaining)
	}
	return fmt.Sprintf("%d movies left to pick.", remaining)
}
