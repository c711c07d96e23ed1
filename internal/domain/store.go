package domain

import "context"

// StoreMode tells the picker how much it can trust its local view of history.
type StoreMode int

const (
	// ModeLocal is a single-writer store; the picker updates history directly.
	ModeLocal StoreMode = iota
	// ModeShared has concurrent writers; history is re-fetched around every write.
	ModeShared
)

func (m StoreMode) String() string {
	if m == ModeShared {
		return "shared"
	}
	return "local"
}

// HistoryStore persists picked movie ids.
type HistoryStore interface {
	Mode() StoreMode

	// FetchAll returns every recorded id, most recent first
	FetchAll(ctx context.Context) ([]int, error)

	// Record durably adds id. Returns an error matching ErrConflict if id is already recorded.
	Record(ctx context.Context, id int) error

	// ClearAll removes every recorded id
	ClearAll(ctx context.Context) error

	Close() error
}
