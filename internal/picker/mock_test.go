package picker

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/mmcdole/pickflix/internal/catalog"
	"github.com/mmcdole/pickflix/internal/domain"
)

// --- Mock History Store ------------------------------------------------------

type mockStore struct {
	mu   sync.Mutex
	mode domain.StoreMode
	ids  []int // most recent first

	fetchErr  error
	recordErr error
	clearErr  error

	// Hooks run with mu held and may edit ids to simulate other writers.
	beforeRecord func(m *mockStore, id int)
	afterRecord  func(m *mockStore, id int)

	// When fetchGate is non-nil, FetchAll signals fetchStarted and waits.
	fetchGate    chan struct{}
	fetchStarted chan struct{}

	fetches  int
	attempts []int
	clears   int
}

func newMockStore(mode domain.StoreMode, ids ...int) *mockStore {
	return &mockStore{mode: mode, ids: ids}
}

func (m *mockStore) Mode() domain.StoreMode { return m.mode }
func (m *mockStore) Close() error           { return nil }

func (m *mockStore) FetchAll(_ context.Context) ([]int, error) {
	if m.fetchGate != nil {
		m.fetchStarted <- struct{}{}
		<-m.fetchGate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return slices.Clone(m.ids), nil
}

func (m *mockStore) Record(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, id)

	if m.beforeRecord != nil {
		m.beforeRecord(m, id)
	}
	if m.recordErr != nil {
		return m.recordErr
	}
	if slices.Contains(m.ids, id) {
		return domain.NewStoreError(domain.KindConflict, "23505",
			fmt.Sprintf("duplicate key value violates unique constraint (id=%d)", id), nil)
	}
	m.ids = append([]int{id}, m.ids...)
	if m.afterRecord != nil {
		m.afterRecord(m, id)
	}
	return nil
}

func (m *mockStore) ClearAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	if m.clearErr != nil {
		return m.clearErr
	}
	m.ids = nil
	return nil
}

func (m *mockStore) snapshot() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ids)
}

func (m *mockStore) setFetchErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

// --- Scripted random source --------------------------------------------------

type scriptedSource struct {
	mu     sync.Mutex
	values []uint32
	err    error
	calls  int
}

func (s *scriptedSource) Uint32() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	if len(s.values) == 0 {
		return 0, nil
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v, nil
}

// --- Recording observer ------------------------------------------------------

type recordingObserver struct {
	mu     sync.Mutex
	states []State
}

func (o *recordingObserver) OnState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *recordingObserver) last() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.states[len(o.states)-1]
}

// --- Helpers -----------------------------------------------------------------

func testCatalog(t *testing.T, ids ...int) *catalog.Catalog {
	t.Helper()
	movies := make([]domain.Movie, len(ids))
	for i, id := range ids {
		movies[i] = domain.Movie{ID: id, Title: fmt.Sprintf("Movie %d", id), Year: 2000 + id}
	}
	c, err := catalog.New(movies)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

func seq(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

func seeded(seed uint64) *Generator {
	return NewGeneratorWith(NewMathSource(seed), nil)
}

func scripted(values ...uint32) *Generator {
	return NewGeneratorWith(&scriptedSource{values: values}, nil)
}

// checkSession asserts selected == set(history) and the remaining count.
func checkSession(t *testing.T, p *Picker) {
	t.Helper()
	p.mu.Lock()
	history := slices.Clone(p.sess.history)
	selected := len(p.sess.selected)
	for _, id := range history {
		if _, ok := p.sess.selected[id]; !ok {
			t.Errorf("history id %d missing from selected set", id)
		}
	}
	p.mu.Unlock()

	if selected != len(history) {
		t.Errorf("selected size %d != history size %d", selected, len(history))
	}
	seen := map[int]bool{}
	for _, id := range history {
		if seen[id] {
			t.Errorf("history repeats id %d: %v", id, history)
		}
		seen[id] = true
		if !p.catalog.Has(id) {
			t.Errorf("history id %d not in catalog", id)
		}
	}

	st := p.Peek()
	if st.Remaining != st.Total-len(history) {
		t.Errorf("remaining = %d, want %d", st.Remaining, st.Total-len(history))
	}
	if got := len(p.candidates()); got != st.Remaining {
		t.Errorf("candidates = %d, remaining = %d", got, st.Remaining)
	}
}
