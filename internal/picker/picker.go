// Package picker chooses unseen movies and records them in a history store.
//
// A Picker owns one client session: the history as last read from the store
// and the selected set derived from it. Operations are serialized by a busy
// flag; a trigger that arrives while another operation is in flight is
// ignored rather than queued. Across clients the store's uniqueness guarantee
// is the only coordination, so a pick that loses a race to another writer
// drops that candidate and draws again from the remaining ones.
package picker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmcdole/pickflix/internal/catalog"
	"github.com/mmcdole/pickflix/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxAttempts bounds record attempts per pick.
const DefaultMaxAttempts = 64

// ErrContended is returned when every attempt of a pick lost a race.
var ErrContended = errors.New("too many conflicting picks, try again")

// Outcome of a Pick call.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomePicked
	OutcomeExhausted
	OutcomeBusy
)

func (o Outcome) String() string {
	switch o {
	case OutcomePicked:
		return "picked"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeBusy:
		return "busy"
	default:
		return "none"
	}
}

// Result describes a completed Pick.
type Result struct {
	Outcome  Outcome
	Movie    domain.Movie
	Attempts int
}

// ConfirmFunc asks the user to approve clearing history.
type ConfirmFunc func() bool

// Confirmed approves unconditionally, for callers that already asked.
func Confirmed() bool { return true }

// Options configures a Picker.
type Options struct {
	MaxAttempts int        // zero uses DefaultMaxAttempts
	Generator   *Generator // nil uses the crypto source with a seeded fallback
	Observer    Observer
	Logger      *slog.Logger
}

// session is the per-client mutable state. history and selected are always
// replaced together.
type session struct {
	history  []int
	selected map[int]struct{}
	phase    Phase
	lastErr  string

	freshID  int
	hasFresh bool
}

// Picker runs pick, clear and refresh against one store.
type Picker struct {
	catalog     *catalog.Catalog
	store       domain.HistoryStore
	gen         *Generator
	maxAttempts int
	observer    Observer
	logger      *slog.Logger
	inst        instruments

	busy atomic.Bool

	mu   sync.Mutex
	sess session
}

// New creates a picker. cat may be empty and store may be nil; both
// conditions are reported through State rather than failing here.
func New(cat *catalog.Catalog, store domain.HistoryStore, opts Options) *Picker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gen := opts.Generator
	if gen == nil {
		gen = NewGenerator(uint64(time.Now().UnixNano()))
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Picker{
		catalog:     cat,
		store:       store,
		gen:         gen,
		maxAttempts: maxAttempts,
		observer:    opts.Observer,
		logger:      logger,
		inst:        newInstruments(logger),
		sess:        session{selected: map[int]struct{}{}},
	}
}

// Busy reports whether an operation is in flight
func (p *Picker) Busy() bool { return p.busy.Load() }

// Shared reports whether history lives in a store other clients write to
func (p *Picker) Shared() bool {
	return p.store != nil && p.store.Mode() == domain.ModeShared
}

// Pick draws one unseen movie and records it.
//
// In shared mode the history is refreshed first and re-fetched afterwards,
// so the session never shows history older than its own write. A conflict
// on record removes that candidate and draws again without re-fetching.
func (p *Picker) Pick(ctx context.Context) (Result, error) {
	if !p.catalog.Available() {
		return Result{}, catalog.ErrUnavailable
	}
	if !p.storeReady() {
		return Result{}, domain.ErrNotConfigured
	}
	if !p.busy.CompareAndSwap(false, true) {
		return Result{Outcome: OutcomeBusy}, nil
	}
	defer p.finish()

	ctx, span := p.inst.tracer.Start(ctx, spanPick)
	defer span.End()

	shared := p.store.Mode() == domain.ModeShared
	p.clearError()

	if shared {
		p.setPhase(PhaseRefreshing)
		ids, err := p.store.FetchAll(ctx)
		if err != nil {
			p.recordError(ctx, span, "refresh before pick failed", err)
			return Result{}, err
		}
		p.applyHistory(ids)
	}

	p.setPhase(PhaseSelecting)
	candidates := p.candidates()
	if len(candidates) == 0 {
		p.inst.exhausted.Add(ctx, 1)
		p.logger.Info("no candidates remain")
		return Result{Outcome: OutcomeExhausted}, nil
	}

	id, ok, attempts, commitErr := p.commit(ctx, candidates)
	span.SetAttributes(attribute.Int("pick.attempts", attempts), attribute.Int("pick.candidates", len(candidates)))

	if ok {
		p.mu.Lock()
		p.sess.freshID = id
		p.sess.hasFresh = true
		p.mu.Unlock()
	}
	if commitErr != nil {
		p.recordError(ctx, span, "pick failed", commitErr)
	}

	if shared {
		p.setPhase(PhaseReconciling)
		ids, err := p.store.FetchAll(ctx)
		if err != nil {
			p.recordError(ctx, span, "refresh after pick failed", err)
		} else {
			p.applyHistory(ids)
		}
	} else if ok {
		p.mu.Lock()
		p.sess.history = append([]int{id}, p.sess.history...)
		p.sess.selected[id] = struct{}{}
		p.mu.Unlock()
	}

	if commitErr != nil {
		return Result{Attempts: attempts}, commitErr
	}
	if !ok {
		p.inst.exhausted.Add(ctx, 1)
		p.logger.Info("candidates exhausted by concurrent picks", "attempts", attempts)
		return Result{Outcome: OutcomeExhausted, Attempts: attempts}, nil
	}

	movie, _ := p.catalog.Lookup(id)
	p.inst.committed.Add(ctx, 1)
	p.inst.emitPick(ctx, id, attempts, movie.Title)
	span.SetAttributes(attribute.Int("movie.id", id))
	p.logger.Info("pick committed", "id", id, "title", movie.Title, "attempts", attempts)
	return Result{Outcome: OutcomePicked, Movie: movie, Attempts: attempts}, nil
}

// commit draws and records until one record succeeds, the candidates run
// out, a non-conflict error occurs or the attempt bound is hit.
func (p *Picker) commit(ctx context.Context, candidates []int) (id int, ok bool, attempts int, err error) {
	p.setPhase(PhaseCommitting)
	for len(candidates) > 0 {
		if attempts >= p.maxAttempts {
			return 0, false, attempts, ErrContended
		}

		idx, err := p.gen.Index(len(candidates))
		if err != nil {
			return 0, false, attempts, fmt.Errorf("drawing candidate: %w", err)
		}
		id := candidates[idx]
		attempts++

		err = p.store.Record(ctx, id)
		switch {
		case err == nil:
			p.logger.Debug("pick attempt", "id", id, "outcome", "success", "attempt", attempts)
			return id, true, attempts, nil
		case errors.Is(err, domain.ErrConflict):
			p.logger.Debug("pick attempt", "id", id, "outcome", "conflict", "attempt", attempts)
			p.inst.conflicts.Add(ctx, 1)
			candidates = slices.Delete(candidates, idx, idx+1)
		default:
			p.logger.Debug("pick attempt", "id", id, "outcome", "failure", "attempt", attempts, "error", err)
			return 0, false, attempts, err
		}
	}
	return 0, false, attempts, nil
}

// Clear empties the history after confirm approves. It does nothing when the
// history is empty, an operation is in flight or confirm declines; a nil
// confirm declines. After ClearAll, history is re-read from the store even
// if ClearAll failed.
func (p *Picker) Clear(ctx context.Context, confirm ConfirmFunc) (bool, error) {
	if !p.storeReady() {
		return false, domain.ErrNotConfigured
	}
	if p.busy.Load() {
		return false, nil
	}
	p.mu.Lock()
	empty := len(p.sess.history) == 0
	p.mu.Unlock()
	if empty || confirm == nil || !confirm() {
		return false, nil
	}
	if !p.busy.CompareAndSwap(false, true) {
		return false, nil
	}
	defer p.finish()

	ctx, span := p.inst.tracer.Start(ctx, spanClear)
	defer span.End()

	p.clearError()
	p.setPhase(PhaseClearing)

	clearErr := p.store.ClearAll(ctx)
	if clearErr != nil {
		p.recordError(ctx, span, "clear failed", clearErr)
	} else {
		p.logger.Info("history cleared")
	}

	p.setPhase(PhaseReconciling)
	ids, err := p.store.FetchAll(ctx)
	if err != nil {
		p.recordError(ctx, span, "refresh after clear failed", err)
		if clearErr == nil {
			clearErr = err
		}
	} else {
		p.applyHistory(ids)
	}
	return true, clearErr
}

// Refresh re-reads history from the store. It returns false without error
// when skipped because another operation is in flight. A silent refresh
// logs failures but leaves the status message alone.
func (p *Picker) Refresh(ctx context.Context, silent bool) (bool, error) {
	if !p.storeReady() {
		return false, domain.ErrNotConfigured
	}
	if !p.busy.CompareAndSwap(false, true) {
		return false, nil
	}
	defer p.finish()

	ctx, span := p.inst.tracer.Start(ctx, spanRefresh)
	defer span.End()
	span.SetAttributes(attribute.Bool("refresh.silent", silent))

	if !silent {
		p.clearError()
	}
	p.setPhase(PhaseRefreshing)

	ids, err := p.store.FetchAll(ctx)
	if err != nil {
		if silent {
			p.logger.Warn("background refresh failed", "error", err)
			p.inst.storeErrors.Add(ctx, 1)
			p.inst.failSpan(span, err)
		} else {
			p.recordError(ctx, span, "refresh failed", err)
		}
		return false, err
	}
	p.applyHistory(ids)
	return true, nil
}

// Snapshot returns the current state and consumes the fresh-pick marker if
// this snapshot reports it.
func (p *Picker) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buildState(true)
}

// Peek returns the current state without consuming the fresh-pick marker.
func (p *Picker) Peek() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buildState(false)
}

func (p *Picker) storeReady() bool {
	if p.store == nil {
		return false
	}
	if c, ok := p.store.(interface{ Configured() bool }); ok {
		return c.Configured()
	}
	return true
}

// applyHistory replaces history and selected set, dropping ids that are
// unknown to the catalog or repeated.
func (p *Picker) applyHistory(ids []int) {
	history := make([]int, 0, len(ids))
	selected := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := selected[id]; dup || !p.catalog.Has(id) {
			continue
		}
		selected[id] = struct{}{}
		history = append(history, id)
	}

	p.mu.Lock()
	p.sess.history = history
	p.sess.selected = selected
	p.mu.Unlock()
}

// candidates returns unselected catalog ids in catalog order.
func (p *Picker) candidates() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []int
	for _, id := range p.catalog.IDs() {
		if _, taken := p.sess.selected[id]; !taken {
			out = append(out, id)
		}
	}
	return out
}

func (p *Picker) setPhase(phase Phase) {
	p.mu.Lock()
	p.sess.phase = phase
	p.mu.Unlock()
	p.notify()
}

func (p *Picker) clearError() {
	p.mu.Lock()
	p.sess.lastErr = ""
	p.mu.Unlock()
}

func (p *Picker) recordError(ctx context.Context, span trace.Span, msg string, err error) {
	p.logger.Error(msg, "error", err)
	p.inst.storeErrors.Add(ctx, 1)
	p.inst.failSpan(span, err)

	p.mu.Lock()
	p.sess.lastErr = FormatStoreError(err)
	p.mu.Unlock()
}

// finish ends an operation: back to idle, busy released, observer told.
func (p *Picker) finish() {
	p.mu.Lock()
	p.sess.phase = PhaseIdle
	p.mu.Unlock()
	p.busy.Store(false)
	p.notify()
}

func (p *Picker) notify() {
	if p.observer == nil {
		return
	}
	p.mu.Lock()
	st := p.buildState(true)
	p.mu.Unlock()
	p.observer.OnState(st)
}

// buildState requires p.mu.
func (p *Picker) buildState(consume bool) State {
	s := &p.sess
	busy := p.busy.Load()
	mode := domain.ModeLocal
	if p.store != nil {
		mode = p.store.Mode()
	}

	st := State{
		Mode:        mode,
		Phase:       s.phase,
		Total:       p.catalog.Len(),
		Remaining:   p.catalog.Len() - len(s.selected),
		HistorySize: len(s.history),
		Busy:        busy,
		WeakRandom:  p.gen.Weak(),
		History:     make([]domain.Movie, 0, len(s.history)),
	}
	for _, id := range s.history {
		if m, ok := p.catalog.Lookup(id); ok {
			st.History = append(st.History, m)
		}
	}
	if len(st.History) > 0 {
		current := st.History[0]
		st.Current = &current
	}
	if s.hasFresh && st.Current != nil && st.Current.ID == s.freshID {
		st.Fresh = true
		if consume {
			s.hasFresh = false
		}
	}

	ready := p.storeReady() && p.catalog.Available()
	st.CanPick = ready && !busy && st.Remaining > 0
	st.CanClear = ready && !busy && len(s.history) > 0

	switch {
	case !p.catalog.Available():
		st.Status, st.Message = StatusUnavailable, msgCatalogMissing
	case !p.storeReady():
		st.Status, st.Message = StatusError, msgNotConfigured
	case s.lastErr != "":
		st.Status, st.Message = StatusError, s.lastErr
	case busy && mode == domain.ModeShared:
		st.Status, st.Message = StatusSyncing, msgSyncingShared
	case busy:
		st.Status, st.Message = StatusSyncing, msgSavingLocal
	case st.Remaining == 0:
		st.Status = StatusExhausted
		st.Message = msgExhaustedLocal
		if mode == domain.ModeShared {
			st.Message = msgExhaustedShared
		}
	case len(s.selected) == 0:
		st.Status = StatusEmpty
		st.Message = msgEmptyLocal
		if mode == domain.ModeShared {
			st.Message = msgEmptyShared
		}
	default:
		st.Status, st.Message = StatusReady, remainingMessage(mode, st.Remaining)
	}
	return st
}
