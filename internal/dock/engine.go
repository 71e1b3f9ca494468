package dock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdock/internal/allocation"
	"github.com/sells-group/dealdock/internal/model"
)

// Work kinds. Each has its own queue and processed cache.
const (
	KindAdvance   = "advance"
	KindDowngrade = "downgrade"
	KindConflict  = "conflict"
)

// Operator action labels used in metrics.
const (
	actionApprove  = "approve"
	actionFinalize = "finalize"
)

var (
	// ErrTerminal is returned for operator actions on archived deals.
	ErrTerminal = eris.New("deal is archived")
	// ErrWrongPhase is returned when an operator action does not apply to
	// the deal's current phase.
	ErrWrongPhase = eris.New("deal is in the wrong phase")
	// ErrNotReady is returned when a deal fails the completeness check.
	ErrNotReady = eris.New("deal is not complete")
	// ErrInvalidAllocation is returned when a category's points do not
	// total 0 or 100.
	ErrInvalidAllocation = eris.New("allocation points incomplete")
	// ErrInvalidAssignment is returned for an unknown final assignment.
	ErrInvalidAssignment = eris.New("unknown final assignment")
)

// Store is the persistence the engine needs.
type Store interface {
	List(ctx context.Context) ([]model.Deal, error)
	Get(ctx context.Context, id string) (*model.Deal, error)
	Update(ctx context.Context, id string, patch model.DealPatch) (*model.Deal, error)
}

// Limits bound the work committed per pass.
type Limits struct {
	Advance   int
	Downgrade int
	Conflict  int
}

// DefaultLimits allows one advance, one downgrade and eight conflict checks
// per pass.
func DefaultLimits() Limits {
	return Limits{Advance: 1, Downgrade: 1, Conflict: 8}
}

// CacheFactory builds the processed cache for one work kind.
type CacheFactory func(kind string) ProcessedCache

// MemoryCaches returns a CacheFactory of in-process caches with ttl.
func MemoryCaches(ttl time.Duration) CacheFactory {
	return func(string) ProcessedCache { return NewMemoryCache(ttl) }
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLimits replaces DefaultLimits. Non-positive fields keep the default.
func WithLimits(l Limits) Option {
	return func(e *Engine) {
		if l.Advance > 0 {
			e.limits.Advance = l.Advance
		}
		if l.Downgrade > 0 {
			e.limits.Downgrade = l.Downgrade
		}
		if l.Conflict > 0 {
			e.limits.Conflict = l.Conflict
		}
	}
}

// WithCaches replaces the in-memory processed caches.
func WithCaches(f CacheFactory) Option {
	return func(e *Engine) { e.cacheFactory = f }
}

// WithMetrics records pass metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithHints shares an existing hint store.
func WithHints(h *HintStore) Option {
	return func(e *Engine) { e.hints = h }
}

// Engine schedules and applies automatic phase changes and conflict checks,
// and carries out operator actions.
type Engine struct {
	store        Store
	limits       Limits
	now          func() time.Time
	metrics      *Metrics
	hints        *HintStore
	cacheFactory CacheFactory

	mu     sync.Mutex
	queues map[string]*Queue
	caches map[string]ProcessedCache
	// finalized holds ids archived by Finalize that a snapshot may still
	// show as open. An entry is dropped once a snapshot shows the deal
	// terminal or the deal is evicted.
	finalized map[string]struct{}
}

var kinds = []string{KindAdvance, KindDowngrade, KindConflict}

// NewEngine creates an Engine committing through st.
func NewEngine(st Store, opts ...Option) *Engine {
	e := &Engine{
		store:        st,
		limits:       DefaultLimits(),
		now:          func() time.Time { return time.Now().UTC() },
		cacheFactory: MemoryCaches(DefaultProcessedTTL),
		queues:       make(map[string]*Queue, len(kinds)),
		caches:       make(map[string]ProcessedCache, len(kinds)),
		finalized:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.hints == nil {
		e.hints = NewHintStore()
	}
	for _, k := range kinds {
		e.queues[k] = NewQueue(k)
		e.caches[k] = e.cacheFactory(k)
	}
	return e
}

// Hints returns the engine's conflict hints.
func (e *Engine) Hints() *HintStore { return e.hints }

// Transition is one committed or attempted phase change.
type Transition struct {
	DealID string      `json:"dealId"`
	From   model.Phase `json:"from"`
	To     model.Phase `json:"to"`
}

// Notice is a problem met during a pass. Passes never fail as a whole.
type Notice struct {
	DealID  string `json:"dealId,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// PassReport summarizes one render pass.
type PassReport struct {
	StartedAt  time.Time            `json:"startedAt"`
	Duration   time.Duration        `json:"duration"`
	Deals      int                  `json:"deals"`
	Scheduled  map[string]int       `json:"scheduled"`
	Advanced   []Transition         `json:"advanced"`
	Downgraded []Transition         `json:"downgraded"`
	Checked    []model.ConflictHint `json:"checked"`
	Dropped    int                  `json:"dropped"`
	Pending    map[string]int       `json:"pending"`
	Notices    []Notice             `json:"notices"`
}

// Failed reports whether any commit in the pass failed.
func (r PassReport) Failed() bool {
	return len(r.Notices) > 0
}

type pass struct {
	ctx    context.Context
	now    time.Time
	deals  []model.Deal
	byID   map[string]int
	report *PassReport
	log    *zap.Logger
}

func (p *pass) lookup(id string) (model.Deal, bool) {
	i, ok := p.byID[id]
	if !ok {
		return model.Deal{}, false
	}
	return p.deals[i], true
}

func (p *pass) notice(id, kind string, err error) {
	p.report.Notices = append(p.report.Notices, Notice{DealID: id, Kind: kind, Message: err.Error()})
}

// RenderPass evaluates deals, schedules eligible work, then drains each
// queue within its limit. deals is the snapshot fetched at pass start; it is
// read, never modified, and every queued entry is re-checked against it
// before anything is committed. Commit failures become notices and the deal
// becomes eligible again once its processed stamp expires.
func (e *Engine) RenderPass(ctx context.Context, deals []model.Deal) PassReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	report := PassReport{
		StartedAt:  start,
		Deals:      len(deals),
		Scheduled:  make(map[string]int, len(kinds)),
		Advanced:   []Transition{},
		Downgraded: []Transition{},
		Checked:    []model.ConflictHint{},
		Pending:    make(map[string]int, len(kinds)),
		Notices:    []Notice{},
	}
	p := &pass{
		ctx:    ctx,
		now:    start,
		deals:  deals,
		byID:   make(map[string]int, len(deals)),
		report: &report,
		log:    zap.L().With(zap.String("component", "dock.engine")),
	}
	for i := range deals {
		p.byID[deals[i].ID] = i
	}

	e.schedule(p)

	Drain(e.queues[KindAdvance], e.limits.Advance, func(en Entry) bool {
		return e.transition(p, en, KindAdvance)
	})
	Drain(e.queues[KindDowngrade], e.limits.Downgrade, func(en Entry) bool {
		return e.transition(p, en, KindDowngrade)
	})
	Drain(e.queues[KindConflict], e.limits.Conflict, func(en Entry) bool {
		return e.check(p, en)
	})

	for _, k := range kinds {
		report.Pending[k] = e.queues[k].Len()
	}
	report.Duration = e.now().Sub(start)
	e.observe(report)

	if len(report.Advanced)+len(report.Downgraded)+len(report.Notices) > 0 {
		p.log.Info("board pass complete",
			zap.Int("deals", report.Deals),
			zap.Int("advanced", len(report.Advanced)),
			zap.Int("downgraded", len(report.Downgraded)),
			zap.Int("checked", len(report.Checked)),
			zap.Int("notices", len(report.Notices)),
		)
	}
	return report
}

// schedule queues every deal that is eligible for some kind of work.
func (e *Engine) schedule(p *pass) {
	for i := range p.deals {
		d := p.deals[i]
		if d.IsTerminal() {
			delete(e.finalized, d.ID)
			continue
		}
		if e.isFinalized(d.ID) {
			continue
		}
		if !d.DockPhase.Valid() {
			p.log.Warn("deal has no board phase", zap.String("deal_id", d.ID))
			continue
		}

		if kind, ok := transitionKind(d); ok && !e.transitionRecent(p, d.ID, kind) {
			if e.queues[kind].Push(d.ID, p.now) {
				p.report.Scheduled[kind]++
			}
		}

		if d.DockPhase == model.PhaseApproved && !e.recent(p, d.ID, KindConflict) {
			if e.queues[KindConflict].Push(d.ID, p.now) {
				p.report.Scheduled[KindConflict]++
			}
		}
	}
}

// transitionKind returns the automatic transition d is eligible for.
func transitionKind(d model.Deal) (string, bool) {
	ready := IsReady(d)
	switch {
	case d.DockPhase == model.PhaseIncoming && ready:
		return KindAdvance, true
	case (d.DockPhase == model.PhasePending || d.DockPhase == model.PhaseApproved) && !ready:
		return KindDowngrade, true
	default:
		return "", false
	}
}

// recent reports whether id was processed for kind within the TTL. A cache
// error counts as recent so a broken cache cannot cause thrashing.
func (e *Engine) recent(p *pass, id, kind string) bool {
	ok, err := e.caches[kind].Recent(p.ctx, id, p.now)
	if err != nil {
		p.log.Warn("processed cache lookup failed", zap.String("kind", kind), zap.String("deal_id", id), zap.Error(err))
		p.notice(id, kind, err)
		return true
	}
	return ok
}

// transitionRecent also consults the opposite transition kind, so a deal
// flapping between ready and not ready commits at most once per TTL.
func (e *Engine) transitionRecent(p *pass, id, kind string) bool {
	other := KindDowngrade
	if kind == KindDowngrade {
		other = KindAdvance
	}
	return e.recent(p, id, kind) || e.recent(p, id, other)
}

func (e *Engine) mark(p *pass, id, kind string) {
	if err := e.caches[kind].Mark(p.ctx, id, p.now); err != nil {
		p.log.Warn("processed cache mark failed", zap.String("kind", kind), zap.String("deal_id", id), zap.Error(err))
	}
}

// transition applies one queued advance or downgrade. It returns false for
// stale entries that no longer apply to the snapshot.
func (e *Engine) transition(p *pass, en Entry, kind string) bool {
	d, ok := p.lookup(en.DealID)
	if !ok || d.IsTerminal() || e.isFinalized(d.ID) {
		p.report.Dropped++
		return false
	}
	if k, eligible := transitionKind(d); !eligible || k != kind || e.transitionRecent(p, d.ID, kind) {
		p.report.Dropped++
		return false
	}

	t := Transition{DealID: d.ID, From: d.DockPhase, To: d.DockPhase + 1}
	if kind == KindDowngrade {
		t.To = d.DockPhase - 1
	}

	_, err := e.store.Update(p.ctx, d.ID, model.DealPatch{DockPhase: &t.To})
	e.mark(p, d.ID, kind)
	if err != nil {
		p.log.Error("phase change failed",
			zap.String("kind", kind),
			zap.String("deal_id", d.ID),
			zap.Int("from", int(t.From)),
			zap.Int("to", int(t.To)),
			zap.Error(err),
		)
		p.notice(d.ID, kind, err)
		e.count(kind, "error")
		return true
	}

	e.count(kind, "ok")
	if kind == KindAdvance {
		p.report.Advanced = append(p.report.Advanced, t)
	} else {
		p.report.Downgraded = append(p.report.Downgraded, t)
	}
	return true
}

// check runs one queued conflict check.
func (e *Engine) check(p *pass, en Entry) bool {
	d, ok := p.lookup(en.DealID)
	if !ok || d.IsTerminal() || e.isFinalized(d.ID) || d.DockPhase != model.PhaseApproved || e.recent(p, d.ID, KindConflict) {
		p.report.Dropped++
		return false
	}

	hint := FindConflicts(d, p.deals, p.now)
	e.hints.Put(hint)
	e.mark(p, d.ID, KindConflict)
	p.report.Checked = append(p.report.Checked, hint)

	if hint.HasConflicts() {
		if e.metrics != nil {
			e.metrics.Conflicts.Add(float64(len(hint.Conflicts)))
		}
		p.log.Info("reference code conflict",
			zap.String("deal_id", d.ID),
			zap.Int("conflicts", len(hint.Conflicts)),
		)
	}
	return true
}

func (e *Engine) count(kind, result string) {
	if e.metrics != nil {
		e.metrics.Transitions.WithLabelValues(kind, result).Inc()
	}
}

func (e *Engine) observe(r PassReport) {
	if e.metrics == nil {
		return
	}
	e.metrics.PassDuration.Observe(r.Duration.Seconds())
	for k, n := range r.Pending {
		e.metrics.QueueDepth.WithLabelValues(k).Set(float64(n))
	}
}

// Approve moves a complete deal from pending to approved.
func (e *Engine) Approve(ctx context.Context, id string) (*model.Deal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "dock: approve %s", id)
	}
	if d.IsTerminal() {
		return nil, eris.Wrapf(ErrTerminal, "dock: approve %s", id)
	}
	if d.DockPhase != model.PhasePending {
		return nil, eris.Wrapf(ErrWrongPhase, "dock: approve %s: phase %s", id, d.DockPhase)
	}
	if reasons := Reasons(*d); len(reasons) > 0 {
		return nil, eris.Wrapf(ErrNotReady, "dock: approve %s: %s", id, strings.Join(reasons, "; "))
	}

	phase := model.PhaseApproved
	updated, err := e.store.Update(ctx, id, model.DealPatch{DockPhase: &phase})
	if err != nil {
		e.count(actionApprove, "error")
		return nil, eris.Wrapf(err, "dock: approve %s", id)
	}
	e.count(actionApprove, "ok")
	e.settle(ctx, id)

	zap.L().Info("deal approved", zap.String("component", "dock.engine"), zap.String("deal_id", id))
	return updated, nil
}

// Finalize archives an approved deal with its final assignment and reward
// factor in a single update. It is the only way into the archived phase.
// A zero rewardFactor means 1.0; other values snap to the allowed steps.
func (e *Engine) Finalize(ctx context.Context, id string, assignment model.Assignment, rewardFactor float64) (*model.Deal, error) {
	if !assignment.Valid() {
		return nil, eris.Wrapf(ErrInvalidAssignment, "dock: finalize %s: %q", id, assignment)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "dock: finalize %s", id)
	}
	if d.IsTerminal() {
		return nil, eris.Wrapf(ErrTerminal, "dock: finalize %s", id)
	}
	if d.DockPhase != model.PhaseApproved {
		return nil, eris.Wrapf(ErrWrongPhase, "dock: finalize %s: phase %s", id, d.DockPhase)
	}
	if reasons := Reasons(*d); len(reasons) > 0 {
		return nil, eris.Wrapf(ErrNotReady, "dock: finalize %s: %s", id, strings.Join(reasons, "; "))
	}
	if violations := allocation.Validate(d.Rows, d.Weights); len(violations) > 0 {
		msgs := make([]string, len(violations))
		for i, v := range violations {
			msgs[i] = v.String()
		}
		return nil, eris.Wrapf(ErrInvalidAllocation, "dock: finalize %s: %s", id, strings.Join(msgs, "; "))
	}

	if rewardFactor == 0 {
		rewardFactor = 1
	}
	phase := model.PhaseArchived
	factor := model.QuantizeRewardFactor(rewardFactor)
	updated, err := e.store.Update(ctx, id, model.DealPatch{
		DockPhase:           &phase,
		DockFinalAssignment: &assignment,
		DockRewardFactor:    &factor,
	})
	if err != nil {
		e.count(actionFinalize, "error")
		return nil, eris.Wrapf(err, "dock: finalize %s", id)
	}
	e.count(actionFinalize, "ok")

	e.settle(ctx, id)
	e.queues[KindConflict].Remove(id)
	e.hints.Delete(id)
	e.finalized[id] = struct{}{}

	zap.L().Info("deal finalized",
		zap.String("component", "dock.engine"),
		zap.String("deal_id", id),
		zap.String("assignment", string(assignment)),
		zap.Float64("reward_factor", factor),
	)
	return updated, nil
}

// settle unqueues id's transitions and stamps both transition caches, so a
// pass working from a snapshot taken before an operator action cannot undo
// it. Caller holds mu.
func (e *Engine) settle(ctx context.Context, id string) {
	now := e.now()
	for _, k := range []string{KindAdvance, KindDowngrade} {
		e.queues[k].Remove(id)
		if err := e.caches[k].Mark(ctx, id, now); err != nil {
			zap.L().Warn("processed cache mark failed",
				zap.String("component", "dock.engine"),
				zap.String("kind", k),
				zap.String("deal_id", id),
				zap.Error(err),
			)
		}
	}
}

// Evict removes every trace of id from the automation state. Used when a
// deal is deleted.
func (e *Engine) Evict(ctx context.Context, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, k := range kinds {
		e.queues[k].Remove(id)
		if err := e.caches[k].Forget(ctx, id); err != nil {
			zap.L().Warn("processed cache forget failed",
				zap.String("component", "dock.engine"),
				zap.String("kind", k),
				zap.String("deal_id", id),
				zap.Error(err),
			)
		}
	}
	e.hints.Delete(id)
	delete(e.finalized, id)
}

// isFinalized reports whether id was archived by Finalize after the
// current snapshot may have been taken. Caller holds mu.
func (e *Engine) isFinalized(id string) bool {
	_, ok := e.finalized[id]
	return ok
}

// QueueDepths returns the current length of each queue.
func (e *Engine) QueueDepths() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(kinds))
	for _, k := range kinds {
		out[k] = e.queues[k].Len()
	}
	return out
}
