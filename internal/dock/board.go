package dock

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealdock/internal/model"
)

// BoardConfig tunes the board loop.
type BoardConfig struct {
	// Debounce is the quiet period after the last Trigger before a pass runs.
	Debounce time.Duration
	// Interval is the period of unconditional passes.
	Interval time.Duration
}

// PassHook observes each finished pass together with its snapshot.
type PassHook func(ctx context.Context, report PassReport, deals []model.Deal)

// Board fetches the deal list and runs engine passes, on a timer and on
// demand. Passes never overlap.
type Board struct {
	store    Store
	engine   *Engine
	debounce time.Duration
	interval time.Duration
	hooks    []PassHook
	triggers chan struct{}

	passMu sync.Mutex

	mu   sync.RWMutex
	last *PassReport
}

// NewBoard creates a Board. Zero config values default to a 250ms debounce
// and a 30s interval.
func NewBoard(st Store, engine *Engine, cfg BoardConfig, hooks ...PassHook) *Board {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 250 * time.Millisecond
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &Board{
		store:    st,
		engine:   engine,
		debounce: cfg.Debounce,
		interval: cfg.Interval,
		hooks:    hooks,
		triggers: make(chan struct{}, 1),
	}
}

// Engine returns the board's engine.
func (b *Board) Engine() *Engine { return b.engine }

// Pass fetches a fresh snapshot and runs one render pass on it.
func (b *Board) Pass(ctx context.Context) (PassReport, error) {
	b.passMu.Lock()
	defer b.passMu.Unlock()

	deals, err := b.store.List(ctx)
	if err != nil {
		return PassReport{}, eris.Wrap(err, "dock: list deals")
	}

	report := b.engine.RenderPass(ctx, deals)
	for _, h := range b.hooks {
		h(ctx, report, deals)
	}

	b.mu.Lock()
	b.last = &report
	b.mu.Unlock()
	return report, nil
}

// Last returns the most recent pass report.
func (b *Board) Last() (PassReport, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.last == nil {
		return PassReport{}, false
	}
	return *b.last, true
}

// Trigger asks Run for a pass. Triggers arriving within the debounce
// period of each other collapse into a single pass. Never blocks.
func (b *Board) Trigger() {
	select {
	case b.triggers <- struct{}{}:
	default:
	}
}

// Run performs a pass immediately, then on every interval tick and after
// each debounced trigger. It blocks until ctx is cancelled.
func (b *Board) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "dock.board"))
	log.Info("starting board loop",
		zap.Duration("interval", b.interval),
		zap.Duration("debounce", b.debounce),
	)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	b.runPass(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("board loop stopped")
			return
		case <-b.triggers:
			if debounce == nil {
				debounce = time.NewTimer(b.debounce)
			} else {
				debounce.Reset(b.debounce)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			b.runPass(ctx, log)
		case <-ticker.C:
			b.runPass(ctx, log)
		}
	}
}

func (b *Board) runPass(ctx context.Context, log *zap.Logger) {
	if _, err := b.Pass(ctx); err != nil && ctx.Err() == nil {
		log.Error("board pass failed", zap.Error(err))
	}
}
