package settle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/footyshares/club-engine/internal/model"
)

// Sweeper periodically re-drives pending fixtures that already have a
// recorded result. Covers the retry-after-timeout case: if a settlement
// request timed out but its commit landed, the sweep finds the fixture
// applied and moves on; if the commit was lost, the sweep applies it.
type Sweeper struct {
	engine *Engine
	cron   *cron.Cron
}

// NewSweeper creates a sweeper running on the given cron spec
// (e.g. "@every 1m").
func NewSweeper(engine *Engine, spec string) (*Sweeper, error) {
	s := &Sweeper{
		engine: engine,
		cron:   cron.New(),
	}
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the sweep schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Sweeper) sweep() {
	ctx := context.Background()

	fixtures, err := s.engine.store.ListFixturesByStatus(ctx, model.FixturePending)
	if err != nil {
		slog.Error("settlement sweep: list pending fixtures", "err", err)
		return
	}

	for _, f := range fixtures {
		if !f.HasResult() {
			continue
		}
		res, err := s.engine.Apply(ctx, f.ID)
		switch {
		case errors.Is(err, ErrAlreadyApplied):
			// Lost a race with a direct apply; already settled.
		case err != nil:
			slog.Error("settlement sweep: apply fixture", "fixture", f.ID, "err", err)
		default:
			slog.Info("settlement sweep: fixture applied",
				"fixture", f.ID,
				"outcome", res.Outcome,
				"transfer", res.TransferAmount.String(),
			)
		}
	}
}
