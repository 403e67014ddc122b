package sweeper

import (
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"fitness_attest/pkg/consensus"
)

// Clock supplies the current logical height. The sweeper never keeps time
// itself; deadline checks stay pure functions of the supplied height.
type Clock interface {
	Height() uint64
}

// ManualClock is a Clock advanced explicitly, used in tooling and tests.
type ManualClock struct {
	height uint64
	mu     sync.RWMutex
}

// NewManualClock creates a clock at the given height.
func NewManualClock(height uint64) *ManualClock {
	return &ManualClock{height: height}
}

// Height returns the current height.
func (c *ManualClock) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

// Advance moves the clock forward by delta.
func (c *ManualClock) Advance(delta uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height += delta
}

// Sweeper periodically finalizes validation requests whose deadline or
// panel target has been reached. It is just a scheduled caller of the same
// pull-based finalization path; no per-request timers exist.
type Sweeper struct {
	engine   *consensus.Engine
	clock    Clock
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
}

// NewSweeper creates a sweeper with a cron schedule (with seconds field).
func NewSweeper(engine *consensus.Engine, clock Clock, schedule string, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		engine:   engine,
		clock:    clock,
		schedule: schedule,
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger,
	}
}

// Start begins periodic sweeping.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()

	s.logger.Info("Sweeper started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts scheduling. A sweep already running completes.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep runs one pass over all due requests.
func (s *Sweeper) Sweep() {
	height := s.clock.Height()
	outcomes := s.engine.FinalizeDue(height)
	if len(outcomes) == 0 {
		return
	}

	for id, outcome := range outcomes {
		s.logger.Info("Request swept",
			zap.Uint64("requestID", id),
			zap.String("outcome", string(outcome)),
			zap.Uint64("height", height))
	}
}
