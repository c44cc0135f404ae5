package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// CycleFunc is invoked once per cycle.
type CycleFunc func(ctx context.Context, started time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	// MinGap is the shortest allowed pause between the end of one cycle and
	// the start of the next. It keeps slow cycles from overlapping their
	// successor when fetches run long.
	MinGap time.Duration
}

// Scheduler drives serial execution of monitoring cycles.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the cycle function at each interval until ctx is
// cancelled. Cycles never overlap: the next one is scheduled only after the
// previous returns, and at least MinGap later.
func (s *Scheduler) Run(ctx context.Context, cycle CycleFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.nextCycle(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.nextCycle(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_cycle", next).Msg("waiting for next cycle")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		started := time.Now().UTC()
		s.logger.Info().Time("cycle", started).Msg("executing monitoring cycle")

		if err := cycle(ctx, started); err != nil {
			s.logger.Error().Err(err).Time("cycle", started).Msg("cycle execution failed")
		}

		next = next.Add(s.opts.Interval)
		if floor := time.Now().UTC().Add(s.opts.MinGap); next.Before(floor) {
			s.logger.Warn().
				Time("scheduled", next).
				Time("deferred_to", floor).
				Msg("cycle ran long; deferring next cycle")
			next = floor
		}
	}
}

func (s *Scheduler) nextCycle(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	aligned := now.Truncate(s.opts.Interval)
	if !aligned.After(now) {
		aligned = aligned.Add(s.opts.Interval)
	}
	return aligned
}
