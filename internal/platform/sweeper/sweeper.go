package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Func performs one sweep pass and reports how many rows it touched.
type Func func(ctx context.Context) (int, error)

// Sweeper runs a sweep function on a fixed interval until stopped.
type Sweeper struct {
	name     string
	interval time.Duration
	sweep    Func
	logger   zerolog.Logger
	stop     chan struct{}
	done     chan struct{}
}

func New(name string, interval time.Duration, sweep Func, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		name:     name,
		interval: interval,
		sweep:    sweep,
		logger:   logger.With().Str("sweeper", name).Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. The first pass runs immediately so restarts
// don't delay overdue processing by a full interval. An interval of zero or
// less disables the loop entirely.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		if s.interval <= 0 {
			s.logger.Info().Msg("sweeper disabled")
			return
		}
		s.run(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.run(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *Sweeper) run(ctx context.Context) {
	n, err := s.sweep(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int("updated", n).Msg("sweep completed")
	}
}

// Stop signals the loop to exit and waits for the in-flight pass to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
