package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs the sweep once a day, on the first tick at or after the
// configured hour in its location.
type Scheduler struct {
	mu       sync.RWMutex
	sweeper  *Sweeper
	hour     int
	loc      *time.Location
	interval time.Duration
	now      func() time.Time
	lastDay  string
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(sweeper *Sweeper, hour int, loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		sweeper:  sweeper,
		hour:     hour,
		loc:      loc,
		interval: time.Minute,
		now:      time.Now,
		logger:   logger.With("component", "sweep_scheduler"),
	}
}

// Start begins the scheduler loop. A run already recorded today, from any
// trigger, counts as today's sweep.
func (s *Scheduler) Start(ctx context.Context) {
	s.seed()

	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) seed() {
	last, err := s.sweeper.runs.Last()
	if err != nil {
		s.logger.Warn("load last sweep run", "error", err)
		return
	}
	if last == nil {
		return
	}
	s.mu.Lock()
	s.lastDay = last.StartedAt.In(s.loc).Format("2006-01-02")
	s.mu.Unlock()
}

// due reports whether a sweep should start at now, and the day key to mark.
func (s *Scheduler) due(now time.Time) (string, bool) {
	local := now.In(s.loc)
	day := local.Format("2006-01-02")
	if local.Hour() < s.hour {
		return day, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return day, s.lastDay != day
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	day, ok := s.due(now)
	if !ok {
		return
	}

	s.mu.Lock()
	s.lastDay = day
	s.mu.Unlock()

	if _, err := s.sweeper.Run(ctx, now.In(s.loc), TriggerScheduler); err != nil {
		s.logger.Error("scheduled sweep", "error", err)
	}
}
