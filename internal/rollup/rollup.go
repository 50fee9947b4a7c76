// Package rollup schedules the skill usage rollup.
package rollup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Runner performs one rollup pass and reports how many rows it wrote.
// *store.Store implements it.
type Runner interface {
	RollupSkillUsage(ctx context.Context) (int64, error)
}

// cronParser uses standard 5-field cron expressions plus descriptors such as
// @hourly.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Run performs a single rollup pass and logs the outcome.
func Run(ctx context.Context, r Runner) (int64, error) {
	start := time.Now()
	n, err := r.RollupSkillUsage(ctx)
	if err != nil {
		log.Error().Err(err).Msg("skill rollup failed")
		return 0, fmt.Errorf("rollup: %w", err)
	}
	log.Info().Int64("inserted", n).Dur("took", time.Since(start)).Msg("skill rollup complete")
	return n, nil
}

// Scheduler runs the rollup on a cron schedule. Overlapping runs are
// skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewScheduler parses schedule and registers r. The scheduler does nothing
// until Start.
func NewScheduler(schedule string, r Runner) (*Scheduler, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("rollup: parse schedule %q: %w", schedule, err)
	}
	logger := cronLogger{log.Logger.With().Str("component", "rollup").Logger()}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
	s.cron.Schedule(sched, cron.FuncJob(func() {
		_, _ = Run(s.ctx, r)
	}))
	return s, nil
}

// Start begins running the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop cancels a running pass and waits for it to return, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.once.Do(func() {
		s.cancel()
		done := s.cron.Stop()
		select {
		case <-done.Done():
		case <-ctx.Done():
		}
	})
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
