// Package scheduler runs the periodic engine tasks.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"stock-radar/internal/config"
)

// Task is one schedulable unit of work. Interval tasks run on a fixed
// period; when Interval is zero, Spec is interpreted as a standard cron
// expression.
type Task struct {
	Name     string
	Interval time.Duration
	Spec     string
	Run      func(ctx context.Context)
}

// Scheduler drives registered tasks on a cron runner. It is constructed
// explicitly and owns its task table; whether a task actually runs is
// decided by the task switch in configuration, so deployments can disable
// individual tasks without code changes.
type Scheduler struct {
	cron   *cron.Cron
	cfg    config.SchedulerConfig
	logger zerolog.Logger
	tasks  []Task

	cancel context.CancelFunc
}

// New creates an empty scheduler.
func New(cfg config.SchedulerConfig, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		cfg:    cfg,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds a task to the table. Registration order is kept for
// inspection but has no runtime meaning.
func (s *Scheduler) Register(t Task) {
	s.tasks = append(s.tasks, t)
}

// Tasks returns the registered tasks.
func (s *Scheduler) Tasks() []Task {
	return s.tasks
}

// Start schedules every enabled task and starts the cron runner. Tasks
// missing from the task switch default to enabled.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	for _, t := range s.tasks {
		if enabled, ok := s.cfg.TaskSwitch[t.Name]; ok && !enabled {
			s.logger.Info().Str("task", t.Name).Msg("task disabled by switch")
			continue
		}

		t := t
		job := func() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			start := time.Now()
			s.logger.Debug().Str("task", t.Name).Msg("task started")
			t.Run(ctx)
			s.logger.Debug().Str("task", t.Name).Dur("elapsed", time.Since(start)).Msg("task finished")
		}

		if t.Interval > 0 {
			s.cron.Schedule(cron.Every(t.Interval), cron.FuncJob(job))
			s.logger.Info().Str("task", t.Name).Dur("interval", t.Interval).Msg("task scheduled")
			continue
		}
		if _, err := s.cron.AddFunc(t.Spec, job); err != nil {
			return err
		}
		s.logger.Info().Str("task", t.Name).Str("spec", t.Spec).Msg("task scheduled")
	}

	s.cron.Start()
	return nil
}

// Stop halts the runner and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
}
