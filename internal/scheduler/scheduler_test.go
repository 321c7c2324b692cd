package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-radar/internal/config"
)

func TestSchedulerRegister(t *testing.T) {
	s := New(config.SchedulerConfig{}, zerolog.Nop())
	s.Register(Task{Name: "a", Interval: time.Minute, Run: func(ctx context.Context) {}})
	s.Register(Task{Name: "b", Spec: "0 8 * * *", Run: func(ctx context.Context) {}})

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].Name)
	assert.Equal(t, "b", tasks[1].Name)
}

func TestSchedulerTaskSwitchDisables(t *testing.T) {
	cfg := config.SchedulerConfig{
		TaskSwitch: map[string]bool{"disabled_task": false},
	}
	s := New(cfg, zerolog.Nop())

	// A disabled task is never scheduled, so its invalid spec is never seen.
	s.Register(Task{Name: "disabled_task", Spec: "not a cron spec", Run: func(ctx context.Context) {}})

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestSchedulerInvalidSpecFails(t *testing.T) {
	s := New(config.SchedulerConfig{}, zerolog.Nop())
	s.Register(Task{Name: "bad", Spec: "not a cron spec", Run: func(ctx context.Context) {}})

	assert.Error(t, s.Start(context.Background()))
}

func TestSchedulerMissingSwitchDefaultsEnabled(t *testing.T) {
	cfg := config.SchedulerConfig{
		TaskSwitch: map[string]bool{"other": false},
	}
	s := New(cfg, zerolog.Nop())

	var runs atomic.Int32
	s.Register(Task{Name: "unlisted", Interval: time.Second, Run: func(ctx context.Context) {
		runs.Add(1)
	}})

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(1200 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, runs.Load(), int32(1))
}

func TestSchedulerStopCancelsContext(t *testing.T) {
	s := New(config.SchedulerConfig{}, zerolog.Nop())

	done := make(chan struct{}, 1)
	s.Register(Task{Name: "watcher", Interval: time.Second, Run: func(ctx context.Context) {
		<-ctx.Done()
		done <- struct{}{}
	}})

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(1200 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task context was not cancelled on stop")
	}
}
