package bot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"stopguard/internal/models"
)

func TestSchedulerCoalesce(t *testing.T) {
	var runs atomic.Int32
	release := make(chan struct{})

	job := &Job{
		Name:     "slow",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			<-release
			return nil
		},
	}

	s := NewScheduler(newMockFlagProvider(), &mockNotifier{}, testLogger())
	s.Register(job)
	s.Start(context.Background())

	// Несколько тиков проходят, пока первый запуск висит
	time.Sleep(60 * time.Millisecond)
	close(release)
	s.Stop()

	if got := runs.Load(); got != 1 {
		t.Errorf("запусков = %d, ожидался 1 (coalesce)", got)
	}
}

func TestSchedulerFlagGatesNextRun(t *testing.T) {
	var runs atomic.Int32
	flags := newMockFlagProvider()
	flags.disabled[models.FlagTrailingStopLoss] = true

	job := &Job{
		Name:     "gated",
		Flag:     models.FlagTrailingStopLoss,
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}

	s := NewScheduler(flags, &mockNotifier{}, testLogger())
	s.Register(job)
	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if got := runs.Load(); got != 0 {
		t.Errorf("задача с выключенным флагом запускалась %d раз", got)
	}
}

// Выключенный флаг запускает OnDisabled вместо Run
func TestSchedulerCallsOnDisabledWhenGated(t *testing.T) {
	var runs, disabledChecks atomic.Int32
	flags := newMockFlagProvider()
	flags.disabled[models.FlagLimitSellGuard] = true

	job := &Job{
		Name:     "gated_with_check",
		Flag:     models.FlagLimitSellGuard,
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
		OnDisabled: func(ctx context.Context) {
			disabledChecks.Add(1)
		},
	}

	s := NewScheduler(flags, &mockNotifier{}, testLogger())
	s.Register(job)
	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if got := runs.Load(); got != 0 {
		t.Errorf("задача с выключенным флагом запускалась %d раз", got)
	}
	if disabledChecks.Load() == 0 {
		t.Error("OnDisabled должен вызываться на тиках с выключенным флагом")
	}
}

func TestSchedulerReportsJobError(t *testing.T) {
	notifier := &mockNotifier{}
	job := &Job{
		Name:     "failing",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			return errors.New("boom")
		},
	}

	s := NewScheduler(newMockFlagProvider(), notifier, testLogger())
	s.Register(job)
	s.Start(context.Background())
	time.Sleep(35 * time.Millisecond)
	s.Stop()

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.fatals) == 0 {
		t.Error("ошибка задачи должна уйти в уведомления")
	}
}

// Паника внутри тика не роняет планировщик, задача не отключается
func TestSchedulerRecoversFromPanic(t *testing.T) {
	var runs atomic.Int32
	job := &Job{
		Name:     "panicking",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			panic("unexpected")
		},
	}

	s := NewScheduler(newMockFlagProvider(), &mockNotifier{}, testLogger())
	s.Register(job)
	s.Start(context.Background())
	time.Sleep(55 * time.Millisecond)
	s.Stop()

	if got := runs.Load(); got < 2 {
		t.Errorf("после паники задача должна продолжать запускаться, запусков = %d", got)
	}
}

func TestSchedulerStopWaitsForRunningTick(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool

	job := &Job{
		Name:     "long",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			select {
			case started <- struct{}{}:
			default:
			}
			time.Sleep(30 * time.Millisecond)
			finished.Store(true)
			return nil
		},
	}

	s := NewScheduler(newMockFlagProvider(), &mockNotifier{}, testLogger())
	s.Register(job)
	s.Start(context.Background())

	<-started
	s.Stop()

	if !finished.Load() {
		t.Error("Stop должен дождаться завершения идущего тика")
	}
}
