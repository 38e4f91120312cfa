package bot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"stopguard/pkg/utils"
)

// Имена задач (совпадают с label в метриках)
const (
	JobTrailingStop     = "trailing_stop"
	JobLimitSellGuard   = "limit_sell_guard"
	JobSignalEvaluation = "signal_evaluation"
)

// Job - периодическая задача планировщика.
//
// Семантика запуска: max_instances=1 + coalesce. Если тик пришел,
// а предыдущий запуск еще идет, новый тик пропускается, не ставится
// в очередь. Флаг гейтит только СЛЕДУЮЩИЙ запуск: уже идущий тик
// выключением флага не прерывается.
type Job struct {
	Name     string
	Flag     string // имя GlobalFlag, гейтящего запуск
	Interval time.Duration
	Run      func(ctx context.Context) error

	// OnDisabled вызывается вместо Run, когда запуск заблокирован
	// выключенным флагом. Дает задаче шанс проверить, не оставило ли
	// выключение систему в опасном состоянии. Может быть nil.
	OnDisabled func(ctx context.Context)

	running atomic.Bool
}

// Scheduler - кооперативный однопроцессный планировщик.
// Реестр задач статический, собирается при старте: набор задач
// известен на этапе компиляции.
type Scheduler struct {
	jobs     []*Job
	flags    FlagProvider
	notifier Notifier
	logger   *utils.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(flags FlagProvider, notifier Notifier, logger *utils.Logger) *Scheduler {
	return &Scheduler{
		flags:    flags,
		notifier: notifier,
		logger:   logger.WithComponent("scheduler"),
	}
}

// Register добавляет задачу в реестр. Вызывается до Start.
func (s *Scheduler) Register(job *Job) {
	s.jobs = append(s.jobs, job)
}

// Start запускает по горутине на задачу. Возвращается сразу.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, job)
	}

	s.logger.Info("scheduler started", utils.Int("jobs", len(s.jobs)))
}

// Stop останавливает планировщик и дожидается завершения идущих тиков
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runLoop(ctx context.Context, job *Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, job)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, job *Job) {
	// coalesce: предыдущий запуск еще идет - тик пропускается
	if !job.running.CompareAndSwap(false, true) {
		s.logger.Debug("tick skipped, previous run still in progress",
			utils.String("job", job.Name))
		TicksSkipped.WithLabelValues(job.Name).Inc()
		return
	}
	defer job.running.Store(false)

	if job.Flag != "" {
		enabled, err := s.flags.IsEnabled(ctx, job.Flag)
		if err != nil {
			s.logger.Warn("failed to read job flag, running anyway",
				utils.String("job", job.Name), utils.Err(err))
		} else if !enabled {
			if job.OnDisabled != nil {
				job.OnDisabled(ctx)
			}
			return
		}
	}

	start := time.Now()
	if err := s.safeRun(ctx, job); err != nil {
		s.logger.Error("job execution failed",
			utils.String("job", job.Name), utils.Err(err))
		JobErrors.WithLabelValues(job.Name).Inc()
		s.notifier.NotifyFatal(ctx, job.Name, err)
	}

	GuardPasses.WithLabelValues(job.Name).Inc()
	PassDuration.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())
}

// safeRun - job-level catch-all: паника внутри тика не роняет процесс,
// задача не отключается и отработает на следующем тике
func (s *Scheduler) safeRun(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %s: %v", job.Name, r)
		}
	}()
	return job.Run(ctx)
}
