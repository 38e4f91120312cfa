package bot

import (
	"context"
	"time"

	"stopguard/internal/exchange"
	"stopguard/internal/models"
	"stopguard/pkg/utils"
)

// Размер буфера канала sell-сигналов между задачами
const sellSignalBuffer = 64

// Config - интервалы задач и retention
type Config struct {
	TrailingStopInterval     time.Duration
	LimitSellGuardInterval   time.Duration
	SignalEvaluationInterval time.Duration
	SignalRetentionDays      int
}

// Engine - контекст приложения guard-ядра: собирает задачи с их
// зависимостями и владеет планировщиком.
//
// Все зависимости передаются явно в конструктор; глобального
// мутабельного состояния нет.
type Engine struct {
	exchange  exchange.Exchange
	scheduler *Scheduler
	logger    *utils.Logger

	trailing *TrailingStopTask
	guard    *LimitSellGuardTask
	signals  *SignalEvaluationTask
}

func NewEngine(
	cfg Config,
	ex exchange.Exchange,
	config ConfigProvider,
	flags FlagProvider,
	notifier Notifier,
	signalStore SignalStore,
	broadcaster MetricsBroadcaster,
	logger *utils.Logger,
) *Engine {
	sellSignals := make(chan *models.MarketSignal, sellSignalBuffer)

	trailing := NewTrailingStopTask(ex, config, notifier, logger)
	guard := NewLimitSellGuardTask(ex, config, flags, notifier, broadcaster, sellSignals, logger)
	signals := NewSignalEvaluationTask(ex, config, signalStore, broadcaster, sellSignals, cfg.SignalRetentionDays, logger)

	scheduler := NewScheduler(flags, notifier, logger)
	scheduler.Register(&Job{
		Name:     JobTrailingStop,
		Flag:     models.FlagTrailingStopLoss,
		Interval: cfg.TrailingStopInterval,
		Run:      trailing.Run,
	})
	scheduler.Register(&Job{
		Name:       JobLimitSellGuard,
		Flag:       models.FlagLimitSellGuard,
		Interval:   cfg.LimitSellGuardInterval,
		Run:        guard.Run,
		OnDisabled: guard.WarnIfUnprotected,
	})
	scheduler.Register(&Job{
		Name:     JobSignalEvaluation,
		Flag:     models.FlagBuySellSignals,
		Interval: cfg.SignalEvaluationInterval,
		Run:      signals.Run,
	})

	return &Engine{
		exchange:  ex,
		scheduler: scheduler,
		logger:    logger.WithComponent("engine"),
		trailing:  trailing,
		guard:     guard,
		signals:   signals,
	}
}

// Start запускает планировщик задач
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("starting guard engine",
		utils.String("exchange", e.exchange.GetName()))
	e.scheduler.Start(ctx)
}

// Stop останавливает планировщик, дожидаясь идущих тиков
func (e *Engine) Stop() {
	e.scheduler.Stop()
	if err := e.exchange.Close(); err != nil {
		e.logger.Warn("failed to close exchange client", utils.Err(err))
	}
	e.logger.Info("guard engine stopped")
}

// GuardMetrics - read-model для API и UI: метрики всех открытых
// limit sell-ордеров без торговых действий
func (e *Engine) GuardMetrics(ctx context.Context) ([]*models.LimitSellOrderGuardMetrics, error) {
	return e.guard.ComputeMetrics(ctx)
}
