package bot

import (
	"context"
	"fmt"

	"stopguard/internal/exchange"
	"stopguard/internal/indicator"
	"stopguard/internal/models"
	"stopguard/pkg/utils"
)

// SignalEvaluationTask оценивает рыночные сигналы по сконфигурированным
// символам на таймфреймах 1h и 4h: пересечения EMA с фильтрами ADX и
// объема, дивергенции RSI.
//
// Результаты персистятся (с 4h-дедупликацией по смене тренда) и
// рассылаются потребителям через канал: sell-сигналы 1h забирает
// guard limit-ордеров, остальное уходит в UI.
type SignalEvaluationTask struct {
	exchange    exchange.Exchange
	config      ConfigProvider
	store       SignalStore
	broadcaster MetricsBroadcaster
	logger      *utils.Logger

	// Канал доставки sell-сигналов guard-задаче. Буферизован;
	// при переполнении сигнал теряется для guard, но сохраняется в БД.
	sellSignals chan<- *models.MarketSignal

	indicatorCfg  indicator.Config
	retentionDays int
}

func NewSignalEvaluationTask(
	ex exchange.Exchange,
	config ConfigProvider,
	store SignalStore,
	broadcaster MetricsBroadcaster,
	sellSignals chan<- *models.MarketSignal,
	retentionDays int,
	logger *utils.Logger,
) *SignalEvaluationTask {
	return &SignalEvaluationTask{
		exchange:      ex,
		config:        config,
		store:         store,
		broadcaster:   broadcaster,
		sellSignals:   sellSignals,
		indicatorCfg:  indicator.DefaultConfig(),
		retentionDays: retentionDays,
		logger:        logger.WithComponent("signal_evaluation"),
	}
}

// Run - один тик оценки: все сконфигурированные символы, оба таймфрейма.
// Ошибка одного символа не прерывает остальные.
func (t *SignalEvaluationTask) Run(ctx context.Context) error {
	configs, err := t.config.GetAllSignalsConfigs(ctx)
	if err != nil {
		return err
	}

	for _, cfg := range configs {
		for _, timeframe := range []string{models.Timeframe1h, models.Timeframe4h} {
			if err := t.evaluateSymbol(ctx, cfg, timeframe); err != nil {
				t.logger.Error("signal evaluation failed",
					utils.String("symbol", cfg.Symbol),
					utils.String("timeframe", timeframe),
					utils.Err(err))
				JobErrors.WithLabelValues(JobSignalEvaluation).Inc()
			}
		}
	}

	t.cleanupOldSignals(ctx)
	return nil
}

// evaluateSymbol оценивает один символ на одном таймфрейме.
// Символ конфига - базовая валюта; торговая пара достраивается
// котируемой валютой процесса через конфиг пары.
func (t *SignalEvaluationTask) evaluateSymbol(ctx context.Context, cfg *models.BuySellSignalsConfigItem, timeframe string) error {
	pair := cfg.Symbol + "/" + t.config.QuoteCurrency()

	candles, err := t.exchange.FetchOHLCV(ctx, pair, timeframe, exchange.DefaultOHLCVLimit)
	if err != nil {
		return err
	}

	indicatorCfg := t.indicatorCfg.WithEMAPeriods(cfg.EMAShortPeriod, cfg.EMAMidPeriod, cfg.EMALongPeriod)
	series, err := indicator.Calculate(pair, timeframe, candles, indicatorCfg)
	if err != nil {
		return err
	}
	if len(series) < 3 {
		return fmt.Errorf("metrics series too short for %s %s", pair, timeframe)
	}

	// Решения по подтвержденной свече; предыдущая подтвержденная
	// нужна для детекции пересечения
	confirmed := &series[len(series)-2]
	previous := &series[len(series)-3]

	for _, signalType := range detectSignals(confirmed, previous, cfg) {
		signal := &models.MarketSignal{
			Timestamp:    confirmed.Timestamp,
			Symbol:       pair,
			Timeframe:    timeframe,
			SignalType:   signalType,
			RSIState:     confirmed.RSIStateFor(defaultRSIOversold, defaultRSIOverbought),
			ATR:          confirmed.ATR,
			ClosingPrice: confirmed.Close,
			EMALongPrice: confirmed.EMALong,
		}
		if err := t.emitSignal(ctx, signal); err != nil {
			return err
		}
	}
	return nil
}

// Пороги RSI для производного состояния
const (
	defaultRSIOversold   = 30.0
	defaultRSIOverbought = 70.0
)

// detectSignals возвращает типы сигналов, сработавшие на подтвержденной
// свече. Трендовые сигналы - пересечение EMA short/mid с фильтрами,
// дивергенции берутся из флагов индикаторов напрямую.
func detectSignals(confirmed, previous *models.CryptoMarketMetrics, cfg *models.BuySellSignalsConfigItem) []string {
	var signals []string

	crossedUp := previous.EMAShort <= previous.EMAMid && confirmed.EMAShort > confirmed.EMAMid
	crossedDown := previous.EMAShort >= previous.EMAMid && confirmed.EMAShort < confirmed.EMAMid

	adxOK := !cfg.EnableADXFilter || confirmed.ADX >= cfg.ADXThreshold

	if crossedUp && confirmed.Close > confirmed.EMALong && adxOK {
		if !cfg.EnableBuyVolumeFilter || confirmed.RelativeVolume >= cfg.BuyVolumeThreshold {
			signals = append(signals, models.SignalTypeBuy)
		}
	}

	if crossedDown && adxOK {
		if !cfg.EnableSellVolumeFilter || confirmed.RelativeVolume >= cfg.SellVolumeThreshold {
			signals = append(signals, models.SignalTypeSell)
		}
	}

	if confirmed.BearishDivergence {
		signals = append(signals, models.SignalTypeBearishDivergence)
	}
	if confirmed.BullishDivergence {
		signals = append(signals, models.SignalTypeBullishDivergence)
	}

	return signals
}

// emitSignal персистит сигнал и доставляет его потребителям.
//
// Для 4h трендовых сигналов действует дедупликация: хранится только
// смена тренда, повтор того же направления пропускается целиком.
func (t *SignalEvaluationTask) emitSignal(ctx context.Context, signal *models.MarketSignal) error {
	if signal.Timeframe == models.Timeframe4h && signal.IsTrendSignal() {
		last, err := t.store.LastTrendSignal(ctx, signal.Symbol, models.Timeframe4h)
		if err != nil {
			return err
		}
		if last != nil && last.SignalType == signal.SignalType {
			return nil
		}
	}

	if err := t.store.Save(ctx, signal); err != nil {
		return err
	}
	SignalsDetected.WithLabelValues(signal.SignalType, signal.Timeframe).Inc()

	t.logger.Info("signal detected",
		utils.String("symbol", signal.Symbol),
		utils.String("timeframe", signal.Timeframe),
		utils.String("type", signal.SignalType),
		utils.Float64("close", signal.ClosingPrice))

	if t.broadcaster != nil {
		t.broadcaster.BroadcastSignal(signal)
	}

	if signal.Timeframe == models.Timeframe1h && signal.SignalType == models.SignalTypeSell && t.sellSignals != nil {
		select {
		case t.sellSignals <- signal:
		default:
			t.logger.Warn("sell signal channel full, signal not delivered to guard job",
				utils.String("symbol", signal.Symbol))
		}
	}
	return nil
}

func (t *SignalEvaluationTask) cleanupOldSignals(ctx context.Context) {
	if t.retentionDays <= 0 {
		return
	}
	deleted, err := t.store.DeleteOlderThan(ctx, utils.DaysAgo(t.retentionDays))
	if err != nil {
		t.logger.Warn("failed to delete old signals", utils.Err(err))
		return
	}
	if deleted > 0 {
		t.logger.Debug("old signals deleted", utils.Int64("deleted", deleted))
	}
}
