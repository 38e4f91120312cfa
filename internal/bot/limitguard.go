package bot

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"stopguard/internal/exchange"
	"stopguard/internal/indicator"
	"stopguard/internal/models"
	"stopguard/pkg/utils"
)

// Причины принудительного выхода
const (
	ExitReasonSafeguardBreach = "safeguard_breach"
	ExitReasonSellSignal      = "sell_signal_1h"
	ExitReasonDivergence      = "bearish_divergence_1h"
	ExitReasonTakeProfit      = "atr_take_profit"
)

// LimitSellGuardTask охраняет открытые limit sell-ордера: если цена
// пробила safeguard-стоп, ордер снимается и позиция закрывается
// market-ордером. Дополнительные выходы (по sell-сигналу 1h, по
// медвежьей дивергенции и по ATR-тейк-профиту) включаются флагами
// и настройками символа.
type LimitSellGuardTask struct {
	exchange    exchange.Exchange
	config      ConfigProvider
	flags       FlagProvider
	notifier    Notifier
	broadcaster MetricsBroadcaster
	logger      *utils.Logger

	// Свежие 1h sell-сигналы от задачи оценки сигналов
	signals <-chan *models.MarketSignal

	indicatorCfg indicator.Config

	// Было ли уже отправлено предупреждение о выключенном guard
	// при открытых ордерах. Сбрасывается успешным проходом.
	unprotectedWarned atomic.Bool
}

func NewLimitSellGuardTask(
	ex exchange.Exchange,
	config ConfigProvider,
	flags FlagProvider,
	notifier Notifier,
	broadcaster MetricsBroadcaster,
	signals <-chan *models.MarketSignal,
	logger *utils.Logger,
) *LimitSellGuardTask {
	return &LimitSellGuardTask{
		exchange:     ex,
		config:       config,
		flags:        flags,
		notifier:     notifier,
		broadcaster:  broadcaster,
		signals:      signals,
		logger:       logger.WithComponent("limit_sell_guard"),
		indicatorCfg: indicator.DefaultConfig(),
	}
}

// Run - один guard-проход по всем открытым limit sell-ордерам.
//
// Ошибка обработки одного ордера изолируется: логируется, уходит
// в уведомления и не прерывает проход по остальным.
func (t *LimitSellGuardTask) Run(ctx context.Context) error {
	orders, err := t.exchange.GetPendingSellOrders(ctx, models.OrderTypeLimit)
	if err != nil {
		return err
	}
	t.unprotectedWarned.Store(false)
	OpenSellOrders.Set(float64(len(orders)))
	if len(orders) == 0 {
		return nil
	}

	freshSellSignals := t.drainSellSignals()

	tickersBySymbol, err := t.fetchTickers(ctx, orders)
	if err != nil {
		return err
	}

	// Накопитель атрибуции филлов сквозной на весь проход:
	// общий buy-филл не обеспечивает два ордера одновременно.
	// Ордера идут от старых к новым для детерминированной атрибуции.
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	state := NewUsageState()
	tradesBySymbol := make(map[string][]*models.Trade)

	allMetrics := make([]*models.LimitSellOrderGuardMetrics, 0, len(orders))

	for _, order := range orders {
		metrics, updated, err := t.processOrder(ctx, order, tickersBySymbol[order.Symbol], tradesBySymbol, state, freshSellSignals)
		if err != nil {
			t.logger.Error("guard pass failed for order",
				utils.String("order_id", order.ID),
				utils.String("symbol", order.Symbol),
				utils.Err(err))
			t.notifier.NotifyFatal(ctx, "limit_sell_guard", err)
			JobErrors.WithLabelValues(JobLimitSellGuard).Inc()
			continue
		}
		state = updated
		if metrics != nil {
			allMetrics = append(allMetrics, metrics)
		}
	}

	if t.broadcaster != nil && len(allMetrics) > 0 {
		t.broadcaster.BroadcastGuardMetrics(allMetrics)
	}
	return nil
}

// ComputeMetrics собирает guard-метрики всех открытых limit sell-ордеров
// без торговых действий. Используется как read-model для API и UI.
func (t *LimitSellGuardTask) ComputeMetrics(ctx context.Context) ([]*models.LimitSellOrderGuardMetrics, error) {
	orders, err := t.exchange.GetPendingSellOrders(ctx, models.OrderTypeLimit)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	tickersBySymbol, err := t.fetchTickers(ctx, orders)
	if err != nil {
		return nil, err
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	state := NewUsageState()
	tradesBySymbol := make(map[string][]*models.Trade)

	result := make([]*models.LimitSellOrderGuardMetrics, 0, len(orders))
	for _, order := range orders {
		metrics, _, updated, err := t.computeOrderMetrics(ctx, order, tickersBySymbol[order.Symbol], tradesBySymbol, state)
		if err != nil {
			t.logger.Warn("order metrics unavailable",
				utils.String("order_id", order.ID),
				utils.Err(err))
			continue
		}
		state = updated
		result = append(result, metrics)
	}
	return result, nil
}

func (t *LimitSellGuardTask) processOrder(
	ctx context.Context,
	order *models.Order,
	tickers *models.SymbolTickers,
	tradesBySymbol map[string][]*models.Trade,
	state UsageState,
	freshSellSignals map[string]*models.MarketSignal,
) (*models.LimitSellOrderGuardMetrics, UsageState, error) {
	metrics, candles, updated, err := t.computeOrderMetrics(ctx, order, tickers, tradesBySymbol, state)
	if err != nil {
		return nil, state, err
	}

	cfg, err := t.config.GetSignalsConfig(ctx, utils.BaseCurrency(order.Symbol))
	if err != nil {
		return nil, state, err
	}

	reason := t.exitReason(ctx, order, metrics, cfg, candles, freshSellSignals)
	if reason == "" {
		return metrics, updated, nil
	}

	if err := t.forceExit(ctx, order, metrics, reason); err != nil {
		return nil, state, err
	}
	return metrics, updated, nil
}

// exitReason возвращает причину принудительного выхода или пустую строку.
//
// Пробой safeguard-стопа проверяется по живой цене тикера, а не по close
// подтвержденной свечи: между закрытиями свечи рынок успевает пройти
// весь защитный зазор, ждать закрытия здесь нельзя. Тейк-профит
// наоборот проверяется по high текущей свечи: достаточно одного касания
// цели внутри бара, даже если к тику цена уже откатилась.
func (t *LimitSellGuardTask) exitReason(
	ctx context.Context,
	order *models.Order,
	metrics *models.LimitSellOrderGuardMetrics,
	cfg *models.BuySellSignalsConfigItem,
	candles *hourlyCandles,
	freshSellSignals map[string]*models.MarketSignal,
) string {
	// Пробой safeguard-стопа - безусловный выход
	if metrics.CurrentPrice <= metrics.SafeguardStopPrice {
		return ExitReasonSafeguardBreach
	}

	// Выход по sell-сигналу 1h: только в плюсе относительно break-even
	if cfg.EnableExitOnSellSignal && t.flagEnabled(ctx, models.FlagAutoExitSell1h) {
		if sig, ok := freshSellSignals[order.Symbol]; ok && sig.SignalType == models.SignalTypeSell {
			if metrics.CurrentPrice >= metrics.BreakEvenPrice {
				return ExitReasonSellSignal
			}
		}
	}

	// Выход по медвежьей дивергенции подтвержденной свечи: только в плюсе
	if cfg.EnableExitOnDivergence && t.flagEnabled(ctx, models.FlagAutoExitDivergence) {
		if candles.confirmed.BearishDivergence && metrics.CurrentPrice >= metrics.BreakEvenPrice {
			return ExitReasonDivergence
		}
	}

	// Тейк-профит по ATR: high текущей свечи коснулся цели
	// и цель не ниже break-even
	if cfg.EnableExitOnTakeProfit && t.flagEnabled(ctx, models.FlagAutoExitATRProfit) {
		if candles.current.High >= metrics.SuggestedTakeProfitLimitPrice &&
			metrics.SuggestedTakeProfitLimitPrice >= metrics.BreakEvenPrice {
			return ExitReasonTakeProfit
		}
	}

	return ""
}

func (t *LimitSellGuardTask) computeOrderMetrics(
	ctx context.Context,
	order *models.Order,
	tickers *models.SymbolTickers,
	tradesBySymbol map[string][]*models.Trade,
	state UsageState,
) (*models.LimitSellOrderGuardMetrics, *hourlyCandles, UsageState, error) {
	if tickers == nil {
		return nil, nil, state, models.ErrNoPrice
	}

	marketConfig, err := t.exchange.GetTradingMarketConfigBySymbol(ctx, order.Symbol)
	if err != nil {
		return nil, nil, state, err
	}

	cfg, err := t.config.GetSignalsConfig(ctx, utils.BaseCurrency(order.Symbol))
	if err != nil {
		return nil, nil, state, err
	}

	stopLossPercent, err := t.config.GetStopLossPercent(ctx, utils.BaseCurrency(order.Symbol))
	if err != nil {
		return nil, nil, state, err
	}

	trades, ok := tradesBySymbol[order.Symbol]
	if !ok {
		trades, err = t.exchange.GetTrades(ctx, models.SideBuy, order.Symbol)
		if err != nil {
			return nil, nil, state, err
		}
		tradesBySymbol[order.Symbol] = trades
	}

	candles, err := t.hourlyIndicators(ctx, order.Symbol, cfg)
	if err != nil {
		return nil, nil, state, err
	}

	metrics, updated, err := ComputeGuardMetrics(GuardMetricsInput{
		SellOrder:       order,
		Tickers:         tickers,
		MarketConfig:    marketConfig,
		SignalsConfig:   cfg,
		Indicators:      candles.confirmed,
		BuyTrades:       trades,
		TakerFee:        t.config.TakerFee(),
		StopLossPercent: stopLossPercent,
	}, state)
	if err != nil {
		return nil, nil, state, err
	}
	return metrics, candles, updated, nil
}

// hourlyCandles - часовые индикаторы, по которым принимаются решения
// выхода: подтвержденная свеча (дивергенции, ATR) и текущая незакрытая
// (high для тейк-профита)
type hourlyCandles struct {
	confirmed *models.CryptoMarketMetrics
	current   *models.CryptoMarketMetrics
}

func (t *LimitSellGuardTask) hourlyIndicators(ctx context.Context, symbol string, cfg *models.BuySellSignalsConfigItem) (*hourlyCandles, error) {
	candles, err := t.exchange.FetchOHLCV(ctx, symbol, models.Timeframe1h, exchange.DefaultOHLCVLimit)
	if err != nil {
		return nil, err
	}

	indicatorCfg := t.indicatorCfg.WithEMAPeriods(cfg.EMAShortPeriod, cfg.EMAMidPeriod, cfg.EMALongPeriod)
	metrics, err := indicator.Calculate(symbol, models.Timeframe1h, candles, indicatorCfg)
	if err != nil {
		return nil, err
	}

	confirmed, err := indicator.Confirmed(metrics)
	if err != nil {
		return nil, err
	}
	current, err := indicator.Current(metrics)
	if err != nil {
		return nil, err
	}
	return &hourlyCandles{confirmed: confirmed, current: current}, nil
}

// forceExit снимает limit-ордер и продает тот же объем по рынку
func (t *LimitSellGuardTask) forceExit(ctx context.Context, order *models.Order, metrics *models.LimitSellOrderGuardMetrics, reason string) error {
	t.logger.Warn("forced exit",
		utils.String("order_id", order.ID),
		utils.String("symbol", order.Symbol),
		utils.String("reason", reason),
		utils.Float64("current_price", metrics.CurrentPrice),
		utils.Float64("safeguard_stop", metrics.SafeguardStopPrice))

	if err := t.exchange.CancelOrderByID(ctx, order.ID); err != nil {
		return err
	}

	marketSell := &models.Order{
		Symbol:    order.Symbol,
		Side:      models.SideSell,
		OrderType: models.OrderTypeMarket,
		Amount:    order.Amount,
	}
	if _, err := t.exchange.CreateOrder(ctx, marketSell); err != nil {
		return err
	}

	ForcedExits.WithLabelValues(reason).Inc()
	t.notifier.NotifyForcedExit(ctx, order, reason, metrics)
	return nil
}

// WarnIfUnprotected вызывается планировщиком вместо Run, когда задача
// выключена флагом: если при этом остались открытые limit sell-ордера,
// они ничем не защищены - оператор получает предупреждение.
// Уведомление не повторяется, пока guard не отработает снова.
func (t *LimitSellGuardTask) WarnIfUnprotected(ctx context.Context) {
	orders, err := t.exchange.GetPendingSellOrders(ctx, models.OrderTypeLimit)
	if err != nil {
		t.logger.Warn("failed to check open orders while guard is disabled", utils.Err(err))
		return
	}
	if len(orders) == 0 {
		t.unprotectedWarned.Store(false)
		return
	}

	if t.unprotectedWarned.CompareAndSwap(false, true) {
		t.logger.Warn("guard disabled with open sell orders",
			utils.Int("open_orders", len(orders)))
		t.notifier.NotifyWarning(ctx, fmt.Sprintf(
			"limit sell order guard is disabled while %d open sell order(s) remain unprotected", len(orders)))
	}
}

// drainSellSignals вычитывает накопившиеся sell-сигналы без блокировки.
// Сигнал считается свежим один тик: что вычитали, то и учли. Сигналы
// старше двух баров отбрасываются: сигнал свечи, после которой рынок
// успел переоценить ситуацию, уже не основание для выхода.
func (t *LimitSellGuardTask) drainSellSignals() map[string]*models.MarketSignal {
	fresh := make(map[string]*models.MarketSignal)
	if t.signals == nil {
		return fresh
	}

	bar, err := utils.TimeframeDuration(models.Timeframe1h)
	if err != nil {
		bar = time.Hour
	}
	cutoff := time.Now().Add(-2 * bar)

	for {
		select {
		case sig := <-t.signals:
			if sig != nil && sig.Timeframe == models.Timeframe1h && sig.Timestamp.After(cutoff) {
				fresh[sig.Symbol] = sig
			}
		default:
			return fresh
		}
	}
}

func (t *LimitSellGuardTask) flagEnabled(ctx context.Context, name string) bool {
	enabled, err := t.flags.IsEnabled(ctx, name)
	if err != nil {
		t.logger.Warn("failed to read flag, assuming enabled",
			utils.String("flag", name), utils.Err(err))
		return true
	}
	return enabled
}

func (t *LimitSellGuardTask) fetchTickers(ctx context.Context, orders []*models.Order) (map[string]*models.SymbolTickers, error) {
	tickers, err := t.exchange.GetTickersBySymbols(ctx, distinctSymbols(orders))
	if err != nil {
		return nil, err
	}
	result := make(map[string]*models.SymbolTickers, len(tickers))
	for _, tk := range tickers {
		result[tk.Symbol] = tk
	}
	return result, nil
}
