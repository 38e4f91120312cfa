package bot

import (
	"context"
	"math"

	"stopguard/internal/exchange"
	"stopguard/internal/models"
	"stopguard/pkg/utils"
)

// Смещение limit-цены ниже стопа, гарантирует исполнение по стакану
// после срабатывания триггера
const stopLimitSlippage = 0.002

// TrailingStopTask подтягивает стоп-цены открытых stop-limit sell-ордеров
// вверх вслед за ценой. Стоп никогда не опускается; замена ордера -
// cancel + create с новым стопом.
//
// Состояние не персистится: решение каждый тик выводится заново из
// живых ордеров биржи.
type TrailingStopTask struct {
	exchange exchange.Exchange
	config   ConfigProvider
	notifier Notifier
	logger   *utils.Logger
}

func NewTrailingStopTask(ex exchange.Exchange, config ConfigProvider, notifier Notifier, logger *utils.Logger) *TrailingStopTask {
	return &TrailingStopTask{
		exchange: ex,
		config:   config,
		notifier: notifier,
		logger:   logger.WithComponent("trailing_stop"),
	}
}

// trailingDecision - результат пересчета стопа одного ордера
type trailingDecision struct {
	Replace       bool
	NewStopPrice  float64
	NewLimitPrice float64
	BasePrice     float64
}

// computeTrailingStop - чистая логика пересчета.
//
// База расчета:
//   - нет обеспечивающих buy-ордеров ниже цены, либо цена убежала от
//     максимального из них дальше чем на stop-процент - база close
//     (фиксируем набранный рост);
//   - иначе min(close, минимальный buy) - консервативная привязка
//     к самой дешевой обеспечивающей покупке.
//
// Замена только при строгом росте стопа: равный новый стоп ордер
// не трогает.
func computeTrailingStop(order *models.Order, close float64, buyOrders []*models.Order, stopLossPercent float64, pricePrecision int) trailingDecision {
	maxBuy := math.Inf(1)
	minBuy := math.Inf(1)
	qualifying := false

	for _, buy := range buyOrders {
		p := buy.EffectivePrice()
		if p >= close {
			// Ордер выше цены - будущий вход, не обеспечение
			continue
		}
		if !qualifying {
			maxBuy, minBuy = p, p
			qualifying = true
			continue
		}
		if p > maxBuy {
			maxBuy = p
		}
		if p < minBuy {
			minBuy = p
		}
	}

	base := close
	if qualifying {
		gap := (1 - maxBuy/close) * 100
		if !(close > maxBuy && gap > stopLossPercent) {
			base = utils.Min(close, minBuy)
		}
	}

	newStop := utils.RoundToPrecision(base*(1-stopLossPercent/100), pricePrecision)

	replace := order.StopPrice != nil && newStop > *order.StopPrice
	return trailingDecision{
		Replace:       replace,
		NewStopPrice:  newStop,
		NewLimitPrice: utils.FloorToPrecision(newStop*(1-stopLimitSlippage), pricePrecision),
		BasePrice:     base,
	}
}

// Run - один тик задачи: проход по всем открытым stop-limit sell-ордерам.
// Ошибка одного ордера логируется и репортится, остальные обрабатываются.
func (t *TrailingStopTask) Run(ctx context.Context) error {
	sellOrders, err := t.exchange.GetPendingSellOrders(ctx, models.OrderTypeStopLimit)
	if err != nil {
		return err
	}
	if len(sellOrders) == 0 {
		return nil
	}

	buyOrders, err := t.exchange.GetPendingBuyOrders(ctx, "")
	if err != nil {
		return err
	}
	buysBySymbol := groupOrdersBySymbol(buyOrders)

	tickers, err := t.fetchTickers(ctx, sellOrders)
	if err != nil {
		return err
	}

	for _, order := range sellOrders {
		if err := t.processOrder(ctx, order, tickers[order.Symbol], buysBySymbol[order.Symbol]); err != nil {
			t.logger.Error("trailing stop recalculation failed",
				utils.String("order_id", order.ID),
				utils.String("symbol", order.Symbol),
				utils.Err(err))
			t.notifier.NotifyFatal(ctx, "trailing_stop", err)
			JobErrors.WithLabelValues(JobTrailingStop).Inc()
		}
	}
	return nil
}

func (t *TrailingStopTask) processOrder(ctx context.Context, order *models.Order, tickers *models.SymbolTickers, buys []*models.Order) error {
	if tickers == nil {
		return models.ErrNoPrice
	}
	if err := tickers.Validate(); err != nil {
		return err
	}

	stopLossPercent, err := t.config.GetStopLossPercent(ctx, utils.BaseCurrency(order.Symbol))
	if err != nil {
		return err
	}

	marketConfig, err := t.exchange.GetTradingMarketConfigBySymbol(ctx, order.Symbol)
	if err != nil {
		return err
	}

	decision := computeTrailingStop(order, tickers.Close, buys, stopLossPercent, marketConfig.PricePrecision)
	if !decision.Replace {
		return nil
	}

	t.logger.Info("raising stop price",
		utils.String("order_id", order.ID),
		utils.String("symbol", order.Symbol),
		utils.Float64("old_stop", *order.StopPrice),
		utils.Float64("new_stop", decision.NewStopPrice),
		utils.Float64("base", decision.BasePrice))

	// Мутации последовательны: cancel, затем create
	if err := t.exchange.CancelOrderByID(ctx, order.ID); err != nil {
		return err
	}

	stopPrice := decision.NewStopPrice
	replacement := &models.Order{
		Symbol:    order.Symbol,
		Side:      models.SideSell,
		OrderType: models.OrderTypeStopLimit,
		Amount:    order.Amount,
		Price:     decision.NewLimitPrice,
		StopPrice: &stopPrice,
	}
	if _, err := t.exchange.CreateOrder(ctx, replacement); err != nil {
		return err
	}

	TrailingReplacements.WithLabelValues(order.Symbol).Inc()
	return nil
}

// fetchTickers батчит запрос тикеров по уникальным символам ордеров
func (t *TrailingStopTask) fetchTickers(ctx context.Context, orders []*models.Order) (map[string]*models.SymbolTickers, error) {
	symbols := distinctSymbols(orders)
	tickers, err := t.exchange.GetTickersBySymbols(ctx, symbols)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*models.SymbolTickers, len(tickers))
	for _, tk := range tickers {
		result[tk.Symbol] = tk
	}
	return result, nil
}

func distinctSymbols(orders []*models.Order) []string {
	seen := make(map[string]struct{}, len(orders))
	symbols := make([]string, 0, len(orders))
	for _, o := range orders {
		if _, ok := seen[o.Symbol]; ok {
			continue
		}
		seen[o.Symbol] = struct{}{}
		symbols = append(symbols, o.Symbol)
	}
	return symbols
}

func groupOrdersBySymbol(orders []*models.Order) map[string][]*models.Order {
	result := make(map[string][]*models.Order)
	for _, o := range orders {
		result[o.Symbol] = append(result[o.Symbol], o)
	}
	return result
}
