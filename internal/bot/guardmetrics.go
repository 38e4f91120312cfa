package bot

import (
	"fmt"
	"math"

	"stopguard/internal/models"
	"stopguard/pkg/utils"
)

const (
	// Добавка к сырому ATR-проценту перед снапом к шагу таблицы
	suggestedStopBuffer = 0.05

	// Шаг таблицы дискретных стоп-процентов
	stopLossStep = 0.25

	// Точность промежуточного ceil-округления сырого процента
	rawPercentPrecision = 4
)

// GuardMetricsInput - все входы расчета guard-метрик одного sell-ордера.
// Расчет чистый: два вызова с одинаковыми входами дают идентичный результат.
type GuardMetricsInput struct {
	SellOrder     *models.Order
	Tickers       *models.SymbolTickers
	MarketConfig  *models.SymbolMarketConfig
	SignalsConfig *models.BuySellSignalsConfigItem

	// Метрики последней подтвержденной свечи
	Indicators *models.CryptoMarketMetrics

	// Buy-филлы символа от новых к старым
	BuyTrades []*models.Trade

	TakerFee        float64 // доля, например 0.0026
	StopLossPercent float64 // ручной процент для символа
}

// ComputeGuardMetrics собирает полную расчетную сводку по sell-ордеру:
// средняя цена покупки, break-even, текущий P/L, ручной safeguard-стоп
// и ATR-адаптивные рекомендации стопа и тейк-профита.
//
// Округления несимметричны намеренно: цены и выручка округляются вниз
// (не обещать больше, чем есть), дистанции стопа - вверх (не занижать
// запас безопасности).
func ComputeGuardMetrics(in GuardMetricsInput, state UsageState) (*models.LimitSellOrderGuardMetrics, UsageState, error) {
	if err := in.Tickers.Validate(); err != nil {
		return nil, state, fmt.Errorf("tickers %s: %w", in.SellOrder.Symbol, err)
	}

	precision := in.MarketConfig.PricePrecision

	avgBuyPrice, updated, err := Correlate(in.SellOrder, in.BuyTrades, state, precision)
	if err != nil {
		return nil, state, err
	}

	breakEven := utils.CeilToPrecision(avgBuyPrice*(1+in.TakerFee)/(1-in.TakerFee), precision)

	currentPrice := in.Tickers.BidOrClose()
	currentProfit := utils.FloorToPrecision((currentPrice-avgBuyPrice)*in.SellOrder.Amount, precision)
	netRevenue := utils.FloorToPrecision((currentPrice-breakEven)*in.SellOrder.Amount, precision)

	safeguardStop := utils.FloorToPrecision(utils.PercentBelow(avgBuyPrice, in.StopLossPercent), precision)

	suggestedPercent := SuggestedStopLossPercent(avgBuyPrice, in.Indicators.ATR, in.SignalsConfig.StopLossATRMultiplier)
	suggestedStop := utils.FloorToPrecision(utils.PercentBelow(avgBuyPrice, suggestedPercent), precision)
	suggestedTP := utils.FloorToPrecision(avgBuyPrice+in.Indicators.ATR*in.SignalsConfig.TakeProfitATRMultiplier, precision)

	metrics := &models.LimitSellOrderGuardMetrics{
		SellOrder: in.SellOrder,

		CurrentPrice:   currentPrice,
		AvgBuyPrice:    avgBuyPrice,
		BreakEvenPrice: breakEven,

		CurrentProfit: currentProfit,
		NetRevenue:    netRevenue,

		StopLossPercentValue: in.StopLossPercent,
		SafeguardStopPrice:   safeguardStop,

		CurrentATRValue:   in.Indicators.ATR,
		CurrentATRPercent: in.Indicators.ATRPercent,
		ClosingPrice:      in.Indicators.Close,

		SuggestedStopLossPercentValue: suggestedPercent,
		SuggestedSafeguardStopPrice:   suggestedStop,
		SuggestedTakeProfitLimitPrice: suggestedTP,
	}

	return metrics, updated, nil
}

// SuggestedStopLossPercent - ATR-адаптивный процент стопа.
//
// Сырой процент (дистанция avg -> avg - ATR*mult, ceil до 4 знаков,
// плюс буфер) снапится ВВЕРХ к ближайшему шагу таблицы 0.25..20.00.
// Выше максимума таблицы - ceil до 2 знаков без снапа. Снап вниз
// запрещен: дискретный процент никогда не занижает риск.
func SuggestedStopLossPercent(avgBuyPrice, atr, atrMultiplier float64) float64 {
	if avgBuyPrice <= 0 {
		return models.MinStopLossPercent
	}

	rawStopPrice := avgBuyPrice - atr*atrMultiplier
	rawPercent := utils.CeilToPrecision(utils.PercentGap(avgBuyPrice, rawStopPrice), rawPercentPrecision) + suggestedStopBuffer

	if rawPercent > models.MaxStopLossPercent {
		return utils.CeilToPrecision(rawPercent, 2)
	}
	return snapUpToStep(rawPercent)
}

// snapUpToStep - наименьший шаг таблицы >= значения, в границах таблицы
func snapUpToStep(percent float64) float64 {
	steps := math.Ceil(percent/stopLossStep - 1e-9)
	return utils.Clamp(steps*stopLossStep, models.MinStopLossPercent, models.MaxStopLossPercent)
}
