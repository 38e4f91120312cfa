package models

import "time"

// Состояния RSI относительно настроенных порогов и тренда
const (
	RSIStateOversold        = "oversold"
	RSIStateOverbought      = "overbought"
	RSIStateBullishMomentum = "bullish_momentum"
	RSIStateNeutral         = "neutral"
)

// CryptoMarketMetrics - расчетный снимок технических индикаторов
// для одной свечи одного символа.
//
// Неизменяем; пересчитывается на каждом проходе. Последняя строка серии -
// текущая (незакрытая) свеча, предпоследняя - последняя подтвержденная.
// Все торговые решения принимаются по подтвержденной свече.
type CryptoMarketMetrics struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Timestamp time.Time `json:"timestamp"`

	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`

	EMAShort float64 `json:"ema_short"`
	EMAMid   float64 `json:"ema_mid"`
	EMALong  float64 `json:"ema_long"`

	MACDLine   float64 `json:"macd_line"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`

	RSI float64 `json:"rsi"`

	ATR        float64 `json:"atr"`
	ATRPercent float64 `json:"atr_percent"` // atr/close*100

	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`

	BBUpper  float64 `json:"bb_upper"`
	BBMiddle float64 `json:"bb_middle"`
	BBLower  float64 `json:"bb_lower"`

	RelativeVolume float64 `json:"relative_volume"` // текущий объем / скользящее среднее объема

	BearishDivergence bool `json:"bearish_divergence"`
	BullishDivergence bool `json:"bullish_divergence"`
}

// RSIStateFor возвращает производное состояние RSI.
//
// Направление тренда определяется положением цены относительно EMA-long:
// бычий momentum засчитывается только в восходящем тренде.
func (m *CryptoMarketMetrics) RSIStateFor(oversold, overbought float64) string {
	switch {
	case m.RSI <= oversold:
		return RSIStateOversold
	case m.RSI >= overbought:
		return RSIStateOverbought
	case m.RSI > 50 && m.Close > m.EMALong:
		return RSIStateBullishMomentum
	default:
		return RSIStateNeutral
	}
}

// LimitSellOrderGuardMetrics - терминальная расчетная сводка по одному
// sell-ордеру: вход для решений guard-задач и read-model для UI.
//
// Вычисляется заново на каждом проходе, никогда не персистится.
type LimitSellOrderGuardMetrics struct {
	SellOrder *Order `json:"sell_order"`

	CurrentPrice   float64 `json:"current_price"` // bid или close
	AvgBuyPrice    float64 `json:"avg_buy_price"` // из корреляции сделок
	BreakEvenPrice float64 `json:"break_even_price"`

	CurrentProfit float64 `json:"current_profit"` // (current - avg_buy) * amount
	NetRevenue    float64 `json:"net_revenue"`    // (current - break_even) * amount

	StopLossPercentValue float64 `json:"stop_loss_percent_value"`
	SafeguardStopPrice   float64 `json:"safeguard_stop_price"`

	CurrentATRValue   float64 `json:"current_atr_value"`
	CurrentATRPercent float64 `json:"current_atr_percent"`
	ClosingPrice      float64 `json:"closing_price"` // close подтвержденной свечи

	SuggestedStopLossPercentValue float64 `json:"suggested_stop_loss_percent_value"`
	SuggestedSafeguardStopPrice   float64 `json:"suggested_safeguard_stop_price"`
	SuggestedTakeProfitLimitPrice float64 `json:"suggested_take_profit_limit_price"`
}
