package models

import "time"

// Типы рыночных сигналов
const (
	SignalTypeBuy               = "buy"
	SignalTypeSell              = "sell"
	SignalTypeBearishDivergence = "bearish_divergence"
	SignalTypeBullishDivergence = "bullish_divergence"
)

// Таймфреймы оценки сигналов
const (
	Timeframe1h = "1h"
	Timeframe4h = "4h"
)

// MarketSignal - персистируемая запись обнаруженного сигнала
// по символу и таймфрейму.
//
// Используется для истории и для гейтинга авто-входов. Подчиняется
// retention-политике (удаление старше N дней); для 4h действует
// дедупликация "хранить только при смене тренда".
type MarketSignal struct {
	ID           int64     `json:"id" db:"id"`
	Timestamp    time.Time `json:"timestamp" db:"timestamp"`
	Symbol       string    `json:"symbol" db:"symbol"`
	Timeframe    string    `json:"timeframe" db:"timeframe"`
	SignalType   string    `json:"signal_type" db:"signal_type"`
	RSIState     string    `json:"rsi_state" db:"rsi_state"`
	ATR          float64   `json:"atr" db:"atr"`
	ClosingPrice float64   `json:"closing_price" db:"closing_price"`
	EMALongPrice float64   `json:"ema_long_price" db:"ema_long_price"`
}

// IsTrendSignal возвращает true для сигналов смены направления (buy/sell).
// Дивергенции трендовыми не считаются и под 4h-дедупликацию не попадают.
func (s *MarketSignal) IsTrendSignal() bool {
	return s.SignalType == SignalTypeBuy || s.SignalType == SignalTypeSell
}
